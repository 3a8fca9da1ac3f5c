// Package output renders engine results for the CLI boundary (spec.md §4.10,
// §6). The engine itself returns typed values; this package is where those
// values become the stable textual contract external tooling parses.
package output

import (
	"fmt"
	"io"
	"strings"

	"tidemark/internal/model"
)

// Coordinate writes the canonical coordinate string with no trailing
// newline, per spec.md §6 ("no trailing newline from the engine").
func Coordinate(w io.Writer, c model.Coordinate) error {
	_, err := io.WriteString(w, c.String())
	return err
}

// Explain writes one "key=value" line per ordered field, no spaces around
// "=", no quoting, in the fixed order the explain record was built with.
func Explain(w io.Writer, rec model.ExplainRecord) error {
	var b strings.Builder
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, "%s=%s\n", f.Key, f.Value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ReleaseList renders the supplemental `tide release list` output: one
// tab-separated line per candidate, in the order it was loaded (the
// post-merge, post-filter candidate set, before ancestry filtering).
// Columns: name, anchor_value, commit_id, annotation-state, source.
func ReleaseList(w io.Writer, candidates []model.ReleaseTag) error {
	var b strings.Builder
	for _, c := range candidates {
		annotation := "lightweight"
		if c.Tag.IsAnnotated {
			annotation = "annotated"
		}
		fmt.Fprintf(&b, "%s\t%d\t%s\t%s\t%s\n",
			c.Tag.Name, c.AnchorValue, c.AnchorCommit.ID, annotation, c.Tag.Source)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
