// Package tagparse recognizes release tag names of the form
// "<prefix><digits>" and extracts the anchor integer (spec.md §4.2).
package tagparse

import "strconv"

// Parse reports whether name is a release tag under prefix, and if so its
// anchor value. A name is accepted iff it equals prefix+s where s is
// nonempty and entirely ASCII digits parseable as a uint64; leading zeros
// are accepted ("v01" parses to anchor value 1). Any other name is not an
// error, just rejected (ok == false).
func Parse(name, prefix string) (anchorValue uint64, ok bool) {
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, false
	}
	digits := name[len(prefix):]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}

	value, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Format renders the canonical accepted name for an anchor value: the
// prefix followed by the decimal representation without leading zeros.
// Round-tripping Format(Parse(name)) is not guaranteed to equal name when
// name had leading zeros, by design (spec.md §8 invariant 4).
func Format(prefix string, anchorValue uint64) string {
	return prefix + strconv.FormatUint(anchorValue, 10)
}
