// Package cache implements the optional memoization layer of spec.md §4.8:
// a performance-only store for candidate tag sets and anchor selections,
// keyed by a digest of the resolution policy. Removing the cache store must
// never change an engine output (spec.md §4.8, §5).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"tidemark/internal/model"
)

// Key identifies one cache entry: the full set of policy inputs spec.md
// §4.8 says participate in the digest, plus the engine version so format
// changes invalidate old entries automatically.
type Key struct {
	TagPrefix        string
	RequireAnnotated bool
	Timezone         string
	RemoteStrategy   string
	RemoteName       string
	LocalOnly        bool
	EngineVersion    string
}

// Digest returns a stable, filesystem-safe identifier for k.
func (k Key) Digest() string {
	// JSON field order is stable for a fixed struct, so encoding/json is a
	// deterministic serialization here, not just a display format.
	raw, err := json.Marshal(k)
	if err != nil {
		// Key contains only strings and bools; Marshal cannot fail.
		panic(fmt.Sprintf("cache: key digest: %v", err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:32]
}

// CandidateSet is the cached, post-merge release-tag candidate set for a
// Key, plus a digest of its own contents used to key anchor-selection
// entries (spec.md §4.8: "anchor-selection cache ... keyed on a digest of
// the post-merge candidate set").
type CandidateSet struct {
	Digest     string
	Candidates []model.ReleaseTag
}

// TagDigest computes the content digest of a candidate set. The digest
// depends on slice order: the same candidates in a different order produce
// a different digest.
func TagDigest(candidates []model.ReleaseTag) string {
	h := sha256.New()
	type entry struct {
		Name     string
		CommitID string
		Anchor   uint64
	}
	entries := make([]entry, len(candidates))
	for i, c := range candidates {
		entries[i] = entry{Name: c.Tag.Name, CommitID: c.AnchorCommit.ID, Anchor: c.AnchorValue}
	}
	// Candidates are generated in a deterministic merge order (spec.md §4.4
	// step 3), so no additional sort is required for determinism here.
	raw, _ := json.Marshal(entries)
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Store is the persistence interface the engine's caller may supply.
// Implementations must satisfy spec.md §5's atomic-write and lock-free-read
// contract; the engine never calls Store directly, only internal/cache's
// wiring code between the CLI boundary and the resolver/release packages.
type Store interface {
	GetCandidates(ctx context.Context, key Key) (CandidateSet, bool, error)
	PutCandidates(ctx context.Context, key Key, set CandidateSet) error

	GetAnchor(ctx context.Context, key Key, tagDigest, targetID string) (model.AnchorSelection, bool, error)
	PutAnchor(ctx context.Context, key Key, tagDigest, targetID string, sel model.AnchorSelection) error

	Close() error
}
