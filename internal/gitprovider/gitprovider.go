// Package gitprovider abstracts the read-only Git operations the resolution
// engine consumes (spec.md §4.3). CLI is the subprocess-shelling
// implementation; Fake is an in-memory double used by engine tests.
package gitprovider

import (
	"context"

	"tidemark/internal/model"
)

// Provider is the capability set the engine depends on. No implementation
// may mutate objects, refs, the index, or the worktree; list_remote_tags may
// write only under a scratch ref namespace.
type Provider interface {
	HeadCommit(ctx context.Context) (model.CommitInfo, error)
	ResolveCommit(ctx context.Context, rev string) (model.CommitInfo, error)
	CommitExists(ctx context.Context, rev string) (bool, error)
	ListLocalTags(ctx context.Context, prefix string) ([]model.TagRef, error)
	ListRemoteTags(ctx context.Context, remote, prefix string) ([]model.TagRef, error)
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	CommitDistance(ctx context.Context, ancestor, descendant string) (uint32, error)
	AncestryPathCommits(ctx context.Context, ancestor, descendant string) ([]model.CommitInfo, error)
	LastModifyingCommit(ctx context.Context, path string, followRenames bool) (model.CommitInfo, error)

	// RepoRoot and GitDir are used by the CLI/cache boundary to locate the
	// repository and its scratch directory; the engine itself never reads
	// the filesystem directly.
	RepoRoot() string
	GitDir(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, bool, error)
}
