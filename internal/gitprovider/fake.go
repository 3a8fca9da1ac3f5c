package gitprovider

import (
	"context"
	"sort"
	"strings"

	tmerrors "tidemark/internal/errors"
	"tidemark/internal/model"
)

// Fake is an in-memory Provider double used to drive the engine's seed
// scenarios (spec.md §8 S1–S6) without a real git subprocess or fixture
// repository. Ancestry is expressed as an explicit parent map so tests can
// construct arbitrary DAGs.
type Fake struct {
	Head string

	// Commits maps commit id to its info. Every id referenced elsewhere
	// (Parents, LocalTags, RemoteTags, PathHistory) must have an entry here.
	Commits map[string]model.CommitInfo

	// Parents maps a commit id to its first parent (empty string for a root
	// commit). The fake only models first-parent ancestry, matching
	// spec.md §4.3's "first-parent-respecting ancestry path" contract.
	Parents map[string]string

	LocalTags  []model.TagRef
	RemoteTags []model.TagRef

	// PathHistory maps a repository-relative path to the ordered list of
	// commit ids that modified it, most recent first.
	PathHistory map[string][]string

	Branch         string
	BranchDetached bool

	RemoteErr error
}

// NewFake returns an empty Fake ready for population by test setup code.
func NewFake() *Fake {
	return &Fake{
		Commits:     make(map[string]model.CommitInfo),
		Parents:     make(map[string]string),
		PathHistory: make(map[string][]string),
	}
}

// AddCommit registers a commit and its first parent ("" for a root commit).
func (f *Fake) AddCommit(id string, timestamp int64, parent string) {
	f.Commits[id] = model.CommitInfo{ID: id, Timestamp: timestamp}
	f.Parents[id] = parent
}

func (f *Fake) HeadCommit(ctx context.Context) (model.CommitInfo, error) {
	return f.ResolveCommit(ctx, f.Head)
}

func (f *Fake) ResolveCommit(ctx context.Context, rev string) (model.CommitInfo, error) {
	if rev == "HEAD" || rev == "" {
		rev = f.Head
	}
	c, ok := f.Commits[rev]
	if !ok {
		return model.CommitInfo{}, tmerrors.New(tmerrors.KindUnknownRevision, "unknown revision %q", rev)
	}
	return c, nil
}

func (f *Fake) CommitExists(ctx context.Context, rev string) (bool, error) {
	_, ok := f.Commits[rev]
	return ok, nil
}

func (f *Fake) ListLocalTags(ctx context.Context, prefix string) ([]model.TagRef, error) {
	return filterTagsByPrefix(f.LocalTags, prefix), nil
}

func (f *Fake) ListRemoteTags(ctx context.Context, remote, prefix string) ([]model.TagRef, error) {
	if f.RemoteErr != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRemoteUnavailable, f.RemoteErr, "remote %q unavailable", remote)
	}
	return filterTagsByPrefix(f.RemoteTags, prefix), nil
}

func (f *Fake) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	if _, ok := f.Commits[ancestor]; !ok {
		return false, tmerrors.New(tmerrors.KindUnknownRevision, "unknown revision %q", ancestor)
	}
	cur := descendant
	for {
		if cur == ancestor {
			return true, nil
		}
		parent, ok := f.Parents[cur]
		if !ok || parent == "" {
			return cur == ancestor, nil
		}
		cur = parent
	}
}

func (f *Fake) CommitDistance(ctx context.Context, ancestor, descendant string) (uint32, error) {
	path, err := f.AncestryPathCommits(ctx, ancestor, descendant)
	if err != nil {
		return 0, err
	}
	return uint32(len(path)), nil
}

func (f *Fake) AncestryPathCommits(ctx context.Context, ancestor, descendant string) ([]model.CommitInfo, error) {
	if ancestor == descendant {
		return nil, nil
	}
	var reversed []model.CommitInfo
	cur := descendant
	for cur != "" && cur != ancestor {
		c, ok := f.Commits[cur]
		if !ok {
			return nil, tmerrors.New(tmerrors.KindInternalInvariant, "dangling parent reference %q", cur)
		}
		reversed = append(reversed, c)
		cur = f.Parents[cur]
	}
	if cur != ancestor {
		return nil, tmerrors.New(tmerrors.KindInternalInvariant,
			"%q is not a first-parent ancestor of %q", ancestor, descendant)
	}
	out := make([]model.CommitInfo, len(reversed))
	for i, c := range reversed {
		out[len(reversed)-1-i] = c
	}
	return out, nil
}

func (f *Fake) LastModifyingCommit(ctx context.Context, path string, followRenames bool) (model.CommitInfo, error) {
	history := f.PathHistory[path]
	if len(history) == 0 {
		return model.CommitInfo{}, tmerrors.New(tmerrors.KindUnknownRevision, "path %q has no tracked git history", path)
	}
	c, ok := f.Commits[history[0]]
	if !ok {
		return model.CommitInfo{}, tmerrors.New(tmerrors.KindInternalInvariant, "dangling history reference %q", history[0])
	}
	return c, nil
}

func (f *Fake) RepoRoot() string { return "/fake/repo" }

func (f *Fake) GitDir(ctx context.Context) (string, error) { return "/fake/repo/.git", nil }

func (f *Fake) CurrentBranch(ctx context.Context) (string, bool, error) {
	return f.Branch, !f.BranchDetached, nil
}

func filterTagsByPrefix(tags []model.TagRef, prefix string) []model.TagRef {
	var out []model.TagRef
	for _, t := range tags {
		if strings.HasPrefix(t.Name, prefix) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
