package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidemark/internal/gitprovider"
	"tidemark/internal/model"
	"tidemark/internal/release"
)

func fakeWithOneRelease() *gitprovider.Fake {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")
	f.AddCommit("c2", 1704070800, "c1")
	f.Head = "c2"
	f.LocalTags = []model.TagRef{{Name: "v1", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}
	return f
}

func TestLoadCandidatesUsesCacheOnLocalOnly(t *testing.T) {
	f := fakeWithOneRelease()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	key := Key{TagPrefix: "v", RequireAnnotated: true}
	cfg := release.Config{TagPrefix: "v", RequireAnnotatedTags: true, Strategy: release.StrategyLocalOnly}

	first, _, err := LoadCandidates(context.Background(), f, store, key, cfg, true)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Mutate the underlying provider's tags; a cache hit should still serve
	// the stale-but-cached candidate set, proving the cache path was taken.
	f.LocalTags = nil
	second, _, err := LoadCandidates(context.Background(), f, store, key, cfg, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadCandidatesBypassesCacheInRemoteMode(t *testing.T) {
	f := fakeWithOneRelease()
	f.RemoteTags = []model.TagRef{{Name: "v2", CommitID: "c2", IsAnnotated: true, Source: model.SourceRemote}}
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	key := Key{TagPrefix: "v", RequireAnnotated: true}
	cfg := release.Config{TagPrefix: "v", RequireAnnotatedTags: true, Strategy: release.StrategyLsRemote, RemoteName: "origin", FallbackToLocal: true}

	first, status, err := LoadCandidates(context.Background(), f, store, key, cfg, false)
	require.NoError(t, err)
	assert.Equal(t, model.RemoteStatusOK, status)
	require.Len(t, first, 2)

	// Drift: the remote tag moves. A remote-mode lookup must observe it,
	// proving the tag-list cache is bypassed (spec.md §4.8, §9).
	f.RemoteTags = []model.TagRef{{Name: "v2", CommitID: "c1", IsAnnotated: true, Source: model.SourceRemote}}
	second, _, err := LoadCandidates(context.Background(), f, store, key, cfg, false)
	require.NoError(t, err)
	require.Len(t, second, 2)
	var v2 model.ReleaseTag
	for _, c := range second {
		if c.Tag.Name == "v2" {
			v2 = c
		}
	}
	assert.Equal(t, "c1", v2.AnchorCommit.ID)
}

func TestSelectAnchorCachedKeyedOnCandidateDigest(t *testing.T) {
	f := fakeWithOneRelease()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	key := Key{TagPrefix: "v"}
	candidatesV1 := []model.ReleaseTag{
		{AnchorValue: 1, Tag: model.TagRef{Name: "v1"}, AnchorCommit: model.CommitInfo{ID: "c1", Timestamp: 1704067200}},
	}
	sel, err := SelectAnchorCached(context.Background(), f, store, key, candidatesV1, "c2")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sel.Release.AnchorValue)

	// A different candidate set (simulating drift) must not be served the
	// stale selection cached under the old tag digest.
	f.AddCommit("c3", 1704070900, "c1")
	candidatesV2 := []model.ReleaseTag{
		{AnchorValue: 2, Tag: model.TagRef{Name: "v2"}, AnchorCommit: model.CommitInfo{ID: "c3", Timestamp: 1704070900}},
	}
	sel2, err := SelectAnchorCached(context.Background(), f, store, key, candidatesV2, "c2")
	require.Error(t, err) // c3 is not an ancestor of c2 in this fixture
	_ = sel2
}
