package resolver

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmerrors "tidemark/internal/errors"
	"tidemark/internal/gitprovider"
	"tidemark/internal/model"
	"tidemark/internal/release"
	"tidemark/internal/timepolicy"
)

func utcConfig() Config {
	tz, _ := timepolicy.Parse("UTC")
	return Config{
		Release: release.Config{
			TagPrefix:            "v",
			RequireAnnotatedTags: true,
			Strategy:             release.StrategyLsRemote,
			RemoteName:           "origin",
			FallbackToLocal:      true,
		},
		Time: tz,
	}
}

// S1 — basic deterministic mark: annotated v1 on a commit dated
// 2024-01-01T00:00:00Z, two later commits at 01:00:00Z and the next day's
// 01:00:00Z; HEAD at the last commit. Expected 1.1.1.
func TestSeedS1BasicMark(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")           // 2024-01-01T00:00:00Z
	f.AddCommit("c2", 1704070800, "c1")          // 2024-01-01T01:00:00Z
	f.AddCommit("c3", 1704157200, "c2")          // 2024-01-02T01:00:00Z
	f.Head = "c3"
	f.LocalTags = []model.TagRef{{Name: "v1", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}

	res, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "1.1.1", res.Coordinate.String())
}

// S2 — same-day index: HEAD at the 01:00:00Z commit instead. Expected 1.0.1.
func TestSeedS2SameDayIndex(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")
	f.AddCommit("c2", 1704070800, "c1")
	f.Head = "c2"
	f.LocalTags = []model.TagRef{{Name: "v1", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}

	res, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", res.Coordinate.String())
}

// S3 — file coordinate and suffix.
func TestSeedS3FileAndSuffix(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")  // 2024-01-01T00:00:00Z, tags v3, modifies a.txt
	f.AddCommit("c2", 1704070800, "c1") // 2024-01-01T01:00:00Z, modifies a.txt
	f.AddCommit("c3", 1704157200, "c2") // 2024-01-02T01:00:00Z, modifies b.txt
	f.Head = "c3"
	f.LocalTags = []model.TagRef{{Name: "v3", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}
	f.PathHistory = map[string][]string{
		"a.txt": {"c2", "c1"},
		"b.txt": {"c3"},
	}

	fileRes, err := ResolveFile(context.Background(), f, utcConfig(), model.FileRequest{Path: "a.txt", LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "3.0.1", fileRes.Mark.Coordinate.String())

	markRes, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true, MetadataSuffix: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "3.1.1.dev", markRes.Coordinate.String())
}

// S4 — remote drift: local-only sees v1 at HEAD; remote strategy sees a
// drifted v2 tag at a later commit.
func TestSeedS4RemoteDrift(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")
	f.AddCommit("c2", 1704070800, "c1")
	f.Head = "c1"
	f.LocalTags = []model.TagRef{{Name: "v1", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}

	localRes, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", localRes.Coordinate.String())

	// Push a remote v2 tag at a later commit and move HEAD there so it is
	// reachable as an ancestor candidate for the remote-aware resolution.
	f.Head = "c2"
	f.RemoteTags = []model.TagRef{{Name: "v2", CommitID: "c2", IsAnnotated: true, Source: model.SourceRemote}}

	remoteRes, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: false})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", remoteRes.Coordinate.String())

	localOnlyAtHead2, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", localOnlyAtHead2.Coordinate.String())
}

// S5 — missing anchor: no tags at all.
func TestSeedS5NoReleaseAnchor(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")
	f.Head = "c1"

	_, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true})
	require.Error(t, err)
	assert.Equal(t, tmerrors.KindNoReleaseAnchor, tmerrors.KindOf(err))
}

// S6 — timestamp anomaly: anchor dated later than HEAD.
func TestSeedS6TimestampAnomaly(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704153600, "")          // 2024-01-02T00:00:00Z, tagged
	f.AddCommit("c2", 1704150000, "c1")         // 2024-01-01T23:00:00Z, HEAD
	f.Head = "c2"
	f.LocalTags = []model.TagRef{{Name: "v1", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}

	_, err := ResolveMark(context.Background(), f, utcConfig(), model.MarkRequest{LocalOnly: true})
	require.Error(t, err)
	assert.Equal(t, tmerrors.KindTimestampAnomaly, tmerrors.KindOf(err))
}

func TestResolveMarkIsDeterministic(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")
	f.AddCommit("c2", 1704070800, "c1")
	f.Head = "c2"
	f.LocalTags = []model.TagRef{{Name: "v1", CommitID: "c1", IsAnnotated: true, Source: model.SourceLocal}}

	cfg := utcConfig()
	first, err := ResolveMark(context.Background(), f, cfg, model.MarkRequest{LocalOnly: true})
	require.NoError(t, err)
	second, err := ResolveMark(context.Background(), f, cfg, model.MarkRequest{LocalOnly: true})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeat resolution diverged (-first +second):\n%s", diff)
	}
}

func TestResolveFileUnknownPath(t *testing.T) {
	f := gitprovider.NewFake()
	f.AddCommit("c1", 1704067200, "")
	f.Head = "c1"

	_, err := ResolveFile(context.Background(), f, utcConfig(), model.FileRequest{Path: "missing.txt", LocalOnly: true})
	require.Error(t, err)
	assert.Equal(t, tmerrors.KindUnknownRevision, tmerrors.KindOf(err))
}
