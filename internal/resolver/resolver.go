// Package resolver composes the release loader, anchor selector, time
// policy, and same-day index into a single commit-to-coordinate resolution
// (spec.md §4.6), plus the file-to-commit delegation of §4.7.
package resolver

import (
	"context"
	"sort"
	"strconv"

	"tidemark/internal/cache"
	tmerrors "tidemark/internal/errors"
	"tidemark/internal/gitprovider"
	"tidemark/internal/model"
	"tidemark/internal/release"
	"tidemark/internal/timepolicy"
)

// Config bundles everything the resolver needs beyond the Git provider: the
// release-loading policy, the timezone policy, and output-shaping defaults.
// Store and CacheKey are optional; a nil Store disables memoization entirely
// without changing any output (spec.md §4.8).
type Config struct {
	Release        release.Config
	Time           timepolicy.Policy
	MetadataSuffix string // config.output.metadata_suffix default

	Store    cache.Store
	CacheKey cache.Key
}

// ResolveMark implements spec.md §4.6: resolve target_rev to a commit, load
// and select an anchor, compute day_delta and same_day_index, and assemble
// the coordinate and explain record.
func ResolveMark(ctx context.Context, provider gitprovider.Provider, cfg Config, req model.MarkRequest) (model.MarkResult, error) {
	rev := req.TargetRev
	if rev == "" {
		rev = "HEAD"
	}
	target, err := provider.ResolveCommit(ctx, rev)
	if err != nil {
		return model.MarkResult{}, err
	}

	candidates, remoteStatus, err := cache.LoadCandidates(ctx, provider, cfg.Store, cfg.CacheKey, cfg.Release, req.LocalOnly)
	if err != nil {
		return model.MarkResult{}, err
	}

	anchor, err := cache.SelectAnchorCached(ctx, provider, cfg.Store, cfg.CacheKey, candidates, target.ID)
	if err != nil {
		return model.MarkResult{}, err
	}

	return assemble(ctx, provider, cfg, target, anchor, remoteStatus, req.MetadataSuffix)
}

// ResolveFile implements spec.md §4.7: map path to its last-modifying
// commit reachable from HEAD, then delegate to the mark resolver.
func ResolveFile(ctx context.Context, provider gitprovider.Provider, cfg Config, req model.FileRequest) (model.FileResult, error) {
	target, err := provider.LastModifyingCommit(ctx, req.Path, req.FollowRenames)
	if err != nil {
		return model.FileResult{}, tmerrors.Wrap(tmerrors.KindUnknownRevision, err,
			"path %q has no corresponding commit", req.Path)
	}

	mark, err := ResolveMark(ctx, provider, cfg, model.MarkRequest{
		TargetRev:      target.ID,
		LocalOnly:      req.LocalOnly,
		MetadataSuffix: req.MetadataSuffix,
	})
	if err != nil {
		return model.FileResult{}, err
	}

	return model.FileResult{Path: req.Path, LastCommit: target, Mark: mark}, nil
}

func assemble(ctx context.Context, provider gitprovider.Provider, cfg Config, target model.CommitInfo, anchor model.AnchorSelection, remoteStatus model.RemoteLoadStatus, suffixOverride string) (model.MarkResult, error) {
	dayDelta := cfg.Time.DayDelta(anchor.Release.AnchorCommit.Timestamp, target.Timestamp)
	if dayDelta < 0 {
		return model.MarkResult{}, tmerrors.New(tmerrors.KindTimestampAnomaly,
			"anchor %s (%s) is later than target %s in zone %s",
			anchor.Release.Tag.Name, anchor.Release.AnchorCommit.ID, target.ID, cfg.Time.CanonicalName())
	}

	var zIndex uint32
	if target.ID == anchor.Release.AnchorCommit.ID {
		zIndex = 0
	} else {
		path, err := provider.AncestryPathCommits(ctx, anchor.Release.AnchorCommit.ID, target.ID)
		if err != nil {
			return model.MarkResult{}, err
		}
		idx, err := sameDayIndex(cfg.Time, path, target)
		if err != nil {
			return model.MarkResult{}, err
		}
		zIndex = idx
	}

	suffix := suffixOverride
	if suffix == "" {
		suffix = cfg.MetadataSuffix
	}

	coordinate := model.Coordinate{
		X:      anchor.Release.AnchorValue,
		Y:      uint32(dayDelta),
		Z:      zIndex,
		Suffix: suffix,
	}

	branch, _, err := provider.CurrentBranch(ctx)
	if err != nil {
		return model.MarkResult{}, err
	}

	explain := buildExplain(coordinate, anchor, dayDelta, zIndex, cfg.Time, remoteStatus, branch)
	return model.MarkResult{Coordinate: coordinate, Explain: explain}, nil
}

// sameDayIndex implements spec.md §4.6 step 4: filter the ancestry path
// (anchor, target] to commits sharing target's calendar date, sort by
// (timestamp, id), and return the target's one-based position.
func sameDayIndex(tz timepolicy.Policy, path []model.CommitInfo, target model.CommitInfo) (uint32, error) {
	targetY, targetM, targetD := tz.DateOf(target.Timestamp)

	var sameDay []model.CommitInfo
	for _, c := range path {
		y, m, d := tz.DateOf(c.Timestamp)
		if y == targetY && m == targetM && d == targetD {
			sameDay = append(sameDay, c)
		}
	}

	sort.Slice(sameDay, func(i, j int) bool {
		if sameDay[i].Timestamp != sameDay[j].Timestamp {
			return sameDay[i].Timestamp < sameDay[j].Timestamp
		}
		return sameDay[i].ID < sameDay[j].ID
	})

	for i, c := range sameDay {
		if c.ID == target.ID {
			return uint32(i + 1), nil
		}
	}
	return 0, tmerrors.New(tmerrors.KindInternalInvariant,
		"target %s absent from its own same-day ancestry filter", target.ID)
}

// buildExplain assembles the ordered explain record per spec.md §4.6 step 6.
func buildExplain(coord model.Coordinate, anchor model.AnchorSelection, dayDelta int64, sameDay uint32, tz timepolicy.Policy, remoteStatus model.RemoteLoadStatus, branch string) model.ExplainRecord {
	return model.ExplainRecord{Fields: []model.ExplainField{
		{Key: "coordinate", Value: coord.String()},
		{Key: "anchor_tag", Value: anchor.Release.Tag.Name},
		{Key: "anchor_commit", Value: anchor.Release.AnchorCommit.ID},
		{Key: "anchor_value", Value: strconv.FormatUint(anchor.Release.AnchorValue, 10)},
		{Key: "distance", Value: strconv.FormatUint(uint64(anchor.Distance), 10)},
		{Key: "day_delta", Value: strconv.FormatInt(dayDelta, 10)},
		{Key: "same_day_index", Value: strconv.FormatUint(uint64(sameDay), 10)},
		{Key: "timezone", Value: tz.CanonicalName()},
		{Key: "remote_status", Value: string(remoteStatus)},
		{Key: "branch", Value: branch},
	}}
}
