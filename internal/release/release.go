// Package release implements the release loader and anchor selector
// (spec.md §4.4–§4.5): merging local and remote tag listings into a
// candidate set, then picking a single anchor under ties by a total order.
package release

import (
	"context"
	"sort"

	tmerrors "tidemark/internal/errors"
	"tidemark/internal/gitprovider"
	"tidemark/internal/model"
	"tidemark/internal/tagparse"
)

// RemoteStrategy selects whether the loader consults a remote tag listing.
type RemoteStrategy string

const (
	StrategyLsRemote  RemoteStrategy = "ls-remote"
	StrategyLocalOnly RemoteStrategy = "local-only"
)

// Config parameterizes the loader and selector. It mirrors the
// `release.*` and `remote.*` keys of spec.md §6's configuration record.
type Config struct {
	TagPrefix            string
	RequireAnnotatedTags bool
	Strategy             RemoteStrategy
	RemoteName           string
	FallbackToLocal      bool
}

// Load implements spec.md §4.4. It returns the post-merge, post-filter
// candidate set (release tags only, before ancestry filtering) and the
// status of the remote refresh.
func Load(ctx context.Context, provider gitprovider.Provider, cfg Config, localOnly bool) ([]model.ReleaseTag, model.RemoteLoadStatus, error) {
	locals, err := provider.ListLocalTags(ctx, cfg.TagPrefix)
	if err != nil {
		return nil, "", err
	}

	merged := locals
	status := model.RemoteStatusLocalOnly

	if !localOnly && cfg.Strategy == StrategyLsRemote {
		remotes, rerr := provider.ListRemoteTags(ctx, cfg.RemoteName, cfg.TagPrefix)
		if rerr != nil {
			if !cfg.FallbackToLocal {
				return nil, "", rerr
			}
			status = model.RemoteStatusFallbackLocal
		} else {
			merged = Merge(locals, remotes)
			status = model.RemoteStatusOK
		}
	}

	candidates, err := filterAndResolve(ctx, provider, merged, cfg)
	if err != nil {
		return nil, "", err
	}
	return candidates, status, nil
}

// Merge combines a local tag listing with a remote one under spec.md §4.4
// step 3: starting from locals, each remote tag overrides any local entry
// of the same name. Merge is idempotent: Merge(Merge(locals, remotes),
// remotes) == Merge(locals, remotes).
func Merge(locals, remotes []model.TagRef) []model.TagRef {
	byName := make(map[string]model.TagRef, len(locals)+len(remotes))
	order := make([]string, 0, len(locals)+len(remotes))
	for _, t := range locals {
		if _, seen := byName[t.Name]; !seen {
			order = append(order, t.Name)
		}
		byName[t.Name] = t
	}
	for _, t := range remotes {
		if _, seen := byName[t.Name]; !seen {
			order = append(order, t.Name)
		}
		byName[t.Name] = t
	}

	merged := make([]model.TagRef, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}

// filterAndResolve runs spec.md §4.4 steps 4–5: drop lightweight tags under
// policy, parse names against the release predicate, resolve each survivor's
// anchor commit, and drop entries whose commit is absent locally (shallow
// clone tolerance, spec.md §9).
func filterAndResolve(ctx context.Context, provider gitprovider.Provider, tags []model.TagRef, cfg Config) ([]model.ReleaseTag, error) {
	var out []model.ReleaseTag
	for _, t := range tags {
		if cfg.RequireAnnotatedTags && !t.IsAnnotated {
			continue
		}
		anchorValue, ok := tagparse.Parse(t.Name, cfg.TagPrefix)
		if !ok {
			continue
		}

		commit, err := provider.ResolveCommit(ctx, t.CommitID)
		if err != nil {
			if tmerrors.KindOf(err) == tmerrors.KindUnknownRevision {
				// Shallow clone: the tagged commit isn't present locally.
				continue
			}
			return nil, err
		}

		out = append(out, model.ReleaseTag{
			AnchorValue:  anchorValue,
			Tag:          t,
			AnchorCommit: commit,
		})
	}
	return out, nil
}

// SelectAnchor implements spec.md §4.5: restrict candidates to tags whose
// anchor commit is an ancestor of target, then pick the minimum under the
// lexicographic key (distance asc, anchor_value desc, name asc, commit_id
// asc). Fails NoReleaseAnchor if no candidate survives ancestry filtering.
func SelectAnchor(ctx context.Context, provider gitprovider.Provider, candidates []model.ReleaseTag, targetID string) (model.AnchorSelection, error) {
	type scored struct {
		release  model.ReleaseTag
		distance uint32
	}
	var survivors []scored

	for _, c := range candidates {
		isAncestor, err := provider.IsAncestor(ctx, c.AnchorCommit.ID, targetID)
		if err != nil {
			return model.AnchorSelection{}, err
		}
		if !isAncestor {
			continue
		}
		distance, err := provider.CommitDistance(ctx, c.AnchorCommit.ID, targetID)
		if err != nil {
			return model.AnchorSelection{}, err
		}
		survivors = append(survivors, scored{release: c, distance: distance})
	}

	if len(survivors) == 0 {
		return model.AnchorSelection{}, tmerrors.New(tmerrors.KindNoReleaseAnchor,
			"no release tag is an ancestor of %s", targetID)
	}

	sort.Slice(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.release.AnchorValue != b.release.AnchorValue {
			return a.release.AnchorValue > b.release.AnchorValue
		}
		if a.release.Tag.Name != b.release.Tag.Name {
			return a.release.Tag.Name < b.release.Tag.Name
		}
		return a.release.AnchorCommit.ID < b.release.AnchorCommit.ID
	})

	best := survivors[0]
	return model.AnchorSelection{Release: best.release, Distance: best.distance}, nil
}
