package cache

import (
	"context"

	"tidemark/internal/gitprovider"
	"tidemark/internal/model"
	"tidemark/internal/release"
)

// LoadCandidates wraps release.Load with optional memoization. In remote
// mode the tag-listing cache is bypassed entirely (spec.md §4.8: "the cache
// is bypassed for tag-listing lookups ... to observe drift"); only
// local-only / local-strategy lookups are served from and written to store.
func LoadCandidates(ctx context.Context, provider gitprovider.Provider, store Store, key Key, cfg release.Config, localOnly bool) ([]model.ReleaseTag, model.RemoteLoadStatus, error) {
	bypassCache := store == nil || !localOnly && cfg.Strategy == release.StrategyLsRemote

	if !bypassCache {
		if cached, ok, err := store.GetCandidates(ctx, key); err == nil && ok {
			return cached.Candidates, model.RemoteStatusLocalOnly, nil
		}
	}

	candidates, status, err := release.Load(ctx, provider, cfg, localOnly)
	if err != nil {
		return nil, "", err
	}

	if !bypassCache {
		_ = store.PutCandidates(ctx, key, CandidateSet{Digest: TagDigest(candidates), Candidates: candidates})
	}
	return candidates, status, nil
}

// SelectAnchorCached wraps release.SelectAnchor with memoization keyed on
// the post-merge candidate set's content digest, so a cached anchor
// selection is never served against a candidate set that has drifted
// (spec.md §9, "Remote drift vs. cache").
func SelectAnchorCached(ctx context.Context, provider gitprovider.Provider, store Store, key Key, candidates []model.ReleaseTag, targetID string) (model.AnchorSelection, error) {
	if store == nil {
		return release.SelectAnchor(ctx, provider, candidates, targetID)
	}

	tagDigest := TagDigest(candidates)
	if sel, ok, err := store.GetAnchor(ctx, key, tagDigest, targetID); err == nil && ok {
		return sel, nil
	}

	sel, err := release.SelectAnchor(ctx, provider, candidates, targetID)
	if err != nil {
		return model.AnchorSelection{}, err
	}
	_ = store.PutAnchor(ctx, key, tagDigest, targetID, sel)
	return sel, nil
}
