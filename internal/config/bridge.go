package config

import (
	"tidemark/internal/release"
	"tidemark/internal/resolver"
	"tidemark/internal/timepolicy"
)

// ReleasePolicy converts the loaded config into the release package's
// Config, translating the YAML string enum into release.RemoteStrategy.
func (c *Config) ReleasePolicy() release.Config {
	strategy := release.StrategyLsRemote
	if c.Remote.Strategy == "local-only" {
		strategy = release.StrategyLocalOnly
	}
	return release.Config{
		TagPrefix:            c.Release.TagPrefix,
		RequireAnnotatedTags: c.Release.RequireAnnotatedTags,
		Strategy:             strategy,
		RemoteName:           c.Remote.Name,
		FallbackToLocal:      c.Remote.FallbackToLocal,
	}
}

// ResolverConfig builds a resolver.Config from the loaded config and a
// parsed timezone policy. Store/CacheKey are left zero-valued; callers that
// want memoization set them explicitly after calling this.
func (c *Config) ResolverConfig(tz timepolicy.Policy) resolver.Config {
	return resolver.Config{
		Release:        c.ReleasePolicy(),
		Time:           tz,
		MetadataSuffix: c.Output.MetadataSuffix,
	}
}
