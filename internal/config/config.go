// Package config loads TideMark's on-disk configuration file
// (`.tidemark.yaml`) into the record the engine consumes. This is the
// "on-disk configuration file loader" spec.md §1 calls an external
// collaborator: the engine itself never reads this file directly, it only
// consumes the typed Config this package produces.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	tmerrors "tidemark/internal/errors"
)

// FileName is the configuration file TideMark looks for at a repository's
// root.
const FileName = ".tidemark.yaml"

// Config mirrors spec.md §6's recognized options, plus cache.backend, which
// selects the cache Store implementation.
type Config struct {
	Release ReleaseConfig `yaml:"release"`
	Time    TimeConfig    `yaml:"time"`
	Remote  RemoteConfig  `yaml:"remote"`
	Cache   CacheConfig   `yaml:"cache"`
	Output  OutputConfig  `yaml:"output"`
}

type ReleaseConfig struct {
	TagPrefix            string `yaml:"tag_prefix"`
	RequireAnnotatedTags bool   `yaml:"require_annotated_tags"`
}

type TimeConfig struct {
	Timezone string `yaml:"timezone"`
}

type RemoteConfig struct {
	Strategy        string `yaml:"strategy"` // "ls-remote" or "local-only"
	Name            string `yaml:"name"`
	FallbackToLocal bool   `yaml:"fallback_to_local"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // "file" or "sqlite"
}

type OutputConfig struct {
	MetadataSuffix string `yaml:"metadata_suffix"`
	FollowRenames  bool   `yaml:"follow_renames"`
}

// Default returns spec.md §6's default configuration record.
func Default() *Config {
	return &Config{
		Release: ReleaseConfig{
			TagPrefix:            "v",
			RequireAnnotatedTags: true,
		},
		Time: TimeConfig{
			Timezone: "UTC",
		},
		Remote: RemoteConfig{
			Strategy:        "ls-remote",
			Name:            "origin",
			FallbackToLocal: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "file",
		},
		Output: OutputConfig{
			MetadataSuffix: "",
			FollowRenames:  true,
		},
	}
}

// Load reads and parses path, layering its contents over Default() so a
// config file needs only mention the keys it overrides. A missing file is
// not an error: TideMark runs on defaults. A present-but-malformed file
// fails ConfigParse.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, tmerrors.Wrap(tmerrors.KindConfigParse, err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindConfigParse, err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration values outside spec.md §6's accepted
// grammar for enum-like fields; timezone grammar is validated lazily by
// internal/timepolicy.Parse, which the CLI boundary calls next.
func (c *Config) Validate() error {
	switch c.Remote.Strategy {
	case "ls-remote", "local-only":
	default:
		return tmerrors.New(tmerrors.KindConfigParse,
			"remote.strategy must be \"ls-remote\" or \"local-only\", got %q", c.Remote.Strategy)
	}
	switch c.Cache.Backend {
	case "", "file", "sqlite":
	default:
		return tmerrors.New(tmerrors.KindConfigParse,
			"cache.backend must be \"file\" or \"sqlite\", got %q", c.Cache.Backend)
	}
	return nil
}

// Save writes c to path as plain YAML without comments, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return tmerrors.Wrap(tmerrors.KindConfigParse, err, "creating config directory %s", dir)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindConfigParse, err, "encoding config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return tmerrors.Wrap(tmerrors.KindConfigParse, err, "writing config %s", path)
	}
	return nil
}

// ExistsAt reports whether a config file is already present at path.
func ExistsAt(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PathIn returns the default config file path within repoRoot.
func PathIn(repoRoot string) string {
	return filepath.Join(repoRoot, FileName)
}

// DefaultYAMLTemplate renders a commented starter file for `tide config
// init`, documenting every recognized key and its default.
func DefaultYAMLTemplate() string {
	return fmt.Sprintf(`# TideMark configuration. Every key below is optional and shown at its
# built-in default.

release:
  tag_prefix: %q
  require_annotated_tags: %v

time:
  timezone: %q

remote:
  strategy: %q
  name: %q
  fallback_to_local: %v

cache:
  enabled: %v
  backend: %q

output:
  metadata_suffix: %q
  follow_renames: %v
`,
		Default().Release.TagPrefix, Default().Release.RequireAnnotatedTags,
		Default().Time.Timezone,
		Default().Remote.Strategy, Default().Remote.Name, Default().Remote.FallbackToLocal,
		Default().Cache.Enabled, Default().Cache.Backend,
		Default().Output.MetadataSuffix, Default().Output.FollowRenames,
	)
}
