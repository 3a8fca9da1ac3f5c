// Package cliapp wires TideMark's cobra command tree to the engine. It is
// the CLI boundary spec.md §1 treats as an external collaborator: argument
// parsing, config loading, logging, and output rendering all live here so
// the core packages (timepolicy, tagparse, release, resolver, cache) never
// import cobra or zap.
package cliapp

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tidemark/internal/cache"
	"tidemark/internal/config"
	tmerrors "tidemark/internal/errors"
	"tidemark/internal/gitprovider"
	"tidemark/internal/model"
	"tidemark/internal/output"
	"tidemark/internal/resolver"
	"tidemark/internal/service"
	"tidemark/internal/timepolicy"
)

var (
	verbose bool
	logger  *zap.Logger
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if te, ok := err.(*tmerrors.TideError); ok {
			return te.ExitCode()
		}
		return 2
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tide",
		Short:         "Deterministic version-coordinate resolver for Git repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			built, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			logger = built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newMarkCmd())
	root.AddCommand(newFileCmd())
	root.AddCommand(newReleaseCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newServiceCmd())
	return root
}

// boundary bundles the per-invocation wiring shared by mark/file/release:
// a discovered Git provider, loaded config, and an optional cache store.
type boundary struct {
	provider gitprovider.Provider
	cfg      *config.Config
	store    cache.Store
}

func newBoundary(ctx context.Context) (*boundary, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "resolving current directory")
	}
	provider, err := gitprovider.Discover(ctx, cwd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.PathIn(provider.RepoRoot()))
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.Cache.Enabled {
		gitDir, err := provider.GitDir(ctx)
		if err != nil {
			return nil, err
		}
		s, err := openCacheStore(cfg.Cache.Backend, scratchCacheDir(gitDir))
		if err != nil {
			logger.Warn("cache unavailable, continuing without memoization", zap.Error(err))
		} else {
			store = s
		}
	}

	return &boundary{provider: provider, cfg: cfg, store: store}, nil
}

func scratchCacheDir(gitDir string) string {
	return gitDir + "/tidemark-scratch/cache"
}

// openCacheStore picks the Store implementation named by cfg.Cache.Backend
// (spec.md §4.8 is agnostic to the store's physical layout; "file" and
// "sqlite" are the two this repo ships). Unknown or empty values fall back
// to "file", matching config.Default().
func openCacheStore(backend, dir string) (cache.Store, error) {
	switch backend {
	case "sqlite":
		return cache.NewSQLStore(dir + "/tidemark.sqlite")
	default:
		return cache.NewFileStore(dir)
	}
}

func (b *boundary) resolverConfig(localOnly bool) (resolver.Config, error) {
	tz, err := timepolicy.Parse(b.cfg.Time.Timezone)
	if err != nil {
		return resolver.Config{}, err
	}
	rcfg := b.cfg.ResolverConfig(tz)
	rcfg.Store = b.store
	rcfg.CacheKey = cache.Key{
		TagPrefix:        b.cfg.Release.TagPrefix,
		RequireAnnotated: b.cfg.Release.RequireAnnotatedTags,
		Timezone:         b.cfg.Time.Timezone,
		RemoteStrategy:   b.cfg.Remote.Strategy,
		RemoteName:       b.cfg.Remote.Name,
		LocalOnly:        localOnly,
		EngineVersion:    EngineVersion,
	}
	return rcfg, nil
}

func (b *boundary) close() {
	if b.store != nil {
		_ = b.store.Close()
	}
}

// EngineVersion participates in the cache key digest so a format change
// invalidates stale entries automatically (spec.md §4.8).
const EngineVersion = "1"

func newMarkCmd() *cobra.Command {
	var explain bool
	var localOnly bool
	var metadataSuffix string

	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Resolve the version coordinate for HEAD (or a given revision)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := newBoundary(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			rcfg, err := b.resolverConfig(localOnly)
			if err != nil {
				return err
			}

			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}
			result, err := resolver.ResolveMark(ctx, b.provider, rcfg, model.MarkRequest{
				TargetRev:      rev,
				LocalOnly:      localOnly,
				MetadataSuffix: metadataSuffix,
			})
			if err != nil {
				return err
			}
			if explain {
				return output.Explain(cmd.OutOrStdout(), result.Explain)
			}
			if err := output.Coordinate(cmd.OutOrStdout(), result.Coordinate); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print the ordered explain record instead of the coordinate")
	cmd.Flags().BoolVar(&localOnly, "local-only", false, "disable remote tag query; use only local tags")
	cmd.Flags().StringVar(&metadataSuffix, "tag", "", "metadata suffix appended as x.y.z.<tag>")
	return cmd
}

func newFileCmd() *cobra.Command {
	var localOnly bool
	var metadataSuffix string

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Resolve the version coordinate for the last commit that modified <path>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := newBoundary(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			rcfg, err := b.resolverConfig(localOnly)
			if err != nil {
				return err
			}

			result, err := resolver.ResolveFile(ctx, b.provider, rcfg, model.FileRequest{
				Path:           args[0],
				LocalOnly:      localOnly,
				MetadataSuffix: metadataSuffix,
				FollowRenames:  b.cfg.Output.FollowRenames,
			})
			if err != nil {
				return err
			}
			if err := output.Coordinate(cmd.OutOrStdout(), result.Mark.Coordinate); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local-only", false, "disable remote tag query; use only local tags")
	cmd.Flags().StringVar(&metadataSuffix, "tag", "", "metadata suffix appended as x.y.z.<tag>")
	return cmd
}

func newReleaseCmd() *cobra.Command {
	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Release-anchor queries",
	}

	var localOnly bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List release tags recognized by TideMark",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := newBoundary(ctx)
			if err != nil {
				return err
			}
			defer b.close()

			candidates, _, err := cache.LoadCandidates(ctx, b.provider, b.store, cache.Key{
				TagPrefix:        b.cfg.Release.TagPrefix,
				RequireAnnotated: b.cfg.Release.RequireAnnotatedTags,
				Timezone:         b.cfg.Time.Timezone,
				RemoteStrategy:   b.cfg.Remote.Strategy,
				RemoteName:       b.cfg.Remote.Name,
				LocalOnly:        localOnly,
				EngineVersion:    EngineVersion,
			}, b.cfg.ReleasePolicy(), localOnly)
			if err != nil {
				return err
			}
			return output.ReleaseList(cmd.OutOrStdout(), candidates)
		},
	}
	listCmd.Flags().BoolVar(&localOnly, "local-only", false, "disable remote tag query; use only local tags")

	releaseCmd.AddCommand(listCmd)
	return releaseCmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default .tidemark.yaml at the repository root",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cwd, err := os.Getwd()
			if err != nil {
				return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "resolving current directory")
			}
			provider, err := gitprovider.Discover(ctx, cwd)
			if err != nil {
				return err
			}
			path := config.PathIn(provider.RepoRoot())
			if config.ExistsAt(path) {
				return tmerrors.New(tmerrors.KindConfigParse, "%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.DefaultYAMLTemplate()), 0o644); err != nil {
				return tmerrors.Wrap(tmerrors.KindConfigParse, err, "writing %s", path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	configCmd.AddCommand(initCmd)
	return configCmd
}

func newServiceCmd() *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage a systemd user timer that runs `tide mark` periodically",
	}

	serviceCmd.AddCommand(newServicePlanCmd())
	serviceCmd.AddCommand(newServiceInstallCmd())
	serviceCmd.AddCommand(newServiceUninstallCmd())
	return serviceCmd
}

func serviceInstallFlags(cmd *cobra.Command) (*uint32, *string, *bool, *bool, *string) {
	var intervalMinutes uint32 = 60
	var unitName string
	var allowRemote bool
	var compact bool
	var metadataSuffix string
	cmd.Flags().Uint32Var(&intervalMinutes, "interval-minutes", 60, "timer interval in minutes; must be >= 1")
	cmd.Flags().StringVar(&unitName, "unit-name", "", "explicit systemd unit name (without .service/.timer)")
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "allow remote tag lookup during scheduled mark calculation")
	cmd.Flags().BoolVar(&compact, "compact", false, "output compact coordinate only (without --explain) when run by the timer")
	cmd.Flags().StringVar(&metadataSuffix, "tag", "", "optional metadata suffix passed as --tag")
	return &intervalMinutes, &unitName, &allowRemote, &compact, &metadataSuffix
}

func newServicePlanCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plan", Short: "Print deterministic unit and timer contents without installing"}
	interval, unitName, allowRemote, compact, suffix := serviceInstallFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider, err := discoverProvider(ctx)
		if err != nil {
			return err
		}
		plan, err := service.PlanService(installRequest(provider.RepoRoot(), *interval, *unitName, *allowRemote, *compact, *suffix))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unit_name=%s\nservice_file=%s\ntimer_file=%s\n---service---\n%s---timer---\n%s",
			plan.UnitName, plan.ServiceFile, plan.TimerFile, plan.ServiceContent, plan.TimerContent)
		return nil
	}
	return cmd
}

func newServiceInstallCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "install", Short: "Install and start a user-level systemd timer for TideMark"}
	interval, unitName, allowRemote, compact, suffix := serviceInstallFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider, err := discoverProvider(ctx)
		if err != nil {
			return err
		}
		plan, err := service.Install(installRequest(provider.RepoRoot(), *interval, *unitName, *allowRemote, *compact, *suffix))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unit_name=%s\nservice_file=%s\ntimer_file=%s\n", plan.UnitName, plan.ServiceFile, plan.TimerFile)
		return nil
	}
	return cmd
}

func newServiceUninstallCmd() *cobra.Command {
	var unitName string
	cmd := &cobra.Command{Use: "uninstall", Short: "Uninstall and stop the user-level systemd timer"}
	cmd.Flags().StringVar(&unitName, "unit-name", "", "explicit systemd unit name (without .service/.timer)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider, err := discoverProvider(ctx)
		if err != nil {
			return err
		}
		plan, err := service.Uninstall(service.UninstallRequest{RepoRoot: provider.RepoRoot(), UnitName: unitName})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "unit_name=%s\nservice_file=%s\ntimer_file=%s\n", plan.UnitName, plan.ServiceFile, plan.TimerFile)
		return nil
	}
	return cmd
}

func discoverProvider(ctx context.Context) (gitprovider.Provider, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "resolving current directory")
	}
	return gitprovider.Discover(ctx, cwd)
}

func installRequest(repoRoot string, intervalMinutes uint32, unitName string, allowRemote, compact bool, metadataSuffix string) service.InstallRequest {
	return service.InstallRequest{
		RepoRoot:        repoRoot,
		IntervalMinutes: intervalMinutes,
		UnitName:        unitName,
		LocalOnly:       !allowRemote,
		Explain:         !compact,
		MetadataSuffix:  metadataSuffix,
	}
}
