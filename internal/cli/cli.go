// Package cli implements the dotnetup command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dotnetup/dotnetup/pkg/acquire"
	"github.com/dotnetup/dotnetup/pkg/buildinfo"
	"github.com/dotnetup/dotnetup/pkg/cache"
	"github.com/dotnetup/dotnetup/pkg/config"
	"github.com/dotnetup/dotnetup/pkg/events"
	"github.com/dotnetup/dotnetup/pkg/fetch"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/ledger"
	"github.com/dotnetup/dotnetup/pkg/lock"
	"github.com/dotnetup/dotnetup/pkg/platform"
	"github.com/dotnetup/dotnetup/pkg/releases"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "dotnetup"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "dotnetup",
		Short:        "Dotnetup installs and tracks .NET SDKs and runtimes",
		Long:         `Dotnetup resolves .NET version specifiers against the official release metadata, installs SDKs and runtimes locally or machine-wide, and records every install in a shared ledger so multiple tools can hold the same copy without stepping on each other.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.acquireCommand())
	root.AddCommand(c.uninstallCommand())
	root.AddCommand(c.uninstallAllCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.channelsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Engine Factory
// =============================================================================

// engine bundles the wired subsystems the commands run against: the release
// metadata client, the install ledger, and the acquisition orchestrator.
type engine struct {
	cfg      config.Config
	releases *releases.Client
	orch     *acquire.Orchestrator
	store    *ledger.FileStore
}

// newEngine loads the user's config and wires one engine for one command
// invocation.
func (c *CLI) newEngine(noCache bool) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	backend, err := newCache(noCache, cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	stateDir, err := cfg.StateDirPath()
	if err != nil {
		return nil, err
	}
	store, err := ledger.NewFileStore(stateDir)
	if err != nil {
		return nil, err
	}
	locker := lock.New(filepath.Join(stateDir, "ledger.lock"), lock.Options{
		Attempts: cfg.Lock.Attempts,
		Delay:    cfg.Lock.Delay.Duration,
		MaxDelay: cfg.Lock.MaxDelay.Duration,
	})
	tracker := ledger.NewTracker(store, locker, c.Logger)

	relClient := releases.NewClient(backend, cfg.Cache.TTL.Duration, cfg.IndexURL)
	sink := events.Fanout(uiSink{}, events.NewLogSink(c.Logger))
	resolver := releases.NewResolver(relClient, sink)

	root, err := cfg.InstallRootPath()
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewClient(backend, "fetch:", cfg.Cache.TTL.Duration, nil)
	factory := platform.NewFactory(root, fetcher, relClient, c.Logger)

	return &engine{
		cfg:      cfg,
		releases: relClient,
		store:    store,
		orch:     acquire.NewOrchestrator(resolver, tracker, factory, sink, c.Logger),
	}, nil
}

// Close releases the engine's persistent resources.
func (e *engine) Close() error {
	return e.store.Close()
}

// boundInstall derives a context bounded by the configured install timeout,
// so a wedged installer or package manager cannot hang the command forever.
func (e *engine) boundInstall(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.InstallTimeout.Duration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.InstallTimeout.Duration)
}

// architecture resolves the effective install architecture from the flag
// value, falling back to the config override. Empty means the host
// architecture; identity construction fills that in.
func (e *engine) architecture(flag string) (string, error) {
	arch := flag
	if arch == "" {
		arch = e.cfg.Architecture
	}
	if arch == "" {
		return "", nil
	}
	return install.NormalizeArchitecture(arch)
}

func newCache(noCache bool, dir string) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if dir == "" {
		var err error
		dir, err = cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/dotnetup/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
