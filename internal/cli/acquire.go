package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotnetup/dotnetup/pkg/acquire"
	"github.com/dotnetup/dotnetup/pkg/install"
)

// acquireOptions carries the acquire command's flag values.
type acquireOptions struct {
	runtimeOnly bool
	aspnet      bool
	global      bool
	arch        string
	owner       string
	noCache     bool
}

// acquireCommand creates the acquire command for installing .NET.
func (c *CLI) acquireCommand() *cobra.Command {
	opts := acquireOptions{}

	cmd := &cobra.Command{
		Use:     "acquire <version>",
		Aliases: []string{"install"},
		Short:   "Install a .NET SDK or runtime",
		Long: `Install a .NET SDK or runtime matching a version specifier.

The specifier can be a full version (8.0.301), a channel (8 or 8.0), or an
SDK feature band wildcard (8.0.3xx). Channels and wildcards resolve against
the official release index to the newest matching build.

By default the SDK is installed into a private root under your home
directory and recorded in the install ledger. With --global the build is
installed machine-wide through the platform's own installer instead.

Repeating an acquire for a version that is already tracked records the new
owner and returns the existing copy without reinstalling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAcquire(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runtimeOnly, "runtime", false, "install the runtime instead of the SDK")
	cmd.Flags().BoolVar(&opts.aspnet, "aspnetcore", false, "install the ASP.NET Core runtime instead of the SDK")
	cmd.Flags().BoolVar(&opts.global, "global", false, "install machine-wide instead of into the private root")
	cmd.Flags().StringVar(&opts.arch, "arch", "", "target architecture: x64, x86, arm, arm64 (default: host)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "owner recorded in the install ledger")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable release metadata caching")
	cmd.MarkFlagsMutuallyExclusive("runtime", "aspnetcore")

	return cmd
}

// runAcquire resolves the specifier and drives the orchestrator.
func (c *CLI) runAcquire(ctx context.Context, specifier string, opts acquireOptions) error {
	eng, err := c.newEngine(opts.noCache)
	if err != nil {
		return err
	}
	defer eng.Close()

	arch, err := eng.architecture(opts.arch)
	if err != nil {
		return err
	}
	mode := modeFromFlags(opts.runtimeOnly, opts.aspnet)

	ctx, cancel := eng.boundInstall(ctx)
	defer cancel()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Installing .NET %s %s...", mode, specifier))
	spinner.Start()

	res, err := eng.orch.Acquire(ctx, acquire.Request{
		Specifier:    specifier,
		Architecture: arch,
		Global:       opts.global,
		Mode:         mode,
		Owner:        opts.owner,
	})
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("Could not install .NET %s %s", mode, specifier))
		return err
	}
	spinner.Stop()

	printSuccess("Installed %s", res.Install)
	printPath(res.Path)
	prog.done(fmt.Sprintf("Acquired %s", res.Install))
	return nil
}

// modeFromFlags maps the --runtime and --aspnetcore flags to an install
// mode. The flags are mutually exclusive; cobra enforces that before the
// command runs.
func modeFromFlags(runtimeOnly, aspnet bool) install.Mode {
	switch {
	case aspnet:
		return install.ModeASPNetCore
	case runtimeOnly:
		return install.ModeRuntime
	default:
		return install.ModeSDK
	}
}
