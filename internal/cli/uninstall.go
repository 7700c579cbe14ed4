package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotnetup/dotnetup/pkg/errors"
	"github.com/dotnetup/dotnetup/pkg/install"
	"github.com/dotnetup/dotnetup/pkg/version"
)

// uninstallOptions carries the uninstall command's flag values.
type uninstallOptions struct {
	runtimeOnly bool
	aspnet      bool
	global      bool
	arch        string
	owner       string
}

// uninstallCommand creates the uninstall command.
func (c *CLI) uninstallCommand() *cobra.Command {
	opts := uninstallOptions{}

	cmd := &cobra.Command{
		Use:   "uninstall <version>",
		Short: "Remove a tracked .NET install",
		Long: `Release ownership of a tracked install, removing its files once no
owner holds it anymore.

Uninstall never resolves specifiers: it needs the fully specified version
of the install to remove, exactly as 'status' lists it. While other owners
still hold the same install, only the ownership record is released and the
files stay.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUninstall(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runtimeOnly, "runtime", false, "the install is a runtime, not an SDK")
	cmd.Flags().BoolVar(&opts.aspnet, "aspnetcore", false, "the install is an ASP.NET Core runtime")
	cmd.Flags().BoolVar(&opts.global, "global", false, "the install is machine-wide")
	cmd.Flags().StringVar(&opts.arch, "arch", "", "the install's architecture (default: host)")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "owner releasing the install")
	cmd.MarkFlagsMutuallyExclusive("runtime", "aspnetcore")

	return cmd
}

// runUninstall releases one install identity.
func (c *CLI) runUninstall(ctx context.Context, ver string, opts uninstallOptions) error {
	// Resolution happens only on acquire; removing "8.0" when 8.0.301 and
	// 8.0.404 are both tracked would be a guess.
	if version.Classify(ver) != version.KindFullySpecified {
		return errors.New(errors.ErrCodeVersionFormat, "uninstall needs a fully specified version like 8.0.301, not %q", ver)
	}

	eng, err := c.newEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	arch, err := eng.architecture(opts.arch)
	if err != nil {
		return err
	}
	id := install.New(ver, arch, opts.global, modeFromFlags(opts.runtimeOnly, opts.aspnet))

	ctx, cancel := eng.boundInstall(ctx)
	defer cancel()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Removing %s...", id))
	spinner.Start()

	if err := eng.orch.Uninstall(ctx, id, opts.owner); err != nil {
		spinner.StopWithError(fmt.Sprintf("Could not remove %s", id))
		return err
	}
	spinner.Stop()

	printSuccess("Released %s", id)
	return nil
}

// uninstallAllCommand creates the uninstall-all command.
func (c *CLI) uninstallAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall-all",
		Short: "Remove every local .NET install",
		Long: `Remove every install under the private root, clear their ledger
records, and retry any removals that previously failed.

Machine-wide installs are not touched; remove those one at a time with
'uninstall --global'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runUninstallAll(cmd.Context())
		},
	}
}

// runUninstallAll wipes the local root and its records.
func (c *CLI) runUninstallAll(ctx context.Context) error {
	eng, err := c.newEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, "Removing all local installs...")
	spinner.Start()

	if err := eng.orch.UninstallAll(ctx); err != nil {
		spinner.StopWithError("Could not remove all local installs")
		return err
	}
	spinner.Stop()

	printSuccess("Removed all local installs")
	prog.done("Cleared local installs")
	return nil
}
