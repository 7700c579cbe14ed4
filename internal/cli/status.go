package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dotnetup/dotnetup/pkg/ledger"
)

// statusCommand creates the status command.
func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracked .NET installs",
		Long: `Show everything the install ledger knows: completed installs and
their owners, installs that were interrupted partway, and removals that
failed and are waiting to be retried.

Local installs found on disk but missing from the ledger are adopted
before the listing, so installs made by older tools show up too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

// runStatus prints the ledger's view of the machine.
func (c *CLI) runStatus(ctx context.Context) error {
	eng, err := c.newEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	st, err := eng.orch.Status(ctx)
	if err != nil {
		return err
	}

	root, err := eng.cfg.InstallRootPath()
	if err != nil {
		return err
	}
	stateDir, err := eng.cfg.StateDirPath()
	if err != nil {
		return err
	}
	printKeyValue("Root", root)
	printKeyValue("Ledger", stateDir)
	printNewline()

	if len(st.Installed) == 0 && len(st.Installing) == 0 && len(st.Graveyard) == 0 {
		printInfo("No tracked installs")
		printNextStep("Install one", "dotnetup acquire 8.0")
		return nil
	}

	if len(st.Installed) > 0 {
		fmt.Println(StyleTitle.Render("Installed"))
		fmt.Println(installTable(st.Installed))
	}

	if len(st.Installing) > 0 {
		printNewline()
		printWarning("Interrupted installs (cleaned up on the next acquire)")
		fmt.Println(installTable(st.Installing))
	}

	if len(st.Graveyard) > 0 {
		printNewline()
		printWarning("Stuck removals (retried by uninstall-all)")
		for _, entry := range st.Graveyard {
			printDetail("%s at %s", entry.Install, entry.Path)
		}
	}

	return nil
}

// installTable renders ledger records as a bordered table.
func installTable(records []ledger.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		scope := "local"
		if r.Install.Global {
			scope = "global"
		}
		rows = append(rows, []string{
			r.Install.Version,
			string(r.Install.Mode),
			r.Install.Architecture,
			scope,
			ownerList(r.Owners),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Version", "Mode", "Arch", "Scope", "Owners").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
			return lipgloss.NewStyle().Foreground(colorGray)
		}).
		Render()
}

// ownerList renders a record's owners, naming unattributed installs.
func ownerList(owners []string) string {
	names := make([]string, len(owners))
	for i, o := range owners {
		if o == ledger.LegacyOwner {
			names[i] = "(unowned)"
		} else {
			names[i] = o
		}
	}
	return strings.Join(names, ", ")
}
