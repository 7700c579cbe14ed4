package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/dotnetup/dotnetup/pkg/releases"
)

// channelsCommand creates the channels command for listing release lines.
func (c *CLI) channelsCommand() *cobra.Command {
	var (
		refresh bool
		pick    bool
	)

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List .NET release channels",
		Long: `List the release channels the official index currently advertises,
with each channel's support phase and latest SDK and runtime versions.

Any channel version shown here works as an acquire specifier: 'dotnetup
acquire 8.0' installs that channel's newest SDK.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runChannels(cmd.Context(), refresh, pick)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache and refetch the index")
	cmd.Flags().BoolVar(&pick, "pick", false, "pick a channel interactively")

	return cmd
}

// runChannels fetches the index and renders it as a table or a picker.
func (c *CLI) runChannels(ctx context.Context, refresh, pick bool) error {
	eng, err := c.newEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()

	spinner := newSpinnerWithContext(ctx, "Fetching release index...")
	spinner.Start()

	idx, err := eng.releases.Index(ctx, refresh)
	if err != nil {
		spinner.StopWithError("Could not fetch the release index")
		return err
	}
	spinner.Stop()

	if pick {
		return c.pickChannel(idx.Channels)
	}

	fmt.Println(channelTable(idx.Channels))
	printNextStep("Install a channel's newest SDK", "dotnetup acquire <channel>")
	return nil
}

// pickChannel runs the interactive channel picker and suggests the acquire
// command for the selection.
func (c *CLI) pickChannel(channels []releases.Channel) error {
	m := NewChannelListModel(channels)

	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	fm, ok := finalModel.(ChannelListModel)
	if !ok || fm.Selected == nil {
		printDetail("No selection made")
		return nil
	}

	ch := fm.Selected
	printSuccess("Channel %s (%s)", ch.ChannelVersion, ch.SupportPhase)
	printKeyValue("Latest SDK", ch.LatestSDK)
	printKeyValue("Runtime", ch.LatestRuntime)
	printNextStep("Install it", fmt.Sprintf("dotnetup acquire %s", ch.ChannelVersion))
	return nil
}

// channelTable renders the index channels as a bordered table.
func channelTable(channels []releases.Channel) string {
	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		eol := ch.EOLDate
		if eol == "" {
			eol = "-"
		}
		rows = append(rows, []string{
			ch.ChannelVersion,
			ch.SupportPhase,
			ch.ReleaseType,
			ch.LatestSDK,
			ch.LatestRuntime,
			eol,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Channel", "Support", "Type", "Latest SDK", "Latest Runtime", "EOL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row >= 0 && row < len(channels) {
				return channelStyle(channels[row], col)
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// channelStyle colors a channel row by its support phase.
func channelStyle(ch releases.Channel, col int) lipgloss.Style {
	base := lipgloss.NewStyle()
	switch ch.SupportPhase {
	case "active":
		if col == 0 {
			return base.Foreground(colorGreen).Bold(true)
		}
		return base.Foreground(colorWhite)
	case "maintenance":
		return base.Foreground(colorYellow)
	case "preview", "go-live":
		return base.Foreground(colorCyan)
	default: // eol and anything the index adds later
		return base.Foreground(colorDim)
	}
}
