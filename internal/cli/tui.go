package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dotnetup/dotnetup/pkg/releases"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ChannelListModel - Interactive channel selection
// =============================================================================

// ChannelListModel is the bubbletea model for interactive channel selection.
type ChannelListModel struct {
	Channels []releases.Channel
	Cursor   int
	Selected *releases.Channel
	Height   int
	Offset   int
}

// NewChannelListModel creates a new channel list model.
func NewChannelListModel(channels []releases.Channel) ChannelListModel {
	return ChannelListModel{
		Channels: channels,
		Cursor:   0,
		Height:   15,
		Offset:   0,
	}
}

func (m ChannelListModel) Init() tea.Cmd {
	return nil
}

func (m ChannelListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Channels)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.Selected = &m.Channels[m.Cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ChannelListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select a .NET Channel"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Channels) {
		end = len(m.Channels)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		ch := m.Channels[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		rows = append(rows, []string{cursor, ch.ChannelVersion, ch.SupportPhase, ch.LatestSDK, ch.LatestRuntime})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Channel", "Support", "Latest SDK", "Latest Runtime").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.Offset + row
			if actualIdx >= len(m.Channels) {
				return lipgloss.NewStyle()
			}
			ch := m.Channels[actualIdx]
			isCurrent := actualIdx == m.Cursor
			supported := ch.SupportPhase == "active" || ch.SupportPhase == "maintenance"

			base := lipgloss.NewStyle()
			if isCurrent {
				if supported {
					return base.Foreground(colorGreen).Bold(true)
				}
				return base.Foreground(colorGray).Bold(true)
			}
			if supported {
				return base.Foreground(colorWhite)
			}
			return base.Foreground(colorDim)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Channels))))

	return b.String()
}
