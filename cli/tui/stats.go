package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/rlfeed/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsJoin:
		content = m.renderStatsJoin()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsJoin() string {
	data, ok := m.data.(*reader.JoinStats)
	if !ok {
		return "Invalid data type for stats_join"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Join Statistics"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Source:"), ValueStyle.Render(data.Source)))

	top := []string{
		m.renderStatBox("Interactions", data.Interactions, highlightColor),
		m.renderStatBox("Observations", data.Observations, highlightColor),
		m.renderStatBox("Joined", data.Joined, successColor),
	}
	bottom := []string{
		m.renderStatBox("Unjoined", data.Unjoined, warningColor),
		m.renderStatBox("Orphans", data.Orphans, errorColor),
		m.renderStatBox("Duplicates", data.Duplicates, mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, top...))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, bottom...))
	b.WriteString("\n\n")

	rate := fmt.Sprintf("%.1f%%", data.JoinRate*100)
	b.WriteString(fmt.Sprintf("%s %s", LabelStyle.Render("Join rate:"), RateStyle(data.JoinRate).Render(rate)))

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	p := tea.NewProgram(NewStatsModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders a stats view without starting a program.
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
