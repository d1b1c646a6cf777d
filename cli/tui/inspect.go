package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/rlfeed/cli/reader"
)

const timeLayout = "2006-01-02 15:04:05"

// InspectModel is a Bubble Tea model for inspect views. Entries scroll in
// a table below the log summary.
type InspectModel struct {
	viewType string
	data     any
	table    table.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	m := InspectModel{
		viewType: viewType,
		data:     data,
	}
	if resp, ok := data.(*reader.InspectLogResponse); ok {
		m.table = newEntryTable(resp.Entries)
	}
	return m
}

func newEntryTable(entries []reader.EntryRow) table.Model {
	columns := []table.Column{
		{Title: "#", Width: 6},
		{Title: "Kind", Width: 12},
		{Title: "Event ID", Width: 38},
		{Title: "Action", Width: 7},
		{Title: "Prob", Width: 7},
		{Title: "Value", Width: 7},
		{Title: "Timestamp", Width: 20},
	}

	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		row := table.Row{fmt.Sprintf("%d", e.Index), e.Kind, e.EventID, "", "", "", ""}
		if e.Chosen != nil {
			row[3] = fmt.Sprintf("%d", *e.Chosen)
		}
		if e.Probability != nil {
			row[4] = fmt.Sprintf("%.3f", *e.Probability)
		}
		if e.Value != nil {
			row[5] = fmt.Sprintf("%g", *e.Value)
		}
		if e.Timestamp != nil {
			row[6] = e.Timestamp.Format(timeLayout)
		}
		rows = append(rows, row)
	}

	return table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 15)),
	)
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Height > 14 {
			m.table.SetHeight(msg.Height - 14)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectLog:
		content = m.renderInspectLog()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("↑/↓ scroll • q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectLog() string {
	data, ok := m.data.(*reader.InspectLogResponse)
	if !ok {
		return "Invalid data type for inspect_log"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Event Log"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Path", data.Path},
		{"App ID", data.AppID},
		{"Entries", fmt.Sprintf("%d", data.Total)},
		{"Interactions", fmt.Sprintf("%d", data.Interactions)},
		{"Observations", fmt.Sprintf("%d", data.Observations)},
	}
	if data.First != nil && data.Last != nil {
		rows = append(rows,
			[]string{"First", data.First.Format(timeLayout)},
			[]string{"Last", data.Last.Format(timeLayout)},
		)
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1])))
	}

	out := BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
	if len(data.Entries) == 0 {
		return out + "\n" + HelpStyle.Render("(no entries)")
	}
	return out + "\n" + m.table.View()
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	p := tea.NewProgram(NewInspectModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
