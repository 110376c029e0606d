package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/kdp/cli/reader"
)

// StatsModel shows trace statistics with a scrollable command table.
type StatsModel struct {
	viewType string
	data     any
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{viewType: viewType, data: data}
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
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if s, ok := m.data.(*reader.TraceStats); ok && m.cursor < len(s.ByCommand)-1 {
				m.cursor++
			}
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
	case ViewStatsTrace:
		content = m.renderTraceStats()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}
	return content + "\n" + helpLine(true)
}

func (m StatsModel) renderTraceStats() string {
	s, ok := m.data.(*reader.TraceStats)
	if !ok || s == nil {
		return "Invalid data type for stats_trace"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Trace Statistics (%d sessions)", s.Sessions)))
	b.WriteString("\n")

	boxes := []string{
		renderStatBox("Records", s.Records, highlightColor),
		renderStatBox("Commands", s.Commands, primaryColor),
		renderStatBox("Replies", s.Replies, successColor),
		renderStatBox("Events", s.Events, warningColor),
		renderStatBox("Error replies", s.ErrorReplies, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%-16s %10s %12s", "direction", "records", "bytes")))
	b.WriteString("\n")
	for _, d := range s.ByDirection {
		fmt.Fprintf(&b, "%-16s %10d %12d\n", d.Direction, d.Records, d.Bytes)
	}
	b.WriteString("\n")

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("  %-40s %10s %12s", "command", "count", "bytes")))
	b.WriteString("\n")
	start, end := window(len(s.ByCommand), m.cursor, m.listHeight())
	for i := start; i < end; i++ {
		c := s.ByCommand[i]
		line := fmt.Sprintf("%-40s %10d %12d", c.Command, c.Count, c.Bytes)
		if i == m.cursor {
			b.WriteString(SelectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if s.FirstTs != "" {
		b.WriteString("\n")
		b.WriteString(labelRow("First", s.FirstTs))
		b.WriteString(labelRow("Last", s.LastTs))
	}
	return b.String()
}

func (m StatsModel) listHeight() int {
	if m.height == 0 {
		return 0
	}
	return max(m.height-22, 5)
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RenderStatsStatic renders a stats view without running a program.
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
