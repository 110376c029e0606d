package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// View types with an interactive rendering.
const (
	ViewInspectClass   = "inspect_class"
	ViewInspectSession = "inspect_session"
	ViewStatsTrace     = "stats_trace"
)

// Run starts the view for viewType over data.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	var model tea.Model
	switch {
	case strings.HasPrefix(viewType, "inspect_"):
		model = NewInspectModel(viewType, data)
	case strings.HasPrefix(viewType, "stats_"):
		model = NewStatsModel(viewType, data)
	}
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether viewType has an interactive view.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspectClass, ViewInspectSession, ViewStatsTrace}
}

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func helpLine(scroll bool) string {
	if scroll {
		return HelpStyle.Render(fmt.Sprintf("%s %s • %s %s • %s %s",
			keys.Up.Help().Key, keys.Up.Help().Desc,
			keys.Down.Help().Key, keys.Down.Help().Desc,
			keys.Quit.Help().Key, keys.Quit.Help().Desc))
	}
	return HelpStyle.Render("Press q or Ctrl+C to quit")
}

// window returns the [start, end) range of n rows that keeps cursor
// visible in height rows.
func window(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := max(cursor-height/2, 0)
	end := start + height
	if end > n {
		end = n
		start = n - height
	}
	return start, end
}
