package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/kdp/cli/reader"
)

// InspectModel shows a class with a method cursor, or a session summary.
type InspectModel struct {
	viewType string
	data     any
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates an inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{viewType: viewType, data: data}
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
			if m.cursor < m.methodCount()-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m InspectModel) methodCount() int {
	if c, ok := m.data.(*reader.ClassView); ok {
		return len(c.Methods)
	}
	return 0
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewInspectClass:
		content = m.renderClass()
	case ViewInspectSession:
		content = m.renderSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}
	return content + "\n" + helpLine(m.viewType == ViewInspectClass)
}

func labelRow(label, value string) string {
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), ValueStyle.Render(value))
}

func (m InspectModel) renderClass() string {
	c, ok := m.data.(*reader.ClassView)
	if !ok || c == nil {
		return "Invalid data type for inspect_class"
	}

	var head strings.Builder
	head.WriteString(TitleStyle.Render(c.Name))
	head.WriteString("\n")
	head.WriteString(labelRow("Kind", c.Kind))
	head.WriteString(labelRow("Access", c.Access))
	head.WriteString(labelRow("Super", c.Super))
	if len(c.Interfaces) > 0 {
		head.WriteString(labelRow("Interfaces", strings.Join(c.Interfaces, ", ")))
	}
	if c.SourceFile != "" {
		head.WriteString(labelRow("Source", c.SourceFile))
	}
	head.WriteString(labelRow("Version", c.Version))

	var fields strings.Builder
	fields.WriteString(HeaderStyle.Render(fmt.Sprintf("Fields (%d)", len(c.Fields))))
	fields.WriteString("\n")
	for _, f := range c.Fields {
		fmt.Fprintf(&fields, "%3d %s %s %s\n", f.Index, f.Access, f.Name, f.Descriptor)
	}

	var methods strings.Builder
	methods.WriteString(HeaderStyle.Render(fmt.Sprintf("Methods (%d)", len(c.Methods))))
	methods.WriteString("\n")
	start, end := window(len(c.Methods), m.cursor, m.listHeight())
	for i := start; i < end; i++ {
		mv := c.Methods[i]
		line := fmt.Sprintf("%3d %s%s", mv.Index, mv.Name, mv.Descriptor)
		if i == m.cursor {
			methods.WriteString(SelectedStyle.Render("> " + line))
		} else {
			methods.WriteString("  " + line)
		}
		methods.WriteString("\n")
	}

	left := lipgloss.JoinVertical(lipgloss.Left, head.String(), fields.String(), methods.String())
	if len(c.Methods) == 0 {
		return BoxStyle.Render(left)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, BoxStyle.Render(left), BoxStyle.Render(renderMethod(c.Methods[m.cursor])))
}

func renderMethod(mv reader.MethodView) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(mv.Name))
	b.WriteString("\n")
	b.WriteString(labelRow("Descriptor", mv.Descriptor))
	b.WriteString(labelRow("Access", mv.Access))
	if mv.Native {
		b.WriteString(WarningStyle.Render("no bytecode"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(labelRow("Code length", fmt.Sprintf("%d", mv.CodeLength)))
	b.WriteString(labelRow("Max stack", fmt.Sprintf("%d", mv.MaxStack)))
	b.WriteString(labelRow("Max locals", fmt.Sprintf("%d", mv.MaxLocals)))
	b.WriteString(labelRow("Variables", fmt.Sprintf("%d", mv.Locals)))
	b.WriteString("\n")
	b.WriteString(HeaderStyle.Render("  pc  line"))
	b.WriteString("\n")
	for _, ln := range mv.Lines {
		fmt.Fprintf(&b, "%4d  %4d\n", ln.StartPC, ln.Line)
	}
	return b.String()
}

// listHeight is the number of method rows that fit; 0 means unbounded.
func (m InspectModel) listHeight() int {
	if m.height == 0 {
		return 0
	}
	return max(m.height-20, 5)
}

func (m InspectModel) renderSession() string {
	s, ok := m.data.(*reader.SessionSummary)
	if !ok || s == nil {
		return "Invalid data type for inspect_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session " + s.SessionID))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Outcome:"), OutcomeStyle(s.Outcome).Render(s.Outcome))
	b.WriteString(labelRow("Message", s.Message))
	b.WriteString(labelRow("VM", s.VMAddr))
	b.WriteString(labelRow("Debugger", s.DebuggerAddr))
	b.WriteString(labelRow("Started", s.StartedAt))
	b.WriteString(labelRow("Duration", fmt.Sprintf("%d ms", s.DurationMs)))
	b.WriteString(labelRow("Packets", fmt.Sprintf("%d", s.Packets)))
	b.WriteString(labelRow("Classes", fmt.Sprintf("%d", s.ClassesCached)))
	return BoxStyle.Render(b.String())
}

// RenderInspectStatic renders an inspect view without running a program.
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
