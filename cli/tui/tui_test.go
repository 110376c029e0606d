package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/kdp/cli/reader"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_class", true},
		{"inspect_session", true},
		{"stats_trace", true},
		{"trace_dump", false},
		{"inspect_run", false},
		{"version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("trace_dump", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name               string
		n, cursor, height  int
		wantStart, wantEnd int
	}{
		{"unbounded", 10, 3, 0, 0, 10},
		{"fits", 4, 3, 5, 0, 4},
		{"top", 20, 0, 5, 0, 5},
		{"middle", 20, 10, 5, 8, 13},
		{"bottom", 20, 19, 5, 15, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := window(tt.n, tt.cursor, tt.height)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("window = [%d, %d), want [%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func sampleClass() *reader.ClassView {
	return &reader.ClassView{
		Name:   "com/acme/Worker",
		Kind:   "class",
		Access: "public",
		Super:  "java/lang/Object",
		Fields: []reader.FieldView{{Index: 0, Name: "count", Descriptor: "I", Access: "private"}},
		Methods: []reader.MethodView{
			{Index: 0, Name: "run", Descriptor: "()V", CodeLength: 11, Lines: []reader.LineView{{StartPC: 0, Line: 10}, {StartPC: 5, Line: 11}}},
			{Index: 1, Name: "poke", Descriptor: "(D)V", Native: true},
		},
	}
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInspectModel_MethodCursor(t *testing.T) {
	var model tea.Model = NewInspectModel(ViewInspectClass, sampleClass())

	view := model.View()
	if !strings.Contains(view, "com/acme/Worker") || !strings.Contains(view, "Code length") {
		t.Errorf("initial view missing class or selected method:\n%s", view)
	}

	model, _ = model.Update(keyPress("j"))
	model, _ = model.Update(keyPress("j"))
	if got := model.(InspectModel).cursor; got != 1 {
		t.Errorf("cursor = %d, want 1 (clamped)", got)
	}
	if !strings.Contains(model.View(), "no bytecode") {
		t.Error("native method detail not shown")
	}

	model, _ = model.Update(keyPress("k"))
	if got := model.(InspectModel).cursor; got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}
}

func TestInspectModel_Quit(t *testing.T) {
	model, cmd := NewInspectModel(ViewInspectClass, sampleClass()).Update(keyPress("q"))
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if model.View() != "" {
		t.Error("view not empty after quit")
	}
}

func TestInspectModel_InvalidData(t *testing.T) {
	out := RenderInspectStatic(ViewInspectClass, &reader.TraceStats{})
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("got %q", out)
	}
}

func TestRenderInspectStatic_Session(t *testing.T) {
	out := RenderInspectStatic(ViewInspectSession, &reader.SessionSummary{
		SessionID:  "s-1",
		Outcome:    "completed",
		DurationMs: 1500,
		Packets:    42,
	})
	for _, want := range []string{"Session s-1", "completed", "1500 ms", "42"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatsStatic_Trace(t *testing.T) {
	stats := &reader.TraceStats{
		Sessions: 1,
		Records:  4,
		Commands: 2,
		Replies:  2,
		ByDirection: []reader.DirectionStats{
			{Direction: "from_debugger", Records: 1, Bytes: 4},
		},
		ByCommand: []reader.CommandStats{
			{CmdSet: 1, Cmd: 7, Command: "VirtualMachine.IDSizes", Count: 2, Bytes: 8},
		},
	}
	out := RenderStatsStatic(ViewStatsTrace, stats)
	for _, want := range []string{"Trace Statistics", "Records", "from_debugger", "VirtualMachine.IDSizes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
