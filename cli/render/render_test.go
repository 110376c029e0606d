package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pithecene-io/kdp/cli/reader"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("csv")
	if err == nil || !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error should mention valid formats, got: %v", err)
	}
}

func TestRenderer_JSONAndYAML(t *testing.T) {
	data := reader.CommandStats{CmdSet: 1, Cmd: 7, Command: "VirtualMachine.IDSizes", Count: 3}
	tests := []struct {
		format Format
		want   []string
	}{
		{FormatJSON, []string{`"command": "VirtualMachine.IDSizes"`, `"count": 3`}},
		{FormatYAML, []string{"command: VirtualMachine.IDSizes", "count: 3"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewRendererWithWriter(tt.format, &buf).Render(data); err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestRenderer_Table_Sections(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	data := &reader.ClassView{
		Name:       "com/acme/Worker",
		Interfaces: []string{"java/lang/Runnable", "java/io/Closeable"},
		Fields:     []reader.FieldView{{Index: 0, Name: "count", Descriptor: "I"}},
		Methods: []reader.MethodView{
			{Index: 0, Name: "run", Descriptor: "()V", Lines: []reader.LineView{{StartPC: 0, Line: 10}, {StartPC: 5, Line: 11}}},
		},
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render: %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"name:", "com/acme/Worker",
		"java/lang/Runnable, java/io/Closeable",
		"\nfields:\n", "descriptor",
		"\nmethods:\n", "[2 items]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "fields:") > strings.Index(got, "methods:") {
		t.Error("sections out of field order")
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	rows := []reader.TraceRow{
		{Seq: 1, Direction: "from_debugger", Kind: "command", Command: "VirtualMachine.Version"},
		{Seq: 2, Direction: "to_debugger", Kind: "reply"},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("Render: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "seq") || !strings.Contains(lines[0], "direction") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "VirtualMachine.Version") {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestRenderer_Table_MapKeysSorted(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	if err := r.Render(map[string]int64{"zeta": 1, "alpha": 2, "mid": 3}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := buf.String()
	a, m, z := strings.Index(got, "alpha"), strings.Index(got, "mid"), strings.Index(got, "zeta")
	if a < 0 || a > m || m > z {
		t.Errorf("keys not sorted:\n%s", got)
	}
}

func TestRenderer_Table_Empty(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{"empty slice", []reader.TraceRow{}},
		{"nil pointer", (*reader.ClassView)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewRendererWithWriter(FormatTable, &buf).Render(tt.data); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !strings.Contains(buf.String(), "(no results)") {
				t.Errorf("got %q, want (no results)", buf.String())
			}
		})
	}
}

func TestRenderer_RenderTUI_Unsupported(t *testing.T) {
	r := NewRendererWithWriter(FormatTable, &bytes.Buffer{})
	if err := r.RenderTUI("trace_dump", nil); err == nil {
		t.Error("expected error for a view without a TUI")
	}
}
