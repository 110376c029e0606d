// Package reader provides the read-side data access layer for the kdp CLI.
//
// Read-only commands (inspect, trace) load their data through this package
// and render the view types below; the TUI shows the same payloads.
package reader

// ClassView is a parsed class file as shown by "kdp inspect".
type ClassView struct {
	Name       string       `json:"name"`
	Signature  string       `json:"signature"`
	Kind       string       `json:"kind"`
	Access     string       `json:"access"`
	Super      string       `json:"super,omitempty"`
	Interfaces []string     `json:"interfaces"`
	SourceFile string       `json:"source_file,omitempty"`
	Version    string       `json:"version"`
	Fields     []FieldView  `json:"fields"`
	Methods    []MethodView `json:"methods"`
}

// FieldView is one field; Index is the field id low word.
type FieldView struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	Access     string `json:"access"`
}

// MethodView is one method with its line table.
type MethodView struct {
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	Descriptor string     `json:"descriptor"`
	Access     string     `json:"access"`
	MaxStack   int        `json:"max_stack"`
	MaxLocals  int        `json:"max_locals"`
	CodeLength int        `json:"code_length"`
	Native     bool       `json:"native"`
	Lines      []LineView `json:"lines"`
	Locals     int        `json:"locals"`
}

// LineView maps a code index to a source line.
type LineView struct {
	StartPC int `json:"start_pc"`
	Line    int `json:"line"`
}

// TraceRow is one record of "kdp trace dump".
type TraceRow struct {
	Seq       int64  `json:"seq"`
	Ts        string `json:"ts"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
	ID        int32  `json:"id"`
	Command   string `json:"command"`
	ErrorCode int16  `json:"error_code"`
	Bytes     int    `json:"bytes"`
}

// TraceStats aggregates the records of one or more sessions.
type TraceStats struct {
	Sessions     int              `json:"sessions"`
	Records      int64            `json:"records"`
	Commands     int64            `json:"commands"`
	Replies      int64            `json:"replies"`
	Events       int64            `json:"events"`
	ErrorReplies int64            `json:"error_replies"`
	Bytes        int64            `json:"bytes"`
	FirstTs      string           `json:"first_ts,omitempty"`
	LastTs       string           `json:"last_ts,omitempty"`
	ByDirection  []DirectionStats `json:"by_direction"`
	ByCommand    []CommandStats   `json:"by_command"`
}

// DirectionStats counts records per proxy direction.
type DirectionStats struct {
	Direction string `json:"direction"`
	Records   int64  `json:"records"`
	Bytes     int64  `json:"bytes"`
}

// CommandStats counts command packets per command set and command.
type CommandStats struct {
	CmdSet  uint8  `json:"cmd_set"`
	Cmd     uint8  `json:"cmd"`
	Command string `json:"command"`
	Count   int64  `json:"count"`
	Bytes   int64  `json:"bytes"`
}

// SessionSummary is an archived session summary record.
type SessionSummary struct {
	SessionID     string `json:"session_id"`
	Day           string `json:"day"`
	VMAddr        string `json:"vm_addr"`
	DebuggerAddr  string `json:"debugger_addr"`
	Outcome       string `json:"outcome"`
	Message       string `json:"message"`
	StartedAt     string `json:"started_at"`
	DurationMs    int64  `json:"duration_ms"`
	Packets       int64  `json:"packets"`
	ClassesCached int64  `json:"classes_cached"`
}
