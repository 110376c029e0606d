package reader

import (
	"testing"

	"github.com/pithecene-io/kdp/types"
)

func reply(session string, seq int64, dir types.Direction, code int16) *types.TraceRecord {
	r := record(session, seq, dir, 0, 0)
	r.Flags = 0x80
	r.ErrorCode = code
	return r
}

func TestStats(t *testing.T) {
	recs := []*types.TraceRecord{
		record("s-1", 1, types.DirectionFromDebugger, 1, 7),
		record("s-1", 2, types.DirectionToVM, 1, 7),
		reply("s-1", 3, types.DirectionFromVM, 0),
		reply("s-1", 4, types.DirectionToDebugger, 0),
		record("s-1", 5, types.DirectionFromVM, 64, 100),
		record("s-1", 6, types.DirectionToDebugger, 64, 100),
		record("s-2", 1, types.DirectionFromDebugger, 11, 1),
		reply("s-2", 2, types.DirectionToDebugger, 99),
	}

	s := Stats(recs)
	if s.Sessions != 2 || s.Records != 8 {
		t.Errorf("sessions/records = %d/%d", s.Sessions, s.Records)
	}
	if s.Commands != 5 || s.Replies != 3 || s.Events != 2 || s.ErrorReplies != 1 {
		t.Errorf("commands/replies/events/errors = %d/%d/%d/%d", s.Commands, s.Replies, s.Events, s.ErrorReplies)
	}
	if s.Bytes != 32 {
		t.Errorf("Bytes = %d, want 32", s.Bytes)
	}

	wantDirs := []string{"from_debugger", "to_vm", "from_vm", "to_debugger"}
	if len(s.ByDirection) != len(wantDirs) {
		t.Fatalf("ByDirection = %+v", s.ByDirection)
	}
	for i, want := range wantDirs {
		if s.ByDirection[i].Direction != want {
			t.Errorf("ByDirection[%d] = %s, want %s", i, s.ByDirection[i].Direction, want)
		}
	}

	if len(s.ByCommand) != 3 {
		t.Fatalf("ByCommand = %+v", s.ByCommand)
	}
	if s.ByCommand[0].Command != "VirtualMachine.IDSizes" || s.ByCommand[0].Count != 2 {
		t.Errorf("ByCommand[0] = %+v", s.ByCommand[0])
	}
	if s.ByCommand[2].Command != "ThreadReference.Name" {
		t.Errorf("ByCommand[2] = %+v", s.ByCommand[2])
	}
}

func TestStats_Empty(t *testing.T) {
	s := Stats(nil)
	if s.Records != 0 || s.ByDirection == nil || s.ByCommand == nil {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestDump(t *testing.T) {
	rows := Dump([]*types.TraceRecord{
		record("s-1", 1, types.DirectionFromDebugger, 1, 1),
		reply("s-1", 2, types.DirectionToDebugger, 0),
		record("s-1", 3, types.DirectionToDebugger, 64, 100),
	})
	tests := []struct {
		kind, command string
	}{
		{"command", "VirtualMachine.Version"},
		{"reply", ""},
		{"event", "Event.Composite"},
	}
	for i, tt := range tests {
		if rows[i].Kind != tt.kind || rows[i].Command != tt.command {
			t.Errorf("row %d = %+v, want %s %q", i, rows[i], tt.kind, tt.command)
		}
	}
}
