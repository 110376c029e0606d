package types //nolint:revive // types is a valid package name

import "testing"

func TestTraceRecord_Classification(t *testing.T) {
	tests := []struct {
		name    string
		rec     TraceRecord
		reply   bool
		event   bool
		kindStr string
	}{
		{"composite event", TraceRecord{CmdSet: 64, Cmd: 100}, false, true, "64/100"},
		{"command", TraceRecord{CmdSet: 1, Cmd: 7}, false, false, "1/7"},
		{"reply", TraceRecord{Flags: 0x80}, true, false, "reply"},
		{"reply with event set bits", TraceRecord{Flags: 0x80, CmdSet: 64}, true, false, "reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.IsReply(); got != tt.reply {
				t.Errorf("IsReply = %v, want %v", got, tt.reply)
			}
			if got := tt.rec.IsEvent(); got != tt.event {
				t.Errorf("IsEvent = %v, want %v", got, tt.event)
			}
			if got := tt.rec.Kind(); got != tt.kindStr {
				t.Errorf("Kind = %q, want %q", got, tt.kindStr)
			}
		})
	}
}

func TestTraceRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     TraceRecord
		wantErr bool
	}{
		{"valid", TraceRecord{SessionID: "s", Seq: 1, Direction: DirectionToVM}, false},
		{"empty session", TraceRecord{Seq: 1, Direction: DirectionToVM}, true},
		{"zero seq", TraceRecord{SessionID: "s", Direction: DirectionToVM}, true},
		{"bad direction", TraceRecord{SessionID: "s", Seq: 1, Direction: "sideways"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
