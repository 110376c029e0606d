package reader

import (
	"strings"
	"testing"
)

func TestParseSummaryRecord(t *testing.T) {
	// JSON-read records carry float64 numbers.
	record := map[string]any{
		"record_kind":    "session_summary",
		"session_id":     "s-1",
		"day":            "2026-10-18",
		"vm_addr":        "10.0.0.5:2800",
		"debugger_addr":  "127.0.0.1:50112",
		"outcome":        "completed",
		"message":        "session completed",
		"started_at":     "2026-10-18T12:00:00Z",
		"duration_ms":    float64(1500),
		"packets":        float64(42),
		"classes_cached": int64(7),
	}

	s, err := ParseSummaryRecord(record)
	if err != nil {
		t.Fatalf("ParseSummaryRecord: %v", err)
	}
	if s.SessionID != "s-1" || s.Day != "2026-10-18" || s.Outcome != "completed" {
		t.Errorf("summary = %+v", s)
	}
	if s.DurationMs != 1500 || s.Packets != 42 || s.ClassesCached != 7 {
		t.Errorf("counts = %d/%d/%d", s.DurationMs, s.Packets, s.ClassesCached)
	}
}

func TestParseSummaryRecord_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"nil", nil, "nil record"},
		{"no session", map[string]any{"outcome": "completed"}, "session_id"},
		{"no outcome", map[string]any{"session_id": "s-1"}, "outcome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSummaryRecord(tt.record)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
