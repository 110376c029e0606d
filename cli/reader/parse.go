package reader

import "errors"

// ParseSummaryRecord converts a Lode summary record to a SessionSummary.
// Numbers arrive as int64 from direct writes and float64 from JSON reads.
func ParseSummaryRecord(record map[string]any) (*SessionSummary, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	s := &SessionSummary{
		SessionID:     toString(record["session_id"]),
		Day:           toString(record["day"]),
		VMAddr:        toString(record["vm_addr"]),
		DebuggerAddr:  toString(record["debugger_addr"]),
		Outcome:       toString(record["outcome"]),
		Message:       toString(record["message"]),
		StartedAt:     toString(record["started_at"]),
		DurationMs:    toInt64(record["duration_ms"]),
		Packets:       toInt64(record["packets"]),
		ClassesCached: toInt64(record["classes_cached"]),
	}

	// The write path always populates these.
	if s.SessionID == "" {
		return nil, errors.New("summary record missing required field: session_id")
	}
	if s.Outcome == "" {
		return nil, errors.New("summary record missing required field: outcome")
	}
	return s, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
