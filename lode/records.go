package lode

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pithecene-io/kdp/types"
)

// Record kinds stored in the dataset.
const (
	RecordKindPacket  = "packet"
	RecordKindSummary = "session_summary"
)

// DirectionSummary is the direction partition value of summary records.
const DirectionSummary = "summary"

// DeriveDay returns the day partition for a session start time (UTC).
func DeriveDay(start time.Time) string {
	return start.UTC().Format("2006-01-02")
}

// SummaryRecord is written once at the end of every archived session.
type SummaryRecord struct {
	SessionID     string
	VMAddr        string
	DebuggerAddr  string
	Outcome       string
	Message       string
	StartedAt     time.Time
	Duration      time.Duration
	Packets       int64
	ClassesCached int
}

// toPacketRecordMap converts a trace record to the map Lode's Hive layout
// partitions on.
func toPacketRecordMap(rec *types.TraceRecord, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":    RecordKindPacket,
		"format_version": rec.FormatVersion,
		"session_id":     rec.SessionID,
		"seq":            rec.Seq,
		"direction":      string(rec.Direction),
		"ts":             rec.Ts,
		"id":             rec.ID,
		"flags":          rec.Flags,
		"cmd_set":        rec.CmdSet,
		"cmd":            rec.Cmd,
		"error_code":     rec.ErrorCode,
		"payload":        base64.StdEncoding.EncodeToString(rec.Payload),
		"day":            cfg.Day,
	}
}

func toSummaryRecordMap(s SummaryRecord, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":    RecordKindSummary,
		"format_version": types.TraceFormatVersion,
		"session_id":     cfg.SessionID,
		"direction":      DirectionSummary,
		"vm_addr":        s.VMAddr,
		"debugger_addr":  s.DebuggerAddr,
		"outcome":        s.Outcome,
		"message":        s.Message,
		"started_at":     s.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":    s.Duration.Milliseconds(),
		"packets":        s.Packets,
		"classes_cached": s.ClassesCached,
		"day":            cfg.Day,
	}
}

// fromPacketRecordMap is the inverse of toPacketRecordMap for records read
// back through the JSONL codec, where numbers arrive as float64.
func fromPacketRecordMap(m map[string]any) (*types.TraceRecord, error) {
	if m["record_kind"] != RecordKindPacket {
		return nil, fmt.Errorf("record_kind %v is not %s", m["record_kind"], RecordKindPacket)
	}
	payload, err := base64.StdEncoding.DecodeString(toString(m["payload"]))
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return &types.TraceRecord{
		FormatVersion: toString(m["format_version"]),
		SessionID:     toString(m["session_id"]),
		Seq:           toInt64(m["seq"]),
		Direction:     types.Direction(toString(m["direction"])),
		Ts:            toString(m["ts"]),
		ID:            int32(toInt64(m["id"])),
		Flags:         uint8(toInt64(m["flags"])),
		CmdSet:        uint8(toInt64(m["cmd_set"])),
		Cmd:           uint8(toInt64(m["cmd"])),
		ErrorCode:     int16(toInt64(m["error_code"])),
		Payload:       payload,
	}, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case uint8:
		return int64(n)
	}
	return 0
}
