package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/types"
)

// SessionIDPlaceholder in a report or capture path is replaced by the
// session id, giving each session of a multi-VM loop its own file.
const SessionIDPlaceholder = "{session_id}"

// ExpandSessionPath substitutes SessionIDPlaceholder in path.
func ExpandSessionPath(path, sessionID string) string {
	return strings.ReplaceAll(path, SessionIDPlaceholder, sessionID)
}

// SessionReport is the structured JSON report written by --report.
type SessionReport struct {
	SessionID    string              `json:"session_id"`
	Attempt      int                 `json:"attempt"`
	VMAddr       string              `json:"vm_addr"`
	DebuggerAddr string              `json:"debugger_addr"`
	Outcome      types.OutcomeStatus `json:"outcome"`
	Message      string              `json:"message"`
	Stage        Stage               `json:"stage"`
	ExitCode     int                 `json:"exit_code"`
	StartedAt    string              `json:"started_at"`
	DurationMs   int64               `json:"duration_ms"`

	Packets       int64 `json:"packets"`
	ClassesCached int   `json:"classes_cached"`

	Options *ReportOptions    `json:"options,omitempty"`
	Trace   *ReportTrace      `json:"trace"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportOptions holds the negotiated session options.
type ReportOptions struct {
	VMVersion    string `json:"vm_version,omitempty"`
	MethodIDSize int    `json:"method_id_size"`
	LineTable    bool   `json:"line_table"`
	VarTable     bool   `json:"var_table"`
	Dispose      bool   `json:"dispose"`
	IndexBase    int    `json:"index_base"`
}

// ReportTrace holds trace policy stats.
type ReportTrace struct {
	Policy          string           `json:"policy"`
	RecordsReceived int64            `json:"records_received"`
	RecordsPersist  int64            `json:"records_persisted"`
	RecordsDropped  int64            `json:"records_dropped"`
	DroppedByKind   map[string]int64 `json:"dropped_by_kind,omitempty"`
	Failures        int64            `json:"failures"`
	CapturePath     string           `json:"capture_path,omitempty"`
	LodePath        string           `json:"lode_path,omitempty"`
}

// BuildSessionReport composes a report from a result and metrics snapshot.
// policyName is the trace policy name ("strict", "buffered", "streaming",
// "none").
func BuildSessionReport(result *SessionResult, snap metrics.Snapshot, policyName string) *SessionReport {
	report := &SessionReport{
		SessionID:     result.Meta.SessionID,
		Attempt:       result.Meta.Attempt,
		VMAddr:        result.Meta.VMAddr,
		DebuggerAddr:  result.Meta.DebuggerAddr,
		Outcome:       result.Outcome.Status,
		Message:       result.Outcome.Message,
		Stage:         result.Stage,
		ExitCode:      ExitCode(result.Outcome),
		StartedAt:     result.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		DurationMs:    result.Duration.Milliseconds(),
		Packets:       result.Packets,
		ClassesCached: result.ClassesCached,
		Trace: &ReportTrace{
			Policy:          policyName,
			RecordsReceived: result.PolicyStats.TotalRecords,
			RecordsPersist:  result.PolicyStats.RecordsPersisted,
			RecordsDropped:  result.PolicyStats.RecordsDropped,
			DroppedByKind:   result.PolicyStats.DroppedByKind,
			Failures:        result.TraceFailures,
		},
		Metrics: &snap,
	}
	if o := result.Options; o != nil {
		report.Options = &ReportOptions{
			VMVersion:    o.VMVersion,
			MethodIDSize: o.MethodIDSize,
			LineTable:    o.SupportsLineTable,
			VarTable:     o.SupportsVarTable,
			Dispose:      o.SupportsDisposeCmd,
			IndexBase:    o.IndexBase,
		}
	}
	return report
}

// MarshalSessionReport encodes report as indented JSON with a trailing newline.
func MarshalSessionReport(report *SessionReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteSessionReport writes the report as JSON to path.
// If path is "-", writes to stderr.
func WriteSessionReport(report *SessionReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeSessionReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := MarshalSessionReport(report)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeSessionReportTo(report *SessionReport, w io.Writer) error {
	data, err := MarshalSessionReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
