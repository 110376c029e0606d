package runtime

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/proxy"
	"github.com/pithecene-io/kdp/types"
)

func sampleResult() *SessionResult {
	return &SessionResult{
		Meta:      testMeta("sess-report"),
		Outcome:   &types.SessionOutcome{Status: types.OutcomeCompleted, Message: "session completed"},
		Stage:     StageRun,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Packets:   42,
		PolicyStats: policy.Stats{
			TotalRecords:     42,
			RecordsPersisted: 40,
			RecordsDropped:   2,
			DroppedByKind:    map[string]int64{"64/100": 2},
		},
		ClassesCached: 3,
		Options:       &proxy.Options{MethodIDSize: 8, VMVersion: "1.2.0", SupportsLineTable: true},
	}
}

func TestBuildSessionReport(t *testing.T) {
	snap := metrics.NewCollector("proxy", "buffered", "fs").Snapshot()
	rep := BuildSessionReport(sampleResult(), snap, "buffered")

	if rep.SessionID != "sess-report" || rep.Attempt != 1 || rep.VMAddr != "vm.local:2800" {
		t.Errorf("identity = %s/%d/%s", rep.SessionID, rep.Attempt, rep.VMAddr)
	}
	if rep.Outcome != types.OutcomeCompleted || rep.ExitCode != ExitCodeSuccess {
		t.Errorf("outcome = %s exit %d", rep.Outcome, rep.ExitCode)
	}
	if rep.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", rep.DurationMs)
	}
	if rep.StartedAt != "2026-03-01T12:00:00.000Z" {
		t.Errorf("StartedAt = %q", rep.StartedAt)
	}
	if rep.Trace.Policy != "buffered" || rep.Trace.RecordsDropped != 2 || rep.Trace.DroppedByKind["64/100"] != 2 {
		t.Errorf("trace = %+v", rep.Trace)
	}
	if rep.Options == nil || rep.Options.MethodIDSize != 8 || !rep.Options.LineTable {
		t.Errorf("options = %+v", rep.Options)
	}
	if rep.Metrics == nil || rep.Metrics.Policy != "buffered" {
		t.Errorf("metrics = %+v", rep.Metrics)
	}
}

func TestBuildSessionReport_NoOptions(t *testing.T) {
	result := sampleResult()
	result.Options = nil
	result.Outcome = &types.SessionOutcome{Status: types.OutcomeHandshakeFailed, Message: "handshake: bad"}

	rep := BuildSessionReport(result, metrics.Snapshot{}, PolicyNone)
	if rep.Options != nil {
		t.Errorf("options = %+v, want nil", rep.Options)
	}
	if rep.ExitCode != ExitCodeFailure {
		t.Errorf("ExitCode = %d, want %d", rep.ExitCode, ExitCodeFailure)
	}

	var buf bytes.Buffer
	if err := writeSessionReportTo(rep, &buf); err != nil {
		t.Fatalf("writeSessionReportTo: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if _, ok := m["options"]; ok {
		t.Error("options key present without negotiated options")
	}
	if m["outcome"] != "handshake_failed" {
		t.Errorf("outcome = %v", m["outcome"])
	}
}

func TestWriteSessionReport(t *testing.T) {
	dir := t.TempDir()
	path := ExpandSessionPath(filepath.Join(dir, "reports", "{session_id}.json"), "sess-report")
	rep := BuildSessionReport(sampleResult(), metrics.Snapshot{}, PolicyStrict)

	if err := WriteSessionReport(rep, path); err != nil {
		t.Fatalf("WriteSessionReport: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "reports", "sess-report.json"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got SessionReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SessionID != "sess-report" || got.Packets != 42 {
		t.Errorf("report = %+v", got)
	}
	if data[len(data)-1] != '\n' {
		t.Error("report lacks trailing newline")
	}
}

func TestWriteSessionReport_EmptyPath(t *testing.T) {
	if err := WriteSessionReport(&SessionReport{}, ""); err == nil {
		t.Fatal("expected error")
	}
}
