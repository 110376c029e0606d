package lode

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/types"
)

// sharedFactory lets write and read datasets share one in-memory store.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// failingStore is a lode.Store whose writes fail with PutErr.
type failingStore struct {
	PutErr   error
	PutPaths []string
}

func (s *failingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutPaths = append(s.PutPaths, path)
	return s.PutErr
}

func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *failingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func testConfig(sessionID string) Config {
	return Config{Dataset: DefaultDataset, Day: "2026-10-18", SessionID: sessionID}
}

func packet(sessionID string, seq int64, dir types.Direction) *types.TraceRecord {
	return &types.TraceRecord{
		FormatVersion: types.TraceFormatVersion,
		SessionID:     sessionID,
		Seq:           seq,
		Direction:     dir,
		Ts:            "2026-10-18T12:00:00Z",
		ID:            -2147483647,
		CmdSet:        1,
		Cmd:           2,
		Payload:       []byte{0, 0, 0, 3, 'L', 'A', ';'},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", testConfig("s-1"), false},
		{"no dataset", Config{Day: "d", SessionID: "s"}, true},
		{"no day", Config{Dataset: "kdp", SessionID: "s"}, true},
		{"no session", Config{Dataset: "kdp", Day: "d"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_WriteAndReadSession(t *testing.T) {
	factory := sharedFactory(lode.NewMemory())
	ctx := t.Context()

	client, err := NewClient(testConfig("s-1"), factory)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	first := []*types.TraceRecord{
		packet("s-1", 1, types.DirectionFromDebugger),
		packet("s-1", 2, types.DirectionToVM),
	}
	second := []*types.TraceRecord{packet("s-1", 3, types.DirectionFromVM)}
	if err := client.WriteRecords(ctx, first); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}
	if err := client.WriteRecords(ctx, second); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	other, err := NewClient(testConfig("s-10"), factory)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.WriteRecords(ctx, []*types.TraceRecord{packet("s-10", 1, types.DirectionFromVM)}); err != nil {
		t.Fatal(err)
	}

	ds, err := NewReadDataset(DefaultDataset, factory)
	if err != nil {
		t.Fatalf("NewReadDataset: %v", err)
	}
	recs, err := ReadSession(ctx, ds, "s-1")
	if err != nil {
		t.Fatalf("ReadSession: %v", err)
	}

	var got []int64
	for _, r := range recs {
		got = append(got, r.Seq)
		if r.SessionID != "s-1" {
			t.Errorf("record from session %q", r.SessionID)
		}
	}
	if !slices.Equal(got, []int64{1, 2, 3}) {
		t.Fatalf("seqs = %v, want [1 2 3]", got)
	}
	if recs[1].Direction != types.DirectionToVM || recs[1].ID != -2147483647 {
		t.Errorf("record 2 = %+v", recs[1])
	}
	if string(recs[0].Payload) != string(first[0].Payload) {
		t.Errorf("payload = %v", recs[0].Payload)
	}
}

func TestClient_RejectsForeignSession(t *testing.T) {
	client, err := NewClient(testConfig("s-1"), lode.NewMemoryFactory())
	if err != nil {
		t.Fatal(err)
	}
	err = client.WriteRecords(t.Context(), []*types.TraceRecord{packet("s-2", 1, types.DirectionFromVM)})
	if err == nil {
		t.Fatal("expected error for record of another session")
	}
}

func TestQueryLatestSummary(t *testing.T) {
	factory := sharedFactory(lode.NewMemory())
	ctx := t.Context()

	for _, id := range []string{"s-1", "s-2"} {
		client, err := NewClient(testConfig(id), factory)
		if err != nil {
			t.Fatal(err)
		}
		err = client.WriteSummary(ctx, SummaryRecord{
			VMAddr:        "127.0.0.1:2800",
			Outcome:       string(types.OutcomeCompleted),
			StartedAt:     time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
			Duration:      1500 * time.Millisecond,
			Packets:       42,
			ClassesCached: 7,
		})
		if err != nil {
			t.Fatalf("WriteSummary: %v", err)
		}
	}

	ds, err := NewReadDataset(DefaultDataset, factory)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := QueryLatestSummary(ctx, ds, "s-1")
	if err != nil {
		t.Fatalf("QueryLatestSummary: %v", err)
	}
	if rec["session_id"] != "s-1" || toInt64(rec["packets"]) != 42 || toInt64(rec["duration_ms"]) != 1500 {
		t.Errorf("summary = %v", rec)
	}

	latest, err := QueryLatestSummary(ctx, ds, "")
	if err != nil {
		t.Fatalf("QueryLatestSummary latest: %v", err)
	}
	if latest["session_id"] != "s-2" {
		t.Errorf("latest session = %v, want s-2", latest["session_id"])
	}

	if _, err := QueryLatestSummary(ctx, ds, "s-3"); !errors.Is(err, ErrNoSummaryFound) {
		t.Errorf("err = %v, want ErrNoSummaryFound", err)
	}
}

func TestClient_WriteFailureIsClassified(t *testing.T) {
	store := &failingStore{PutErr: errors.New("write /data/x: no space left on device")}
	client, err := NewClient(testConfig("s-1"), sharedFactory(store))
	if err != nil {
		t.Fatal(err)
	}

	err = client.WriteRecords(t.Context(), []*types.TraceRecord{packet("s-1", 1, types.DirectionFromVM)})
	if err == nil {
		t.Fatal("expected write error")
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %T %v, want *StorageError", err, err)
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("kind = %v, want ErrDiskFull", storageErr.Kind)
	}
	if storageErr.Op != "write" {
		t.Errorf("op = %q", storageErr.Op)
	}
}

func TestClient_PutFile(t *testing.T) {
	store := &failingStore{}
	client, err := NewClient(testConfig("s-1"), sharedFactory(store))
	if err != nil {
		t.Fatal(err)
	}

	if err := client.PutFile(t.Context(), "report.json", []byte("{}")); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	want := "datasets/kdp/partitions/day=2026-10-18/session_id=s-1/files/report.json"
	if len(store.PutPaths) != 1 || store.PutPaths[0] != want {
		t.Errorf("paths = %v, want %s", store.PutPaths, want)
	}

	for _, name := range []string{"", "../x", "a/b"} {
		if err := client.PutFile(t.Context(), name, nil); err == nil {
			t.Errorf("PutFile(%q) should fail", name)
		}
	}
}

func TestInstrumentedSink(t *testing.T) {
	collector := metrics.NewCollector("proxy", "strict", "lode")
	stub := policy.NewStubSink()
	sink := NewInstrumentedSink(stub, collector)
	recs := []*types.TraceRecord{packet("s-1", 1, types.DirectionFromVM)}

	_ = sink.WriteRecords(t.Context(), recs)
	stub.SetError(errors.New("boom"))
	_ = sink.WriteRecords(t.Context(), recs)
	_ = sink.Close()

	snap := collector.Snapshot()
	if snap.StorageWriteSuccess != 1 || snap.StorageWriteFailure != 1 {
		t.Errorf("success=%d failure=%d", snap.StorageWriteSuccess, snap.StorageWriteFailure)
	}
	if !stub.Closed {
		t.Error("inner sink not closed")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"open /x: permission denied", ErrPermissionDenied},
		{"AccessDenied: Access Denied status code: 403", ErrAccessDenied},
		{"open /x: no such file or directory", ErrNotFound},
		{"NoSuchBucket: bucket missing", ErrNotFound},
		{"write: no space left on device", ErrDiskFull},
		{"SlowDown: please reduce your request rate", ErrThrottled},
		{"NoCredentialProviders: no valid providers", ErrAuth},
		{"context deadline exceeded", ErrTimeout},
		{"dial tcp 10.0.0.1:443: connection refused", ErrNetwork},
		{"something odd", ErrUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := WrapWriteError(errors.New(tt.msg), "p")
			if !errors.Is(err, tt.want) {
				t.Errorf("classified %q as %v, want %v", tt.msg, err, tt.want)
			}
		})
	}
	if WrapReadError(nil, "p") != nil {
		t.Error("nil error must stay nil")
	}
}

func TestS3Config(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty bucket should fail validation")
	}

	tests := []struct {
		in, bucket, prefix string
	}{
		{"traces", "traces", ""},
		{"traces/kdp/prod", "traces", "kdp/prod"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.in, b, p)
		}
	}
}

func TestDeriveDay(t *testing.T) {
	ts := time.Date(2026, 10, 18, 23, 30, 0, 0, time.FixedZone("X", -3*3600))
	if got := DeriveDay(ts); got != "2026-10-19" {
		t.Errorf("DeriveDay = %s, want 2026-10-19", got)
	}
}

func TestSnapshotMatchesFilter(t *testing.T) {
	snap := &lode.DatasetSnapshot{
		ID: "snap-1",
		Manifest: &lode.Manifest{Files: []lode.FileRef{
			{Path: "datasets/kdp/partitions/day=2026-10-18/session_id=s-10/direction=to_vm/data.jsonl"},
		}},
	}
	tests := []struct {
		key, value string
		want       bool
	}{
		{"session_id", "", true},
		{"session_id", "s-10", true},
		{"session_id", "s-1", false},
		{"direction", "to_vm", true},
		{"direction", DirectionSummary, false},
	}
	for _, tt := range tests {
		if got := snapshotMatchesFilter(snap, tt.key, tt.value); got != tt.want {
			t.Errorf("snapshotMatchesFilter(%s=%s) = %v, want %v", tt.key, tt.value, got, tt.want)
		}
	}
}
