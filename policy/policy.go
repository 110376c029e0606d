// Package policy controls how packet trace records reach storage.
//
// A trace must never break the proxy: callers log and count policy errors
// and carry on. Only Event records may be dropped; commands and replies are
// always kept so a trace can be replayed as a conversation.
package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/kdp/types"
)

// Policy buffers, drops and persists trace records.
type Policy interface {
	// Ingest accepts one record. Records are persisted in ingestion order.
	Ingest(ctx context.Context, rec *types.TraceRecord) error

	// Flush writes any buffered records. Called at session end.
	Flush(ctx context.Context) error

	// Close flushes best-effort and closes the sink.
	Close() error

	// Stats returns a consistent snapshot of the policy counters.
	Stats() Stats
}

// Stats are policy observability counters.
type Stats struct {
	// TotalRecords is the number of records received.
	TotalRecords int64
	// RecordsPersisted is the number of records written to the sink.
	RecordsPersisted int64
	// RecordsDropped is the number of records dropped.
	RecordsDropped int64
	// DroppedByKind maps TraceRecord.Kind to drop counts.
	DroppedByKind map[string]int64
	// BufferSize is the buffered size in bytes (buffered policies).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the number of failed sink writes or rejected records.
	Errors int64
}

// IsDroppable reports whether a policy may drop rec.
func IsDroppable(rec *types.TraceRecord) bool {
	return rec.IsEvent()
}

// statsRecorder holds Stats under a mutex.
//
// StrictPolicy and NoopPolicy use the locking methods. Buffered and streaming
// policies use the Locked methods while holding their own buffer mutex, so
// buffer state and counters change atomically.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{stats: Stats{DroppedByKind: make(map[string]int64)}}
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods; caller holds the policy buffer mutex ---

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.RecordsPersisted += n
}

func (r *statsRecorder) incDroppedLocked(kind string) {
	r.stats.RecordsDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByKind = make(map[string]int64, len(r.stats.DroppedByKind))
	for k, v := range r.stats.DroppedByKind {
		s.DroppedByKind[k] = v
	}
	return s
}
