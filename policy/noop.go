package policy

import (
	"context"

	"github.com/pithecene-io/kdp/types"
)

// NoopPolicy accepts records without persisting them. It is used when no
// trace sink is configured, so counters still describe the session.
// Event records count as dropped, everything else as persisted.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// Ingest counts rec.
func (p *NoopPolicy) Ingest(_ context.Context, rec *types.TraceRecord) error {
	p.stats.update(func(s *Stats) {
		s.TotalRecords++
		if IsDroppable(rec) {
			s.RecordsDropped++
			s.DroppedByKind[rec.Kind()]++
		} else {
			s.RecordsPersisted++
		}
	})
	return nil
}

// Flush counts the call.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.update(func(s *Stats) { s.FlushCount++ })
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
