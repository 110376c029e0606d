package policy

import (
	"context"

	"github.com/pithecene-io/kdp/types"
)

// StrictPolicy writes every record through to the sink as it arrives.
// Nothing is buffered or dropped; the caller waits on sink latency.
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a strict policy over sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder()}
}

// Ingest writes rec immediately as a batch of one.
func (p *StrictPolicy) Ingest(ctx context.Context, rec *types.TraceRecord) error {
	p.stats.update(func(s *Stats) { s.TotalRecords++ })

	if err := p.sink.WriteRecords(ctx, []*types.TraceRecord{rec}); err != nil {
		p.stats.update(func(s *Stats) { s.Errors++ })
		return err
	}

	p.stats.update(func(s *Stats) { s.RecordsPersisted++ })
	return nil
}

// Flush only counts the call; nothing is buffered.
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.update(func(s *Stats) { s.FlushCount++ })
	return nil
}

// Close closes the sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
