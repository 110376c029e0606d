package lode

import (
	"context"

	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/types"
)

// InstrumentedSink counts storage write outcomes on a metrics collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps inner.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRecords delegates and records success or failure.
func (s *InstrumentedSink) WriteRecords(ctx context.Context, recs []*types.TraceRecord) error {
	err := s.inner.WriteRecords(ctx, recs)
	if err != nil {
		s.collector.IncStorageWriteFailure()
	} else {
		s.collector.IncStorageWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
