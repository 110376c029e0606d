package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/pithecene-io/kdp/types"
)

// Sink persists batches of trace records in order.
type Sink interface {
	WriteRecords(ctx context.Context, recs []*types.TraceRecord) error
	Close() error
}

// MultiSink writes every batch to each of its sinks in turn. A failing sink
// does not stop the others; the errors are joined.
type MultiSink []Sink

// WriteRecords writes recs to every sink.
func (m MultiSink) WriteRecords(ctx context.Context, recs []*types.TraceRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRecords(ctx, recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StubSink records writes in memory for tests.
type StubSink struct {
	mu sync.Mutex

	Records []*types.TraceRecord
	Batches int
	Closed  bool

	// ErrorOnWrite, if non-nil, is returned by WriteRecords.
	ErrorOnWrite error
}

// NewStubSink creates an empty StubSink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteRecords stores recs unless ErrorOnWrite is set.
func (s *StubSink) WriteRecords(_ context.Context, recs []*types.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}
	s.Batches++
	s.Records = append(s.Records, recs...)
	return nil
}

// Close marks the sink closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
	return nil
}

// SetError changes ErrorOnWrite.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Written returns a copy of the stored records.
func (s *StubSink) Written() []*types.TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.TraceRecord(nil), s.Records...)
}
