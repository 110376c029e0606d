package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/types"
)

// TraceError is a failure to record one traced packet. It is logged and
// counted, and never ends the session.
type TraceError struct {
	// Kind separates invalid records from policy failures.
	Kind TraceErrorKind
	// Seq is the sequence number of the record that failed.
	Seq int64
	Err error
}

// TraceErrorKind classifies trace errors.
type TraceErrorKind int

const (
	// TraceErrorRecord indicates a record that failed validation.
	TraceErrorRecord TraceErrorKind = iota
	// TraceErrorPolicy indicates the policy or its sink rejected the record.
	TraceErrorPolicy
)

func (k TraceErrorKind) String() string {
	switch k {
	case TraceErrorRecord:
		return "record"
	case TraceErrorPolicy:
		return "policy"
	}
	return "unknown"
}

func (e *TraceError) Error() string {
	return "trace " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *TraceError) Unwrap() error {
	return e.Err
}

// IsPolicyError reports whether err is a policy-side trace failure.
func IsPolicyError(err error) bool {
	var te *TraceError
	return errors.As(err, &te) && te.Kind == TraceErrorPolicy
}

// Tracer turns packets observed by the proxy into sequenced trace records.
// Its Observe method is a proxy.TraceFunc. Both listeners call it, so
// sequence assignment and ingestion happen under one lock: records reach
// the policy in seq order.
type Tracer struct {
	ctx       context.Context
	sessionID string
	policy    policy.Policy
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time

	mu       sync.Mutex
	seq      int64
	failures int64
	lastErr  error
}

// NewTracer creates a tracer for one session. pol may be nil, in which case
// packets are only counted. ctx bounds policy writes; it should outlive the
// session's own context so in-flight records are not lost at teardown.
func NewTracer(
	ctx context.Context,
	sessionID string,
	pol policy.Policy,
	logger *log.Logger,
	collector *metrics.Collector,
) *Tracer {
	return &Tracer{
		ctx:       ctx,
		sessionID: sessionID,
		policy:    pol,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
}

// Observe records p as seen in direction dir.
func (t *Tracer) Observe(dir types.Direction, p *jdwp.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	if t.policy == nil {
		return
	}

	rec := t.record(dir, p)
	if err := rec.Validate(); err != nil {
		t.failLocked(&TraceError{Kind: TraceErrorRecord, Seq: rec.Seq, Err: err})
		return
	}
	if err := t.policy.Ingest(t.ctx, rec); err != nil {
		t.failLocked(&TraceError{Kind: TraceErrorPolicy, Seq: rec.Seq, Err: err})
	}
}

func (t *Tracer) record(dir types.Direction, p *jdwp.Packet) *types.TraceRecord {
	rec := &types.TraceRecord{
		FormatVersion: types.TraceFormatVersion,
		SessionID:     t.sessionID,
		Seq:           t.seq,
		Direction:     dir,
		Ts:            t.now().UTC().Format(time.RFC3339Nano),
		ID:            p.ID,
		Flags:         p.Flags,
		ErrorCode:     int16(p.ErrorCode),
	}
	if !p.IsReply() {
		rec.CmdSet = p.CmdSet
		rec.Cmd = p.Cmd
	}
	if len(p.Data) > 0 {
		// sinks may hold records past the call
		rec.Payload = append([]byte(nil), p.Data...)
	}
	return rec
}

func (t *Tracer) failLocked(err *TraceError) {
	t.failures++
	t.lastErr = err
	t.collector.IncTraceSinkError()
	// first failure, then every thousandth
	if t.failures == 1 || t.failures%1000 == 0 {
		t.logger.Warn("trace record not persisted", map[string]any{
			"seq":      err.Seq,
			"kind":     err.Kind.String(),
			"failures": t.failures,
			"error":    err.Err.Error(),
		})
	}
}

// Packets returns the number of packets observed.
func (t *Tracer) Packets() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Failures returns the number of records that could not be persisted and
// the most recent failure.
func (t *Tracer) Failures() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures, t.lastErr
}
