package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	lodeapi "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/kdp/capture"
	"github.com/pithecene-io/kdp/lode"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/types"
)

// Trace policy names.
const (
	PolicyStrict    = "strict"
	PolicyBuffered  = "buffered"
	PolicyStreaming = "streaming"
	PolicyNone      = "none"
)

// reportFilename is the Lode sidecar holding the session report.
const reportFilename = "report.json"

// TraceConfig configures packet tracing for every session of a server.
type TraceConfig struct {
	// Policy is one of the Policy* names. Empty means strict when a sink
	// is configured and none otherwise.
	Policy string
	// CapturePath is a local capture file. It may contain
	// SessionIDPlaceholder; without it sessions append to one file.
	CapturePath string
	// Lode is the archive store factory. Nil disables Lode.
	Lode lodeapi.StoreFactory
	// Dataset is the Lode dataset id. Empty means lode.DefaultDataset.
	Dataset string
	// StorageBackend names the Lode backend for metrics ("fs", "s3").
	StorageBackend string

	Buffered  policy.BufferedConfig
	Streaming policy.StreamingConfig
}

// HasSink reports whether any trace sink is configured.
func (c *TraceConfig) HasSink() bool {
	return c != nil && (c.CapturePath != "" || c.Lode != nil)
}

// PolicyName returns the effective policy name.
func (c *TraceConfig) PolicyName() string {
	if !c.HasSink() {
		return PolicyNone
	}
	if c.Policy == "" {
		return PolicyStrict
	}
	return c.Policy
}

// Validate checks the policy name and its limits.
func (c *TraceConfig) Validate() error {
	if c == nil {
		return nil
	}
	switch c.PolicyName() {
	case PolicyNone, PolicyStrict:
	case PolicyBuffered:
		if c.Buffered.MaxBufferRecords <= 0 && c.Buffered.MaxBufferBytes <= 0 {
			return policy.ErrInvalidConfig
		}
	case PolicyStreaming:
		if c.Streaming.FlushCount <= 0 && c.Streaming.FlushInterval <= 0 {
			return policy.ErrStreamingInvalidConfig
		}
	default:
		return fmt.Errorf("unknown trace policy %q", c.Policy)
	}
	return nil
}

// SessionTrace is the trace plumbing of one session: a policy over a sink
// made of the capture writer and the Lode client.
type SessionTrace struct {
	Policy  policy.Policy
	Capture *capture.Writer
	Lode    *lode.Client
}

// Open builds the policy and sinks for one session. A nil config yields a
// no-op policy that only counts.
func (c *TraceConfig) Open(
	meta types.SessionMeta,
	start time.Time,
	logger *log.Logger,
	collector *metrics.Collector,
) (*SessionTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t := &SessionTrace{}
	if !c.HasSink() || c.PolicyName() == PolicyNone {
		t.Policy = policy.NewNoopPolicy()
		return t, nil
	}

	var sinks policy.MultiSink
	if c.CapturePath != "" {
		w, err := capture.Create(ExpandSessionPath(c.CapturePath, meta.SessionID))
		if err != nil {
			return nil, err
		}
		t.Capture = w
		sinks = append(sinks, w)
	}
	if c.Lode != nil {
		dataset := c.Dataset
		if dataset == "" {
			dataset = lode.DefaultDataset
		}
		client, err := lode.NewClient(lode.Config{
			Dataset:   dataset,
			Day:       lode.DeriveDay(start),
			SessionID: meta.SessionID,
		}, c.Lode)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		t.Lode = client
		sinks = append(sinks, lode.NewInstrumentedSink(client, collector))
	}

	var sink policy.Sink = sinks
	if len(sinks) == 1 {
		sink = sinks[0]
	}
	pol, err := c.newPolicy(sink, logger)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	t.Policy = pol
	return t, nil
}

func (c *TraceConfig) newPolicy(sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch c.PolicyName() {
	case PolicyBuffered:
		cfg := c.Buffered
		cfg.Logger = logger
		return policy.NewBufferedPolicy(sink, cfg)
	case PolicyStreaming:
		cfg := c.Streaming
		cfg.Logger = logger
		return policy.NewStreamingPolicy(sink, cfg)
	default:
		return policy.NewStrictPolicy(sink), nil
	}
}

// sessionPolicy returns the session policy, or nil without a trace.
func (t *SessionTrace) sessionPolicy() policy.Policy {
	if t == nil {
		return nil
	}
	return t.Policy
}

func (t *SessionTrace) lodeEnabled() bool {
	return t != nil && t.Lode != nil
}

// CapturePath returns the capture file path, or "".
func (t *SessionTrace) CapturePath() string {
	if t == nil || t.Capture == nil {
		return ""
	}
	return t.Capture.Path()
}

// LodePath returns the session's Lode partition path, or "".
func (t *SessionTrace) LodePath() string {
	if t == nil || t.Lode == nil {
		return ""
	}
	cfg := t.Lode.Config()
	return fmt.Sprintf("datasets/%s/partitions/day=%s/session_id=%s", cfg.Dataset, cfg.Day, cfg.SessionID)
}

// Finish archives the summary and report to Lode, when configured, then
// closes the policy and its sinks. Archive failures are returned joined;
// the trace itself has already been flushed by the session runner.
func (t *SessionTrace) Finish(ctx context.Context, result *SessionResult, report []byte) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.Lode != nil {
		summary := lode.SummaryRecord{
			SessionID:     result.Meta.SessionID,
			VMAddr:        result.Meta.VMAddr,
			DebuggerAddr:  result.Meta.DebuggerAddr,
			Outcome:       string(result.Outcome.Status),
			Message:       result.Outcome.Message,
			StartedAt:     result.StartedAt,
			Duration:      result.Duration,
			Packets:       result.Packets,
			ClassesCached: result.ClassesCached,
		}
		if err := t.Lode.WriteSummary(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("write session summary: %w", err))
		}
		if len(report) > 0 {
			if err := t.Lode.PutFile(ctx, reportFilename, report); err != nil {
				errs = append(errs, fmt.Errorf("write report sidecar: %w", err))
			}
		}
	}
	if t.Policy != nil {
		if err := t.Policy.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace: %w", err))
		}
	}
	return errors.Join(errs...)
}
