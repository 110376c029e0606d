package runtime

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pithecene-io/kdp/iox"
	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/proxy"
	"github.com/pithecene-io/kdp/types"
)

// flushTimeout bounds the best-effort trace flush at session end.
const flushTimeout = 30 * time.Second

// DialFunc connects to a VM debug port. Used for test injection.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// DialTCP dials addr over TCP.
func DialTCP(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// SessionConfig configures a single debugging session.
type SessionConfig struct {
	// Meta is the session identity. VMAddr is dialed.
	Meta types.SessionMeta
	// Debugger is the accepted debugger connection. The runner owns it.
	Debugger net.Conn
	// Dial connects to the VM. If nil, DialTCP is used.
	Dial DialFunc
	// Proxy is the per-session proxy configuration.
	Proxy proxy.Config
	// IDs issues proxy-originated packet ids. Shared across sessions.
	IDs *jdwp.IDFactory
	// HandshakeTimeout bounds the JDWP handshake on both sides. Zero waits
	// until the session context ends.
	HandshakeTimeout time.Duration
	// Policy receives the packet trace. If nil, packets are only counted.
	Policy policy.Policy
	// Active tracks live sessions for classpath reloads. Optional.
	Active *ActiveSessions
	// Collector is the process metrics collector. Nil-safe.
	Collector *metrics.Collector
	// Logger is the base logger; session fields are bound by the runner.
	// If nil, logging is discarded.
	Logger *log.Logger
}

// SessionResult is the result of one debugging session.
type SessionResult struct {
	Meta      types.SessionMeta
	Outcome   *types.SessionOutcome
	Stage     Stage
	StartedAt time.Time
	Duration  time.Duration
	// Packets is the number of packets observed in either direction.
	Packets int64
	// ClassesCached is the number of classes the session cache resolved.
	ClassesCached int
	// PolicyStats is the trace policy statistics. Zero without a policy.
	PolicyStats policy.Stats
	// TraceFailures counts records the policy did not persist.
	TraceFailures int64
	// Options is the negotiated session options, when negotiation finished.
	Options *proxy.Options
}

// SessionRunner runs one debugging session end to end.
type SessionRunner struct {
	config    *SessionConfig
	logger    *log.Logger
	startTime time.Time
}

// NewSessionRunner creates a runner.
// Returns error if session metadata is invalid.
func NewSessionRunner(config *SessionConfig) (*SessionRunner, error) {
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session metadata: %w", err)
	}
	if config.Debugger == nil {
		return nil, fmt.Errorf("session %s: debugger connection is required", config.Meta.SessionID)
	}
	base := config.Logger
	if base == nil {
		base = log.NewNop()
	}
	return &SessionRunner{
		config: config,
		logger: base.WithSession(config.Meta),
	}, nil
}

// Execute runs the session until either side disconnects or ctx ends.
// Failures are reported through the result's outcome; the error return is
// reserved for programming errors and is currently always nil.
//
// Execution flow:
//  1. Dial the VM
//  2. Handshake with the debugger, then the VM
//  3. Run the listeners until the session ends
//  4. Flush the trace policy
//  5. Determine outcome
func (r *SessionRunner) Execute(ctx context.Context) (*SessionResult, error) {
	r.startTime = time.Now()
	cfg := r.config
	cfg.Collector.IncSessionStarted()

	r.logger.Info("starting session", map[string]any{
		"proxy_mode":    cfg.Proxy.ProxyMode,
		"legacy_resume": cfg.Proxy.LegacyResume,
	})

	dial := cfg.Dial
	if dial == nil {
		dial = DialTCP
	}
	vmConn, err := dial(ctx, cfg.Meta.VMAddr)
	if err != nil {
		iox.DiscardClose(cfg.Debugger)
		r.logger.Error("failed to dial VM", map[string]any{"error": err.Error()})
		return r.finish(ctx, StageDial, err, nil, nil), nil
	}

	session := proxy.NewSession(cfg.Meta.SessionID, cfg.Proxy, cfg.IDs)
	tracer := NewTracer(context.WithoutCancel(ctx), cfg.Meta.SessionID, cfg.Policy, r.logger, cfg.Collector)
	p := proxy.New(session,
		proxy.NewTransport(cfg.Debugger),
		proxy.NewTransport(vmConn),
		proxy.WithLogger(r.logger),
		proxy.WithMetrics(cfg.Collector),
		proxy.WithTrace(tracer.Observe),
	)

	if err := r.handshake(ctx, p); err != nil {
		p.Stop()
		r.logger.Error("handshake failed", map[string]any{"error": err.Error()})
		return r.finish(ctx, StageHandshake, err, session, tracer), nil
	}
	r.logger.Debug("handshake complete", nil)

	release := cfg.Active.add(session)
	runErr := p.Run(ctx)
	release()
	p.Stop()

	return r.finish(ctx, StageRun, runErr, session, tracer), nil
}

// handshake runs the blocking JDWP handshake, tearing the connections down
// if ctx ends or the timeout passes first.
func (r *SessionRunner) handshake(ctx context.Context, p *proxy.Proxy) error {
	hctx := ctx
	if r.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, r.config.HandshakeTimeout)
		defer cancel()
	}
	stop := context.AfterFunc(hctx, p.Stop)
	defer stop()

	if err := p.Handshake(); err != nil {
		if hctx.Err() != nil && ctx.Err() == nil {
			return fmt.Errorf("timed out after %s: %w", r.config.HandshakeTimeout, err)
		}
		return err
	}
	return nil
}

// finish flushes the trace policy and assembles the result.
func (r *SessionRunner) finish(
	ctx context.Context,
	stage Stage,
	err error,
	session *proxy.Session,
	tracer *Tracer,
) *SessionResult {
	cfg := r.config

	// Best effort on every termination path. WithoutCancel keeps context
	// values while ignoring the parent's cancellation.
	if cfg.Policy != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		if flushErr := cfg.Policy.Flush(flushCtx); flushErr != nil {
			r.logger.Warn("trace flush failed (best effort)", map[string]any{
				"error": flushErr.Error(),
			})
		}
		cancel()
	}

	result := &SessionResult{
		Meta:      cfg.Meta,
		Outcome:   DetermineOutcome(stage, err, ctx.Err()),
		Stage:     stage,
		StartedAt: r.startTime,
		Duration:  time.Since(r.startTime),
	}
	if session != nil {
		result.ClassesCached = session.Cache.Len()
		if opts, ok := session.OptionsIfReady(); ok {
			result.Options = &opts
		}
	}
	if tracer != nil {
		result.Packets = tracer.Packets()
		result.TraceFailures, _ = tracer.Failures()
	}
	if cfg.Policy != nil {
		result.PolicyStats = cfg.Policy.Stats()
		cfg.Collector.AbsorbPolicyStats(
			result.PolicyStats.TotalRecords,
			result.PolicyStats.RecordsPersisted,
			result.PolicyStats.RecordsDropped,
			result.PolicyStats.DroppedByKind,
		)
	}

	if result.Outcome.Status == types.OutcomeCompleted {
		cfg.Collector.IncSessionCompleted()
	} else {
		cfg.Collector.IncSessionFailed()
	}

	r.logger.Info("session ended", map[string]any{
		"outcome":        result.Outcome.Status,
		"message":        result.Outcome.Message,
		"stage":          stage,
		"duration":       result.Duration.String(),
		"packets":        result.Packets,
		"classes_cached": result.ClassesCached,
	})
	return result
}
