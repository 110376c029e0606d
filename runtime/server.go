package runtime

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/kdp/adapter"
	"github.com/pithecene-io/kdp/iox"
	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/proxy"
	"github.com/pithecene-io/kdp/types"
)

// DefaultPublishTimeout bounds one adapter publish including retries.
const DefaultPublishTimeout = 30 * time.Second

// ServerConfig configures the accept loop.
type ServerConfig struct {
	// ListenAddr is the debugger-facing address, e.g. ":8000".
	ListenAddr string
	// Pool is the set of VMs sessions are routed to.
	Pool *types.VMPool
	// Multi keeps accepting after a session ends. Without it the server
	// returns after one session.
	Multi bool
	// Parallel is the maximum number of concurrent sessions in multi mode.
	// Values below 1 mean 1: the next debugger is accepted only after the
	// current session ends.
	Parallel int

	// Proxy is the per-session proxy configuration.
	Proxy proxy.Config
	// HandshakeTimeout bounds the JDWP handshake. Zero waits indefinitely.
	HandshakeTimeout time.Duration
	// Dial overrides VM dialing (tests).
	Dial DialFunc
	// WatchClassPath reloads changed class files into live sessions.
	WatchClassPath bool

	// Trace configures packet tracing. Nil disables it.
	Trace *TraceConfig
	// ReportPath writes a JSON report per session. It may contain
	// SessionIDPlaceholder. "-" writes to stderr.
	ReportPath string

	// Adapter publishes a session_completed event per session. Optional.
	Adapter adapter.Adapter
	// PublishTimeout bounds each publish. Zero means DefaultPublishTimeout.
	PublishTimeout time.Duration

	Collector *metrics.Collector
	Logger    *log.Logger

	// NewSessionID overrides session id generation (tests).
	NewSessionID func() string
	// OnResult is called after each session is fully reported. Optional.
	OnResult func(*SessionResult)
}

// ServeStats summarizes a Serve call.
type ServeStats struct {
	Sessions  int64
	Completed int64
	Failed    int64
	// Last is the result of the most recently finished session.
	Last *SessionResult
}

// Server accepts debugger connections and runs a proxied session for each.
type Server struct {
	config   ServerConfig
	logger   *log.Logger
	selector *proxy.Selector
	ids      *jdwp.IDFactory
	active   *ActiveSessions

	attempts  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	lastMu sync.Mutex
	last   *SessionResult
}

// NewServer validates config and builds the VM selector.
func NewServer(config ServerConfig) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	if config.Pool == nil {
		return nil, errors.New("a VM pool is required")
	}
	if err := config.Trace.Validate(); err != nil {
		return nil, err
	}
	selector, err := proxy.NewSelector(config.Pool, logger)
	if err != nil {
		return nil, err
	}
	if config.NewSessionID == nil {
		config.NewSessionID = func() string { return uuid.New().String() }
	}
	return &Server{
		config:   config,
		logger:   logger.With("server"),
		selector: selector,
		ids:      jdwp.NewIDFactory(),
		active:   NewActiveSessions(),
	}, nil
}

// ListenAndServe listens on ListenAddr and serves until ctx ends or, in
// single-session mode, the first session finishes.
func (s *Server) ListenAndServe(ctx context.Context) (*ServeStats, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		return nil, err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts debuggers on ln. It closes ln before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (*ServeStats, error) {
	defer iox.DiscardClose(ln)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := iox.CloseOnDone(ctx, ln)
	defer stop()

	s.logger.Info("listening for debuggers", map[string]any{
		"addr":     ln.Addr().String(),
		"pool":     s.config.Pool.Name,
		"vms":      len(s.config.Pool.Endpoints),
		"multi":    s.config.Multi,
		"parallel": s.parallel(),
	})

	var watchWG sync.WaitGroup
	if s.config.WatchClassPath {
		watchWG.Add(1)
		go func() {
			defer watchWG.Done()
			s.watchClassPath(ctx)
		}()
	}

	sem := make(chan struct{}, s.parallel())
	var wg sync.WaitGroup
	var acceptErr error

	for {
		// reserve a slot first so a saturated server stops accepting
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		conn, err := ln.Accept()
		if err != nil {
			<-sem
			if ctx.Err() == nil {
				acceptErr = err
				s.logger.Error("accept failed", map[string]any{"error": err.Error()})
			}
			break
		}

		attempt := int(s.attempts.Add(1))
		if !s.config.Multi {
			// single session: stop listening once the debugger is in
			stop()
			_ = ln.Close()
			s.serveConn(ctx, conn, attempt)
			<-sem
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.serveConn(ctx, conn, attempt)
		}()
	}

	wg.Wait()
	cancel()
	watchWG.Wait()

	return s.stats(), acceptErr
}

func (s *Server) parallel() int {
	if !s.config.Multi || s.config.Parallel < 1 {
		return 1
	}
	return s.config.Parallel
}

func (s *Server) stats() *ServeStats {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return &ServeStats{
		Sessions:  s.attempts.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Last:      s.last,
	}
}

// serveConn runs one session on an accepted debugger connection and then
// reports it: trace archive, report file, adapter event.
func (s *Server) serveConn(ctx context.Context, conn net.Conn, attempt int) {
	meta := types.SessionMeta{
		SessionID:    s.config.NewSessionID(),
		DebuggerAddr: conn.RemoteAddr().String(),
		Attempt:      attempt,
	}
	start := time.Now()

	ep, err := s.selector.Select(proxy.SelectRequest{
		DebuggerHost: hostOf(conn.RemoteAddr()),
		Commit:       true,
	})
	if err != nil {
		iox.DiscardClose(conn)
		s.logger.Error("VM selection failed", map[string]any{
			"session_id": meta.SessionID,
			"error":      err.Error(),
		})
		s.config.Collector.IncSessionStarted()
		s.config.Collector.IncSessionFailed()
		s.record(&SessionResult{
			Meta:      meta,
			Outcome:   DetermineOutcome(StageSelect, err, ctx.Err()),
			Stage:     StageSelect,
			StartedAt: start,
		}, nil)
		return
	}
	meta.VMAddr = ep.Addr()
	logger := s.logger.WithSession(meta)

	trace, err := s.config.Trace.Open(meta, start, logger, s.config.Collector)
	if err != nil {
		// tracing never blocks debugging
		logger.Warn("trace unavailable for session", map[string]any{"error": err.Error()})
		trace = nil
	}
	runner, err := NewSessionRunner(&SessionConfig{
		Meta:             meta,
		Debugger:         conn,
		Dial:             s.config.Dial,
		Proxy:            s.config.Proxy,
		IDs:              s.ids,
		HandshakeTimeout: s.config.HandshakeTimeout,
		Policy:           trace.sessionPolicy(),
		Active:           s.active,
		Collector:        s.config.Collector,
		Logger:           s.config.Logger,
	})
	if err != nil {
		iox.DiscardClose(conn)
		logger.Error("invalid session", map[string]any{"error": err.Error()})
		if trace != nil {
			iox.DiscardClose(trace.Policy)
		}
		return
	}

	result, _ := runner.Execute(ctx)
	s.record(result, trace)
}

// record archives, reports and publishes a finished session.
func (s *Server) record(result *SessionResult, trace *SessionTrace) {
	logger := s.logger.WithSession(result.Meta)
	// reporting runs after shutdown too
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout())
	defer cancel()

	var report []byte
	if s.config.ReportPath != "" || trace.lodeEnabled() {
		rep := BuildSessionReport(result, s.config.Collector.Snapshot(), s.config.Trace.PolicyName())
		rep.Trace.CapturePath = trace.CapturePath()
		rep.Trace.LodePath = trace.LodePath()
		if s.config.ReportPath != "" {
			path := s.config.ReportPath
			if path != "-" {
				path = ExpandSessionPath(path, result.Meta.SessionID)
			}
			if err := WriteSessionReport(rep, path); err != nil {
				logger.Warn("failed to write report", map[string]any{"error": err.Error()})
			}
		}
		if data, err := MarshalSessionReport(rep); err == nil {
			report = data
		}
	}

	if err := trace.Finish(ctx, result, report); err != nil {
		logger.Warn("trace finish failed", map[string]any{"error": err.Error()})
	}

	if s.config.Adapter != nil {
		event := newSessionCompletedEvent(result, trace)
		if err := s.config.Adapter.Publish(ctx, event); err != nil {
			logger.Warn("session notification failed", map[string]any{"error": err.Error()})
		}
	}

	if result.Outcome.Status == types.OutcomeCompleted {
		s.completed.Add(1)
	} else {
		s.failed.Add(1)
	}
	s.lastMu.Lock()
	s.last = result
	s.lastMu.Unlock()

	if s.config.OnResult != nil {
		s.config.OnResult(result)
	}
}

func (s *Server) publishTimeout() time.Duration {
	if s.config.PublishTimeout > 0 {
		return s.config.PublishTimeout
	}
	return DefaultPublishTimeout
}

// watchClassPath reloads changed class files into every live session.
func (s *Server) watchClassPath(ctx context.Context) {
	cp := s.config.Proxy.ClassPath
	if cp == nil {
		s.logger.Warn("classpath watching requested without a classpath", nil)
		return
	}
	w, err := cp.NewWatcher()
	if err != nil {
		s.logger.Warn("classpath watcher unavailable", map[string]any{"error": err.Error()})
		return
	}
	defer iox.DiscardClose(w)

	err = w.Run(ctx, func(name string) {
		n := s.active.Reload(name)
		s.logger.Debug("class file changed", map[string]any{
			"class":    name,
			"sessions": n,
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("classpath watcher stopped", map[string]any{"error": err.Error()})
	}
}

func newSessionCompletedEvent(result *SessionResult, trace *SessionTrace) *adapter.SessionCompletedEvent {
	tracePath := trace.CapturePath()
	if p := trace.LodePath(); p != "" {
		tracePath = p
	}
	return &adapter.SessionCompletedEvent{
		Version:       types.Version,
		EventType:     adapter.EventTypeSessionCompleted,
		SessionID:     result.Meta.SessionID,
		VMAddr:        result.Meta.VMAddr,
		DebuggerAddr:  result.Meta.DebuggerAddr,
		Outcome:       string(result.Outcome.Status),
		Message:       result.Outcome.Message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Attempt:       result.Meta.Attempt,
		DurationMs:    result.Duration.Milliseconds(),
		Packets:       result.Packets,
		ClassesCached: result.ClassesCached,
		TracePath:     tracePath,
	}
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// ActiveSessions tracks live sessions so classpath changes reach them.
type ActiveSessions struct {
	mu       sync.Mutex
	sessions map[string]*proxy.Session
}

// NewActiveSessions creates an empty set.
func NewActiveSessions() *ActiveSessions {
	return &ActiveSessions{sessions: make(map[string]*proxy.Session)}
}

// add registers s and returns its release func. Nil-receiver safe.
func (a *ActiveSessions) add(s *proxy.Session) (release func()) {
	if a == nil {
		return func() {}
	}
	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.sessions, s.ID)
		a.mu.Unlock()
	}
}

// Len returns the number of live sessions.
func (a *ActiveSessions) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Reload re-reads the class file of name into every live session that has
// the class cached. It returns the number of sessions updated.
func (a *ActiveSessions) Reload(name string) int {
	a.mu.Lock()
	live := make([]*proxy.Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		live = append(live, s)
	}
	a.mu.Unlock()

	n := 0
	for _, s := range live {
		if s.ReloadClass(name) {
			n++
		}
	}
	return n
}
