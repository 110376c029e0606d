// Package proxy implements the two-sided JDWP relay: one Listener faces the
// debugger, the other faces the VM, and each forwards what it does not answer
// itself to its peer.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/metrics"
	"github.com/pithecene-io/kdp/types"
)

// Side identifies which connection a Listener owns.
type Side uint8

const (
	SideDebugger Side = iota
	SideVM
)

func (s Side) String() string {
	if s == SideVM {
		return "vm"
	}
	return "debugger"
}

// State is the lifecycle state of a Listener.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateReady
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// TraceFunc observes every packet read or written by a listener.
// It runs on the listener's goroutines and must not block for long.
type TraceFunc func(dir types.Direction, p *jdwp.Packet)

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(li *Listener) { li.logger = l.With(li.side.String()) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(li *Listener) { li.metrics = m }
}

// WithTrace sets the packet trace hook.
func WithTrace(fn TraceFunc) Option {
	return func(li *Listener) { li.trace = fn }
}

type cmdKey struct {
	set, cmd uint8
}

type handlerFunc func(ctx context.Context, p *jdwp.Packet) error

// errForward tells the dispatcher to relay the packet to the peer unchanged.
var errForward = errors.New("forward to peer")

// Listener owns one connection: a receive loop feeding a PacketQueue and a
// ReplyRegistry, and a dispatch loop answering or forwarding queued packets.
type Listener struct {
	side      Side
	transport *Transport
	queue     *PacketQueue
	registry  *ReplyRegistry
	session   *Session
	peer      *Listener
	handlers  map[cmdKey]handlerFunc

	logger  *log.Logger
	metrics *metrics.Collector
	trace   TraceFunc

	state    atomic.Int32
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func newListener(side Side, t *Transport, s *Session, opts ...Option) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		side:      side,
		transport: t,
		queue:     NewPacketQueue(),
		registry:  NewReplyRegistry(),
		session:   s,
		logger:    log.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Side returns the side this listener faces.
func (l *Listener) Side() Side {
	return l.side
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

func (l *Listener) stopping() bool {
	return l.State() >= StateStopping
}

// Handshake exchanges "JDWP-Handshake" with the remote end. The debugger side
// receives then echoes; the VM side sends then receives.
func (l *Listener) Handshake() error {
	var err error
	if l.side == SideDebugger {
		err = l.transport.Accept()
	} else {
		err = l.transport.Initiate()
	}
	if err != nil {
		l.Stop()
		return fmt.Errorf("%s handshake: %w", l.side, err)
	}
	l.state.CompareAndSwap(int32(StateAwaitingHandshake), int32(StateReady))
	l.logger.Debug("handshake complete", map[string]any{"remote": l.transport.RemoteAddr()})
	return nil
}

// Run starts the receive and dispatch loops and blocks until both exit.
// Cancelling ctx stops the listener. An orderly close by the remote end
// returns nil.
func (l *Listener) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateReady), int32(StateRunning)) {
		return fmt.Errorf("%s listener: run in state %s", l.side, l.State())
	}
	stop := context.AfterFunc(ctx, l.Stop)
	defer stop()

	var g errgroup.Group
	g.Go(l.receiveLoop)
	g.Go(l.dispatchLoop)
	err := g.Wait()

	l.Stop()
	l.state.Store(int32(StateStopped))
	return err
}

// receiveLoop reads packets until the connection fails. Replies to
// proxy-issued requests go to the registry and are dropped when nothing waits
// for them; everything else goes to the queue.
func (l *Listener) receiveLoop() error {
	for {
		p, err := l.transport.ReadPacket()
		if err != nil {
			wasStopping := l.stopping()
			l.Stop()
			if wasStopping || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, jdwp.ErrMalformedPacket) {
				l.metrics.IncDecodeError()
			}
			return fmt.Errorf("%s receive: %w", l.side, err)
		}

		l.observe(p, true)

		if p.IsReply() && p.ID < 0 {
			if !l.registry.Resolve(p) {
				// the waiter timed out or was canceled; only the proxy
				// issues negative ids, so nobody else can take it
				l.metrics.IncStaleReply()
				l.logger.Debug("dropped reply with no waiter", map[string]any{
					"id":         p.ID,
					"error_code": p.ErrorCode,
				})
			}
			continue
		}
		l.queue.Enqueue(p)
	}
}

// dispatchLoop handles queued packets until the queue closes, then stops the
// peer so neither side is left half open.
func (l *Listener) dispatchLoop() error {
	defer func() {
		if l.peer != nil {
			l.peer.Stop()
		}
	}()

	for {
		p, err := l.queue.Dequeue(l.ctx)
		if err != nil {
			return nil
		}
		if err := l.dispatch(p); err != nil {
			l.Stop()
			if errors.Is(err, jdwp.ErrConnectionClosed) || l.stopping() && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// dispatch routes one packet. Only connection-level failures are returned;
// command failures become error replies to the requester.
func (l *Listener) dispatch(p *jdwp.Packet) error {
	if p.IsReply() || !l.session.Config.ProxyMode {
		return l.forward(p)
	}
	h, ok := l.handlers[cmdKey{p.CmdSet, p.Cmd}]
	if !ok {
		return l.forward(p)
	}

	err := h(l.ctx, p)
	switch {
	case err == nil:
		l.metrics.IncAnsweredLocally()
		return nil
	case errors.Is(err, errForward):
		return l.forward(p)
	case jdwp.IsConnectionError(err), errors.Is(err, context.Canceled) && l.stopping():
		return err
	}

	code := jdwp.CodeOf(err)
	l.metrics.IncHandlerError()
	if errors.Is(err, jdwp.ErrTruncatedPacket) {
		l.metrics.IncDecodeError()
	}
	l.logger.Debug("command failed", map[string]any{
		"id":      p.ID,
		"cmd_set": p.CmdSet,
		"cmd":     p.Cmd,
		"code":    code,
		"error":   err.Error(),
	})
	return l.Send(jdwp.NewReply(p, code, nil))
}

// forward relays p unchanged to the peer.
func (l *Listener) forward(p *jdwp.Packet) error {
	l.metrics.IncForwarded()
	return l.peer.write(p)
}

// Send writes p to this listener's connection. Non-reply packets with a
// negative id are proxy-issued requests; they are registered so their reply
// is routed to WaitForReply instead of the queue.
func (l *Listener) Send(p *jdwp.Packet) error {
	if !p.IsReply() && p.ID < 0 {
		if err := l.registry.Register(p.ID); err != nil {
			return err
		}
		if err := l.write(p); err != nil {
			l.registry.forget(p.ID)
			return err
		}
		l.metrics.IncRoundTrip()
		return nil
	}
	return l.write(p)
}

func (l *Listener) write(p *jdwp.Packet) error {
	if l.stopping() {
		return jdwp.Closed("send " + l.side.String())
	}
	if err := l.transport.WritePacket(p); err != nil {
		l.Stop()
		return &jdwp.ProtocolError{Kind: jdwp.ErrConnectionClosed, Code: jdwp.ErrorVMDead, Op: "send " + l.side.String(), Err: err}
	}
	l.observe(p, false)
	return nil
}

// WaitForReply blocks until the reply to the proxy-issued request id arrives.
func (l *Listener) WaitForReply(ctx context.Context, id int32) (*jdwp.Packet, error) {
	return l.registry.Wait(ctx, id)
}

// Command starts a proxy-issued request on this listener's connection.
func (l *Listener) Command(cmdSet, cmd uint8) *jdwp.PacketStream {
	return jdwp.NewCommandStream(l, l.session.IDs.Next(), cmdSet, cmd, l.session.methodIDSize())
}

// Reply starts a reply to req on this listener's connection.
func (l *Listener) Reply(req *jdwp.Packet) *jdwp.PacketStream {
	return jdwp.NewReplyStream(l, req, l.session.methodIDSize())
}

// read wraps an inbound packet for decoding.
func (l *Listener) read(p *jdwp.Packet) *jdwp.PacketStream {
	return jdwp.NewReadStream(p, l.session.methodIDSize())
}

// vm returns the listener facing the VM.
func (l *Listener) vm() *Listener {
	if l.side == SideVM {
		return l
	}
	return l.peer
}

// Stop tears the listener down: the dispatch context is cancelled, queue and
// registry waiters are released with ErrConnectionClosed, and the socket is
// closed. It is idempotent and safe to call from any goroutine.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		l.state.Store(int32(StateStopping))
		l.cancel()
		l.queue.Close()
		l.registry.Close()
		_ = l.transport.Close()
		l.logger.Debug("listener stopping", nil)
	})
}

func (l *Listener) observe(p *jdwp.Packet, inbound bool) {
	var dir types.Direction
	switch {
	case l.side == SideDebugger && inbound:
		dir = types.DirectionFromDebugger
		l.metrics.IncPacketFromDebugger()
	case l.side == SideDebugger:
		dir = types.DirectionToDebugger
		l.metrics.IncPacketToDebugger()
	case inbound:
		dir = types.DirectionFromVM
		l.metrics.IncPacketFromVM()
	default:
		dir = types.DirectionToVM
		l.metrics.IncPacketToVM()
	}

	if l.logger.PacketsEnabled() {
		l.logger.Debug("packet", map[string]any{
			"direction": dir,
			"packet":    p.String(),
		})
	}
	if l.trace != nil {
		l.trace(dir, p)
	}
}
