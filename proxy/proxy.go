package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/types"
)

const defaultHandshakeTimeout = 5 * time.Second

// Proxy pairs a debugger-facing and a VM-facing Listener over one Session.
type Proxy struct {
	Session  *Session
	Debugger *Listener
	VM       *Listener

	logger *log.Logger
}

// New wires the two listeners to each other. The transports must be fresh
// connections; Handshake runs the JDWP handshake on both.
func New(s *Session, debugger, vm *Transport, opts ...Option) *Proxy {
	d := newListener(SideDebugger, debugger, s, opts...)
	v := newListener(SideVM, vm, s, opts...)
	d.peer, v.peer = v, d
	d.handlers = debuggerHandlers(d)
	v.handlers = vmHandlers(v)

	return &Proxy{
		Session:  s,
		Debugger: d,
		VM:       v,
		logger:   v.logger,
	}
}

// Handshake performs the debugger-side then the VM-side handshake.
// On failure both connections are closed.
func (p *Proxy) Handshake() error {
	if err := p.Debugger.Handshake(); err != nil {
		p.VM.Stop()
		return err
	}
	if err := p.VM.Handshake(); err != nil {
		p.Debugger.Stop()
		return err
	}
	return nil
}

// Run runs both listeners and the option negotiation until the session ends.
// It returns nil when either side closed its connection in an orderly way.
func (p *Proxy) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Debugger.Run(gctx) })
	g.Go(func() error { return p.VM.Run(gctx) })
	g.Go(func() error {
		p.negotiate(gctx)
		return nil
	})
	return g.Wait()
}

// Stop tears down both listeners.
func (p *Proxy) Stop() {
	p.Debugger.Stop()
	p.VM.Stop()
}

// negotiate runs the vendor handshake and publishes the session options.
// Any failure publishes defaults; only a closed connection skips the warning.
func (p *Proxy) negotiate(ctx context.Context) {
	cfg := p.Session.Config
	if !cfg.ProxyMode {
		p.Session.Publish(DefaultOptions())
		return
	}

	opts, err := p.requestOptions(ctx)
	if err != nil {
		if !jdwp.IsConnectionError(err) && ctx.Err() == nil {
			p.logger.Warn("vendor handshake failed, assuming defaults", map[string]any{
				"error": err.Error(),
			})
		}
		opts = DefaultOptions()
		if cfg.VMVersion != "" {
			opts.IndexBase = IndexBaseFor(cfg.VMVersion)
			opts.VMVersion = cfg.VMVersion
		}
	}

	if p.Session.Publish(opts) {
		p.logger.Info("options negotiated", map[string]any{
			"vm_version":     opts.VMVersion,
			"method_id_size": opts.MethodIDSize,
			"line_table":     opts.SupportsLineTable,
			"var_table":      opts.SupportsVarTable,
			"dispose":        opts.SupportsDisposeCmd,
			"index_base":     opts.IndexBase,
		})
	}
}

func (p *Proxy) requestOptions(ctx context.Context) (Options, error) {
	cfg := p.Session.Config
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := p.VM.Command(jdwp.CmdSetKVM, jdwp.KVMHandshake)
	req.WriteString(describe(cfg))
	req.WriteUint8(uint8(versionMajor(cfg)))
	req.WriteUint8(uint8(versionMinor(cfg)))

	r, err := req.WaitForReply(ctx)
	if err != nil {
		var vmErr *jdwp.VMError
		if errors.As(err, &vmErr) {
			return Options{}, &jdwp.ProtocolError{Kind: jdwp.ErrProtocolVersionMismatch, Op: "vendor handshake", Err: err}
		}
		return Options{}, err
	}

	vmVersion := r.ReadString()
	bits := r.ReadInt32()
	if r.Err() != nil {
		return Options{}, &jdwp.ProtocolError{Kind: jdwp.ErrProtocolVersionMismatch, Op: "vendor handshake", Err: r.Err()}
	}
	if cfg.VMVersion != "" {
		vmVersion = cfg.VMVersion
	}

	opts, unknown := OptionsFromBits(vmVersion, bits)
	if unknown != 0 {
		p.logger.Warn("vendor handshake reported unknown options", map[string]any{
			"error": jdwp.ErrProtocolVersionMismatch.Error(),
			"bits":  fmt.Sprintf("%#x", unknown),
		})
	}
	return opts, nil
}

func describe(cfg Config) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return types.VMDescription
}

func versionMajor(cfg Config) int32 {
	if cfg.VersionMajor != 0 {
		return cfg.VersionMajor
	}
	return types.JDWPMajor
}

func versionMinor(cfg Config) int32 {
	if cfg.VersionMajor != 0 {
		return cfg.VersionMinor
	}
	return types.JDWPMinor
}
