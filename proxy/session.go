package proxy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/pithecene-io/kdp/cache"
	"github.com/pithecene-io/kdp/classfile"
	"github.com/pithecene-io/kdp/jdwp"
)

// Vendor handshake option bits.
const (
	OptionMethodID8  int32 = 0x01
	OptionLineTable  int32 = 0x02
	OptionVarTable   int32 = 0x04
	OptionDisposeCmd int32 = 0x08
)

const knownOptionBits = OptionMethodID8 | OptionLineTable | OptionVarTable | OptionDisposeCmd

// VMs older than this number methods from 1.
const legacyIndexBaseVM = "1.1.0"

// Options are negotiated with the VM once per session.
type Options struct {
	MethodIDSize       int
	SupportsLineTable  bool
	SupportsVarTable   bool
	SupportsDisposeCmd bool
	// IndexBase is the number of the first method of a class, 0 or 1.
	IndexBase int
	VMVersion string
}

// DefaultOptions are assumed when negotiation fails.
func DefaultOptions() Options {
	return Options{MethodIDSize: 4}
}

// OptionsFromBits decodes the vendor handshake reply. The second result
// reports bits this proxy does not understand.
func OptionsFromBits(vmVersion string, bits int32) (Options, int32) {
	o := Options{
		MethodIDSize:       4,
		SupportsLineTable:  bits&OptionLineTable != 0,
		SupportsVarTable:   bits&OptionVarTable != 0,
		SupportsDisposeCmd: bits&OptionDisposeCmd != 0,
		IndexBase:          IndexBaseFor(vmVersion),
		VMVersion:          vmVersion,
	}
	if bits&OptionMethodID8 != 0 {
		o.MethodIDSize = 8
	}
	return o, bits &^ knownOptionBits
}

// Bits encodes o as vendor handshake option bits.
func (o Options) Bits() int32 {
	var bits int32
	if o.MethodIDSize == 8 {
		bits |= OptionMethodID8
	}
	if o.SupportsLineTable {
		bits |= OptionLineTable
	}
	if o.SupportsVarTable {
		bits |= OptionVarTable
	}
	if o.SupportsDisposeCmd {
		bits |= OptionDisposeCmd
	}
	return bits
}

// IndexBaseFor returns the method index base for a VM version string.
// Unparseable versions use 0.
func IndexBaseFor(vmVersion string) int {
	v, err := semver.NewVersion(vmVersion)
	if err != nil {
		return 0
	}
	if v.LessThan(semver.MustParse(legacyIndexBaseVM)) {
		return 1
	}
	return 0
}

// Config is the per-session proxy configuration.
type Config struct {
	// ProxyMode enables local handling. When false every packet is relayed.
	ProxyMode bool
	// LegacyResume expands VirtualMachine.Resume into one resume per
	// outstanding suspend.
	LegacyResume bool
	ClassPath    *classfile.Path
	// Description and version reported by VirtualMachine.Version.
	Description  string
	VersionMajor int32
	VersionMinor int32
	// VMVersion overrides the version string the VM reports, which selects
	// the method index base.
	VMVersion string
	// HandshakeTimeout bounds the vendor handshake. Zero means 5s.
	HandshakeTimeout time.Duration
}

// Session is the state shared by the two listeners of one debugging session.
type Session struct {
	ID     string
	Config Config
	Cache  *cache.Cache
	IDs    *jdwp.IDFactory

	ready     chan struct{}
	readyOnce sync.Once
	opts      Options

	frameMu     sync.Mutex
	frameBase   int32
	frameProbed bool

	suspends atomic.Int32
}

// NewSession creates a session. ids may be shared between sessions.
func NewSession(id string, cfg Config, ids *jdwp.IDFactory) *Session {
	if ids == nil {
		ids = jdwp.NewIDFactory()
	}
	return &Session{
		ID:     id,
		Config: cfg,
		Cache:  cache.New(),
		IDs:    ids,
		ready:  make(chan struct{}),
	}
}

// Publish records the negotiated options and releases all waiters.
// Only the first call has an effect; it reports whether it was the first.
func (s *Session) Publish(o Options) bool {
	first := false
	s.readyOnce.Do(func() {
		s.opts = o
		close(s.ready)
		first = true
	})
	return first
}

// Options blocks until options are published or ctx is done.
func (s *Session) Options(ctx context.Context) (Options, error) {
	select {
	case <-s.ready:
		return s.opts, nil
	case <-ctx.Done():
		return Options{}, ctx.Err()
	}
}

// OptionsIfReady returns the options without blocking.
func (s *Session) OptionsIfReady() (Options, bool) {
	select {
	case <-s.ready:
		return s.opts, true
	default:
		return Options{}, false
	}
}

// Ready is closed once options are published.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// methodIDSize returns the negotiated method id width, or 4 before negotiation.
func (s *Session) methodIDSize() int {
	if o, ok := s.OptionsIfReady(); ok && o.MethodIDSize != 0 {
		return o.MethodIDSize
	}
	return 4
}

func (s *Session) indexBase() int {
	o, _ := s.OptionsIfReady()
	return o.IndexBase
}

// FrameBase returns the probed frame id of the top frame.
func (s *Session) FrameBase() (int32, bool) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frameBase, s.frameProbed
}

func (s *Session) setFrameBase(base int32) {
	s.frameMu.Lock()
	s.frameBase = base
	s.frameProbed = true
	s.frameMu.Unlock()
}

// AddSuspend records one VM-wide suspension.
func (s *Session) AddSuspend() {
	s.suspends.Add(1)
}

// TakeSuspends returns the outstanding suspension count and resets it.
func (s *Session) TakeSuspends() int32 {
	return s.suspends.Swap(0)
}
