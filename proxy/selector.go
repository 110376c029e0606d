package proxy

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/types"
)

// Selector picks the VM each new debugger session is relayed to.
// Safe for concurrent use.
type Selector struct {
	mu      sync.Mutex
	pool    *types.VMPool
	rrIndex int64
	sticky  map[string]stickyEntry
	now     func() time.Time
}

type stickyEntry struct {
	endpointIdx int
	expiresAt   time.Time // zero means no expiry
}

// NewSelector validates pool and logs its warnings.
func NewSelector(pool *types.VMPool, logger *log.Logger) (*Selector, error) {
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("vm pool: %w", err)
	}
	for _, w := range pool.Warnings() {
		logger.Warn(w, map[string]any{"pool": pool.Name})
	}
	return &Selector{
		pool:   pool,
		sticky: make(map[string]stickyEntry),
		now:    time.Now,
	}, nil
}

// SingleVM is a pool holding one endpoint.
func SingleVM(ep types.VMEndpoint) *types.VMPool {
	return &types.VMPool{
		Name:      "default",
		Strategy:  types.VMStrategyRoundRobin,
		Endpoints: []types.VMEndpoint{ep},
	}
}

// SelectRequest describes the session a VM is chosen for.
type SelectRequest struct {
	// DebuggerHost keys sticky assignment.
	DebuggerHost string
	// Commit advances rotation state. When false Select only peeks.
	Commit bool
}

// Select returns the endpoint for req.
func (s *Selector) Select(req SelectRequest) (types.VMEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		idx int
		err error
	)
	switch s.pool.Strategy {
	case types.VMStrategyRoundRobin:
		idx = s.roundRobin(req.Commit)
	case types.VMStrategyRandom:
		idx, err = s.random()
	case types.VMStrategySticky:
		idx, err = s.stickyFor(req)
	default:
		err = fmt.Errorf("unknown strategy %q", s.pool.Strategy)
	}
	if err != nil {
		return types.VMEndpoint{}, err
	}
	return s.pool.Endpoints[idx], nil
}

func (s *Selector) roundRobin(commit bool) int {
	idx := int(s.rrIndex % int64(len(s.pool.Endpoints)))
	if commit {
		s.rrIndex++
	}
	return idx
}

func (s *Selector) random() (int, error) {
	n := len(s.pool.Endpoints)
	if n == 1 {
		return 0, nil
	}
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random selection failed: %w", err)
	}
	return int(i.Int64()), nil
}

// stickyFor keeps a debugger host on the VM it was first given until the
// entry expires.
func (s *Selector) stickyFor(req SelectRequest) (int, error) {
	if req.DebuggerHost == "" {
		return 0, errors.New("sticky selection requires the debugger host")
	}
	now := s.now()
	if e, ok := s.sticky[req.DebuggerHost]; ok {
		if e.expiresAt.IsZero() || e.expiresAt.After(now) {
			return e.endpointIdx, nil
		}
		delete(s.sticky, req.DebuggerHost)
	}

	idx, err := s.random()
	if err != nil {
		return 0, err
	}
	if req.Commit {
		e := stickyEntry{endpointIdx: idx}
		if s.pool.Sticky != nil && s.pool.Sticky.TTLMs != nil {
			e.expiresAt = now.Add(time.Duration(*s.pool.Sticky.TTLMs) * time.Millisecond)
		}
		s.sticky[req.DebuggerHost] = e
	}
	return idx, nil
}

// SelectorStats is a view of rotation state.
type SelectorStats struct {
	RoundRobinIndex int64
	StickyEntries   int
}

// Stats returns the rotation state.
func (s *Selector) Stats() SelectorStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SelectorStats{RoundRobinIndex: s.rrIndex, StickyEntries: len(s.sticky)}
}

// CleanExpiredSticky drops expired sticky entries. The multi-VM loop calls it
// between sessions.
func (s *Selector) CleanExpiredSticky() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for host, e := range s.sticky {
		if !e.expiresAt.IsZero() && e.expiresAt.Before(now) {
			delete(s.sticky, host)
		}
	}
}
