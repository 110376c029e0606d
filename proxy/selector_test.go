package proxy

import (
	"testing"
	"time"

	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/types"
)

func threeVMs(strategy types.VMStrategy) *types.VMPool {
	return &types.VMPool{
		Name:     "lab",
		Strategy: strategy,
		Endpoints: []types.VMEndpoint{
			{Host: "vm1", Port: 2800},
			{Host: "vm2", Port: 2800},
			{Host: "vm3", Port: 2800},
		},
	}
}

func TestSelector_RoundRobin(t *testing.T) {
	s, err := NewSelector(threeVMs(types.VMStrategyRoundRobin), log.NewNop())
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	want := []string{"vm1", "vm2", "vm3", "vm1"}
	for i, host := range want {
		ep, err := s.Select(SelectRequest{Commit: true})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if ep.Host != host {
			t.Errorf("select %d = %q, want %q", i, ep.Host, host)
		}
	}
}

func TestSelector_PeekDoesNotAdvance(t *testing.T) {
	s, _ := NewSelector(threeVMs(types.VMStrategyRoundRobin), log.NewNop())

	a, _ := s.Select(SelectRequest{})
	b, _ := s.Select(SelectRequest{})
	if a != b {
		t.Errorf("peeks differ: %v vs %v", a, b)
	}
	c, _ := s.Select(SelectRequest{Commit: true})
	if c != a {
		t.Errorf("commit = %v, want peeked %v", c, a)
	}
	if s.Stats().RoundRobinIndex != 1 {
		t.Errorf("RoundRobinIndex = %d, want 1", s.Stats().RoundRobinIndex)
	}
}

func TestSelector_Random(t *testing.T) {
	s, _ := NewSelector(threeVMs(types.VMStrategyRandom), log.NewNop())

	seen := make(map[string]bool)
	for range 100 {
		ep, err := s.Select(SelectRequest{Commit: true})
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		seen[ep.Host] = true
	}
	if len(seen) < 2 {
		t.Errorf("random selection only saw %d hosts", len(seen))
	}
}

func TestSelector_StickyPerDebuggerHost(t *testing.T) {
	s, _ := NewSelector(threeVMs(types.VMStrategySticky), log.NewNop())

	first, err := s.Select(SelectRequest{DebuggerHost: "10.0.0.5", Commit: true})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for range 10 {
		ep, _ := s.Select(SelectRequest{DebuggerHost: "10.0.0.5", Commit: true})
		if ep != first {
			t.Fatalf("sticky host moved from %v to %v", first, ep)
		}
	}
	if _, err := s.Select(SelectRequest{Commit: true}); err == nil {
		t.Error("sticky selection without a host succeeded")
	}
}

func TestSelector_StickyExpires(t *testing.T) {
	ttl := int64(50)
	pool := threeVMs(types.VMStrategySticky)
	pool.Sticky = &types.VMSticky{TTLMs: &ttl}
	s, _ := NewSelector(pool, log.NewNop())

	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	_, _ = s.Select(SelectRequest{DebuggerHost: "a", Commit: true})
	_, _ = s.Select(SelectRequest{DebuggerHost: "b", Commit: false})
	if n := s.Stats().StickyEntries; n != 1 {
		t.Fatalf("StickyEntries = %d, want 1", n)
	}

	now = now.Add(time.Second)
	s.CleanExpiredSticky()
	if n := s.Stats().StickyEntries; n != 0 {
		t.Errorf("StickyEntries after expiry = %d, want 0", n)
	}
}

func TestSelector_InvalidPool(t *testing.T) {
	pool := &types.VMPool{Name: "empty", Strategy: types.VMStrategyRandom}
	if _, err := NewSelector(pool, log.NewNop()); err == nil {
		t.Error("NewSelector accepted a pool without endpoints")
	}
}

func TestSingleVM(t *testing.T) {
	ep := types.VMEndpoint{Host: "localhost", Port: 2800}
	s, err := NewSelector(SingleVM(ep), log.NewNop())
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	got, _ := s.Select(SelectRequest{Commit: true})
	if got != ep {
		t.Errorf("Select = %v, want %v", got, ep)
	}
}
