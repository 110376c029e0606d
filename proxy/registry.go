package proxy

import (
	"context"
	"sync"

	"github.com/pithecene-io/kdp/jdwp"
)

// ReplyRegistry correlates replies with the proxy-issued requests awaiting them.
//
// A request id is registered before the request is written, so a reply can
// never arrive ahead of its entry. The waiter removes the entry when it
// consumes the reply; Close releases every waiter with ErrConnectionClosed.
type ReplyRegistry struct {
	mu      sync.Mutex
	pending map[int32]chan *jdwp.Packet
	done    chan struct{}
	closed  bool
}

// NewReplyRegistry creates an empty registry.
func NewReplyRegistry() *ReplyRegistry {
	return &ReplyRegistry{
		pending: make(map[int32]chan *jdwp.Packet),
		done:    make(chan struct{}),
	}
}

// Register adds a pending entry for id.
func (r *ReplyRegistry) Register(id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return jdwp.Closed("register reply")
	}
	if _, ok := r.pending[id]; !ok {
		r.pending[id] = make(chan *jdwp.Packet, 1)
	}
	return nil
}

// Pending reports whether id has a registered waiter.
func (r *ReplyRegistry) Pending(id int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	return ok
}

// Resolve hands reply to its waiter. It reports false if nothing is pending
// for the reply's id, or a reply was already delivered.
func (r *ReplyRegistry) Resolve(reply *jdwp.Packet) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.pending[reply.ID]
	if !ok {
		return false
	}
	select {
	case ch <- reply:
		return true
	default:
		return false
	}
}

// Wait blocks until the reply for id arrives, the registry closes, or ctx is
// done. The entry is removed in every case.
func (r *ReplyRegistry) Wait(ctx context.Context, id int32) (*jdwp.Packet, error) {
	r.mu.Lock()
	ch, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return nil, jdwp.NotFound(jdwp.ErrorInternal, "wait for reply")
	}
	defer r.forget(id)

	select {
	case reply := <-ch:
		return reply, nil
	case <-r.done:
		// a reply may have landed just before teardown
		select {
		case reply := <-ch:
			return reply, nil
		default:
		}
		return nil, jdwp.Closed("wait for reply")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *ReplyRegistry) forget(id int32) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Len returns the number of pending entries.
func (r *ReplyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close releases all waiters. It is idempotent.
func (r *ReplyRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
}
