package proxy

import (
	"context"
	"sync"

	"github.com/pithecene-io/kdp/jdwp"
)

// PacketQueue is an unbounded FIFO of inbound packets.
//
// The receive loop is the producer and the dispatch loop the consumer. Close
// marks the end of input: packets enqueued before Close are still delivered,
// after which Dequeue returns ErrConnectionClosed.
type PacketQueue struct {
	mu     sync.Mutex
	items  []*jdwp.Packet
	wake   chan struct{}
	closed bool
}

// NewPacketQueue creates an empty queue.
func NewPacketQueue() *PacketQueue {
	return &PacketQueue{wake: make(chan struct{})}
}

// Enqueue appends p. It reports false if the queue is closed.
func (q *PacketQueue) Enqueue(p *jdwp.Packet) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, p)
	q.broadcastLocked()
	return true
}

// Dequeue removes the oldest packet, blocking while the queue is empty.
func (q *PacketQueue) Dequeue(ctx context.Context) (*jdwp.Packet, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			p := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return p, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, jdwp.Closed("dequeue")
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued packets.
func (q *PacketQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes all blocked consumers. It is idempotent.
func (q *PacketQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

func (q *PacketQueue) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}
