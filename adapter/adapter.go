// Package adapter publishes session notifications to downstream systems.
//
// The runtime owns adapter lifecycle: it publishes one SessionCompletedEvent
// per finished debugging session and closes the adapter at shutdown.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypeSessionCompleted is the only event type published.
const EventTypeSessionCompleted = "session_completed"

// SessionCompletedEvent is the payload published when a session ends.
type SessionCompletedEvent struct {
	Version       string `json:"version"`
	EventType     string `json:"event_type"`
	SessionID     string `json:"session_id"`
	VMAddr        string `json:"vm_addr"`
	DebuggerAddr  string `json:"debugger_addr"`
	Outcome       string `json:"outcome"`
	Message       string `json:"message,omitempty"`
	Timestamp     string `json:"timestamp"`
	Attempt       int    `json:"attempt"`
	DurationMs    int64  `json:"duration_ms"`
	Packets       int64  `json:"packets"`
	ClassesCached int    `json:"classes_cached"`
	TracePath     string `json:"trace_path,omitempty"`
}

// Adapter publishes session completion events.
type Adapter interface {
	// Publish sends one event, honoring ctx cancellation and deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBaseBackoff is the delay before the first retry.
const DefaultBaseBackoff = 500 * time.Millisecond

// Backoff returns the delay before retry number retry (1-based): base,
// 2*base, 4*base and so on.
func Backoff(base time.Duration, retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return base << uint(retry-1)
}

// Retry calls attempt up to 1+retries times with exponential backoff
// between calls. It stops early when attempt succeeds, when permanent
// reports the error as not worth retrying, or when ctx ends.
func Retry(ctx context.Context, name string, retries int, base time.Duration, permanent func(error) bool, attempt func(context.Context) error) error {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(base, i)):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
