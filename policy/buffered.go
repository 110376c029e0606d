package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferRecords flushes once this many records are buffered.
	// Zero disables the count limit.
	MaxBufferRecords int

	// MaxBufferBytes flushes once the buffered size reaches this many bytes.
	// Zero disables the byte limit. At least one limit must be set.
	MaxBufferBytes int64

	// Logger is optional.
	Logger *log.Logger
}

// DefaultBufferedConfig returns the defaults used by the CLI.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferRecords: 1000,
		MaxBufferBytes:   4 * 1024 * 1024,
	}
}

// ErrBufferFull is returned when the buffer cannot be flushed and the record
// may not be dropped.
var ErrBufferFull = errors.New("trace buffer full: cannot accept non-droppable record")

// ErrInvalidConfig is returned when neither buffer limit is set.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferRecords or MaxBufferBytes must be set")

// BufferedPolicy batches records and writes a batch whenever a limit is
// reached. While the sink keeps failing the buffer stays full; Event records
// are then dropped, and buffered Event records are evicted to make room for
// commands and replies.
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex
	buffer      []*types.TraceRecord
	bufferBytes int64
	stats       *statsRecorder
}

// NewBufferedPolicy creates a buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferRecords <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.TraceRecord, 0, min(max(config.MaxBufferRecords, 64), 4096)),
		stats:  newStatsRecorder(),
	}, nil
}

// Ingest buffers rec, flushing first when the buffer is full.
func (p *BufferedPolicy) Ingest(ctx context.Context, rec *types.TraceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalLocked()
	size := int64(rec.Size())

	if !p.hasRoomLocked(size) {
		if err := p.flushLocked(ctx); err != nil {
			return p.overflowLocked(rec, size)
		}
	}
	p.appendLocked(rec, size)

	if p.fullLocked() {
		return p.flushLocked(ctx)
	}
	return nil
}

// overflowLocked applies the drop rules to rec when a flush failed.
func (p *BufferedPolicy) overflowLocked(rec *types.TraceRecord, size int64) error {
	if IsDroppable(rec) {
		p.stats.incDroppedLocked(rec.Kind())
		p.logDrop(rec, "buffer_full")
		return nil
	}
	for p.evictOldestDroppableLocked() {
		if p.hasRoomLocked(size) {
			p.appendLocked(rec, size)
			return nil
		}
	}
	p.stats.incErrorsLocked()
	if p.logger != nil {
		p.logger.Error("trace buffer overflow", map[string]any{
			"kind":   rec.Kind(),
			"policy": "buffered",
		})
	}
	return ErrBufferFull
}

func (p *BufferedPolicy) appendLocked(rec *types.TraceRecord, size int64) {
	p.buffer = append(p.buffer, rec)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// hasRoomLocked reports whether size more bytes and one more record fit.
func (p *BufferedPolicy) hasRoomLocked(size int64) bool {
	if p.config.MaxBufferRecords > 0 && len(p.buffer) >= p.config.MaxBufferRecords {
		return false
	}
	if p.config.MaxBufferBytes > 0 && p.bufferBytes+size > p.config.MaxBufferBytes {
		return false
	}
	return true
}

// fullLocked reports whether a limit has been reached.
func (p *BufferedPolicy) fullLocked() bool {
	if p.config.MaxBufferRecords > 0 && len(p.buffer) >= p.config.MaxBufferRecords {
		return true
	}
	return p.config.MaxBufferBytes > 0 && p.bufferBytes >= p.config.MaxBufferBytes
}

func (p *BufferedPolicy) evictOldestDroppableLocked() bool {
	for i, rec := range p.buffer {
		if !IsDroppable(rec) {
			continue
		}
		p.buffer = append(p.buffer[:i], p.buffer[i+1:]...)
		p.bufferBytes -= int64(rec.Size())
		p.stats.setBufferSizeLocked(p.bufferBytes)
		p.stats.incDroppedLocked(rec.Kind())
		p.logDrop(rec, "evicted_for_non_droppable")
		return true
	}
	return false
}

// Flush writes the buffer. On failure the buffer is kept for the next flush.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ctx)
}

func (p *BufferedPolicy) flushLocked(ctx context.Context) error {
	p.stats.incFlushLocked()
	if len(p.buffer) == 0 {
		return nil
	}
	if err := p.sink.WriteRecords(ctx, p.buffer); err != nil {
		p.stats.incErrorsLocked()
		if p.logger != nil {
			p.logger.Error("trace flush failed", map[string]any{
				"records": len(p.buffer),
				"error":   err.Error(),
				"policy":  "buffered",
			})
		}
		return err
	}
	p.stats.incPersistedLocked(int64(len(p.buffer)))
	p.buffer = make([]*types.TraceRecord, 0, cap(p.buffer))
	p.bufferBytes = 0
	p.stats.setBufferSizeLocked(0)
	return nil
}

// Close flushes best-effort and closes the sink.
func (p *BufferedPolicy) Close() error {
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns a snapshot taken under the buffer mutex.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(p.bufferBytes)
}

func (p *BufferedPolicy) logDrop(rec *types.TraceRecord, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("trace record dropped", map[string]any{
		"kind":   rec.Kind(),
		"reason": reason,
		"policy": "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
