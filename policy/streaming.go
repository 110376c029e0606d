package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/kdp/log"
	"github.com/pithecene-io/kdp/types"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount flushes after N records accumulate. Zero disables it.
	FlushCount int

	// FlushInterval flushes on a timer. Zero disables it.
	FlushInterval time.Duration

	// Logger is optional.
	Logger *log.Logger
}

// FlushTrigger identifies what caused a flush.
type FlushTrigger string

const (
	FlushTriggerCount       FlushTrigger = "count"
	FlushTriggerInterval    FlushTrigger = "interval"
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when neither trigger is set.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy writes records continuously in small batches and never
// drops. A failed batch is put back in front of newer records and retried on
// the next trigger.
//
// mu guards the buffer and counters. flushMu serializes sink writes so the
// interval goroutine and a count trigger never write concurrently; the buffer
// is swapped out under mu so ingestion continues during a write.
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu          sync.Mutex
	buffer      []*types.TraceRecord
	bufferBytes int64
	stats       *statsRecorder

	flushMu sync.Mutex

	flushByCount       int64
	flushByInterval    int64
	flushByTermination int64

	stopCh  chan struct{}
	stopped bool
}

// NewStreamingPolicy creates a streaming policy and starts its interval
// goroutine when FlushInterval is set.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.TraceRecord, 0, 128),
		stats:  newStatsRecorder(),
		stopCh: make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		go p.intervalLoop()
	}
	return p, nil
}

// Ingest appends rec and flushes when the count trigger fires.
func (p *StreamingPolicy) Ingest(ctx context.Context, rec *types.TraceRecord) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	p.buffer = append(p.buffer, rec)
	p.bufferBytes += int64(rec.Size())
	p.stats.setBufferSizeLocked(p.bufferBytes)
	shouldFlush := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	if shouldFlush {
		return p.triggerFlush(ctx, FlushTriggerCount)
	}
	return nil
}

// Flush writes everything buffered (session end).
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerTermination:
		p.flushByTermination++
	}
	p.stats.incFlushLocked()

	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*types.TraceRecord, 0, 128)
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(trigger, len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()
	p.logFlush(trigger, len(batch))
	return nil
}

// Close stops the interval goroutine, flushes best-effort and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns a snapshot taken under the buffer mutex.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns how often each trigger fired.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerTermination: p.flushByTermination,
	}
}

func (p *StreamingPolicy) intervalLoop() {
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()
			if hasData {
				// failures are logged and retried on the next tick
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// recalculateBufferBytes requires mu.
func (p *StreamingPolicy) recalculateBufferBytes() {
	var total int64
	for _, rec := range p.buffer {
		total += int64(rec.Size())
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(total)
}

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, records int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("trace flush", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(trigger FlushTrigger, records int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("trace flush failed", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"error":   err.Error(),
		"policy":  "streaming",
	})
}

var _ Policy = (*StreamingPolicy)(nil)
