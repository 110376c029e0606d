// Package metrics provides per-process proxy counters.
//
// The Collector accumulates counters across the sessions of one proxy
// process. It is a leaf package with no internal dependencies. Trace
// ingestion counters are absorbed from policy.Stats at session end rather
// than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64 `json:"sessions_started"`
	SessionsCompleted int64 `json:"sessions_completed"`
	SessionsFailed    int64 `json:"sessions_failed"`

	// Packets by path
	PacketsFromDebugger int64 `json:"packets_from_debugger"`
	PacketsToDebugger   int64 `json:"packets_to_debugger"`
	PacketsFromVM       int64 `json:"packets_from_vm"`
	PacketsToVM         int64 `json:"packets_to_vm"`

	// Dispatch
	Forwarded       int64 `json:"forwarded"`
	AnsweredLocally int64 `json:"answered_locally"`
	RoundTrips      int64 `json:"round_trips"`
	HandlerErrors   int64 `json:"handler_errors"`
	DecodeErrors    int64 `json:"decode_errors"`
	StaleReplies    int64 `json:"stale_replies"`

	// Class metadata cache
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// Trace ingestion (absorbed from policy.Stats)
	TraceReceived   int64            `json:"trace_received"`
	TracePersisted  int64            `json:"trace_persisted"`
	TraceDropped    int64            `json:"trace_dropped"`
	DroppedByKind   map[string]int64 `json:"dropped_by_kind,omitempty"`
	TraceSinkErrors int64            `json:"trace_sink_errors"`

	// Storage backend writes (Lode)
	StorageWriteSuccess int64 `json:"storage_write_success"`
	StorageWriteFailure int64 `json:"storage_write_failure"`

	// Dimensions (informational, set at construction)
	Mode           string `json:"mode"`
	Policy         string `json:"policy"`
	StorageBackend string `json:"storage_backend"`
}

// Collector accumulates counters. Thread-safe via sync.Mutex.
// All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64

	packetsFromDebugger int64
	packetsToDebugger   int64
	packetsFromVM       int64
	packetsToVM         int64

	forwarded       int64
	answeredLocally int64
	roundTrips      int64
	handlerErrors   int64
	decodeErrors    int64
	staleReplies    int64

	cacheHits   int64
	cacheMisses int64

	traceReceived   int64
	tracePersisted  int64
	traceDropped    int64
	droppedByKind   map[string]int64
	traceSinkErrors int64

	storageWriteSuccess int64
	storageWriteFailure int64

	mode           string
	policy         string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
// mode is "proxy" or "passthrough"; policy and storageBackend describe
// packet tracing and may be "none".
func NewCollector(mode, policy, storageBackend string) *Collector {
	return &Collector{
		droppedByKind:  make(map[string]int64),
		mode:           mode,
		policy:         policy,
		storageBackend: storageBackend,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsStarted)
}

// IncSessionCompleted records an orderly session end.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsCompleted)
}

// IncSessionFailed records a session that ended on an error.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.inc(&c.sessionsFailed)
}

// --- Packets ---

// IncPacketFromDebugger records a packet read from the debugger.
func (c *Collector) IncPacketFromDebugger() {
	if c == nil {
		return
	}
	c.inc(&c.packetsFromDebugger)
}

// IncPacketToDebugger records a packet written to the debugger.
func (c *Collector) IncPacketToDebugger() {
	if c == nil {
		return
	}
	c.inc(&c.packetsToDebugger)
}

// IncPacketFromVM records a packet read from the VM.
func (c *Collector) IncPacketFromVM() {
	if c == nil {
		return
	}
	c.inc(&c.packetsFromVM)
}

// IncPacketToVM records a packet written to the VM.
func (c *Collector) IncPacketToVM() {
	if c == nil {
		return
	}
	c.inc(&c.packetsToVM)
}

// --- Dispatch ---

// IncForwarded records a packet relayed unmodified.
func (c *Collector) IncForwarded() {
	if c == nil {
		return
	}
	c.inc(&c.forwarded)
}

// IncAnsweredLocally records a command handled by the proxy.
func (c *Collector) IncAnsweredLocally() {
	if c == nil {
		return
	}
	c.inc(&c.answeredLocally)
}

// IncRoundTrip records a proxy-issued request to the VM.
func (c *Collector) IncRoundTrip() {
	if c == nil {
		return
	}
	c.inc(&c.roundTrips)
}

// IncHandlerError records a command answered with an error reply.
func (c *Collector) IncHandlerError() {
	if c == nil {
		return
	}
	c.inc(&c.handlerErrors)
}

// IncDecodeError records a malformed frame or truncated payload.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncStaleReply records a reply to a proxy-issued request that arrived
// after its waiter gave up.
func (c *Collector) IncStaleReply() {
	if c == nil {
		return
	}
	c.inc(&c.staleReplies)
}

// --- Cache ---

// IncCacheHit records a class lookup served from the cache.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.inc(&c.cacheHits)
}

// IncCacheMiss records a class lookup that needed the VM.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.inc(&c.cacheMisses)
}

// --- Trace ingestion ---

// IncTraceSinkError records a failed trace write. Trace failures never
// interrupt the proxy.
func (c *Collector) IncTraceSinkError() {
	if c == nil {
		return
	}
	c.inc(&c.traceSinkErrors)
}

// IncStorageWriteSuccess records a successful storage batch write.
func (c *Collector) IncStorageWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.storageWriteSuccess)
}

// IncStorageWriteFailure records a failed storage batch write.
func (c *Collector) IncStorageWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.storageWriteFailure)
}

// AbsorbPolicyStats adds trace ingestion counters from a finished session.
// The droppedByKind keys are plain strings to keep this package free of
// dependencies on the types package.
func (c *Collector) AbsorbPolicyStats(received, persisted, dropped int64, droppedByKind map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.traceReceived += received
	c.tracePersisted += persisted
	c.traceDropped += dropped
	for k, v := range droppedByKind {
		c.droppedByKind[k] += v
	}
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := make(map[string]int64, len(c.droppedByKind))
	for k, v := range c.droppedByKind {
		dropped[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,

		PacketsFromDebugger: c.packetsFromDebugger,
		PacketsToDebugger:   c.packetsToDebugger,
		PacketsFromVM:       c.packetsFromVM,
		PacketsToVM:         c.packetsToVM,

		Forwarded:       c.forwarded,
		AnsweredLocally: c.answeredLocally,
		RoundTrips:      c.roundTrips,
		HandlerErrors:   c.handlerErrors,
		DecodeErrors:    c.decodeErrors,
		StaleReplies:    c.staleReplies,

		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,

		TraceReceived:   c.traceReceived,
		TracePersisted:  c.tracePersisted,
		TraceDropped:    c.traceDropped,
		DroppedByKind:   dropped,
		TraceSinkErrors: c.traceSinkErrors,

		StorageWriteSuccess: c.storageWriteSuccess,
		StorageWriteFailure: c.storageWriteFailure,

		Mode:           c.mode,
		Policy:         c.policy,
		StorageBackend: c.storageBackend,
	}
}
