// Package types defines core domain types for kdp.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// TraceFormatVersion is the version stamped on every trace record.
const TraceFormatVersion = Version

// Direction is the path a traced packet took through the proxy.
type Direction string

const (
	DirectionFromDebugger Direction = "from_debugger"
	DirectionToDebugger   Direction = "to_debugger"
	DirectionFromVM       Direction = "from_vm"
	DirectionToVM         Direction = "to_vm"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionFromDebugger, DirectionToDebugger, DirectionFromVM, DirectionToVM:
		return true
	}
	return false
}

// eventCmdSet is the JDWP Event command set.
const eventCmdSet = 64

// flagReply is the JDWP reply flag.
const flagReply = 0x80

// TraceRecord is one packet observed by the proxy.
// The same shape is written to capture files (msgpack) and Lode datasets (JSON).
type TraceRecord struct {
	// FormatVersion is TraceFormatVersion at write time.
	FormatVersion string `msgpack:"format_version" json:"format_version"`
	// SessionID identifies the debugging session.
	SessionID string `msgpack:"session_id" json:"session_id"`
	// Seq is monotonic per session, starting at 1.
	Seq int64 `msgpack:"seq" json:"seq"`
	// Direction is the packet path.
	Direction Direction `msgpack:"direction" json:"direction"`
	// Ts is the observation time in RFC 3339 UTC with nanoseconds.
	Ts string `msgpack:"ts" json:"ts"`

	ID        int32  `msgpack:"id" json:"id"`
	Flags     uint8  `msgpack:"flags" json:"flags"`
	CmdSet    uint8  `msgpack:"cmd_set" json:"cmd_set"`
	Cmd       uint8  `msgpack:"cmd" json:"cmd"`
	ErrorCode int16  `msgpack:"error_code" json:"error_code"`
	Payload   []byte `msgpack:"payload,omitempty" json:"payload,omitempty"`
}

// IsReply reports whether the traced packet was a reply.
func (r *TraceRecord) IsReply() bool {
	return r.Flags&flagReply != 0
}

// IsEvent reports whether the traced packet was an Event command.
// Event records are the only ones a buffered trace may drop.
func (r *TraceRecord) IsEvent() bool {
	return !r.IsReply() && r.CmdSet == eventCmdSet
}

// Size is the approximate encoded size, used for buffer accounting.
func (r *TraceRecord) Size() int {
	return 64 + len(r.SessionID) + len(r.Payload)
}

// Kind returns a short label for stats: "reply" or "<cmd_set>/<cmd>".
func (r *TraceRecord) Kind() string {
	if r.IsReply() {
		return "reply"
	}
	return fmt.Sprintf("%d/%d", r.CmdSet, r.Cmd)
}

// Validate checks the fields every sink relies on.
func (r *TraceRecord) Validate() error {
	if r.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if r.Seq < 1 {
		return fmt.Errorf("seq must be >= 1, got %d", r.Seq)
	}
	if !r.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", r.Direction)
	}
	return nil
}
