package types

import (
	"errors"
	"fmt"
)

// SessionMeta identifies one debugging session.
type SessionMeta struct {
	// SessionID is globally unique.
	SessionID string
	// VMAddr is the address of the VM the proxy dialed.
	VMAddr string
	// DebuggerAddr is the address of the accepted debugger.
	DebuggerAddr string
	// Attempt counts sessions in a multi-VM loop, starting at 1.
	Attempt int
}

// Validate validates session identity.
func (m *SessionMeta) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id must be non-empty")
	}
	if m.Attempt < 1 {
		return fmt.Errorf("attempt must be >= 1, got %d", m.Attempt)
	}
	return nil
}

// OutcomeStatus is the final status of a session.
type OutcomeStatus string

const (
	// OutcomeCompleted indicates an orderly disconnect by either side.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeHandshakeFailed indicates a handshake was rejected.
	OutcomeHandshakeFailed OutcomeStatus = "handshake_failed"
	// OutcomeConnectionError indicates an I/O or framing failure.
	OutcomeConnectionError OutcomeStatus = "connection_error"
	// OutcomeCanceled indicates the proxy was shut down mid-session.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// SessionOutcome is the final outcome of a session.
type SessionOutcome struct {
	Status  OutcomeStatus
	Message string
}
