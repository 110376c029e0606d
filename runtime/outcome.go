package runtime

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/types"
)

// Stage is the point a session reached before it ended.
type Stage string

const (
	// StageSelect is choosing a VM from the pool.
	StageSelect Stage = "select"
	// StageDial is connecting to the VM.
	StageDial Stage = "dial"
	// StageHandshake is the JDWP handshake on either side.
	StageHandshake Stage = "handshake"
	// StageRun is the proxied session itself.
	StageRun Stage = "run"
)

// DetermineOutcome classifies how a session ended.
//
// Cancellation wins over any error it caused. A run that returned nil ended
// with an orderly disconnect. Otherwise the stage decides:
//   - select, dial: connection_error
//   - handshake: handshake_failed
//   - run: connection_error
func DetermineOutcome(stage Stage, err, ctxErr error) *types.SessionOutcome {
	if ctxErr != nil {
		return &types.SessionOutcome{
			Status:  types.OutcomeCanceled,
			Message: fmt.Sprintf("session canceled during %s: %v", stage, ctxErr),
		}
	}

	switch stage {
	case StageSelect:
		return &types.SessionOutcome{
			Status:  types.OutcomeConnectionError,
			Message: fmt.Sprintf("no VM available: %v", err),
		}
	case StageDial:
		return &types.SessionOutcome{
			Status:  types.OutcomeConnectionError,
			Message: fmt.Sprintf("dial VM: %v", err),
		}
	case StageHandshake:
		return &types.SessionOutcome{
			Status:  types.OutcomeHandshakeFailed,
			Message: fmt.Sprintf("handshake: %v", err),
		}
	}

	if err == nil {
		return &types.SessionOutcome{
			Status:  types.OutcomeCompleted,
			Message: "session completed",
		}
	}
	msg := fmt.Sprintf("session ended: %v", err)
	if errors.Is(err, jdwp.ErrMalformedPacket) {
		msg = fmt.Sprintf("framing error: %v", err)
	}
	return &types.SessionOutcome{
		Status:  types.OutcomeConnectionError,
		Message: msg,
	}
}

// ExitCode maps an outcome to the process exit code of a single-session run.
func ExitCode(outcome *types.SessionOutcome) int {
	if outcome == nil {
		return ExitCodeFailure
	}
	switch outcome.Status {
	case types.OutcomeCompleted:
		return ExitCodeSuccess
	case types.OutcomeCanceled:
		return ExitCodeCanceled
	default:
		return ExitCodeFailure
	}
}

// Process exit codes.
const (
	ExitCodeSuccess  = 0
	ExitCodeFailure  = 1
	ExitCodeCanceled = 130
)
