package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/types"
)

func TestDetermineOutcome(t *testing.T) {
	malformed := jdwp.Malformed("read header", errors.New("length 3"))

	tests := []struct {
		name     string
		stage    Stage
		err      error
		ctxErr   error
		want     types.OutcomeStatus
		contains string
	}{
		{"orderly close", StageRun, nil, nil, types.OutcomeCompleted, "completed"},
		{"run I/O error", StageRun, io.ErrUnexpectedEOF, nil, types.OutcomeConnectionError, "session ended"},
		{"framing error", StageRun, fmt.Errorf("vm: %w", malformed), nil, types.OutcomeConnectionError, "framing error"},
		{"dial refused", StageDial, errors.New("connection refused"), nil, types.OutcomeConnectionError, "dial VM"},
		{"no VM", StageSelect, errors.New("empty pool"), nil, types.OutcomeConnectionError, "no VM available"},
		{"bad handshake", StageHandshake, malformed, nil, types.OutcomeHandshakeFailed, "handshake"},
		{"canceled during run", StageRun, jdwp.Closed("read"), context.Canceled, types.OutcomeCanceled, "during run"},
		{"canceled during dial", StageDial, context.Canceled, context.Canceled, types.OutcomeCanceled, "during dial"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineOutcome(tt.stage, tt.err, tt.ctxErr)
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if !strings.Contains(got.Message, tt.contains) {
				t.Errorf("message = %q, want it to contain %q", got.Message, tt.contains)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		outcome *types.SessionOutcome
		want    int
	}{
		{&types.SessionOutcome{Status: types.OutcomeCompleted}, ExitCodeSuccess},
		{&types.SessionOutcome{Status: types.OutcomeHandshakeFailed}, ExitCodeFailure},
		{&types.SessionOutcome{Status: types.OutcomeConnectionError}, ExitCodeFailure},
		{&types.SessionOutcome{Status: types.OutcomeCanceled}, ExitCodeCanceled},
		{nil, ExitCodeFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.outcome); got != tt.want {
			t.Errorf("ExitCode(%+v) = %d, want %d", tt.outcome, got, tt.want)
		}
	}
}
