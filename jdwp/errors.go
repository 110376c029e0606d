package jdwp

import (
	"errors"
	"fmt"
)

// ErrorCode is a JDWP wire error code.
type ErrorCode int16

// Wire error codes used by the proxy.
const (
	ErrorNone               ErrorCode = 0
	ErrorInvalidThread      ErrorCode = 10
	ErrorInvalidThreadGroup ErrorCode = 11
	ErrorInvalidObject      ErrorCode = 20
	ErrorInvalidClass       ErrorCode = 21
	ErrorClassNotPrepared   ErrorCode = 22
	ErrorInvalidMethodID    ErrorCode = 23
	ErrorInvalidLocation    ErrorCode = 24
	ErrorInvalidFieldID     ErrorCode = 25
	ErrorInvalidFrameID     ErrorCode = 30
	ErrorNotImplemented     ErrorCode = 99
	ErrorNullPointer        ErrorCode = 100
	ErrorAbsentInformation  ErrorCode = 101
	ErrorIllegalArgument    ErrorCode = 103
	ErrorVMDead             ErrorCode = 112
	ErrorInternal           ErrorCode = 113
	ErrorInvalidLength      ErrorCode = 504
)

// Sentinel errors for protocol failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrMalformedPacket indicates a bad header or length. Fatal to the connection.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrTruncatedPacket indicates a read past the end of a payload.
	ErrTruncatedPacket = errors.New("truncated packet")

	// ErrNotFound indicates a class, method or field the VM does not know.
	ErrNotFound = errors.New("not found")

	// ErrConnectionClosed indicates the peer or transport was torn down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrProtocolVersionMismatch indicates unexpected handshake options.
	ErrProtocolVersionMismatch = errors.New("protocol version mismatch")
)

// ProtocolError wraps an underlying error with a protocol classification and
// the wire error code reported to the requester.
type ProtocolError struct {
	// Kind is the sentinel error for classification (e.g., ErrNotFound).
	Kind error
	// Code is the wire error code sent back when this error ends a command.
	Code ErrorCode
	// Op names what failed (e.g., "read string", "ReferenceType.Fields").
	Op string
	// Err is the underlying error, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *ProtocolError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NotFound returns a classified not-found error carrying the given wire code.
func NotFound(code ErrorCode, op string) *ProtocolError {
	return &ProtocolError{Kind: ErrNotFound, Code: code, Op: op}
}

// Malformed returns a classified malformed-packet error.
func Malformed(op string, err error) *ProtocolError {
	return &ProtocolError{Kind: ErrMalformedPacket, Code: ErrorInvalidLength, Op: op, Err: err}
}

// Closed returns a classified connection-closed error.
func Closed(op string) *ProtocolError {
	return &ProtocolError{Kind: ErrConnectionClosed, Code: ErrorVMDead, Op: op}
}

// VMError reports a non-zero error code in a reply from the remote side.
type VMError struct {
	Code ErrorCode
}

func (e *VMError) Error() string {
	return fmt.Sprintf("remote error code %d", e.Code)
}

// Is maps VM "does not exist" codes onto ErrNotFound.
func (e *VMError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	switch e.Code {
	case ErrorInvalidObject, ErrorInvalidClass, ErrorInvalidMethodID, ErrorInvalidFieldID:
		return true
	}
	return false
}

// CodeOf maps an error to the wire error code sent to the requester.
// Unclassified errors map to ErrorInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorNone
	}

	var vmErr *VMError
	if errors.As(err, &vmErr) {
		return vmErr.Code
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) && protoErr.Code != ErrorNone {
		return protoErr.Code
	}

	switch {
	case errors.Is(err, ErrTruncatedPacket):
		return ErrorIllegalArgument
	case errors.Is(err, ErrNotFound):
		return ErrorInvalidObject
	case errors.Is(err, ErrConnectionClosed):
		return ErrorVMDead
	default:
		return ErrorInternal
	}
}

// IsConnectionError returns true if err means the session cannot continue.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrMalformedPacket)
}
