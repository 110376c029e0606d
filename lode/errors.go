// Package lode archives packet traces in a Lode dataset.
//
// Storage failures are classified into sentinel kinds so callers can use
// errors.Is instead of matching backend messages.
package lode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied is a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is a missing path, bucket or key.
	ErrNotFound = errors.New("not found")
	// ErrDiskFull is an out-of-space failure.
	ErrDiskFull = errors.New("no space left on device")
	// ErrTimeout is a timed-out operation.
	ErrTimeout = errors.New("operation timed out")
	// ErrThrottled is backend rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")
	// ErrAuth is missing or expired credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")
	// ErrNetwork is a connection or DNS failure.
	ErrNetwork = errors.New("network error")
	// ErrUnclassified is any other storage failure.
	ErrUnclassified = errors.New("storage error")
)

// StorageError is a classified storage failure. errors.Is matches Kind;
// errors.As reaches the backend error through Unwrap.
type StorageError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapError classifies err for op on path. It returns nil for a nil err.
func wrapError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a write failure.
func WrapWriteError(err error, path string) error { return wrapError(err, "write", path) }

// WrapReadError classifies a read failure.
func WrapReadError(err error, path string) error { return wrapError(err, "read", path) }

// WrapInitError classifies a store or dataset initialization failure.
func WrapInitError(err error, dataset string) error { return wrapError(err, "init", dataset) }

type classification struct {
	kind     error
	patterns []string
}

// classifications are checked in order; the first match wins.
var classifications = []classification{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey", "nosuchbucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid", "signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "dial tcp", "no such host"}},
}

func classifyError(err error) error {
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	for _, c := range classifications {
		for _, p := range c.patterns {
			if strings.Contains(msg, p) {
				return c.kind
			}
		}
	}
	return ErrUnclassified
}
