// Package iox holds small close and cleanup helpers shared by the proxy,
// its storage sinks and tests.
package iox

import (
	"context"
	"errors"
	"io"
)

// DiscardClose closes c and drops the error, for defers where a close
// failure cannot be acted on:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(conn))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops its error (Flush, Sync).
func DiscardErr(fn func() error) { _ = fn() }

// CloseOnDone closes c once ctx is done. This unblocks Accept and Read
// calls that take no context. The returned stop func detaches the hook;
// it reports false if c was already closed.
func CloseOnDone(ctx context.Context, c io.Closer) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = c.Close() })
}

// CloseAll closes every non-nil closer in order and joins the errors.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
