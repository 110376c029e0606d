package iox

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type spyCloser struct {
	closed chan struct{}
	err    error
}

func newSpy(err error) *spyCloser {
	return &spyCloser{closed: make(chan struct{}), err: err}
}

func (s *spyCloser) Close() error {
	close(s.closed)
	return s.err
}

func (s *spyCloser) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func TestDiscardClose(t *testing.T) {
	s := newSpy(errors.New("ignored"))
	DiscardClose(s)
	if !s.isClosed() {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := newSpy(nil)
	fn := CloseFunc(s)
	if s.isClosed() {
		t.Fatal("closed before the func ran")
	}
	fn()
	if !s.isClosed() {
		t.Fatal("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("ignored")
	})
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestCloseOnDone(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	s := newSpy(nil)
	CloseOnDone(ctx, s)
	cancel()

	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("closer not closed after cancel")
	}
}

func TestCloseOnDone_Stop(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	s := newSpy(nil)
	stop := CloseOnDone(ctx, s)
	if !stop() {
		t.Fatal("stop should detach before cancel")
	}
	cancel()
	time.Sleep(10 * time.Millisecond)
	if s.isClosed() {
		t.Error("closed after stop")
	}
}

func TestCloseAll(t *testing.T) {
	errA := errors.New("a")
	a, b := newSpy(errA), newSpy(nil)
	err := CloseAll(a, nil, b)
	if !errors.Is(err, errA) {
		t.Errorf("err = %v, want a", err)
	}
	if !a.isClosed() || !b.isClosed() {
		t.Error("not every closer closed")
	}
	var none []io.Closer
	if err := CloseAll(none...); err != nil {
		t.Errorf("empty CloseAll = %v", err)
	}
}
