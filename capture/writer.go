package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/types"
)

// ErrWriterClosed is returned by WriteRecords after Close.
var ErrWriterClosed = errors.New("capture writer closed")

// Writer appends trace records to a capture file. It is a policy.Sink.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	path   string
	count  int64
	closed bool
}

// Create opens path for appending, creating parent directories as needed.
// Appending lets successive sessions of a multi-VM run share one file.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create capture directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &Writer{file: f, buf: bufio.NewWriter(f), path: path}, nil
}

// WriteRecords encodes recs and flushes them to the file.
// A batch is written whole or, on an encode error, not at all.
func (w *Writer) WriteRecords(_ context.Context, recs []*types.TraceRecord) error {
	frames := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		frame, err := EncodeFrame(rec)
		if err != nil {
			return fmt.Errorf("record seq %d: %w", rec.Seq, err)
		}
		frames = append(frames, frame)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	for _, frame := range frames {
		if _, err := w.buf.Write(frame); err != nil {
			return fmt.Errorf("write capture frame: %w", err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush capture file: %w", err)
	}
	w.count += int64(len(frames))
	return nil
}

// Path returns the capture file path.
func (w *Writer) Path() string {
	return w.path
}

// Count returns the number of records written by this Writer.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes the file. Repeated calls return nil.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.buf.Flush(), w.file.Sync(), w.file.Close())
}

var _ policy.Sink = (*Writer)(nil)
