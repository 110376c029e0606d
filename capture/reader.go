package capture

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/pithecene-io/kdp/iox"
	"github.com/pithecene-io/kdp/types"
)

// Reader reads records from a capture stream.
type Reader struct {
	dec *FrameDecoder
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: NewFrameDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (*types.TraceRecord, error) {
	payload, err := r.dec.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeRecord(payload)
}

// Records iterates over the stream. Undecodable frames are yielded as errors
// and skipped; iteration ends at EOF or after a fatal frame error.
func (r *Reader) Records() iter.Seq2[*types.TraceRecord, error] {
	return func(yield func(*types.TraceRecord, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || IsFatalFrameError(err) {
				return
			}
		}
	}
}

// ReadFile loads every record in a capture file. A truncated final frame,
// as left by a killed proxy, is reported together with the records before it.
func ReadFile(path string) ([]*types.TraceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer iox.DiscardClose(f)

	var (
		recs []*types.TraceRecord
		errs []error
	)
	for rec, err := range NewReader(f).Records() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errors.Join(errs...)
}
