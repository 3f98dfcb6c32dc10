package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
)

var (
	// ErrClosed is returned once a source can no longer produce records.
	ErrClosed = errors.New("source closed")
	// ErrRecordTooLong is returned when a record exceeds the configured bound.
	// It only affects the offending record.
	ErrRecordTooLong = errors.New("record too long")
)

// Source yields newline delimited records. ReadRecord blocks at most for the
// source's read timeout and returns (nil, nil) when nothing complete arrived.
type Source interface {
	ReadRecord(ctx context.Context) ([]byte, error)
	Close() error
}

// StreamSource reads records from a stream. ReadRecord is only bounded when
// Read is: a serial port opened with a read timeout, or a stream with
// SetReadDeadline such as a net.Conn or an os.Pipe end.
type StreamSource struct {
	rc        io.ReadCloser
	lines     *lineReader
	closeOnce sync.Once
	closeErr  error
}

// NewStreamSource wraps rc. If rc has SetReadDeadline, each read is bounded by
// the read timeout option; otherwise rc's Read must return on its own, or a
// stop request waits for the next byte.
func NewStreamSource(rc io.ReadCloser, opts ...Option) *StreamSource {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var r io.Reader = rc
	if d, ok := rc.(readDeadliner); ok {
		r = deadlineReader{r: d, timeout: o.readTimeout}
	}
	return &StreamSource{
		rc:    rc,
		lines: newLineReader(r, o.bufSize, o.maxRecord),
	}
}

func (s *StreamSource) ReadRecord(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lines.next()
}

func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.rc.Close()
	})
	return s.closeErr
}

type lineReader struct {
	r        io.Reader
	buf      []byte
	pending  []byte
	max      int
	skipping bool
	err      error
}

func newLineReader(r io.Reader, bufSize int, max int) *lineReader {
	return &lineReader{
		r:   r,
		buf: make([]byte, bufSize),
		max: max,
	}
}

// next performs at most one Read on the underlying stream.
func (l *lineReader) next() ([]byte, error) {
	if rec, ok := l.pop(); ok {
		return rec, nil
	}
	if l.err != nil {
		return l.flush()
	}

	n, err := l.r.Read(l.buf)
	if n > 0 {
		l.pending = append(l.pending, l.buf[:n]...)
	}
	if err != nil && !isTimeout(err) {
		l.err = fmt.Errorf("%w: %v", ErrClosed, err)
	}

	if rec, ok := l.pop(); ok {
		return rec, nil
	}
	if l.err != nil {
		return l.flush()
	}
	if len(l.pending) > l.max {
		l.pending = l.pending[:0]
		l.skipping = true
		return nil, fmt.Errorf("%w: more than %d bytes without newline", ErrRecordTooLong, l.max)
	}
	return nil, nil
}

// flush hands out an unterminated final record once the stream has ended.
func (l *lineReader) flush() ([]byte, error) {
	rec := bytes.TrimSpace(l.pending)
	skipping := l.skipping
	l.pending = nil
	l.skipping = false
	if skipping || len(rec) == 0 {
		return nil, l.err
	}
	return append([]byte(nil), rec...), nil
}

// pop returns the next non-empty complete line, dropping the tail of a record
// that was previously reported as too long.
func (l *lineReader) pop() ([]byte, bool) {
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			if l.skipping {
				l.pending = l.pending[:0]
			}
			return nil, false
		}
		line := bytes.TrimRight(l.pending[:idx], "\r")
		rec := append([]byte(nil), line...)
		l.pending = append(l.pending[:0], l.pending[idx+1:]...)

		if l.skipping {
			l.skipping = false
			continue
		}
		if len(bytes.TrimSpace(rec)) == 0 {
			continue
		}
		return rec, true
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func isRecordError(err error) bool {
	return errors.Is(err, ErrRecordTooLong)
}
