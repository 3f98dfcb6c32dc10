package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"
)

// TCPSource reads records from a serial-over-TCP bridge (ser2net and
// friends). It connects lazily and reconnects with backoff when the link
// drops; a reconnect attempt counts as one poll.
type TCPSource struct {
	addr string
	opts options

	conn    net.Conn
	lines   *lineReader
	attempt int

	mu     sync.Mutex
	closed bool
}

func NewTCPSource(addr string, opts ...Option) *TCPSource {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &TCPSource{addr: addr, opts: o}
}

func (s *TCPSource) ReadRecord(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	if s.conn == nil {
		if s.attempt > 0 {
			s.sleepBackoff(ctx, s.attempt)
		}
		if err := s.dial(ctx); err != nil {
			s.opts.handleError(err)
			s.attempt++
			return nil, nil
		}
		s.attempt = 0
	}

	rec, err := s.lines.next()
	if err != nil && !isRecordError(err) {
		s.dropConn()
		if s.isClosed() || ctx.Err() != nil {
			return nil, ErrClosed
		}
		s.opts.handleError(err)
		s.attempt = 1
		return rec, nil
	}
	return rec, err
}

func (s *TCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *TCPSource) dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: s.opts.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.lines = newLineReader(deadlineReader{r: conn, timeout: s.opts.readTimeout}, s.opts.bufSize, s.opts.maxRecord)
	return nil
}

func (s *TCPSource) dropConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *TCPSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *TCPSource) sleepBackoff(ctx context.Context, attempt int) {
	wait := min(s.opts.reconnect*time.Duration(attempt), s.opts.reconnectMax)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
}

type readDeadliner interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// deadlineReader bounds every Read on r by timeout.
type deadlineReader struct {
	r       readDeadliner
	timeout time.Duration
}

func (d deadlineReader) Read(b []byte) (int, error) {
	if d.timeout > 0 {
		_ = d.r.SetReadDeadline(time.Now().Add(d.timeout))
	}
	return d.r.Read(b)
}
