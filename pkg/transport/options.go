package transport

import "time"

type options struct {
	reconnect    time.Duration
	reconnectMax time.Duration
	bufSize      int
	maxRecord    int
	dialTimeout  time.Duration
	readTimeout  time.Duration
	errorHandler func(error)
}

type Option func(*options)

func defaultOptions() options {
	return options{
		reconnect:    1 * time.Second,
		reconnectMax: 30 * time.Second,
		bufSize:      4 * 1024,
		maxRecord:    1024,
		dialTimeout:  5 * time.Second,
		readTimeout:  1 * time.Second,
	}
}

func WithReconnectInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnect = d
		}
	}
}

func WithReconnectMax(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnectMax = d
		}
	}
}

// WithBufferSize sets the size of a single read from the underlying stream.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufSize = n
		}
	}
}

// WithMaxRecord bounds how many bytes may accumulate without a newline before
// the partial record is discarded.
func WithMaxRecord(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRecord = n
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithReadTimeout bounds a single ReadRecord call on sources that rely on
// deadlines (TCP). Serial ports carry their own timeout in SerialConfig.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readTimeout = d
		}
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.errorHandler = fn
		}
	}
}

func (o *options) handleError(err error) {
	if o.errorHandler != nil {
		o.errorHandler(err)
	}
}
