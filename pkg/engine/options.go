package engine

import (
	"time"

	"github.com/rs/zerolog"

	"tiltd/pkg/protocol"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultBuffer   = 1
)

type settings struct {
	decoder  protocol.Decoder
	strict   bool
	interval time.Duration
	buffer   int
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*settings)

func defaultSettings() settings {
	return settings{
		decoder:  protocol.DefaultDecoder(),
		interval: DefaultInterval,
		buffer:   DefaultBuffer,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func WithDecoder(d protocol.Decoder) Option {
	return func(s *settings) {
		if d.ResolutionFactor != 0 && d.MinAngle <= d.MaxAngle {
			s.decoder = d
		}
	}
}

// WithStrictChecksum makes the reader discard samples whose checksum did not
// match instead of publishing them flagged.
func WithStrictChecksum(strict bool) Option {
	return func(s *settings) {
		s.strict = strict
	}
}

// WithInterval sets the reporter throttle interval.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBuffer sets the handoff capacity used by a Pipeline.
func WithBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) {
		s.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
