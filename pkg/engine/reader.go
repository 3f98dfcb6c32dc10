package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"tiltd/pkg/protocol"
	"tiltd/pkg/transport"
)

var ErrSourceClosed = errors.New("byte source closed")

// Stats is a snapshot of reader counters.
type Stats struct {
	Records          uint64
	Samples          uint64
	BadLength        uint64
	BadToken         uint64
	BadFraming       uint64
	ChecksumMismatch uint64
	Dropped          uint64
}

// Errors counts records that produced no sample.
func (s Stats) Errors() uint64 {
	return s.BadLength + s.BadToken + s.BadFraming
}

type counters struct {
	records          atomic.Uint64
	samples          atomic.Uint64
	badLength        atomic.Uint64
	badToken         atomic.Uint64
	badFraming       atomic.Uint64
	checksumMismatch atomic.Uint64
	dropped          atomic.Uint64
}

// Reader pulls records from a Source, decodes them and pushes samples into a
// Handoff. It owns the producer side of the handoff and closes it on exit.
type Reader struct {
	src transport.Source
	out *Handoff
	cfg settings
	log zerolog.Logger

	seq   uint64
	stats counters
}

func NewReader(src transport.Source, out *Handoff, opts ...Option) *Reader {
	cfg := newSettings(opts)
	return &Reader{
		src: src,
		out: out,
		cfg: cfg,
		log: cfg.log.With().Str("component", "reader").Logger(),
	}
}

// Run loops until ctx is done or the source fails. A stop request is honored
// after the record in flight; per-record errors never end the loop.
func (r *Reader) Run(ctx context.Context) error {
	defer r.out.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		rec, err := r.src.ReadRecord(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, transport.ErrRecordTooLong) {
				r.stats.records.Add(1)
				r.stats.badLength.Add(1)
				r.log.Warn().Err(err).Msg("discarding record")
				continue
			}
			r.log.Error().Err(err).Msg("source failed")
			return fmt.Errorf("%w: %w", ErrSourceClosed, err)
		}
		if rec == nil {
			continue
		}
		r.handle(rec)
	}
}

func (r *Reader) handle(rec []byte) {
	r.stats.records.Add(1)

	frame, err := protocol.ParseRecord(rec)
	var sample protocol.Sample
	if err == nil {
		sample, err = r.cfg.decoder.Decode(frame)
	}
	if err != nil {
		r.countError(err)
		r.log.Debug().Err(err).Bytes("record", rec).Msg("discarding record")
		return
	}

	if !sample.ChecksumOK {
		r.stats.checksumMismatch.Add(1)
		if r.cfg.strict {
			r.log.Debug().Str("frame", sample.FrameHex()).Msg("discarding sample with bad checksum")
			return
		}
		r.log.Debug().Str("frame", sample.FrameHex()).Msg("checksum mismatch")
	}

	r.seq++
	sample.Seq = r.seq
	sample.ReceivedAt = r.cfg.now()
	if dropped := r.out.Push(sample); dropped > 0 {
		r.stats.dropped.Add(uint64(dropped))
	}
	r.stats.samples.Add(1)
}

func (r *Reader) countError(err error) {
	switch {
	case errors.Is(err, protocol.ErrBadToken):
		r.stats.badToken.Add(1)
	case errors.Is(err, protocol.ErrBadFraming):
		r.stats.badFraming.Add(1)
	default:
		r.stats.badLength.Add(1)
	}
}

func (r *Reader) Stats() Stats {
	return Stats{
		Records:          r.stats.records.Load(),
		Samples:          r.stats.samples.Load(),
		BadLength:        r.stats.badLength.Load(),
		BadToken:         r.stats.badToken.Load(),
		BadFraming:       r.stats.badFraming.Load(),
		ChecksumMismatch: r.stats.checksumMismatch.Load(),
		Dropped:          r.stats.dropped.Load(),
	}
}
