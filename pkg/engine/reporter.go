package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tiltd/pkg/protocol"
)

// Reporter drains samples and reports at most one per interval, always the
// newest it holds. Intermediate samples inside an interval are skipped.
type Reporter struct {
	sink     Sink
	interval time.Duration
	log      zerolog.Logger
	reports  atomic.Uint64
}

func NewReporter(sink Sink, opts ...Option) *Reporter {
	cfg := newSettings(opts)
	return &Reporter{
		sink:     sink,
		interval: cfg.interval,
		log:      cfg.log.With().Str("component", "reporter").Logger(),
	}
}

// Consume returns when in is closed or ctx is done. A sample still held back
// by the throttle at that point is not reported.
func (r *Reporter) Consume(ctx context.Context, in <-chan protocol.Sample) {
	var (
		last    time.Time
		held    protocol.Sample
		holding bool
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				r.log.Debug().Bool("held", holding).Msg("end of stream")
				return
			}
			if ctx.Err() != nil {
				return
			}
			now := time.Now()
			if last.IsZero() || now.Sub(last) >= r.interval {
				stopTimer()
				holding = false
				r.report(s)
				last = now
				continue
			}
			held, holding = s, true
			if timer == nil {
				timer = time.NewTimer(r.interval - now.Sub(last))
				timerC = timer.C
			}
		case <-timerC:
			timer, timerC = nil, nil
			if ctx.Err() != nil {
				return
			}
			if holding {
				holding = false
				r.report(held)
				last = time.Now()
			}
		}
	}
}

func (r *Reporter) report(s protocol.Sample) {
	r.reports.Add(1)
	r.sink.Report(s)
}

// Reports is the number of samples handed to the sink so far.
func (r *Reporter) Reports() uint64 {
	return r.reports.Load()
}
