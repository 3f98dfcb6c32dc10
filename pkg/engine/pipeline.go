package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tiltd/pkg/transport"
)

// Pipeline runs a Reader and a Reporter joined by a Handoff. Stop and parent
// context cancellation share one stop flag. The source is closed exactly once,
// after both workers have returned.
type Pipeline struct {
	src      transport.Source
	handoff  *Handoff
	reader   *Reader
	reporter *Reporter
	log      zerolog.Logger

	stopOnce  sync.Once
	stopCh    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewPipeline(src transport.Source, sink Sink, opts ...Option) *Pipeline {
	cfg := newSettings(opts)
	handoff := NewHandoff(cfg.buffer)
	return &Pipeline{
		src:      src,
		handoff:  handoff,
		reader:   NewReader(src, handoff, opts...),
		reporter: NewReporter(sink, opts...),
		log:      cfg.log,
		stopCh:   make(chan struct{}),
	}
}

// Run blocks until both workers exit. It returns nil after a stop request and
// an ErrSourceClosed wrap when the source failed. Run may be called once.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var g errgroup.Group
	g.Go(func() error {
		return p.reader.Run(ctx)
	})
	g.Go(func() error {
		p.reporter.Consume(ctx, p.handoff.C())
		return nil
	})
	err := g.Wait()

	if cerr := p.closeSource(); cerr != nil {
		p.log.Warn().Err(cerr).Msg("close source")
	}
	stats := p.reader.Stats()
	p.log.Info().
		Uint64("records", stats.Records).
		Uint64("samples", stats.Samples).
		Uint64("errors", stats.Errors()).
		Uint64("reports", p.reporter.Reports()).
		Msg("pipeline stopped")
	return err
}

// Stop requests shutdown. Safe to call any number of times from any goroutine.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

func (p *Pipeline) Stats() Stats {
	return p.reader.Stats()
}

func (p *Pipeline) Reports() uint64 {
	return p.reporter.Reports()
}

func (p *Pipeline) closeSource() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.src.Close()
	})
	return p.closeErr
}
