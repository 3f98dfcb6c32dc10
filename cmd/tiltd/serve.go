package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tiltd/pkg/bridge/gauge"
	"tiltd/pkg/config"
	"tiltd/pkg/console"
	"tiltd/pkg/engine"
	"tiltd/pkg/logger"
	"tiltd/pkg/logging"
	"tiltd/pkg/protocol"
	"tiltd/pkg/transport"
)

func setupLogging(cfg config.Config, stderr io.Writer) zerolog.Logger {
	lc := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(cfg.Log.Level); ok {
		lc.Level = lvl
	}
	lc.Timestamp = cfg.Log.Timestamp
	lc.NoColor = cfg.Log.NoColor
	lc.Output = stderr
	return logging.Configure(lc)
}

func decoderFromConfig(cfg config.Config) protocol.Decoder {
	return protocol.Decoder{
		ResolutionFactor: cfg.Decoder.ResolutionFactor,
		MinAngle:         cfg.Decoder.MinAngle,
		MaxAngle:         cfg.Decoder.MaxAngle,
	}
}

// signalContext ends on SIGINT or SIGTERM, and after d when d is positive.
func signalContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// serve runs src through the pipeline into every sink cfg enables and blocks
// until ctx ends, the user quits the terminal UI or the source fails.
func serve(ctx context.Context, cfg config.Config, src transport.Source, stdin io.Reader, stdout io.Writer, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	var sinks []engine.Sink

	// The TUI needs the pipeline's stats, so it is built after the pipeline
	// and reached through this closure.
	var tui *console.TUI
	switch cfg.Report.Console {
	case config.ConsolePlain:
		sinks = append(sinks, console.NewPrinter(stdout, console.WithClearScreen(cfg.Report.ClearScreen)))
	case config.ConsoleTUI:
		sinks = append(sinks, engine.SinkFunc(func(s protocol.Sample) {
			tui.Report(s)
		}))
	}

	if cfg.Report.LogPath != "" {
		file, err := os.OpenFile(cfg.Report.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = src.Close()
			return fmt.Errorf("open sample log: %w", err)
		}
		defer file.Close()
		jsonl := logger.NewJSONLWriter(file)
		defer func() {
			if n, err := jsonl.Failures(); n > 0 {
				log.Warn().Err(err).Int("failures", n).Str("path", cfg.Report.LogPath).Msg("sample log write failures")
			}
		}()
		sinks = append(sinks, jsonl)
	}

	if cfg.Bridge.WSAddr != "" {
		hub := engine.NewHub()
		srv := gauge.NewServer(gauge.Config{
			WSAddr: cfg.Bridge.WSAddr,
			Name:   cfg.Bridge.Name,
		}, hub, gauge.WithLogger(log.With().Str("component", "gauge").Logger()))
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return srv.Run(gctx)
		})
		sinks = append(sinks, srv)
	}

	pipeline := engine.NewPipeline(src, engine.Fanout(sinks...),
		engine.WithDecoder(decoderFromConfig(cfg)),
		engine.WithStrictChecksum(cfg.Decoder.StrictChecksum),
		engine.WithInterval(cfg.ThrottleInterval()),
		engine.WithBuffer(cfg.Report.Buffer),
		engine.WithLogger(log),
	)

	if cfg.Report.Console == config.ConsoleTUI {
		tui = console.NewTUI(gctx,
			console.WithTitle("Ship Tilt "+sourceName(cfg)),
			console.WithTUIOutput(stdout),
			console.WithTUIInput(stdin),
			console.WithStats(pipeline.Stats),
			console.WithOnQuit(pipeline.Stop),
		)
		g.Go(func() error {
			defer pipeline.Stop()
			return tui.Run()
		})
	}

	g.Go(func() error {
		defer cancel()
		return pipeline.Run(gctx)
	})
	return g.Wait()
}
