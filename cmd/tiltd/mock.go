package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"tiltd/pkg/protocol"
	"tiltd/pkg/transport"
)

const (
	mockRollAmplitudeDeg  = 35.0
	mockPitchAmplitudeDeg = 25.0

	mockRollFreqHz  = 0.23
	mockPitchFreqHz = 0.31

	mockRollPhaseRad  = 0.0
	mockPitchPhaseRad = math.Pi / 3.0

	mockDefaultHz = 10
	mockMaxHz     = 1000
)

// mockSource emits labelled records of a ship rolling and pitching on two
// sine waves, one record per tick.
type mockSource struct {
	dec      protocol.Decoder
	ticker   *time.Ticker
	start    time.Time
	badEvery uint64
	n        uint64

	done      chan struct{}
	closeOnce sync.Once
}

func newMockSource(hz int, badEvery int, dec protocol.Decoder) *mockSource {
	if hz <= 0 {
		hz = mockDefaultHz
	}
	hz = min(hz, mockMaxHz)
	if badEvery < 0 {
		badEvery = 0
	}
	return &mockSource{
		dec:      dec,
		ticker:   time.NewTicker(time.Second / time.Duration(hz)),
		start:    time.Now(),
		badEvery: uint64(badEvery),
		done:     make(chan struct{}),
	}
}

func (m *mockSource) ReadRecord(ctx context.Context) ([]byte, error) {
	select {
	case <-m.done:
		return nil, transport.ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, transport.ErrClosed
	case <-m.ticker.C:
	}
	m.n++
	corrupt := m.badEvery > 0 && m.n%m.badEvery == 0
	return mockRecord(m.dec, time.Since(m.start).Seconds(), corrupt), nil
}

func (m *mockSource) Close() error {
	m.closeOnce.Do(func() {
		m.ticker.Stop()
		close(m.done)
	})
	return nil
}

func mockAngles(t float64) (roll float64, pitch float64) {
	roll = mockRollAmplitudeDeg * math.Sin(2.0*math.Pi*mockRollFreqHz*t+mockRollPhaseRad)
	pitch = mockPitchAmplitudeDeg * math.Sin(2.0*math.Pi*mockPitchFreqHz*t+mockPitchPhaseRad)
	return
}

// mockRecord renders the wire record for time t. A corrupt record carries a
// checksum that is off by one.
func mockRecord(dec protocol.Decoder, t float64, corrupt bool) []byte {
	roll, pitch := mockAngles(t)
	frame := protocol.EncodeFrame(dec.RawFromDegrees(roll), dec.RawFromDegrees(pitch))
	if corrupt {
		frame[30]++
	}
	return []byte("Data Packet: " + protocol.FormatRecord(frame[:]))
}

func newMockCmd() *cobra.Command {
	var (
		pf       pipelineFlags
		hz       int
		badEvery int
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run the pipeline on synthetic frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hz > mockMaxHz {
				return usageError{err: fmt.Errorf("--hz must be at most %d", mockMaxHz)}
			}
			cfg, err := pf.load(cmd)
			if err != nil {
				return err
			}
			log := setupLogging(cfg, cmd.ErrOrStderr())
			src := newMockSource(hz, badEvery, decoderFromConfig(cfg))
			log.Info().Int("hz", hz).Msg("generating mock frames")

			ctx, stop := signalContext(cmd.Context(), pf.duration)
			defer stop()
			return serve(ctx, cfg, src, cmd.InOrStdin(), cmd.OutOrStdout(), log)
		},
	}

	pf.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&hz, "hz", mockDefaultHz, "frames per second")
	fs.IntVar(&badEvery, "bad-every", 0, "corrupt the checksum of every Nth frame (0 never)")
	return cmd
}
