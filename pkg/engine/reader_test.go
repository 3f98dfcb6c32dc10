package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tiltd/pkg/engine"
	"tiltd/pkg/protocol"
	"tiltd/pkg/transport"
)

func TestReaderSkipsShortRecordAndContinues(t *testing.T) {
	src := newChanSource(10 * time.Millisecond)
	good := record(364, -364)
	tokens := strings.Fields(strings.TrimPrefix(string(good), "Data Packet: "))

	src.records <- []byte(strings.Join(tokens[:31], " "))
	src.records <- good
	close(src.records)

	out := engine.NewHandoff(4)
	r := engine.NewReader(src, out)
	err := r.Run(context.Background())
	require.ErrorIs(t, err, engine.ErrSourceClosed)
	require.ErrorIs(t, err, transport.ErrClosed)

	var got []protocol.Sample
	for s := range out.C() {
		got = append(got, s)
	}
	require.Len(t, got, 1)
	require.Equal(t, 1.0, got[0].Roll)
	require.Equal(t, -1.0, got[0].Pitch)
	require.Equal(t, uint64(1), got[0].Seq)
	require.False(t, got[0].ReceivedAt.IsZero())

	stats := r.Stats()
	require.Equal(t, uint64(2), stats.Records)
	require.Equal(t, uint64(1), stats.Samples)
	require.Equal(t, uint64(1), stats.BadLength)
	require.Equal(t, uint64(1), stats.Errors())
}

func TestReaderCountsErrorKinds(t *testing.T) {
	src := newChanSource(10 * time.Millisecond)

	badFraming := protocol.EncodeFrame(0, 0)
	badFraming[31] = 0xAB
	badChecksum := protocol.EncodeFrame(728, 0)
	badChecksum[30]++
	tokens := strings.Fields(protocol.FormatRecord(badFraming[:]))
	tokens[4] = "G1"

	src.records <- []byte(protocol.FormatRecord(badFraming[:]))
	src.records <- []byte(strings.Join(tokens, " "))
	src.records <- []byte(protocol.FormatRecord(badChecksum[:]))
	close(src.records)

	out := engine.NewHandoff(4)
	r := engine.NewReader(src, out)
	_ = r.Run(context.Background())

	s, ok := <-out.C()
	require.True(t, ok)
	require.False(t, s.ChecksumOK)
	require.Equal(t, 2.0, s.Roll)

	stats := r.Stats()
	require.Equal(t, uint64(1), stats.BadFraming)
	require.Equal(t, uint64(1), stats.BadToken)
	require.Equal(t, uint64(1), stats.ChecksumMismatch)
	require.Equal(t, uint64(1), stats.Samples)
}

func TestReaderStrictChecksumDiscards(t *testing.T) {
	src := newChanSource(10 * time.Millisecond)
	bad := protocol.EncodeFrame(1, 1)
	bad[30]--
	src.records <- []byte(protocol.FormatRecord(bad[:]))
	close(src.records)

	out := engine.NewHandoff(1)
	r := engine.NewReader(src, out, engine.WithStrictChecksum(true))
	_ = r.Run(context.Background())

	_, ok := <-out.C()
	require.False(t, ok)
	require.Equal(t, uint64(1), r.Stats().ChecksumMismatch)
	require.Equal(t, uint64(0), r.Stats().Samples)
}

func TestReaderCountsDroppedSamples(t *testing.T) {
	src := newChanSource(10 * time.Millisecond)
	for i := int16(1); i <= 5; i++ {
		src.records <- record(i*364, 0)
	}
	close(src.records)

	out := engine.NewHandoff(2)
	r := engine.NewReader(src, out)
	_ = r.Run(context.Background())

	require.Equal(t, uint64(3), r.Stats().Dropped)
	var rolls []float64
	for s := range out.C() {
		rolls = append(rolls, s.Roll)
	}
	require.Equal(t, []float64{4, 5}, rolls)
}

func TestReaderTreatsOverlongRecordAsRecordError(t *testing.T) {
	src := &erroringSource{errs: []error{transport.ErrRecordTooLong, transport.ErrClosed}}
	out := engine.NewHandoff(1)
	r := engine.NewReader(src, out)

	err := r.Run(context.Background())
	require.ErrorIs(t, err, engine.ErrSourceClosed)
	require.Equal(t, uint64(1), r.Stats().BadLength)
}

func TestReaderStopsOnContext(t *testing.T) {
	src := newChanSource(20 * time.Millisecond)
	out := engine.NewHandoff(1)
	r := engine.NewReader(src, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("reader did not stop")
	}
	_, ok := <-out.C()
	require.False(t, ok)
}

type erroringSource struct {
	errs []error
}

func (s *erroringSource) ReadRecord(context.Context) ([]byte, error) {
	if len(s.errs) == 0 {
		return nil, transport.ErrClosed
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return nil, err
}

func (s *erroringSource) Close() error { return nil }

func TestReaderStampsSamplesWithClock(t *testing.T) {
	src := newChanSource(10 * time.Millisecond)
	src.records <- record(0, 0)
	src.records <- record(364, 0)
	close(src.records)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}

	out := engine.NewHandoff(4)
	r := engine.NewReader(src, out, engine.WithClock(clock))
	require.ErrorIs(t, r.Run(context.Background()), engine.ErrSourceClosed)
	require.Equal(t, 2, out.Len())

	first, second := <-out.C(), <-out.C()
	require.Equal(t, base.Add(time.Second), first.ReceivedAt)
	require.Equal(t, base.Add(2*time.Second), second.ReceivedAt)
	require.Equal(t, uint64(2), second.Seq)
}
