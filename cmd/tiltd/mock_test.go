package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tiltd/pkg/config"
	"tiltd/pkg/protocol"
	"tiltd/pkg/transport"
)

func TestMockRecordDecodes(t *testing.T) {
	dec := protocol.DefaultDecoder()
	for _, ts := range []float64{0, 0.5, 1.7, 3.2, 10} {
		rec := mockRecord(dec, ts, false)
		frame, err := protocol.ParseRecord(rec)
		require.NoError(t, err)
		s, err := dec.Decode(frame)
		require.NoError(t, err)
		require.True(t, s.ChecksumOK)

		roll, pitch := mockAngles(ts)
		require.InDelta(t, roll, s.Roll, 0.06, "t=%v", ts)
		require.InDelta(t, pitch, s.Pitch, 0.06, "t=%v", ts)
	}
}

func TestMockRecordCorrupt(t *testing.T) {
	dec := protocol.DefaultDecoder()
	frame, err := protocol.ParseRecord(mockRecord(dec, 1, true))
	require.NoError(t, err)
	s, err := dec.Decode(frame)
	require.NoError(t, err)
	require.False(t, s.ChecksumOK)
}

func TestMockAnglesStayInRange(t *testing.T) {
	for ts := 0.0; ts < 60; ts += 0.1 {
		roll, pitch := mockAngles(ts)
		require.LessOrEqual(t, roll, mockRollAmplitudeDeg)
		require.GreaterOrEqual(t, roll, -mockRollAmplitudeDeg)
		require.LessOrEqual(t, pitch, mockPitchAmplitudeDeg)
		require.GreaterOrEqual(t, pitch, -mockPitchAmplitudeDeg)
	}
}

func TestMockSourceBadEvery(t *testing.T) {
	dec := protocol.DefaultDecoder()
	src := newMockSource(1000, 2, dec)
	defer src.Close()

	var oks []bool
	for i := 0; i < 4; i++ {
		rec, err := src.ReadRecord(context.Background())
		require.NoError(t, err)
		frame, err := protocol.ParseRecord(rec)
		require.NoError(t, err)
		s, err := dec.Decode(frame)
		require.NoError(t, err)
		oks = append(oks, s.ChecksumOK)
	}
	require.Equal(t, []bool{true, false, true, false}, oks)
}

func TestMockSourceClose(t *testing.T) {
	src := newMockSource(1000, 0, protocol.DefaultDecoder())
	rec, err := src.ReadRecord(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rec)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	_, err = src.ReadRecord(context.Background())
	require.ErrorIs(t, err, transport.ErrClosed)
}

func TestMockSourceHonorsContext(t *testing.T) {
	src := newMockSource(1, 0, protocol.DefaultDecoder())
	defer src.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.ReadRecord(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSourceName(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "(mock)", sourceName(cfg))
	cfg.Serial.Device = "COM3"
	require.Equal(t, "COM3", sourceName(cfg))
	cfg.TCP.Addr = "10.0.0.5:4001"
	require.Equal(t, "10.0.0.5:4001", sourceName(cfg))
}

func TestMockSourceClampsRate(t *testing.T) {
	src := newMockSource(2_000_000_000, 0, protocol.DefaultDecoder())
	defer src.Close()
	rec, err := src.ReadRecord(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rec)
}
