package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}
	_, ok := ParseLevel("loud")
	require.False(t, ok)
	_, ok = ParseLevel("")
	require.False(t, ok)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "1")

	cfg := DefaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	require.Equal(t, zerolog.ErrorLevel, cfg.Level)
	require.False(t, cfg.Timestamp)
	require.True(t, cfg.NoColor)
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig(ProfileTest)
	cfg.Output = &buf
	cfg.NoColor = true
	cfg.Level = zerolog.WarnLevel
	log := New(cfg)

	log.Info().Msg("quiet")
	log.Warn().Str("device", "/dev/ttyUSB0").Msg("loud")

	out := buf.String()
	require.NotContains(t, out, "quiet")
	require.Contains(t, out, "loud")
	require.Contains(t, out, "device=/dev/ttyUSB0")
}
