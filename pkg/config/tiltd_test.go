package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tiltd/pkg/config"
)

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 9600, cfg.Serial.Baud)
	require.Equal(t, time.Second, cfg.ReadTimeout())
	require.Equal(t, 500*time.Millisecond, cfg.ThrottleInterval())
	require.Equal(t, 30*time.Second, cfg.ReconnectMax())
	require.Equal(t, config.ConsolePlain, cfg.Report.Console)
	require.True(t, cfg.Report.ClearScreen)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, exists, err := config.LoadOrDefault(path)
	require.NoError(t, err)
	require.False(t, exists)
	require.Equal(t, path, cfg.ConfigPath())
	require.Equal(t, 364.0, cfg.Decoder.ResolutionFactor)

	_, err = config.Load(path)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadOrDefaultFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiltd.toml")
	mustWriteFile(t, path, `
[serial]
device = "/dev/ttyUSB1"

[report]
console = " TUI "
log_path = "logs/tilt.jsonl"
`)

	cfg, exists, err := config.LoadOrDefault(path)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)
	require.Equal(t, 9600, cfg.Serial.Baud)
	require.Equal(t, config.ConsoleTUI, cfg.Report.Console)
	require.True(t, cfg.Report.ClearScreen)
	require.Equal(t, filepath.Join(dir, "logs", "tilt.jsonl"), cfg.Report.LogPath)
	require.Equal(t, -90.0, cfg.Decoder.MinAngle)
	require.Equal(t, 90.0, cfg.Decoder.MaxAngle)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiltd.toml")
	mustWriteFile(t, path, `
[tcp]
addr = "10.0.0.5:4001"
reconnect = "250ms"
reconnect_max = "2s"

[decoder]
strict_checksum = true

[report]
throttle_interval = "1s"
clear_screen = false

[log]
timestamp = false
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5:4001", cfg.TCP.Addr)
	require.Equal(t, 250*time.Millisecond, cfg.ReconnectInterval())
	require.Equal(t, 2*time.Second, cfg.ReconnectMax())
	require.Equal(t, 5*time.Second, cfg.DialTimeout())
	require.True(t, cfg.Decoder.StrictChecksum)
	require.Equal(t, time.Second, cfg.ThrottleInterval())
	require.False(t, cfg.Report.ClearScreen)
	require.False(t, cfg.Log.Timestamp)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"duration": "[report]\nthrottle_interval = \"soon\"\n",
		"negative": "[serial]\nread_timeout = \"-1s\"\n",
		"console":  "[report]\nconsole = \"gui\"\n",
		"bounds":   "[decoder]\nmin_angle = 10.0\nmax_angle = -10.0\n",
		"syntax":   "[serial\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tiltd.toml")
			mustWriteFile(t, path, content)
			_, _, err := config.LoadOrDefault(path)
			require.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tiltd.toml")
	cfg := config.Default()
	cfg.Serial.Device = "COM3"
	cfg.Bridge.WSAddr = "127.0.0.1:8765"
	cfg.Report.Console = config.ConsoleNone
	require.NoError(t, cfg.Save(path))

	got, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "COM3", got.Serial.Device)
	require.Equal(t, "127.0.0.1:8765", got.Bridge.WSAddr)
	require.Equal(t, config.ConsoleNone, got.Report.Console)
	require.Equal(t, cfg.Decoder, got.Decoder)
}
