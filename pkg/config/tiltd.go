package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const DefaultConfigPath = "tiltd.toml"

const (
	ConsolePlain = "plain"
	ConsoleTUI   = "tui"
	ConsoleNone  = "none"
)

type Config struct {
	Serial     SerialConfig  `toml:"serial"`
	TCP        TCPConfig     `toml:"tcp"`
	Decoder    DecoderConfig `toml:"decoder"`
	Report     ReportConfig  `toml:"report"`
	Bridge     BridgeConfig  `toml:"bridge"`
	Log        LogConfig     `toml:"log"`
	configPath string        `toml:"-"`
}

type SerialConfig struct {
	Device      string `toml:"device"`
	Baud        int    `toml:"baud"`
	ReadTimeout string `toml:"read_timeout"`
}

// TCPConfig selects a networked serial bridge instead of a local port when
// Addr is set.
type TCPConfig struct {
	Addr         string `toml:"addr"`
	Reconnect    string `toml:"reconnect"`
	ReconnectMax string `toml:"reconnect_max"`
	DialTimeout  string `toml:"dial_timeout"`
}

type DecoderConfig struct {
	ResolutionFactor float64 `toml:"resolution_factor"`
	MinAngle         float64 `toml:"min_angle"`
	MaxAngle         float64 `toml:"max_angle"`
	StrictChecksum   bool    `toml:"strict_checksum"`
}

type ReportConfig struct {
	ThrottleInterval string `toml:"throttle_interval"`
	Buffer           int    `toml:"buffer"`
	Console          string `toml:"console"`
	ClearScreen      bool   `toml:"clear_screen"`
	LogPath          string `toml:"log_path,omitempty"`
}

type BridgeConfig struct {
	WSAddr string `toml:"ws_addr,omitempty"`
	Name   string `toml:"name"`
}

type LogConfig struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
}

func Default() Config {
	return Config{
		Serial: SerialConfig{
			Device:      "",
			Baud:        9600,
			ReadTimeout: "1s",
		},
		TCP: TCPConfig{
			Reconnect:    "1s",
			ReconnectMax: "30s",
			DialTimeout:  "5s",
		},
		Decoder: DecoderConfig{
			ResolutionFactor: 364,
			MinAngle:         -90,
			MaxAngle:         90,
		},
		Report: ReportConfig{
			ThrottleInterval: "500ms",
			Buffer:           1,
			Console:          ConsolePlain,
			ClearScreen:      true,
		},
		Bridge: BridgeConfig{
			Name: "tiltd",
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads path over the defaults. A missing file is not an error;
// the returned bool reports whether it existed.
func LoadOrDefault(path string) (Config, bool, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.normalize(path)
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize(path)
	// A relative log path in a file is relative to that file.
	if cfg.Report.LogPath != "" && !filepath.IsAbs(cfg.Report.LogPath) {
		cfg.Report.LogPath = filepath.Join(filepath.Dir(path), cfg.Report.LogPath)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func (cfg *Config) Save(path string) error {
	cfg.normalize(path)
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (cfg *Config) ConfigPath() string {
	return cfg.configPath
}

func (cfg *Config) Validate() error {
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive: %d", cfg.Serial.Baud)
	}
	durations := []struct {
		key string
		val string
	}{
		{"serial.read_timeout", cfg.Serial.ReadTimeout},
		{"tcp.reconnect", cfg.TCP.Reconnect},
		{"tcp.reconnect_max", cfg.TCP.ReconnectMax},
		{"tcp.dial_timeout", cfg.TCP.DialTimeout},
		{"report.throttle_interval", cfg.Report.ThrottleInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive: %s", d.key, d.val)
		}
	}

	if cfg.Decoder.ResolutionFactor <= 0 {
		return fmt.Errorf("decoder.resolution_factor must be positive: %v", cfg.Decoder.ResolutionFactor)
	}
	if cfg.Decoder.MinAngle >= cfg.Decoder.MaxAngle {
		return fmt.Errorf("decoder.min_angle %v must be below max_angle %v", cfg.Decoder.MinAngle, cfg.Decoder.MaxAngle)
	}
	if cfg.Report.Buffer <= 0 {
		return fmt.Errorf("report.buffer must be positive: %d", cfg.Report.Buffer)
	}
	switch cfg.Report.Console {
	case ConsolePlain, ConsoleTUI, ConsoleNone:
	default:
		return fmt.Errorf("report.console must be one of %s, %s, %s: %q", ConsolePlain, ConsoleTUI, ConsoleNone, cfg.Report.Console)
	}
	return nil
}

func (cfg *Config) normalize(path string) {
	def := Default()

	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = def.Serial.Baud
	}
	if cfg.Serial.ReadTimeout == "" {
		cfg.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if cfg.TCP.Reconnect == "" {
		cfg.TCP.Reconnect = def.TCP.Reconnect
	}
	if cfg.TCP.ReconnectMax == "" {
		cfg.TCP.ReconnectMax = def.TCP.ReconnectMax
	}
	if cfg.TCP.DialTimeout == "" {
		cfg.TCP.DialTimeout = def.TCP.DialTimeout
	}
	if cfg.Decoder.ResolutionFactor == 0 {
		cfg.Decoder.ResolutionFactor = def.Decoder.ResolutionFactor
	}
	if cfg.Decoder.MinAngle == 0 && cfg.Decoder.MaxAngle == 0 {
		cfg.Decoder.MinAngle = def.Decoder.MinAngle
		cfg.Decoder.MaxAngle = def.Decoder.MaxAngle
	}
	if cfg.Report.ThrottleInterval == "" {
		cfg.Report.ThrottleInterval = def.Report.ThrottleInterval
	}
	if cfg.Report.Buffer <= 0 {
		cfg.Report.Buffer = def.Report.Buffer
	}
	cfg.Report.Console = strings.ToLower(strings.TrimSpace(cfg.Report.Console))
	if cfg.Report.Console == "" {
		cfg.Report.Console = def.Report.Console
	}
	if cfg.Bridge.Name == "" {
		cfg.Bridge.Name = def.Bridge.Name
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}

	if path == "" {
		path = cfg.configPath
	}
	if path == "" {
		path = DefaultConfigPath
	}
	cfg.configPath = path
}

// Durations are validated on load, so the accessors fall back to defaults
// only for hand-built configs.

func (cfg *Config) ReadTimeout() time.Duration {
	return durationOr(cfg.Serial.ReadTimeout, time.Second)
}

func (cfg *Config) ReconnectInterval() time.Duration {
	return durationOr(cfg.TCP.Reconnect, time.Second)
}

func (cfg *Config) ReconnectMax() time.Duration {
	return durationOr(cfg.TCP.ReconnectMax, 30*time.Second)
}

func (cfg *Config) DialTimeout() time.Duration {
	return durationOr(cfg.TCP.DialTimeout, 5*time.Second)
}

func (cfg *Config) ThrottleInterval() time.Duration {
	return durationOr(cfg.Report.ThrottleInterval, 500*time.Millisecond)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
