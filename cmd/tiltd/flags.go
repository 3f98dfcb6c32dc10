package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tiltd/pkg/config"
)

// pipelineFlags are shared by the commands that run a pipeline. Flags the
// user set win over the config file.
type pipelineFlags struct {
	configPath string
	logPath    string
	console    string
	clear      bool
	wsAddr     string
	interval   time.Duration
	strict     bool
	logLevel   string
	duration   time.Duration
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	def := config.Default()
	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", config.DefaultConfigPath, "TOML config file")
	fs.StringVar(&f.logPath, "log", "", "append reported samples as JSONL to this file")
	fs.StringVar(&f.console, "console", def.Report.Console, "console output: plain, tui or none")
	fs.BoolVar(&f.clear, "clear", def.Report.ClearScreen, "clear the terminal before each plain report")
	fs.StringVar(&f.wsAddr, "ws", "", "serve the live gauge over websocket on this address")
	fs.DurationVar(&f.interval, "interval", 500*time.Millisecond, "minimum time between reports")
	fs.BoolVar(&f.strict, "strict", false, "discard frames whose checksum does not match")
	fs.StringVar(&f.logLevel, "log-level", def.Log.Level, "log level: trace, debug, info, warn, error, off")
	fs.DurationVar(&f.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
}

func (f *pipelineFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, _, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("log") {
		cfg.Report.LogPath = f.logPath
	}
	if fs.Changed("console") {
		cfg.Report.Console = strings.ToLower(f.console)
	}
	if fs.Changed("clear") {
		cfg.Report.ClearScreen = f.clear
	}
	if fs.Changed("ws") {
		cfg.Bridge.WSAddr = f.wsAddr
	}
	if fs.Changed("interval") {
		cfg.Report.ThrottleInterval = f.interval.String()
	}
	if fs.Changed("strict") {
		cfg.Decoder.StrictChecksum = f.strict
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, usageError{err: err}
	}
	return cfg, nil
}
