package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"tiltd/pkg/config"
)

func newRunCmd() *cobra.Command {
	var (
		pf          pipelineFlags
		device      string
		baud        int
		tcpAddr     string
		readTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read frames from a serial port or TCP serial bridge and report them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pf.load(cmd)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("device") {
				cfg.Serial.Device = device
			}
			if fs.Changed("baud") {
				cfg.Serial.Baud = baud
			}
			if fs.Changed("tcp") {
				cfg.TCP.Addr = tcpAddr
			}
			if fs.Changed("read-timeout") {
				cfg.Serial.ReadTimeout = readTimeout.String()
			}
			if err := cfg.Validate(); err != nil {
				return usageError{err: err}
			}
			if cfg.Serial.Device == "" && cfg.TCP.Addr == "" {
				return usageError{err: errors.New("no input: set --device or --tcp")}
			}

			log := setupLogging(cfg, cmd.ErrOrStderr())
			src, err := openSource(cfg, log)
			if err != nil {
				return err
			}
			log.Info().
				Str("device", cfg.Serial.Device).
				Str("tcp", cfg.TCP.Addr).
				Dur("interval", cfg.ThrottleInterval()).
				Msg("reading tilt frames")

			ctx, stop := signalContext(cmd.Context(), pf.duration)
			defer stop()
			return serve(ctx, cfg, src, cmd.InOrStdin(), cmd.OutOrStdout(), log)
		},
	}

	pf.register(cmd)
	def := config.Default()
	fs := cmd.Flags()
	fs.StringVarP(&device, "device", "d", "", "serial device, e.g. /dev/ttyUSB0 or COM3")
	fs.IntVarP(&baud, "baud", "b", def.Serial.Baud, "serial baud rate")
	fs.StringVar(&tcpAddr, "tcp", "", "read from a TCP serial bridge at host:port instead of a local port")
	fs.DurationVar(&readTimeout, "read-timeout", time.Second, "bound on each read from the device")
	return cmd
}
