package main

import (
	"github.com/rs/zerolog"

	"tiltd/pkg/config"
	"tiltd/pkg/transport"
)

// openSource prefers the TCP bridge when one is configured.
func openSource(cfg config.Config, log zerolog.Logger) (transport.Source, error) {
	if cfg.TCP.Addr != "" {
		return transport.NewTCPSource(cfg.TCP.Addr,
			transport.WithReconnectInterval(cfg.ReconnectInterval()),
			transport.WithReconnectMax(cfg.ReconnectMax()),
			transport.WithDialTimeout(cfg.DialTimeout()),
			transport.WithReadTimeout(cfg.ReadTimeout()),
			transport.WithErrorHandler(func(err error) {
				log.Warn().Err(err).Str("addr", cfg.TCP.Addr).Msg("serial bridge unavailable")
			}),
		), nil
	}

	src, err := transport.OpenSerial(transport.SerialConfig{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.ReadTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

// sourceName labels the input for display.
func sourceName(cfg config.Config) string {
	switch {
	case cfg.TCP.Addr != "":
		return cfg.TCP.Addr
	case cfg.Serial.Device != "":
		return cfg.Serial.Device
	default:
		return "(mock)"
	}
}
