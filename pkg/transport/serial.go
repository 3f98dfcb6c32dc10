package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

type SerialConfig struct {
	// Device path, e.g. "/dev/ttyUSB0" or "COM3".
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultSerialConfig matches the inclinometer firmware: 9600 8N1.
func DefaultSerialConfig(device string) SerialConfig {
	return SerialConfig{
		Device:      device,
		Baud:        9600,
		ReadTimeout: 1 * time.Second,
	}
}

// OpenSerial opens the port and returns a record source on top of it. Reads
// return no data once ReadTimeout passes, which keeps ReadRecord bounded.
func OpenSerial(cfg SerialConfig, opts ...Option) (*StreamSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device is required")
	}
	def := DefaultSerialConfig(cfg.Device)
	if cfg.Baud <= 0 {
		cfg.Baud = def.Baud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}

	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Device, err)
	}
	// Bytes buffered before we opened belong to a half-sent record.
	_ = port.ResetInputBuffer()

	return NewStreamSource(port, opts...), nil
}

type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListSerialPorts enumerates the serial ports present on the host.
func ListSerialPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}
