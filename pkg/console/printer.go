package console

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/muesli/termenv"

	"tiltd/pkg/protocol"
)

const (
	colorPositive = "#00FF00"
	colorNegative = "#FF0000"
	colorLevel    = "#FFFFFF"
)

// AngleColor is green for positive tilt, red for negative and white at zero.
func AngleColor(angle float64) string {
	switch {
	case angle > 0:
		return colorPositive
	case angle < 0:
		return colorNegative
	default:
		return colorLevel
	}
}

// FormatAngle renders degrees with one decimal, as decoded.
func FormatAngle(angle float64) string {
	return strconv.FormatFloat(angle, 'f', 1, 64)
}

// Printer redraws the latest sample as plain text.
type Printer struct {
	mu    sync.Mutex
	out   *termenv.Output
	clear bool
}

type PrinterOption func(*printerConfig)

type printerConfig struct {
	clear   bool
	profile *termenv.Profile
}

// WithClearScreen clears the terminal before each report.
func WithClearScreen(clear bool) PrinterOption {
	return func(c *printerConfig) {
		c.clear = clear
	}
}

func WithProfile(p termenv.Profile) PrinterOption {
	return func(c *printerConfig) {
		c.profile = &p
	}
}

func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	cfg := printerConfig{clear: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	var outOpts []termenv.OutputOption
	if cfg.profile != nil {
		outOpts = append(outOpts, termenv.WithProfile(*cfg.profile))
	}
	return &Printer{
		out:   termenv.NewOutput(w, outOpts...),
		clear: cfg.clear,
	}
}

func (p *Printer) Report(s protocol.Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clear {
		p.out.ClearScreen()
	}
	fmt.Fprintf(p.out, "Hex: %s\n", protocol.FormatRecord(s.Frame[:]))
	fmt.Fprintf(p.out, "Status: %s\n", s.ChecksumStatus())
	fmt.Fprintf(p.out, "Roll: %s\n", p.angle(s.Roll))
	fmt.Fprintf(p.out, "Pitch: %s\n", p.angle(s.Pitch))
}

func (p *Printer) angle(v float64) string {
	return p.out.String(FormatAngle(v)).Foreground(p.out.Color(AngleColor(v))).String()
}
