package console_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"tiltd/pkg/console"
	"tiltd/pkg/protocol"
)

func TestPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := console.NewPrinter(&buf, console.WithClearScreen(false), console.WithProfile(termenv.Ascii))

	frame := protocol.EncodeFrame(364, -364)
	s, err := protocol.Decode(frame[:])
	require.NoError(t, err)
	p.Report(s)

	want := strings.Join([]string{
		"Hex: " + protocol.FormatRecord(frame[:]),
		"Status: checksum verification successful",
		"Roll: 1.0",
		"Pitch: -1.0",
		"",
	}, "\n")
	require.Equal(t, want, buf.String())
}

func TestPrinterClearsScreen(t *testing.T) {
	var buf bytes.Buffer
	p := console.NewPrinter(&buf, console.WithProfile(termenv.Ascii))
	p.Report(protocol.Sample{})
	require.True(t, strings.HasPrefix(buf.String(), "\x1b["))
	require.Contains(t, buf.String(), "Roll: 0.0")
}

func TestAngleColor(t *testing.T) {
	require.Equal(t, "#00FF00", console.AngleColor(0.1))
	require.Equal(t, "#FF0000", console.AngleColor(-90))
	require.Equal(t, "#FFFFFF", console.AngleColor(0))
	require.Equal(t, "-90.0", console.FormatAngle(-90))
}
