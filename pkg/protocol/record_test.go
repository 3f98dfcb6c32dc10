package protocol_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tiltd/pkg/protocol"
)

func TestParseRecordRoundTrip(t *testing.T) {
	f := protocol.EncodeFrame(364, -364)
	line := protocol.FormatRecord(f[:])
	require.True(t, strings.HasPrefix(line, "5A A5 00"))
	require.True(t, strings.HasSuffix(line, " AA"))

	got, err := protocol.ParseRecord([]byte(line + "\r\n"))
	require.NoError(t, err)
	require.Equal(t, f[:], got)
}

func TestParseRecordStripsNoise(t *testing.T) {
	f := protocol.EncodeFrame(100, 200)
	body := protocol.FormatRecord(f[:])

	cases := []string{
		"Data Packet: " + body,
		"Data Packet:" + body,
		"  " + strings.ToLower(body) + "  ",
		">>> " + body + " <<<",
		"\x00 " + body + " ok",
		"Data Packet: " + body + " t=12:30:01",
		body + " rx:ok",
		"Data Packet:" + body + " rx:ok t=12:30",
	}
	for _, line := range cases {
		got, err := protocol.ParseRecord([]byte(line))
		require.NoError(t, err, "line %q", line)
		require.Equal(t, f[:], got, "line %q", line)
	}
}

func TestParseRecordWrongTokenCount(t *testing.T) {
	f := protocol.EncodeFrame(0, 0)
	tokens := strings.Fields(protocol.FormatRecord(f[:]))

	_, err := protocol.ParseRecord([]byte(strings.Join(tokens[:31], " ")))
	require.ErrorIs(t, err, protocol.ErrBadLength)

	_, err = protocol.ParseRecord([]byte(strings.Join(append(tokens, "00"), " ")))
	require.ErrorIs(t, err, protocol.ErrBadLength)

	_, err = protocol.ParseRecord(nil)
	require.ErrorIs(t, err, protocol.ErrBadLength)
}

func TestParseRecordBadInteriorToken(t *testing.T) {
	f := protocol.EncodeFrame(0, 0)
	tokens := strings.Fields(protocol.FormatRecord(f[:]))
	tokens[5] = "ZZ"

	_, err := protocol.ParseRecord([]byte(strings.Join(tokens, " ")))
	require.ErrorIs(t, err, protocol.ErrBadToken)
}

func TestParseRecordColonAfterFrameIsNotALabel(t *testing.T) {
	f := protocol.EncodeFrame(0, 0)
	body := protocol.FormatRecord(f[:])

	// A colon after the first token stays part of that token.
	_, err := protocol.ParseRecord([]byte("5A A5: " + body[6:]))
	require.ErrorIs(t, err, protocol.ErrBadToken)
}
