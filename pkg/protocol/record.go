package protocol

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseRecord converts one delimited text record into a candidate frame.
// Records look like "Data Packet: 5A A5 00 ... AA"; a label ending in ':'
// before the first token and any non-token noise at either end are ignored.
func ParseRecord(line []byte) ([]byte, error) {
	line = bytes.TrimSpace(line)
	line = line[labelEnd(line):]

	tokens := bytes.Fields(line)
	start, end := 0, len(tokens)
	for start < end && !isHexToken(tokens[start]) {
		start++
	}
	for end > start && !isHexToken(tokens[end-1]) {
		end--
	}
	tokens = tokens[start:end]

	if len(tokens) != FrameSize {
		return nil, fmt.Errorf("%w: got %d tokens want %d", ErrBadLength, len(tokens), FrameSize)
	}

	out := make([]byte, FrameSize)
	for i, tok := range tokens {
		if !isHexToken(tok) {
			return nil, fmt.Errorf("%w: %q at position %d", ErrBadToken, tok, i)
		}
		if _, err := hex.Decode(out[i:i+1], tok); err != nil {
			return nil, fmt.Errorf("%w: %q at position %d", ErrBadToken, tok, i)
		}
	}
	return out, nil
}

// FormatRecord renders a frame in the wire form: upper-case, space separated.
func FormatRecord(frame []byte) string {
	var b strings.Builder
	b.Grow(len(frame) * 3)
	for i, v := range frame {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// labelEnd returns the offset just past a leading label such as
// "Data Packet:", or 0 when the first ':' follows a hex token.
func labelEnd(line []byte) int {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return 0
	}
	for _, tok := range bytes.Fields(line[:idx]) {
		if isHexToken(tok) {
			return 0
		}
	}
	return idx + 1
}

func isHexToken(tok []byte) bool {
	return len(tok) == 2 && isHexDigit(tok[0]) && isHexDigit(tok[1])
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
