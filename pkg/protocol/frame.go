package protocol

import (
	"errors"
	"fmt"
	"math"
)

const (
	FrameSize = 32

	HeaderHigh = 0x5A
	HeaderLow  = 0xA5
	Terminator = 0xAA

	checksumStart  = 2
	checksumEnd    = 30
	checksumOffset = 30

	rollOffset  = 8
	pitchOffset = 10

	DefaultResolutionFactor = 364
	DefaultMinAngle         = -90.0
	DefaultMaxAngle         = 90.0
)

var (
	ErrBadLength        = errors.New("bad frame length")
	ErrBadToken         = errors.New("bad hex token")
	ErrBadFraming       = errors.New("bad frame markers")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Decoder turns validated 32-byte frames into samples. The zero value is not
// usable; start from DefaultDecoder.
type Decoder struct {
	ResolutionFactor float64
	MinAngle         float64
	MaxAngle         float64
}

func DefaultDecoder() Decoder {
	return Decoder{
		ResolutionFactor: DefaultResolutionFactor,
		MinAngle:         DefaultMinAngle,
		MaxAngle:         DefaultMaxAngle,
	}
}

// Decode uses DefaultDecoder.
func Decode(candidate []byte) (Sample, error) {
	return DefaultDecoder().Decode(candidate)
}

// Decode validates framing and extracts roll and pitch. A checksum mismatch is
// not an error: the sample is returned with ChecksumOK=false.
func (d Decoder) Decode(candidate []byte) (Sample, error) {
	if len(candidate) != FrameSize {
		return Sample{}, fmt.Errorf("%w: got %d bytes want %d", ErrBadLength, len(candidate), FrameSize)
	}
	if candidate[0] != HeaderHigh || candidate[1] != HeaderLow || candidate[FrameSize-1] != Terminator {
		return Sample{}, fmt.Errorf("%w: header %02X %02X terminator %02X",
			ErrBadFraming, candidate[0], candidate[1], candidate[FrameSize-1])
	}

	var s Sample
	copy(s.Frame[:], candidate)
	s.ChecksumOK = Checksum(candidate) == candidate[checksumOffset]
	s.Roll = d.Angle(RawAngle(candidate[rollOffset], candidate[rollOffset+1]))
	s.Pitch = d.Angle(RawAngle(candidate[pitchOffset], candidate[pitchOffset+1]))
	return s, nil
}

// Angle scales a raw reading to degrees, clamps after the divide and rounds
// to one decimal.
func (d Decoder) Angle(raw int16) float64 {
	v := float64(raw) / d.ResolutionFactor
	v = math.Max(math.Min(v, d.MaxAngle), d.MinAngle)
	return math.RoundToEven(v*10) / 10
}

// Checksum sums bytes[2:30] modulo 256. frame must hold at least 30 bytes.
func Checksum(frame []byte) byte {
	var sum byte
	for _, b := range frame[checksumStart:checksumEnd] {
		sum += b
	}
	return sum
}

// RawAngle assembles a big-endian two's complement 16-bit reading.
func RawAngle(hi, lo byte) int16 {
	return int16(uint16(hi)<<8 | uint16(lo))
}

// EncodeFrame builds a well-formed frame carrying the given raw readings.
func EncodeFrame(rollRaw int16, pitchRaw int16) [FrameSize]byte {
	var f [FrameSize]byte
	f[0] = HeaderHigh
	f[1] = HeaderLow
	f[rollOffset] = byte(uint16(rollRaw) >> 8)
	f[rollOffset+1] = byte(rollRaw)
	f[pitchOffset] = byte(uint16(pitchRaw) >> 8)
	f[pitchOffset+1] = byte(pitchRaw)
	f[checksumOffset] = Checksum(f[:])
	f[FrameSize-1] = Terminator
	return f
}

// RawFromDegrees is the inverse of Decoder.Angle before clamping, saturating
// at the int16 range.
func (d Decoder) RawFromDegrees(deg float64) int16 {
	v := math.Round(deg * d.ResolutionFactor)
	v = math.Max(math.Min(v, math.MaxInt16), math.MinInt16)
	return int16(v)
}
