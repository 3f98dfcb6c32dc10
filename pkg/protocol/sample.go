package protocol

import (
	"encoding/hex"
	"time"
)

// Sample is one decoded frame. Roll and Pitch are in degrees.
type Sample struct {
	Roll       float64
	Pitch      float64
	ChecksumOK bool
	Frame      [FrameSize]byte

	// Stamped by the stream reader before the sample is published.
	Seq        uint64
	ReceivedAt time.Time
}

// Validate reports ErrChecksumMismatch for samples decoded from frames whose
// checksum did not match.
func (s Sample) Validate() error {
	if !s.ChecksumOK {
		return ErrChecksumMismatch
	}
	return nil
}

// FrameHex returns the raw frame as lowercase hex.
func (s Sample) FrameHex() string {
	return hex.EncodeToString(s.Frame[:])
}

// ChecksumStatus is the human readable checksum verdict shown by consoles.
func (s Sample) ChecksumStatus() string {
	if s.ChecksumOK {
		return "checksum verification successful"
	}
	return "checksum verification failed"
}
