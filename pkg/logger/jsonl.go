package logger

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"tiltd/pkg/protocol"
)

// JSONLWriter writes one JSON object per reported sample.
type JSONLWriter struct {
	mu   sync.Mutex
	enc  *json.Encoder
	err  error
	errs int
}

type jsonRecord struct {
	TS         string  `json:"ts"`
	Seq        uint64  `json:"seq"`
	Roll       float64 `json:"roll"`
	Pitch      float64 `json:"pitch"`
	ChecksumOK bool    `json:"checksum_ok"`
	FrameHex   string  `json:"frame_hex"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Report(s protocol.Sample) {
	ts := s.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := jsonRecord{
		TS:         ts.UTC().Format(time.RFC3339Nano),
		Seq:        s.Seq,
		Roll:       s.Roll,
		Pitch:      s.Pitch,
		ChecksumOK: s.ChecksumOK,
		FrameHex:   s.FrameHex(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(rec); err != nil {
		j.err = err
		j.errs++
	}
}

// Failures returns how many writes failed and the last write error.
func (j *JSONLWriter) Failures() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errs, j.err
}
