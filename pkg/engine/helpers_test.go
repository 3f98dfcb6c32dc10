package engine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tiltd/pkg/protocol"
	"tiltd/pkg/transport"
)

// chanSource serves records pushed on a channel and behaves like a timed
// serial read: nothing within timeout yields (nil, nil).
type chanSource struct {
	records chan []byte
	timeout time.Duration
	closes  atomic.Int32
	reads   atomic.Int32
}

func newChanSource(timeout time.Duration) *chanSource {
	return &chanSource{records: make(chan []byte, 64), timeout: timeout}
}

func (s *chanSource) ReadRecord(ctx context.Context) ([]byte, error) {
	s.reads.Add(1)
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case rec, ok := <-s.records:
		if !ok {
			return nil, transport.ErrClosed
		}
		return rec, nil
	case <-timer.C:
		return nil, nil
	}
}

func (s *chanSource) Close() error {
	s.closes.Add(1)
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	samples []protocol.Sample
	notify  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 128)}
}

func (r *recordingSink) Report(s protocol.Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recordingSink) Samples() []protocol.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Sample(nil), r.samples...)
}

func record(rollRaw, pitchRaw int16) []byte {
	f := protocol.EncodeFrame(rollRaw, pitchRaw)
	return []byte("Data Packet: " + protocol.FormatRecord(f[:]))
}

func sampleSeq(seq uint64) protocol.Sample {
	return protocol.Sample{Seq: seq, ChecksumOK: true}
}
