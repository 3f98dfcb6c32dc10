package engine

import (
	"sync"

	"tiltd/pkg/protocol"
)

// Handoff is a bounded, latest-wins channel between one producer and one
// consumer. When full, Push evicts the oldest queued sample instead of
// blocking. Close marks end of stream; consumers see the closed channel after
// every queued sample.
type Handoff struct {
	ch   chan protocol.Sample
	once sync.Once
}

func NewHandoff(capacity int) *Handoff {
	if capacity <= 0 {
		capacity = 1
	}
	return &Handoff{ch: make(chan protocol.Sample, capacity)}
}

// Push enqueues s and returns how many older samples were evicted to make
// room. Only the producer may call Push, and never after Close.
func (h *Handoff) Push(s protocol.Sample) int {
	dropped := 0
	for {
		select {
		case h.ch <- s:
			return dropped
		default:
		}
		select {
		case <-h.ch:
			dropped++
		default:
		}
	}
}

func (h *Handoff) C() <-chan protocol.Sample {
	return h.ch
}

func (h *Handoff) Len() int {
	return len(h.ch)
}

func (h *Handoff) Cap() int {
	return cap(h.ch)
}

func (h *Handoff) Close() {
	h.once.Do(func() {
		close(h.ch)
	})
}
