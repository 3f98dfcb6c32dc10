package engine

import (
	"context"

	"tiltd/pkg/protocol"
)

// Hub fans reported samples out to any number of subscribers. Slow
// subscribers lose their oldest pending samples, never the newest.
type Hub struct {
	broadcast  chan protocol.Sample
	register   chan chan protocol.Sample
	unregister chan chan protocol.Sample
	clients    map[chan protocol.Sample]struct{}
	clientBuf  int
	done       chan struct{}
}

type HubOption func(*Hub)

func WithBroadcastBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan protocol.Sample, size)
		}
	}
}

func WithClientBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		broadcast:  make(chan protocol.Sample, 64),
		register:   make(chan chan protocol.Sample),
		unregister: make(chan chan protocol.Sample),
		clients:    make(map[chan protocol.Sample]struct{}),
		clientBuf:  8,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case s := <-h.broadcast:
			for ch := range h.clients {
				deliverLatest(ch, s)
			}
		}
	}
}

// deliverLatest never blocks: a full client channel gives up its oldest item.
func deliverLatest(ch chan protocol.Sample, s protocol.Sample) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns nil once the hub has stopped.
func (h *Hub) Subscribe() chan protocol.Sample {
	return h.SubscribeWithBuffer(h.clientBuf)
}

func (h *Hub) SubscribeWithBuffer(size int) chan protocol.Sample {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan protocol.Sample, size)
	select {
	case h.register <- ch:
		return ch
	case <-h.done:
		return nil
	}
}

func (h *Hub) Unsubscribe(ch chan protocol.Sample) {
	select {
	case h.unregister <- ch:
	case <-h.done:
	}
}

// Publish hands s to the hub. It returns without delivering once the hub has
// stopped, so a sink built on it cannot wedge the reporter.
func (h *Hub) Publish(s protocol.Sample) {
	select {
	case h.broadcast <- s:
	case <-h.done:
	}
}

// Report makes the hub usable as a Sink.
func (h *Hub) Report(s protocol.Sample) {
	h.Publish(s)
}
