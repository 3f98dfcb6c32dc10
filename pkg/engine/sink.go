package engine

import "tiltd/pkg/protocol"

// Sink consumes reported samples: consoles, loggers, UI bridges.
type Sink interface {
	Report(protocol.Sample)
}

type SinkFunc func(protocol.Sample)

func (f SinkFunc) Report(s protocol.Sample) {
	f(s)
}

type fanout []Sink

// Fanout reports every sample to each sink in order.
func Fanout(sinks ...Sink) Sink {
	out := make(fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f fanout) Report(s protocol.Sample) {
	for _, sink := range f {
		sink.Report(s)
	}
}
