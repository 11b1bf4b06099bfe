// Package stream defines the discriminated event envelope delivered to a
// single consumer (typically an SSE connection). Events are append-only;
// producers never read back what they emitted. Consumers must ignore event
// types they do not recognise.
package stream

// Event is one discriminated unit of incremental output.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Sink accepts events for delivery to the observer. Send returns an error
// when the consumer is gone; producers must stop issuing model calls once
// that happens.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

// Discard is a sink that drops every event. Useful in tests and for
// fire-and-forget runs.
var Discard Sink = SinkFunc(func(Event) error { return nil })
