package streamtrace

import "time"

// SpanDescriptor identifies the span a StreamEvent occurred in. ID 0
// always denotes the root span (the trace itself); Parent is 0 when the
// parent is the root.
type SpanDescriptor struct {
	ID            uint32
	Parent        uint32
	Transactional bool
}

// StreamEvent is an immutable value produced by the engine and handed to
// the delegate by move. Events within one trace are totally ordered by
// Sequence, regardless of which span they occurred in.
type StreamEvent struct {
	TraceID   string
	Span      SpanDescriptor
	Timestamp time.Time
	Sequence  uint32
	Payload   Payload
}

// Clone returns an independent deep copy of e; mutating the clone's
// Payload never affects e's.
func (e StreamEvent) Clone() StreamEvent {
	out := e
	if e.Payload != nil {
		out.Payload = e.Payload.clonePayload()
	}
	return out
}
