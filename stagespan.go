package streamtrace

import "time"

// StageSpan is a top-level Span opened directly on a Trace (parent id 0).
// Its one extra obligation is SetEventInfo: a stage span must report what
// triggered it before it reports anything else about what happened during
// it, the same way a Trace must report its own Onset EventInfo before
// anything downstream of it means much.
type StageSpan struct {
	Span
}

// SetEventInfo attaches the EventInfo describing what triggered this
// stage, and emits it as this span's first event. Calling it a second
// time is a contract violation (see DebugAssertions); calling it after
// the stage (or its trace) has closed is a silent no-op, the same as
// every other post-close emission attempt. timestamp is accepted but not
// used: the emitted event is stamped from the trace's Clock.
func (s *StageSpan) SetEventInfo(timestamp time.Time, info EventInfo) {
	_ = timestamp
	s.trace.checkAffinity()
	node, ok := s.node()
	if !ok {
		return
	}
	if node.eventInfoSet {
		assertViolation("stage span event info set more than once")
		return
	}
	node.eventInfoSet = true
	s.trace.emit(SpanDescriptor{ID: s.id, Parent: node.parent, Transactional: node.transactional}, info.clone())
}
