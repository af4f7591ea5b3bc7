package streamtrace

import "time"

// SpanOptions is a bitset of creation-time options for a new child span.
type SpanOptions uint8

const (
	SpanOptionNone SpanOptions = 0
	// SpanOptionTransactional marks the span as transactional: a
	// SpanClose with outcome canceled or exception on a transactional
	// span signals downstream consumers to discard that span's (and its
	// descendants') events. The engine itself never retracts anything -
	// this is purely a marker interpreted by consumers.
	SpanOptionTransactional SpanOptions = 1 << 0
)

// Span is a trace-scoped handle into a live span arena entry. Its state
// lives entirely in its owning Trace; once the span is closed (explicitly,
// via cascade, or because the trace closed), the handle simply finds
// nothing when it looks itself up and every method becomes a no-op. There
// is no separate "is this handle stale" check to forget.
type Span struct {
	trace *Trace
	id    uint32
}

// ID returns the span's id, unique within its trace.
func (s *Span) ID() uint32 { return s.id }

func (s *Span) node() (*spanNode, bool) {
	node, ok := s.trace.nodes[s.id]
	if !ok || node.closing || s.trace.closed {
		return nil, false
	}
	return node, true
}

// ParentID returns the id of the span that opened this one, or 0 if this
// is a top-level stage span.
func (s *Span) ParentID() uint32 {
	if node, ok := s.trace.nodes[s.id]; ok {
		return node.parent
	}
	return 0
}

// Transactional reports whether this span was opened with
// SpanOptionTransactional.
func (s *Span) Transactional() bool {
	if node, ok := s.trace.nodes[s.id]; ok {
		return node.transactional
	}
	return false
}

// NewChildSpan allocates a new child of s, or returns nil if s (or its
// trace) is already closed. timestamp is accepted for signature parity
// with the triggering event's own clock reading but is not itself used to
// stamp any emission - this design has no span-open event, only
// terminal ones, so there is nothing for a start timestamp to label.
func (s *Span) NewChildSpan(timestamp time.Time, tags Tags, options SpanOptions) *Span {
	_ = timestamp
	s.trace.checkAffinity()
	if _, ok := s.node(); !ok {
		return nil
	}
	return s.trace.newChildSpan(s.id, tags, options)
}

// SetOutcome closes s. If s is already terminal (or its trace is closed),
// this is a no-op - including when called re-entrantly, from within a
// delegate callback fired by one of s's own children's terminal events,
// before s's own terminal event has gone out. Otherwise every live child
// of s is force-closed first, in creation order, then a SpanClose event
// carrying outcome, info and tags is emitted under s's id - unless s is a
// stage span that never received its own SetEventInfo, in which case
// emitting that SpanClose would make it the stage's first event instead
// of an EventInfo, violating the same ordering SetEventInfo itself exists
// to guarantee; that case is routed through assertViolation instead.
func (s *Span) SetOutcome(outcome SpanOutcome, info *EventInfo, tags Tags) {
	s.trace.checkAffinity()
	t := s.trace
	node, ok := t.nodes[s.id]
	if !ok || node.closing || t.closed {
		return
	}
	node.closing = true
	t.forceCloseChildren(s.id, outcome)
	parent, transactional, isStage, eventInfoSet := node.parent, node.transactional, node.isStage, node.eventInfoSet
	delete(t.nodes, s.id)
	t.removeChild(parent, s.id)
	if isStage && !eventInfoSet {
		assertViolation("stage span closed before SetEventInfo")
		return
	}
	t.emit(SpanDescriptor{ID: s.id, Parent: parent, Transactional: transactional},
		SpanClose{Outcome: outcome, Info: info, Tags: tags.Clone(), Transactional: transactional})
}

// Drop behaves exactly as SetOutcome(SpanOutcomeUnknown, nil, nil): it
// emits a terminal SpanClose if the span (and its trace) are still live,
// and is silent if the trace has already closed - by the time a trace
// closes, every span beneath it has already been force-closed by the
// cascade, so there is nothing left here to find.
func (s *Span) Drop() {
	s.SetOutcome(SpanOutcomeUnknown, nil, nil)
}

func (s *Span) emitDetail(p Payload) {
	s.trace.checkAffinity()
	node, ok := s.node()
	if !ok {
		return
	}
	if node.isStage && !node.eventInfoSet {
		assertViolation("stage span emitted a detail event before SetEventInfo")
		return
	}
	s.trace.emit(SpanDescriptor{ID: s.id, Parent: node.parent, Transactional: node.transactional}, p)
}

// AddLog emits a structured log line under s.
func (s *Span) AddLog(log LogV2) { s.emitDetail(log) }

// AddException emits an uncaught-error record under s.
func (s *Span) AddException(exc Exception) { s.emitDetail(exc) }

// AddDiagnosticChannelEvent forwards a diagnostics-channel message under s.
func (s *Span) AddDiagnosticChannelEvent(e DiagnosticChannelEvent) { s.emitDetail(e) }

// AddMark emits a named checkpoint under s.
func (s *Span) AddMark(name string) { s.emitDetail(Mark{Name: name}) }

// AddMetrics emits a batch of measurements under s.
func (s *Span) AddMetrics(ms MetricsBatch) { s.emitDetail(ms.Clone()) }

// AddSubrequest announces an outgoing call made from within s, prior to
// its outcome being known.
func (s *Span) AddSubrequest(sub Subrequest) { s.emitDetail(sub.clone()) }

// AddSubrequestOutcome reports the disposition of a previously announced
// Subrequest.
func (s *Span) AddSubrequestOutcome(o SubrequestOutcome) { s.emitDetail(o) }

// AddCustom emits a free-form tag set under s, for host-specific detail
// that doesn't fit any other payload kind.
func (s *Span) AddCustom(tags Tags) { s.emitDetail(tags.Clone()) }
