package streamtrace

import "math"

// spanNode is a single node in the Trace's span arena (see design notes:
// spans are arena entries owned by the Trace and addressed through
// trace-scoped handles, rather than holding a raw back-pointer to their
// parent - this removes the dangling-parent hazard entirely, since a
// closed Trace simply has no entries left for any outstanding handle to
// find).
type spanNode struct {
	id            uint32
	parent        uint32
	tags          Tags
	transactional bool
	isStage       bool
	eventInfoSet  bool
	// closing is set the instant a close (explicit or cascading) begins,
	// before children are cascaded and before the terminal event is
	// emitted. It guards against the span being closed again re-entrantly
	// from within a delegate callback fired by one of its own children's
	// closures, per spec: such a call must observe "already closed".
	closing bool
}

// Delegate consumes a StreamEvent by move, once per emitted event, in
// sequence order. It must not retain references that outlive the call and
// must be cheap and non-blocking from the engine's perspective; a
// panicking delegate breaks the trace (see PanicHook).
type Delegate func(StreamEvent)

// PanicHook is invoked, with the trace's Id and the recovered value, when
// a Delegate call panics. Optional; set via Trace.SetPanicHook.
type PanicHook func(traceID string, r interface{})

// Trace is the root of a streaming trace session: the owner of the span
// arena, the sequence/span-id counters, and the delegate. A Trace and all
// Spans opened from it are thread-affine to whatever goroutine created
// them - there is no internal locking, matching spec's single-threaded
// cooperative model.
//
//nolint:govet // field order grouped by lifecycle role, not memory layout
type Trace struct {
	id        Id
	onset     Onset
	delegate  Delegate
	clock     Clock
	panicHook PanicHook

	nextSpanID uint32
	nextSeq    uint32

	nodes    map[uint32]*spanNode
	children map[uint32][]uint32 // parent id (0 = root) -> child ids, creation order

	closed bool
	broken bool
	owner  uint64 // goroutine id, captured lazily; see affinity.go
}

// New creates a Trace. id is allocated immediately from factory; onset is
// captured but nothing is emitted yet - the Onset event is only sent once
// SetEventInfo attaches the triggering EventInfo.
func New(factory IDFactory, onset Onset, delegate Delegate, clock Clock) *Trace {
	return &Trace{
		id:         factory.NewID(),
		onset:      onset,
		delegate:   delegate,
		clock:      clock,
		nextSpanID: 1,
		nodes:      make(map[uint32]*spanNode),
		children:   make(map[uint32][]uint32),
	}
}

// ID returns the trace's correlation Id.
func (t *Trace) ID() Id { return t.id }

// Closed reports whether the trace has transitioned to its closed state.
func (t *Trace) Closed() bool { return t.closed }

// SetPanicHook installs a function called when a Delegate call panics.
func (t *Trace) SetPanicHook(hook PanicHook) { t.panicHook = hook }

// SetEventInfo attaches info to the trace's onset, exactly once, and
// emits the fully-populated Onset event on span 0. It is an error to call
// this more than once, or after the trace has closed.
func (t *Trace) SetEventInfo(info EventInfo) error {
	t.checkAffinity()
	if t.closed {
		return ErrTraceClosed
	}
	if t.onset.Info != nil {
		return ErrOnsetAlreadySet
	}
	t.onset.Info = &info
	t.emit(SpanDescriptor{}, t.onset.clone())
	return nil
}

// SetOutcome closes the trace. If already closed, this is a no-op. If the
// onset EventInfo was never attached, the trace has never reported
// anything meaningful: every live top-level span is force-closed with no
// event emitted, and the trace closes silently (see DESIGN.md's open
// question #1). Otherwise every live top-level span is force-closed with
// the outcome projected from outcome (cascading through all descendants,
// child-first), an Outcome event is emitted on span 0, and the trace
// closes.
func (t *Trace) SetOutcome(outcome TraceOutcome) {
	t.checkAffinity()
	if t.closed {
		return
	}
	if t.onset.Info == nil {
		t.forceCloseSilently(0)
		t.closed = true
		return
	}
	t.forceCloseChildren(0, projectOutcome(outcome))
	t.emit(SpanDescriptor{}, Outcome{Value: outcome})
	t.closed = true
}

// Drop behaves exactly as SetOutcome(TraceOutcomeUnknown). Call it when a
// trace is abandoned without an explicit disposition; Go has no
// deterministic destructors, so unlike the source implementation this
// must be called explicitly rather than relying on scope exit.
func (t *Trace) Drop() {
	t.SetOutcome(TraceOutcomeUnknown)
}

// AddDropped emits a Dropped event covering the sequence range [start,
// end]. The onset EventInfo must already be set; the range must be
// non-empty in the right direction and fall within previously allocated
// sequence numbers.
func (t *Trace) AddDropped(start, end uint32) error {
	t.checkAffinity()
	if t.closed {
		return nil
	}
	if t.onset.Info == nil {
		return ErrEventInfoNotSet
	}
	if start > end || end >= t.nextSeq {
		return ErrInvalidDroppedRange
	}
	t.emit(SpanDescriptor{}, Dropped{Start: start, End: end})
	return nil
}

// NewStageSpan allocates a new top-level Stage Span, or returns nil if the
// trace is closed. The stage span is registered before return; its first
// emission must be SetEventInfo.
func (t *Trace) NewStageSpan(tags Tags) *StageSpan {
	t.checkAffinity()
	if t.closed {
		return nil
	}
	span := t.newChildSpan(0, tags, SpanOptionNone)
	t.nodes[span.id].isStage = true
	return &StageSpan{Span: *span}
}

// nextSequence returns the next monotonic sequence number, starting at 0.
// Overflow is a fatal contract violation per spec; the domain does not
// expect traces to approach 2^32 events.
func (t *Trace) nextSequence() uint32 {
	seq := t.nextSeq
	if t.nextSeq == math.MaxUint32 {
		assertViolation("sequence counter overflow")
	}
	t.nextSeq++
	return seq
}

// allocateSpanID returns the next span id, starting at 1.
func (t *Trace) allocateSpanID() uint32 {
	id := t.nextSpanID
	if t.nextSpanID == math.MaxUint32 {
		assertViolation("span id counter overflow")
	}
	t.nextSpanID++
	return id
}

func (t *Trace) newChildSpan(parentID uint32, tags Tags, options SpanOptions) *Span {
	id := t.allocateSpanID()
	t.nodes[id] = &spanNode{
		id:            id,
		parent:        parentID,
		tags:          tags.Clone(),
		transactional: options&SpanOptionTransactional != 0,
	}
	t.children[parentID] = append(t.children[parentID], id)
	return &Span{trace: t, id: id}
}

func (t *Trace) removeChild(parentID, childID uint32) {
	list := t.children[parentID]
	for i, id := range list {
		if id == childID {
			t.children[parentID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// forceCloseChildren closes every live child of parentID, in creation
// order, cascading into grandchildren first so each child's terminal
// event precedes its own parent's (invariant 5).
func (t *Trace) forceCloseChildren(parentID uint32, outcome SpanOutcome) {
	ids := append([]uint32(nil), t.children[parentID]...)
	for _, id := range ids {
		t.forceCloseSpan(id, outcome)
	}
}

func (t *Trace) forceCloseSpan(id uint32, outcome SpanOutcome) {
	node, ok := t.nodes[id]
	if !ok || node.closing {
		return
	}
	node.closing = true
	t.forceCloseChildren(id, outcome)
	parent, transactional, isStage, eventInfoSet := node.parent, node.transactional, node.isStage, node.eventInfoSet
	delete(t.nodes, id)
	t.removeChild(parent, id)
	if isStage && !eventInfoSet {
		assertViolation("stage span force-closed before SetEventInfo")
		return
	}
	// Force-close never carries Info or Tags: the source cascade supplies
	// neither (see DESIGN.md's open question #2).
	t.emit(SpanDescriptor{ID: id, Parent: parent, Transactional: transactional},
		SpanClose{Outcome: outcome, Transactional: transactional})
}

// forceCloseSilently tears down the arena rooted at parentID without
// emitting anything, for the no-onset-info close path (open question #1).
func (t *Trace) forceCloseSilently(parentID uint32) {
	ids := t.children[parentID]
	for _, id := range ids {
		t.forceCloseSilently(id)
		delete(t.nodes, id)
	}
	delete(t.children, parentID)
}

// emit stamps payload with the next sequence number and the current clock
// reading, then dispatches it to the delegate. No-op if the trace is
// closed or already broken. A panic from the clock propagates to the
// caller and leaves the trace broken.
func (t *Trace) emit(span SpanDescriptor, payload Payload) {
	if t.closed || t.broken {
		return
	}
	stamped := false
	defer func() {
		if !stamped {
			t.broken = true
			t.closed = true
		}
	}()
	now := t.clock.Now()
	stamped = true
	ev := StreamEvent{
		TraceID:   t.id.String(),
		Span:      span,
		Timestamp: now,
		Sequence:  t.nextSequence(),
		Payload:   payload,
	}
	t.dispatch(ev)
}

// dispatch calls the delegate, recovering a panic into the broken state
// described in spec section 7: subsequent emissions are suppressed and no
// further Outcome is ever produced.
func (t *Trace) dispatch(ev StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.broken = true
			t.closed = true
			reportBrokenDelegate(t.id.String(), t.panicHook, r)
		}
	}()
	t.delegate(ev)
}
