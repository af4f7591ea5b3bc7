// Package streamtrace records the execution of a server-side workload as
// an ordered stream of typed events, grouped into a hierarchy of spans,
// forwarded synchronously to a caller-supplied Delegate.
//
// A Trace is the root of one recording session: a single top-level Onset
// event describing what triggered it, any number of StageSpans and nested
// Spans opened beneath it, and a single terminal Outcome event. Every
// Span emits at most one terminal SpanClose, after all of its own live
// children have emitted theirs; closing or dropping a span force-closes
// its whole subtree first.
//
// Trace and Span are thread-affine: neither does any internal locking, so
// all calls against one Trace (and the Spans opened from it) must come
// from a single goroutine. Package-level DebugAssertions turns that and a
// handful of other contract violations into panics, for use in tests.
package streamtrace
