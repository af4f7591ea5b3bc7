package streamtrace

import (
	"errors"
	"log/slog"
)

// Contract-violation sentinels. spec.md §7.1 classifies these as
// programmer errors: most engine methods simply no-op on them (see each
// method's doc comment for its specific conservative default); the few
// that spec.md calls out as fatal instead route through assertViolation.
var (
	// ErrTraceClosed is returned by (*Trace).SetEventInfo on a closed Trace.
	ErrTraceClosed = errors.New("streamtrace: trace is closed")
	// ErrOnsetAlreadySet is returned by a second call to (*Trace).SetEventInfo.
	ErrOnsetAlreadySet = errors.New("streamtrace: onset event info already set")
	// ErrEventInfoNotSet is returned by AddDropped when the trace's onset
	// EventInfo has not been set yet.
	ErrEventInfoNotSet = errors.New("streamtrace: event info must be set before other events")
	// ErrInvalidDroppedRange is returned by AddDropped when start > end or
	// the range falls outside previously allocated sequence numbers.
	ErrInvalidDroppedRange = errors.New("streamtrace: dropped range is invalid")
)

// DebugAssertions gates the handful of contract violations spec.md treats
// as fatal rather than a silent no-op: span/sequence counter overflow, a
// stage span emitting or closing before its SetEventInfo, a second
// SetEventInfo on a stage span, and a Trace touched from more than one
// goroutine. Production binaries leave
// this false (a silent no-op, the conservative release default); tests
// and local development set it true to turn the same violation into a
// panic, the way the teacher repo's reliability suite flips deterministic
// modes on for its own stress tests.
var DebugAssertions = false

// assertViolation panics with msg when DebugAssertions is enabled, and is
// a silent no-op (after logging at debug level) otherwise.
func assertViolation(msg string) {
	if DebugAssertions {
		panic("streamtrace: " + msg)
	}
	slog.Debug("streamtrace: contract violation suppressed", "violation", msg)
}

// reportBrokenDelegate is invoked when a delegate call panics. It mirrors
// the teacher repo's Tracer.safeCall: recover, optionally notify a
// caller-supplied hook, and always leave a diagnostic trail since - unlike
// span data, which flows to the delegate - there is no other channel to
// report the delegate itself having failed.
func reportBrokenDelegate(traceID string, hook PanicHook, r interface{}) {
	if hook != nil {
		hook(traceID, r)
	}
	slog.Error("streamtrace: delegate panicked, trace is now broken", "trace_id", traceID, "panic", r)
}
