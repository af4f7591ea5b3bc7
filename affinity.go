package streamtrace

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id by parsing the header
// line of its own stack trace. This is the standard trick reached for when
// something needs a goroutine id and the runtime exposes none: there is no
// published library in this repository's dependency corpus for it, so
// DESIGN.md records this as a deliberate stdlib-only exception rather than
// a missed opportunity to wire a third-party dependency.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if idx := bytes.IndexByte(buf, ' '); idx >= 0 {
		buf = buf[:idx]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// checkAffinity is a debug-only assertion that t is only ever touched from
// the goroutine that created it, matching spec's single-threaded
// cooperative model: there is no internal locking, so cross-goroutine use
// is undefined behavior that this makes loud in tests rather than silent
// in production. owner is captured lazily on first use rather than at
// construction, since a Trace is often handed off to its working goroutine
// after being built.
func (t *Trace) checkAffinity() {
	if !DebugAssertions {
		return
	}
	id := goroutineID()
	if t.owner == 0 {
		t.owner = id
		return
	}
	if t.owner != id {
		assertViolation("trace touched from more than one goroutine")
	}
}
