// Package sink provides optional, non-core Delegate adapters: buffering,
// backpressure, and batch export machinery that spec intentionally keeps
// out of the engine itself. Nothing here participates in trace ordering
// invariants - it only consumes whatever the engine emits.
package sink

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/zoobzio/streamtrace"
)

// BufferedDelegate adapts a streamtrace.Delegate into an asynchronous,
// backpressure-dropping sink: events are handed off to a channel and
// buffered by a dedicated goroutine, dropped under backpressure rather
// than blocking the trace that produced them. Safe for concurrent use by
// multiple goroutines, even though the Trace feeding it is not.
//
//nolint:govet // field order grouped by lifecycle role, not memory layout
type BufferedDelegate struct {
	eventsCh     chan streamtrace.StreamEvent
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	mu           sync.Mutex
	buf          *queue.Queue
	closed       atomic.Bool
	syncMode     bool
}

// NewBufferedDelegate creates a BufferedDelegate with the given channel
// buffer size and starts its background drain goroutine.
func NewBufferedDelegate(bufferSize int) *BufferedDelegate {
	d := &BufferedDelegate{
		eventsCh: make(chan streamtrace.StreamEvent, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		buf:      queue.New(),
	}
	go d.run()
	return d
}

func (d *BufferedDelegate) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stopCh:
			for {
				select {
				case ev := <-d.eventsCh:
					d.bufferLocked(ev)
				default:
					return
				}
			}
		case ev := <-d.eventsCh:
			d.bufferLocked(ev)
		}
	}
}

func (d *BufferedDelegate) bufferLocked(ev streamtrace.StreamEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.Add(ev)
}

// Delegate returns the streamtrace.Delegate to hand to streamtrace.New.
func (d *BufferedDelegate) Delegate() streamtrace.Delegate {
	return d.collect
}

// collect buffers ev with backpressure protection: if the channel is
// full, ev is dropped and the drop counter incremented, rather than
// blocking the trace that produced it. In sync mode events are buffered
// directly, for deterministic tests.
func (d *BufferedDelegate) collect(ev streamtrace.StreamEvent) {
	ev = ev.Clone()

	if d.syncMode {
		if d.closed.Load() {
			d.droppedCount.Add(1)
			return
		}
		d.bufferLocked(ev)
		return
	}

	select {
	case d.eventsCh <- ev:
	default:
		d.droppedCount.Add(1)
	}
}

// SetSyncMode enables synchronous buffering, bypassing the channel and
// background goroutine, for deterministic tests.
func (d *BufferedDelegate) SetSyncMode(sync bool) { d.syncMode = sync }

// Export returns every buffered event and clears the buffer.
func (d *BufferedDelegate) Export() []streamtrace.StreamEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.buf.Length()
	if n == 0 {
		return nil
	}
	out := make([]streamtrace.StreamEvent, n)
	for i := 0; i < n; i++ {
		out[i] = d.buf.Peek().(streamtrace.StreamEvent)
		d.buf.Remove()
	}
	return out
}

// Count returns the number of currently buffered events.
func (d *BufferedDelegate) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Length()
}

// DroppedCount returns the total number of events dropped, either to
// backpressure or, in sync mode, because the delegate was already closed.
func (d *BufferedDelegate) DroppedCount() int64 { return d.droppedCount.Load() }

// Close shuts the background goroutine down, draining anything still in
// the channel first. Safe to call more than once.
func (d *BufferedDelegate) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	close(d.stopCh)
	select {
	case <-d.done:
	case <-time.After(100 * time.Millisecond):
	}
}
