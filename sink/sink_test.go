package sink

import (
	"testing"
	"time"

	"github.com/zoobzio/streamtrace"
)

func TestBufferedDelegateSyncModeCollectsAndExports(t *testing.T) {
	d := NewBufferedDelegate(4)
	defer d.Close()
	d.SetSyncMode(true)

	delegate := d.Delegate()
	delegate(streamtrace.StreamEvent{TraceID: "t0", Sequence: 0})
	delegate(streamtrace.StreamEvent{TraceID: "t0", Sequence: 1})

	if n := d.Count(); n != 2 {
		t.Fatalf("expected 2 buffered events, got %d", n)
	}

	events := d.Export()
	if len(events) != 2 {
		t.Fatalf("expected Export to return 2 events, got %d", len(events))
	}
	if d.Count() != 0 {
		t.Errorf("expected buffer to be empty after Export, got %d", d.Count())
	}
}

func TestBufferedDelegateDropsAfterClose(t *testing.T) {
	d := NewBufferedDelegate(4)
	d.SetSyncMode(true)
	d.Close()

	d.Delegate()(streamtrace.StreamEvent{TraceID: "t0"})

	if d.DroppedCount() != 1 {
		t.Errorf("expected 1 dropped event after close, got %d", d.DroppedCount())
	}
	if d.Count() != 0 {
		t.Errorf("expected no buffered events after close, got %d", d.Count())
	}
}

func TestBufferedDelegateAsyncDrainsToExport(t *testing.T) {
	d := NewBufferedDelegate(16)
	defer d.Close()

	delegate := d.Delegate()
	for i := 0; i < 5; i++ {
		delegate(streamtrace.StreamEvent{TraceID: "t0", Sequence: uint32(i)})
	}

	for i := 0; i < 100 && d.Count() != 5; i++ {
		time.Sleep(time.Millisecond)
	}
	if d.Count() != 5 {
		t.Fatalf("expected background goroutine to drain 5 events, got %d", d.Count())
	}
}

func TestBufferedDelegateCloseIsIdempotent(t *testing.T) {
	d := NewBufferedDelegate(1)
	d.Close()
	d.Close() // must not panic or block
}
