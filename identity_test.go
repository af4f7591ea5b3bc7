package streamtrace

import "testing"

func TestIDPoolGetReturnsDistinctValues(t *testing.T) {
	pool := newIDPool(4)
	defer pool.close()

	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		id := pool.get()
		if seen[id.String()] {
			t.Errorf("got duplicate id %q from pool", id.String())
		}
		seen[id.String()] = true
	}
}

func TestIDPoolCloseIsIdempotent(t *testing.T) {
	pool := newIDPool(2)
	pool.close()
	pool.close() // must not panic
}

func TestUUIDFactoryProducesDistinctIDs(t *testing.T) {
	f := NewUUIDFactory()
	defer f.(*uuidIDFactory).Close()

	a := f.NewID()
	b := f.NewID()
	if a.Equal(b) {
		t.Errorf("expected two generated ids to differ, both were %q", a.String())
	}
}

func TestIDFromStringRoundTrips(t *testing.T) {
	f := NewUUIDFactory()
	defer f.(*uuidIDFactory).Close()

	id := f.IDFromString("correlation-123")
	if id.String() != "correlation-123" {
		t.Errorf("expected IDFromString to round-trip, got %q", id.String())
	}
}

func TestIDEqualAndClone(t *testing.T) {
	a := stringID("x")
	b := stringID("x")
	c := stringID("y")

	if !a.Equal(b) {
		t.Error("expected equal ids built from the same string to be Equal")
	}
	if a.Equal(c) {
		t.Error("expected ids built from different strings not to be Equal")
	}
	if a.Clone().String() != a.String() {
		t.Error("expected Clone to preserve String()")
	}
}
