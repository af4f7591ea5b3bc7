package streamtrace

import (
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// Id is an opaque, comparable, cloneable trace identifier. Applications
// should generally treat Ids as opaque strings.
type Id interface {
	String() string
	Equal(other Id) bool
	Clone() Id
}

// IDFactory produces the Id attached to a newly created Trace. The default
// implementation (NewUUIDFactory) returns random UUIDs and is appropriate
// for local development and standalone use; production hosts typically
// substitute a factory that sources correlation IDs from the ambient
// request context instead.
type IDFactory interface {
	// NewID returns a freshly generated Id.
	NewID() Id
	// IDFromString wraps an externally-sourced string as an Id, such that
	// IDFromString(s).String() == s.
	IDFromString(s string) Id
}

// stringID is the Id implementation shared by the default UUID factory
// and IDFromString: both are, structurally, just an opaque string.
type stringID string

func (s stringID) String() string { return string(s) }

func (s stringID) Equal(other Id) bool {
	o, ok := other.(stringID)
	return ok && s == o
}

func (s stringID) Clone() Id { return s }

// uuidIDFactory is the default IDFactory, generating random UUIDs via
// github.com/google/uuid, drawn from a background-refilled idPool since a
// single IDFactory is commonly shared across many concurrently-created
// Traces even though each Trace itself is thread-affine.
type uuidIDFactory struct {
	pool *idPool
}

// NewUUIDFactory returns the default random-UUID IDFactory. Callers that
// create many short-lived Traces over the process lifetime should keep a
// single factory instance around rather than constructing one per Trace,
// so the background pool amortizes generation cost.
func NewUUIDFactory() IDFactory {
	poolSize := runtime.NumCPU() * 4
	if poolSize < 8 {
		poolSize = 8
	}
	return &uuidIDFactory{pool: newIDPool(poolSize)}
}

func (f *uuidIDFactory) NewID() Id { return f.pool.get() }

func (f *uuidIDFactory) IDFromString(s string) Id { return stringID(s) }

// Close releases the factory's background refill goroutine. Safe to call
// more than once.
func (f *uuidIDFactory) Close() { f.pool.close() }

// idPool amortizes crypto/rand overhead for uuidIDFactory by generating
// Ids in a background goroutine ahead of demand, rather than on every
// NewID call. It is the one deliberately concurrency-safe type in this
// package.
type idPool struct {
	ids    chan Id
	stopCh chan struct{}
	mu     sync.Mutex
	closed bool
}

func newIDPool(capacity int) *idPool {
	pool := &idPool{
		ids:    make(chan Id, capacity),
		stopCh: make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// get returns a pooled Id, or generates one directly if the pool is
// momentarily empty under burst load.
func (p *idPool) get() Id {
	select {
	case id := <-p.ids:
		return id
	default:
		return stringID(uuid.NewString())
	}
}

func (p *idPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
			select {
			case p.ids <- stringID(uuid.NewString()):
			case <-p.stopCh:
				return
			}
		}
	}
}

// close shuts the pool down, stopping its refill goroutine. Safe to call
// more than once.
func (p *idPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}
