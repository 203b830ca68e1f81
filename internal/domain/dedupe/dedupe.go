// Package dedupe tracks score update event IDs so each update is applied at
// most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Status is the outcome of Reserve.
type Status int

const (
	// New means the caller now holds the ID and must Commit or Release it.
	New Status = iota
	// Pending means another caller holds the ID and has not finished.
	Pending
	// Seen means the ID was committed earlier.
	Seen
)

func (s Status) String() string {
	switch s {
	case New:
		return "new"
	case Pending:
		return "pending"
	case Seen:
		return "seen"
	default:
		return "unknown"
	}
}

// Deduper records event IDs in two steps: Reserve while the update is being
// queued, Commit once it is.
type Deduper interface {
	Reserve(ctx context.Context, id string) Status

	// Commit turns a reservation into a seen ID.
	Commit(ctx context.Context, id string)

	// Release drops a reservation so the update can be resubmitted.
	Release(ctx context.Context, id string)

	// Size counts committed IDs.
	Size() int64
}

// memoryDeduper keeps committed IDs in a map plus insertion order for
// eviction, and in-flight reservations in a separate set that is never
// evicted.
type memoryDeduper struct {
	mu      sync.Mutex
	maxSize int // <= 0 is unbounded
	seen    map[string]*list.Element
	order   *list.List
	pending map[string]struct{}
}

// NewInMemoryDeduper returns a Deduper bounded to 50k IDs unless WithMaxSize
// says otherwise.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &memoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	d.pending = make(map[string]struct{})
	return d
}

func (d *memoryDeduper) Reserve(_ context.Context, id string) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return Seen
	}
	if _, ok := d.pending[id]; ok {
		return Pending
	}
	d.pending[id] = struct{}{}
	return New
}

func (d *memoryDeduper) Commit(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.pending, id)
	if _, ok := d.seen[id]; ok {
		return
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.seen, oldest.Value.(string))
			d.order.Remove(oldest)
		}
	}
	d.seen[id] = d.order.PushBack(id)
}

func (d *memoryDeduper) Release(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
}

func (d *memoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
