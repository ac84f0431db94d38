package registry

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/barrier"
)

// Registry holds the barriers of one region. Readers load the current
// snapshot without locking; writers serialize on mu and publish a new one.
type Registry struct {
	region   Region
	role     Role
	cellSize float64
	epoch    uuid.UUID
	fanout   func(Mutation)

	mu       sync.Mutex
	snap     atomic.Pointer[Snapshot]
	watchers map[int]Observer
	nextW    int
}

func newRegistry(region Region, role Role, cellSize float64, fanout func(Mutation)) *Registry {
	r := &Registry{
		region:   region,
		role:     role,
		cellSize: cellSize,
		epoch:    uuid.New(),
		fanout:   fanout,
		watchers: map[int]Observer{},
	}
	r.snap.Store(emptySnapshot(region, r.epoch, cellSize))
	return r
}

func (r *Registry) Region() Region      { return r.region }
func (r *Registry) Role() Role          { return r.role }
func (r *Registry) Epoch() uuid.UUID    { return r.epoch }
func (r *Registry) Snapshot() *Snapshot { return r.snap.Load() }

// Watch returns the current snapshot and subscribes fn to every later
// mutation, with no gap or overlap between the two.
func (r *Registry) Watch(fn Observer) (*Snapshot, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextW
	r.nextW++
	r.watchers[id] = fn
	cancel := func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
	return r.snap.Load(), cancel
}

type change struct {
	kind    MutationKind
	b       *barrier.Barrier
	id      barrier.ID
	removed *barrier.Barrier
}

// publishLocked stores the new entries and notifies observers of each change
// in order. Callers hold mu.
func (r *Registry) publishLocked(cur *Snapshot, entries []entry, changes []change) *Snapshot {
	seq := cur.seq + uint64(len(changes))
	next := buildSnapshot(r.region, r.epoch, seq, r.cellSize, entries)
	r.snap.Store(next)

	seq = cur.seq
	for _, c := range changes {
		seq++
		m := Mutation{Region: r.region, Kind: c.kind, Epoch: r.epoch, Seq: seq, Barrier: c.b, ID: c.id, Removed: c.removed}
		if c.kind == MutationReset {
			m.Snapshot = next
		}
		r.notifyLocked(m)
	}
	return next
}

func (r *Registry) notifyLocked(m Mutation) {
	for _, fn := range r.watchers {
		fn(m)
	}
	if r.fanout != nil {
		r.fanout(m)
	}
}

func (r *Registry) add(b *barrier.Barrier, replace bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	e := newEntry(b, r.cellSize)
	var entries []entry
	if i, ok := cur.byID[b.ID]; ok {
		if !replace {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateID, b.ID, r.region)
		}
		entries = slices.Clone(cur.entries)
		entries[i] = e
	} else {
		entries = make([]entry, len(cur.entries), len(cur.entries)+1)
		copy(entries, cur.entries)
		entries = append(entries, e)
	}
	r.publishLocked(cur, entries, []change{{kind: MutationAdd, b: b, id: b.ID}})
	return nil
}

// removeWhere drops every barrier for which drop returns true and reports how many
// were removed.
func (r *Registry) removeWhere(drop func(*barrier.Barrier) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	var changes []change
	entries := make([]entry, 0, len(cur.entries))
	for _, e := range cur.entries {
		if drop(e.b) {
			changes = append(changes, change{kind: MutationRemove, id: e.b.ID, removed: e.b})
			continue
		}
		entries = append(entries, e)
	}
	if len(changes) == 0 {
		return 0
	}
	r.publishLocked(cur, entries, changes)
	return len(changes)
}

func (r *Registry) removeID(id barrier.ID) bool {
	if _, ok := r.snap.Load().Get(id); !ok {
		return false
	}
	return r.removeWhere(func(b *barrier.Barrier) bool { return b.ID == id }) > 0
}

func (r *Registry) reset(bs []*barrier.Barrier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	entries := make([]entry, 0, len(bs))
	pos := make(map[barrier.ID]int, len(bs))
	for _, b := range bs {
		e := newEntry(b, r.cellSize)
		if i, ok := pos[b.ID]; ok {
			entries[i] = e
			continue
		}
		pos[b.ID] = len(entries)
		entries = append(entries, e)
	}
	r.publishLocked(cur, entries, []change{{kind: MutationReset}})
}
