package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
)

const DefaultCellSize = 16

var errNilBarrier = errors.New("registry: nil barrier")

type observerSlot struct {
	id int
	fn Observer
}

// Manager owns one Registry per region. The region table is copy-on-write so
// lookups never lock.
type Manager struct {
	role     Role
	cellSize float64

	mu        sync.Mutex
	regions   atomic.Pointer[map[Region]*Registry]
	observers atomic.Pointer[[]observerSlot]
	nextObs   int
}

// NewManager creates an empty manager. cellSize <= 0 selects
// DefaultCellSize.
func NewManager(role Role, cellSize float64) *Manager {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	m := &Manager{role: role, cellSize: cellSize}
	empty := map[Region]*Registry{}
	m.regions.Store(&empty)
	m.observers.Store(&[]observerSlot{})
	return m
}

func (m *Manager) Role() Role { return m.role }

// Observe subscribes fn to mutations of every region, present and future.
func (m *Manager) Observe(fn Observer) (cancel func()) {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	next := append(append([]observerSlot(nil), *m.observers.Load()...), observerSlot{id: id, fn: fn})
	m.observers.Store(&next)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		cur := *m.observers.Load()
		next := make([]observerSlot, 0, len(cur))
		for _, s := range cur {
			if s.id != id {
				next = append(next, s)
			}
		}
		m.observers.Store(&next)
	}
}

func (m *Manager) fanout(mut Mutation) {
	for _, s := range *m.observers.Load() {
		s.fn(mut)
	}
}

func (m *Manager) lookup(region Region) *Registry {
	return (*m.regions.Load())[region]
}

// Registry returns the registry for region, creating it if needed.
func (m *Manager) Registry(region Region) *Registry {
	if r := m.lookup(region); r != nil {
		return r
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := *m.regions.Load()
	if r, ok := cur[region]; ok {
		return r
	}
	next := make(map[Region]*Registry, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	r := newRegistry(region, m.role, m.cellSize, m.fanout)
	next[region] = r
	m.regions.Store(&next)
	return r
}

// Regions lists known regions sorted by world then dimension.
func (m *Manager) Regions() []Region {
	cur := *m.regions.Load()
	out := make([]Region, 0, len(cur))
	for r := range cur {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].World != out[j].World {
			return out[i].World < out[j].World
		}
		return out[i].Dimension < out[j].Dimension
	})
	return out
}

// Snapshot returns the current view of region; an unknown region yields an
// empty snapshot.
func (m *Manager) Snapshot(region Region) *Snapshot {
	if r := m.lookup(region); r != nil {
		return r.Snapshot()
	}
	return emptySnapshot(region, uuid.Nil, m.cellSize)
}

// QueryArea returns the barriers of region overlapping area in registration
// order.
func (m *Manager) QueryArea(region Region, area geom.Box) []*barrier.Barrier {
	r := m.lookup(region)
	if r == nil {
		return nil
	}
	return r.Snapshot().QueryArea(area)
}

func (m *Manager) Get(region Region, id barrier.ID) (*barrier.Barrier, bool) {
	r := m.lookup(region)
	if r == nil {
		return nil, false
	}
	return r.Snapshot().Get(id)
}

// own validates b and returns the value the registry stores. Barriers not
// built by barrier.New are copied.
func own(b *barrier.Barrier) (*barrier.Barrier, error) {
	if b == nil {
		return nil, errNilBarrier
	}
	return b.Own()
}

// Register adds b to region. The region is left unchanged on any error.
func (m *Manager) Register(region Region, b *barrier.Barrier) error {
	if m.role != RoleAuthoritative {
		return ErrReadOnly
	}
	b, err := own(b)
	if err != nil {
		return err
	}
	return m.Registry(region).add(b, false)
}

// Unregister removes id from region. Unknown regions and ids are a no-op.
func (m *Manager) Unregister(region Region, id barrier.ID) (bool, error) {
	if m.role != RoleAuthoritative {
		return false, ErrReadOnly
	}
	r := m.lookup(region)
	if r == nil {
		return false, nil
	}
	return r.removeID(id), nil
}

// RemoveArea removes every barrier of region overlapping area.
func (m *Manager) RemoveArea(region Region, area geom.Box) (int, error) {
	if m.role != RoleAuthoritative {
		return 0, ErrReadOnly
	}
	r := m.lookup(region)
	if r == nil {
		return 0, nil
	}
	return r.removeWhere(func(b *barrier.Barrier) bool { return b.Overlaps(area) }), nil
}

// Drop removes every barrier of region. The registry itself stays so that
// watchers keep receiving later mutations.
func (m *Manager) Drop(region Region) (int, error) {
	if m.role != RoleAuthoritative {
		return 0, ErrReadOnly
	}
	r := m.lookup(region)
	if r == nil {
		return 0, nil
	}
	return r.removeWhere(func(*barrier.Barrier) bool { return true }), nil
}

// Expire removes barriers whose lifetime ended before tick, in every region.
func (m *Manager) Expire(tick uint64) (int, error) {
	if m.role != RoleAuthoritative {
		return 0, ErrReadOnly
	}
	n := 0
	for _, r := range *m.regions.Load() {
		n += r.removeWhere(func(b *barrier.Barrier) bool { return b.Expired(tick) })
	}
	return n, nil
}

// ApplyAdd registers b or replaces the barrier with the same id.
func (m *Manager) ApplyAdd(region Region, b *barrier.Barrier) error {
	if m.role != RoleMirrored {
		return ErrNotMirrored
	}
	b, err := own(b)
	if err != nil {
		return err
	}
	return m.Registry(region).add(b, true)
}

// ApplyRemove removes id; an unknown id is a no-op.
func (m *Manager) ApplyRemove(region Region, id barrier.ID) error {
	if m.role != RoleMirrored {
		return ErrNotMirrored
	}
	if r := m.lookup(region); r != nil {
		r.removeID(id)
	}
	return nil
}

// ApplySnapshot replaces the whole barrier set of region. Nothing changes if
// any barrier fails validation.
func (m *Manager) ApplySnapshot(region Region, bs []*barrier.Barrier) error {
	if m.role != RoleMirrored {
		return ErrNotMirrored
	}
	owned := make([]*barrier.Barrier, len(bs))
	for i, b := range bs {
		ob, err := own(b)
		if err != nil {
			return fmt.Errorf("snapshot barrier %d: %w", i, err)
		}
		owned[i] = ob
	}
	m.Registry(region).reset(owned)
	return nil
}

type RegionStats struct {
	Region        Region    `json:"region"`
	Epoch         uuid.UUID `json:"epoch"`
	Seq           uint64    `json:"seq"`
	Barriers      int       `json:"barriers"`
	BoundingBoxes int       `json:"bounding_boxes"`
}

type Stats struct {
	Role     string        `json:"role"`
	Barriers int           `json:"barriers"`
	Regions  []RegionStats `json:"regions"`
}

func (m *Manager) Stats() Stats {
	st := Stats{Role: m.role.String()}
	for _, region := range m.Regions() {
		snap := m.Snapshot(region)
		rs := RegionStats{Region: region, Epoch: snap.Epoch(), Seq: snap.Seq(), Barriers: snap.Len()}
		for i := range snap.entries {
			rs.BoundingBoxes += len(snap.entries[i].b.BoundingBoxes)
		}
		st.Barriers += rs.Barriers
		st.Regions = append(st.Regions, rs)
	}
	return st
}
