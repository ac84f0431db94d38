package registry

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
)

// Region scopes barriers to one world dimension. Barriers in different
// regions never interact.
type Region struct {
	World     string `json:"world_id"`
	Dimension string `json:"dimension"`
}

func (r Region) String() string { return r.World + "/" + r.Dimension }

// maxIndexedCells bounds how many grid columns one barrier may occupy; wider
// barriers go to the always-checked list.
const maxIndexedCells = 4096

type cellKey struct{ x, z int }

type cellSpan struct{ x0, z0, x1, z1 int }

type entry struct {
	b    *barrier.Barrier
	hull geom.Box
	span cellSpan
	wide bool
}

// Snapshot is an immutable point-in-time view of one region. Entries are
// kept in registration order.
type Snapshot struct {
	region   Region
	epoch    uuid.UUID
	seq      uint64
	cellSize float64

	entries []entry
	byID    map[barrier.ID]int32
	cells   map[cellKey][]int32
	wide    []int32
}

func emptySnapshot(region Region, epoch uuid.UUID, cellSize float64) *Snapshot {
	return &Snapshot{region: region, epoch: epoch, cellSize: cellSize}
}

func buildSnapshot(region Region, epoch uuid.UUID, seq uint64, cellSize float64, entries []entry) *Snapshot {
	s := &Snapshot{
		region:   region,
		epoch:    epoch,
		seq:      seq,
		cellSize: cellSize,
		entries:  entries,
		byID:     make(map[barrier.ID]int32, len(entries)),
		cells:    map[cellKey][]int32{},
	}
	for i := range entries {
		idx := int32(i)
		e := &entries[i]
		s.byID[e.b.ID] = idx
		if e.wide {
			s.wide = append(s.wide, idx)
			continue
		}
		for x := e.span.x0; x <= e.span.x1; x++ {
			for z := e.span.z0; z <= e.span.z1; z++ {
				k := cellKey{x, z}
				s.cells[k] = append(s.cells[k], idx)
			}
		}
	}
	return s
}

func newEntry(b *barrier.Barrier, cellSize float64) entry {
	e := entry{b: b, hull: b.Bounds()}
	x0, z0, x1, z1, n, ok := cellRange(e.hull, cellSize)
	if !ok || n > maxIndexedCells {
		e.wide = true
		return e
	}
	e.span = cellSpan{int(x0), int(z0), int(x1), int(z1)}
	return e
}

// cellRange returns the inclusive column range of box and the number of
// columns it spans. ok is false for non-finite boxes.
func cellRange(box geom.Box, cellSize float64) (x0, z0, x1, z1, n float64, ok bool) {
	x0 = math.Floor(box.Min[0] / cellSize)
	z0 = math.Floor(box.Min[2] / cellSize)
	x1 = math.Floor(box.Max[0] / cellSize)
	z1 = math.Floor(box.Max[2] / cellSize)
	for _, v := range [4]float64{x0, z0, x1, z1} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			return 0, 0, 0, 0, 0, false
		}
	}
	return x0, z0, x1, z1, (x1 - x0 + 1) * (z1 - z0 + 1), true
}

func (s *Snapshot) Region() Region   { return s.region }
func (s *Snapshot) Epoch() uuid.UUID { return s.epoch }
func (s *Snapshot) Seq() uint64      { return s.seq }
func (s *Snapshot) Len() int         { return len(s.entries) }

// All returns every barrier in registration order.
func (s *Snapshot) All() []*barrier.Barrier {
	out := make([]*barrier.Barrier, len(s.entries))
	for i := range s.entries {
		out[i] = s.entries[i].b
	}
	return out
}

func (s *Snapshot) Get(id barrier.ID) (*barrier.Barrier, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.entries[i].b, true
}

// QueryArea returns the barriers with at least one bounding box strictly
// overlapping area, in registration order. It does not allocate when nothing
// overlaps.
func (s *Snapshot) QueryArea(area geom.Box) []*barrier.Barrier {
	if len(s.entries) == 0 {
		return nil
	}
	x0, z0, x1, z1, n, ok := cellRange(area, s.cellSize)
	if !ok || n > float64(len(s.entries)) {
		return s.scan(area)
	}

	var hits []int32
	qx0, qz0 := int(x0), int(z0)
	for x := qx0; x <= int(x1); x++ {
		for z := qz0; z <= int(z1); z++ {
			for _, idx := range s.cells[cellKey{x, z}] {
				e := &s.entries[idx]
				// A barrier spanning several query columns is reported from
				// the first column both ranges share.
				if x != max(qx0, e.span.x0) || z != max(qz0, e.span.z0) {
					continue
				}
				if e.hull.Intersects(area) && e.b.Overlaps(area) {
					hits = append(hits, idx)
				}
			}
		}
	}
	for _, idx := range s.wide {
		if s.entries[idx].b.Overlaps(area) {
			hits = append(hits, idx)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	slices.Sort(hits)
	out := make([]*barrier.Barrier, len(hits))
	for i, idx := range hits {
		out[i] = s.entries[idx].b
	}
	return out
}

func (s *Snapshot) scan(area geom.Box) []*barrier.Barrier {
	var out []*barrier.Barrier
	for i := range s.entries {
		e := &s.entries[i]
		if e.hull.Intersects(area) && e.b.Overlaps(area) {
			out = append(out, e.b)
		}
	}
	return out
}
