// Package barrier defines registered barrier volumes and their geometry
// invariant.
package barrier

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/geom"
)

// ID is a barrier handle, stable for the barrier's lifetime.
type ID = uuid.UUID

func NewID() ID { return uuid.New() }

func ParseID(s string) (ID, error) { return uuid.Parse(s) }

// Barrier is an invisible collidable volume. Build it with New; it is
// read-only afterwards and a changed barrier is a new value registered under
// the same or a new ID.
type Barrier struct {
	ID ID

	// BoundingBoxes drive broad-phase overlap tests and ray candidates.
	BoundingBoxes []geom.Box
	// CollisionShape is the exact blocking volume merged into collision queries.
	CollisionShape []geom.Shape

	Owner       uuid.UUID
	CreatedTick uint64
	// ExpiresTick is the last tick the barrier is alive; 0 means never.
	ExpiresTick uint64

	hull   geom.Box
	sealed bool
}

// Options carries the optional bookkeeping fields of a barrier.
type Options struct {
	Owner       uuid.UUID
	CreatedTick uint64
	ExpiresTick uint64
}

// MaxShapeDepth bounds compound nesting in a collision shape.
const MaxShapeDepth = 16

// New validates the geometry and returns a barrier holding private copies of
// the given slices. Nil shapes and compounds without leaves are dropped.
func New(id ID, boxes []geom.Box, shapes []geom.Shape, opts Options) (*Barrier, error) {
	compact, err := compactShapes(shapes)
	if err != nil {
		return nil, &ValidationError{ID: id, Reason: ReasonShapeTooDeep, Detail: err.Error()}
	}
	b := &Barrier{
		ID:             id,
		BoundingBoxes:  append([]geom.Box(nil), boxes...),
		CollisionShape: compact,
		Owner:          opts.Owner,
		CreatedTick:    opts.CreatedTick,
		ExpiresTick:    opts.ExpiresTick,
	}
	hull, err := b.validate()
	if err != nil {
		return nil, err
	}
	b.hull = hull
	b.sealed = true
	return b, nil
}

// Own returns b when New built it, and otherwise a copy built by New, so a
// registry never holds slices a caller still writes to.
func (b *Barrier) Own() (*Barrier, error) {
	if b.sealed {
		return b, nil
	}
	return New(b.ID, b.BoundingBoxes, b.CollisionShape, Options{
		Owner:       b.Owner,
		CreatedTick: b.CreatedTick,
		ExpiresTick: b.ExpiresTick,
	})
}

func compactShapes(shapes []geom.Shape) ([]geom.Shape, error) {
	out := make([]geom.Shape, 0, len(shapes))
	for i, s := range shapes {
		cs, ok, err := compactShape(s, 0)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
		if ok {
			out = append(out, cs)
		}
	}
	return out, nil
}

// compactShape rebuilds compounds without nil or leafless parts. ok is false
// when nothing of s remains.
func compactShape(s geom.Shape, depth int) (geom.Shape, bool, error) {
	switch v := s.(type) {
	case nil:
		return nil, false, nil
	case geom.Compound:
		if depth >= MaxShapeDepth {
			return nil, false, fmt.Errorf("compound nested deeper than %d", MaxShapeDepth)
		}
		out := make(geom.Compound, 0, len(v))
		for _, p := range v {
			cp, ok, err := compactShape(p, depth+1)
			if err != nil {
				return nil, false, err
			}
			if ok {
				out = append(out, cp)
			}
		}
		return out, len(out) > 0, nil
	}
	return s, true, nil
}

// Validate checks that the barrier has geometry and that the union of its
// bounding boxes encloses every collision leaf.
func (b *Barrier) Validate() error {
	_, err := b.validate()
	return err
}

func (b *Barrier) validate() (geom.Box, error) {
	if len(b.BoundingBoxes) == 0 {
		return geom.Box{}, &ValidationError{ID: b.ID, Reason: ReasonEmptyBoundingBoxes}
	}
	for i, bb := range b.BoundingBoxes {
		if !bb.Valid() {
			return geom.Box{}, &ValidationError{ID: b.ID, Reason: ReasonInvalidBox, Detail: fmt.Sprintf("bounding box %d: %v", i, bb.Array())}
		}
	}
	hull := b.BoundingBoxes[0]
	exact := make(map[geom.Box]struct{}, len(b.BoundingBoxes))
	for _, bb := range b.BoundingBoxes {
		hull = hull.Union(bb)
		exact[bb] = struct{}{}
	}

	leaves := 0
	var leafErr error
	for i, s := range b.CollisionShape {
		if s == nil {
			continue
		}
		s.Leaves(func(leaf geom.Shape) bool {
			leaves++
			if err := validLeaf(leaf); err != "" {
				leafErr = &ValidationError{ID: b.ID, Reason: ReasonInvalidBox, Detail: fmt.Sprintf("shape %d: %s", i, err)}
				return false
			}
			lb := leaf.Bounds()
			if _, ok := exact[lb]; ok {
				return true
			}
			if !hull.ContainsBox(lb) || !geom.Covers(b.BoundingBoxes, lb) {
				leafErr = &ValidationError{ID: b.ID, Reason: ReasonShapeNotEnclosed, Detail: fmt.Sprintf("shape %d: %s %v", i, leaf.Kind(), lb.Array())}
				return false
			}
			return true
		})
		if leafErr != nil {
			return geom.Box{}, leafErr
		}
	}
	if leaves == 0 {
		return geom.Box{}, &ValidationError{ID: b.ID, Reason: ReasonEmptyCollisionShape}
	}
	return hull, nil
}

func validLeaf(s geom.Shape) string {
	switch v := s.(type) {
	case geom.Box:
		if !v.Valid() {
			return "degenerate box"
		}
	case geom.ConvexMesh:
		if v.VertexCount() < 4 {
			return "mesh needs at least 4 vertices"
		}
		bb := v.Bounds()
		for i := 0; i < 3; i++ {
			if math.IsNaN(bb.Min[i]) || math.IsInf(bb.Min[i], 0) || math.IsNaN(bb.Max[i]) || math.IsInf(bb.Max[i], 0) {
				return "non-finite mesh vertex"
			}
		}
	default:
		return "unsupported shape " + s.Kind().String()
	}
	return ""
}

// Bounds is the hull of the bounding boxes.
func (b *Barrier) Bounds() geom.Box {
	if b.hull == (geom.Box{}) && len(b.BoundingBoxes) > 0 {
		h := b.BoundingBoxes[0]
		for _, bb := range b.BoundingBoxes[1:] {
			h = h.Union(bb)
		}
		return h
	}
	return b.hull
}

// Overlaps reports whether any bounding box strictly overlaps area.
func (b *Barrier) Overlaps(area geom.Box) bool {
	if !b.Bounds().Intersects(area) {
		return false
	}
	for _, bb := range b.BoundingBoxes {
		if bb.Intersects(area) {
			return true
		}
	}
	return false
}

// Expired reports whether the barrier's lifetime ended before tick.
func (b *Barrier) Expired(tick uint64) bool {
	return b.ExpiresTick != 0 && tick > b.ExpiresTick
}

// LifetimeTicks converts a lifetime in seconds to ticks.
func LifetimeTicks(seconds float64, tickRateHz int) uint64 {
	if seconds <= 0 || tickRateHz <= 0 {
		return 0
	}
	return uint64(math.Ceil(seconds * float64(tickRateHz)))
}
