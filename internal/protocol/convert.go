package protocol

import (
	"fmt"

	"github.com/google/uuid"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
)

func BarrierToWire(b *barrier.Barrier) Barrier {
	out := Barrier{
		BarrierID:      b.ID.String(),
		BoundingBoxes:  make([][6]float64, len(b.BoundingBoxes)),
		CollisionShape: make([]Shape, 0, len(b.CollisionShape)),
		CreatedTick:    b.CreatedTick,
		ExpiresTick:    b.ExpiresTick,
	}
	if b.Owner != uuid.Nil {
		out.Owner = b.Owner.String()
	}
	for i, bb := range b.BoundingBoxes {
		out.BoundingBoxes[i] = bb.Array()
	}
	for _, s := range b.CollisionShape {
		if s == nil {
			continue
		}
		out.CollisionShape = append(out.CollisionShape, ShapeToWire(s))
	}
	return out
}

func ShapeToWire(s geom.Shape) Shape {
	switch v := s.(type) {
	case geom.Box:
		a := v.Array()
		return Shape{Kind: ShapeBox, Box: &a}
	case geom.Compound:
		parts := make([]Shape, 0, len(v))
		for _, p := range v {
			if p != nil {
				parts = append(parts, ShapeToWire(p))
			}
		}
		return Shape{Kind: ShapeCompound, Parts: parts}
	case geom.ConvexMesh:
		verts := v.Vertices()
		out := make([][3]float64, len(verts))
		for i, p := range verts {
			out[i] = [3]float64{p[0], p[1], p[2]}
		}
		return Shape{Kind: ShapeMesh, Vertices: out}
	}
	// Unknown variants travel as their bounds.
	a := s.Bounds().Array()
	return Shape{Kind: ShapeBox, Box: &a}
}

// ToBarrier decodes and validates a wire barrier.
func (w Barrier) ToBarrier() (*barrier.Barrier, error) {
	id, err := barrier.ParseID(w.BarrierID)
	if err != nil {
		return nil, fmt.Errorf("barrier_id: %w", err)
	}
	var owner uuid.UUID
	if w.Owner != "" {
		if owner, err = uuid.Parse(w.Owner); err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
	}
	boxes := make([]geom.Box, len(w.BoundingBoxes))
	for i, a := range w.BoundingBoxes {
		boxes[i] = geom.BoxFromArray(a)
	}
	shapes := make([]geom.Shape, 0, len(w.CollisionShape))
	for i, s := range w.CollisionShape {
		gs, err := s.toGeom(0)
		if err != nil {
			return nil, fmt.Errorf("collision_shape[%d]: %w", i, err)
		}
		shapes = append(shapes, gs)
	}
	return barrier.New(id, boxes, shapes, barrier.Options{
		Owner:       owner,
		CreatedTick: w.CreatedTick,
		ExpiresTick: w.ExpiresTick,
	})
}

func (s Shape) toGeom(depth int) (geom.Shape, error) {
	switch s.Kind {
	case ShapeBox:
		if s.Box == nil {
			return nil, fmt.Errorf("%w: box shape without box", ErrBadFrame)
		}
		return geom.BoxFromArray(*s.Box), nil
	case ShapeCompound:
		if depth >= barrier.MaxShapeDepth {
			return nil, fmt.Errorf("%w: compound nested deeper than %d", ErrBadFrame, barrier.MaxShapeDepth)
		}
		out := make(geom.Compound, 0, len(s.Parts))
		for i, p := range s.Parts {
			gp, err := p.toGeom(depth + 1)
			if err != nil {
				return nil, fmt.Errorf("parts[%d]: %w", i, err)
			}
			out = append(out, gp)
		}
		return out, nil
	case ShapeMesh:
		verts := make([]geom.Vec3, len(s.Vertices))
		for i, v := range s.Vertices {
			verts[i] = geom.V(v[0], v[1], v[2])
		}
		return geom.NewConvexMesh(verts), nil
	}
	return nil, fmt.Errorf("%w: shape kind %q", ErrBadFrame, s.Kind)
}
