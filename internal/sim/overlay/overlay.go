// Package overlay merges registered barriers into a host world's native
// collision and ray queries. Every call reads exactly one registry snapshot.
package overlay

import (
	"math"

	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

const (
	// SweepMargin inflates the segment hull when collecting ray candidates.
	SweepMargin = 1.0
	// FaceEpsilon is the plane distance under which a hit point lies on a face.
	FaceEpsilon = 1e-4
)

// Requester identifies the entity a query runs for. It may be empty and is
// passed through untouched.
type Requester string

// Source answers area queries from a single registry snapshot.
// *registry.Manager implements it.
type Source interface {
	QueryArea(region registry.Region, area geom.Box) []*barrier.Barrier
}

type Overlay struct {
	src Source
}

func New(src Source) *Overlay { return &Overlay{src: src} }

// GetBlockCollisions appends the collision shapes of every barrier overlapping
// area to the native result. When nothing overlaps the native slice itself is
// returned.
func (o *Overlay) GetBlockCollisions(region registry.Region, _ Requester, area geom.Box, native []geom.Shape) []geom.Shape {
	hits := o.src.QueryArea(region, area)
	if len(hits) == 0 {
		return native
	}
	n := len(native)
	for _, b := range hits {
		n += len(b.CollisionShape)
	}
	out := make([]geom.Shape, 0, n)
	out = append(out, native...)
	for _, b := range hits {
		out = append(out, b.CollisionShape...)
	}
	return out
}

// ClipIncludingBorder returns the closest of the native hit and the entry
// points of the segment into barrier bounding boxes. A barrier replaces the
// current best only when strictly closer, so ties keep the native hit and,
// among barriers, the earlier one.
func (o *Overlay) ClipIncludingBorder(region registry.Region, start, end geom.Vec3, native HitResult) HitResult {
	if start == end {
		return native
	}
	candidates := o.src.QueryArea(region, geom.BoxAround(start, end).Inflate(SweepMargin))
	if len(candidates) == 0 {
		return native
	}

	best := math.Inf(1)
	if native.Type != HitMiss {
		best = geom.DistSq(start, native.Location)
	}
	var (
		winner *barrier.Barrier
		box    geom.Box
		loc    geom.Vec3
	)
	for _, b := range candidates {
		for _, bb := range b.BoundingBoxes {
			p, ok := bb.Clip(start, end)
			if !ok {
				continue
			}
			if d := geom.DistSq(start, p); d < best {
				best, winner, box, loc = d, b, bb, p
			}
		}
	}
	if winner == nil {
		return native
	}
	return HitResult{
		Type:     HitBlock,
		Location: loc,
		Face:     box.Face(loc, FaceEpsilon),
		Pos:      geom.BlockPosOf(loc),
		Barrier:  winner.ID,
	}
}
