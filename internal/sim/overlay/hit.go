package overlay

import (
	"coldestland.ai/internal/sim/barrier"
	"coldestland.ai/internal/sim/geom"
)

type HitType uint8

const (
	HitMiss HitType = iota
	HitBlock
	HitEntity
)

func (t HitType) String() string {
	switch t {
	case HitBlock:
		return "BLOCK"
	case HitEntity:
		return "ENTITY"
	}
	return "MISS"
}

// HitResult mirrors the host's ray result. Barrier is the zero id unless the
// hit came from a registered barrier.
type HitResult struct {
	Type     HitType
	Location geom.Vec3
	Face     geom.Face
	Pos      geom.BlockPos
	Inside   bool
	Barrier  barrier.ID
}

// Miss is a miss reported at the segment end, as host engines do.
func Miss(end geom.Vec3) HitResult {
	return HitResult{Type: HitMiss, Location: end, Face: geom.FaceUp, Pos: geom.BlockPosOf(end)}
}

// FromBarrier reports whether the hit was produced by a barrier.
func (h HitResult) FromBarrier() bool {
	return h.Type == HitBlock && h.Barrier != (barrier.ID{})
}
