package overlay

import (
	"coldestland.ai/internal/sim/geom"
	"coldestland.ai/internal/sim/registry"
)

type ClipOptions struct {
	Requester Requester
}

// World is the query surface a host simulation exposes for one region.
type World interface {
	Region() registry.Region
	GetBlockCollisions(requester Requester, area geom.Box) []geom.Shape
	ClipIncludingBorder(from, to geom.Vec3, opts ClipOptions) HitResult
}

type wrapped struct {
	native World
	ov     *Overlay
}

// Wrap returns a World that answers each query natively first and then passes
// the native result through the overlay.
func Wrap(native World, ov *Overlay) World {
	return wrapped{native: native, ov: ov}
}

func (w wrapped) Region() registry.Region { return w.native.Region() }

func (w wrapped) GetBlockCollisions(requester Requester, area geom.Box) []geom.Shape {
	return w.ov.GetBlockCollisions(w.native.Region(), requester, area, w.native.GetBlockCollisions(requester, area))
}

func (w wrapped) ClipIncludingBorder(from, to geom.Vec3, opts ClipOptions) HitResult {
	return w.ov.ClipIncludingBorder(w.native.Region(), from, to, w.native.ClipIncludingBorder(from, to, opts))
}
