// Package geom holds the small closed geometry model used by the barrier
// overlay: vectors, axis-aligned boxes, shape variants and hit faces.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a world-space point or direction.
type Vec3 = mgl64.Vec3

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

// DistSq returns the squared distance between a and b.
func DistSq(a, b Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

func finite(v Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

// BlockPos is the integer cell containing a world-space point.
type BlockPos [3]int

// BlockPosOf floor-quantizes v into the cell that contains it.
func BlockPosOf(v Vec3) BlockPos {
	return BlockPos{
		int(math.Floor(v[0])),
		int(math.Floor(v[1])),
		int(math.Floor(v[2])),
	}
}

func (p BlockPos) X() int { return p[0] }
func (p BlockPos) Y() int { return p[1] }
func (p BlockPos) Z() int { return p[2] }
