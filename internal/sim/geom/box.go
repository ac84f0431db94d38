package geom

import "math"

// Box is an axis-aligned box. Min is component-wise <= Max for boxes built
// with NewBox.
type Box struct {
	Min Vec3
	Max Vec3
}

// NewBox builds a box from two opposite corners in any order.
func NewBox(x0, y0, z0, x1, y1, z1 float64) Box {
	return Box{
		Min: Vec3{math.Min(x0, x1), math.Min(y0, y1), math.Min(z0, z1)},
		Max: Vec3{math.Max(x0, x1), math.Max(y0, y1), math.Max(z0, z1)},
	}
}

// BoxAround returns the smallest box containing both points (the hull of a
// segment).
func BoxAround(a, b Vec3) Box {
	return NewBox(a[0], a[1], a[2], b[0], b[1], b[2])
}

// Valid reports finite corners with a positive extent on every axis.
func (b Box) Valid() bool {
	if !finite(b.Min) || !finite(b.Max) {
		return false
	}
	return b.Max[0] > b.Min[0] && b.Max[1] > b.Min[1] && b.Max[2] > b.Min[2]
}

// Intersects uses open intervals: boxes that only share a face do not overlap.
func (b Box) Intersects(o Box) bool {
	return b.Min[0] < o.Max[0] && b.Max[0] > o.Min[0] &&
		b.Min[1] < o.Max[1] && b.Max[1] > o.Min[1] &&
		b.Min[2] < o.Max[2] && b.Max[2] > o.Min[2]
}

// Touches is Intersects with closed intervals.
func (b Box) Touches(o Box) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

func (b Box) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

const containEps = 1e-9

// ContainsBox reports whether o lies inside b (closed, with a tiny tolerance
// for float noise).
func (b Box) ContainsBox(o Box) bool {
	for i := 0; i < 3; i++ {
		if o.Min[i] < b.Min[i]-containEps || o.Max[i] > b.Max[i]+containEps {
			return false
		}
	}
	return true
}

func (b Box) Inflate(d float64) Box {
	return Box{
		Min: Vec3{b.Min[0] - d, b.Min[1] - d, b.Min[2] - d},
		Max: Vec3{b.Max[0] + d, b.Max[1] + d, b.Max[2] + d},
	}
}

func (b Box) Translate(v Vec3) Box {
	return Box{Min: b.Min.Add(v), Max: b.Max.Add(v)}
}

// Union returns the hull of b and o.
func (b Box) Union(o Box) Box {
	return Box{
		Min: Vec3{math.Min(b.Min[0], o.Min[0]), math.Min(b.Min[1], o.Min[1]), math.Min(b.Min[2], o.Min[2])},
		Max: Vec3{math.Max(b.Max[0], o.Max[0]), math.Max(b.Max[1], o.Max[1]), math.Max(b.Max[2], o.Max[2])},
	}
}

func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Array returns the box as (minX,minY,minZ,maxX,maxY,maxZ).
func (b Box) Array() [6]float64 {
	return [6]float64{b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2]}
}

func BoxFromArray(a [6]float64) Box {
	return Box{Min: Vec3{a[0], a[1], a[2]}, Max: Vec3{a[3], a[4], a[5]}}
}

// Clip intersects the segment [start,end] with the box and returns the entry
// point. A segment that starts strictly inside the box has no entry point, and
// a zero-length segment never hits. The coordinate on the entry axis is
// snapped onto the entered plane.
func (b Box) Clip(start, end Vec3) (Vec3, bool) {
	d := end.Sub(start)
	if d[0] == 0 && d[1] == 0 && d[2] == 0 {
		return Vec3{}, false
	}

	tEnter := math.Inf(-1)
	tExit := math.Inf(1)
	axis := -1
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if start[i] < b.Min[i] || start[i] > b.Max[i] {
				return Vec3{}, false
			}
			continue
		}
		t1 := (b.Min[i] - start[i]) / d[i]
		t2 := (b.Max[i] - start[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tEnter {
			tEnter = t1
			axis = i
		}
		if t2 < tExit {
			tExit = t2
		}
	}
	if axis < 0 || tEnter > tExit || tEnter < 0 || tEnter > 1 {
		return Vec3{}, false
	}

	hit := start.Add(d.Mul(tEnter))
	if d[axis] > 0 {
		hit[axis] = b.Min[axis]
	} else {
		hit[axis] = b.Max[axis]
	}
	return hit, true
}

// Face picks the boundary plane a point lies on, testing -X,+X,-Y,+Y,-Z,+Z in
// that order; the first plane within eps wins. FaceUp when none matches.
func (b Box) Face(p Vec3, eps float64) Face {
	switch {
	case math.Abs(p[0]-b.Min[0]) < eps:
		return FaceWest
	case math.Abs(p[0]-b.Max[0]) < eps:
		return FaceEast
	case math.Abs(p[1]-b.Min[1]) < eps:
		return FaceDown
	case math.Abs(p[1]-b.Max[1]) < eps:
		return FaceUp
	case math.Abs(p[2]-b.Min[2]) < eps:
		return FaceNorth
	case math.Abs(p[2]-b.Max[2]) < eps:
		return FaceSouth
	}
	return FaceUp
}
