package geom

// ShapeKind tags the closed set of shape variants.
type ShapeKind uint8

const (
	KindBox ShapeKind = iota + 1
	KindCompound
	KindMesh
)

func (k ShapeKind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindCompound:
		return "compound"
	case KindMesh:
		return "mesh"
	}
	return "unknown"
}

// Shape is an exact blocking volume. Leaves walks the non-compound sub-shapes
// depth-first in order and stops early when yield returns false; it reports
// whether the walk ran to completion.
type Shape interface {
	Kind() ShapeKind
	Bounds() Box
	Leaves(yield func(Shape) bool) bool
}

func (b Box) Kind() ShapeKind                    { return KindBox }
func (b Box) Bounds() Box                        { return b }
func (b Box) Leaves(yield func(Shape) bool) bool { return yield(b) }

// Compound is an ordered list of shapes.
type Compound []Shape

func (c Compound) Kind() ShapeKind { return KindCompound }

func (c Compound) Bounds() Box {
	var out Box
	first := true
	c.Leaves(func(s Shape) bool {
		if first {
			out = s.Bounds()
			first = false
		} else {
			out = out.Union(s.Bounds())
		}
		return true
	})
	return out
}

func (c Compound) Leaves(yield func(Shape) bool) bool {
	for _, s := range c {
		if s == nil {
			continue
		}
		if !s.Leaves(yield) {
			return false
		}
	}
	return true
}

// ConvexMesh is a convex vertex cloud. Only its bounds take part in broad
// phase checks.
type ConvexMesh struct {
	vertices []Vec3
	bounds   Box
}

func NewConvexMesh(vertices []Vec3) ConvexMesh {
	m := ConvexMesh{vertices: append([]Vec3(nil), vertices...)}
	for i, v := range m.vertices {
		if i == 0 {
			m.bounds = Box{Min: v, Max: v}
			continue
		}
		m.bounds = m.bounds.Union(Box{Min: v, Max: v})
	}
	return m
}

func (m ConvexMesh) Kind() ShapeKind                    { return KindMesh }
func (m ConvexMesh) Bounds() Box                        { return m.bounds }
func (m ConvexMesh) Leaves(yield func(Shape) bool) bool { return yield(m) }

// Vertices returns a copy of the mesh vertices.
func (m ConvexMesh) Vertices() []Vec3 { return append([]Vec3(nil), m.vertices...) }

func (m ConvexMesh) VertexCount() int { return len(m.vertices) }

// LeafCount counts the leaves of s.
func LeafCount(s Shape) int {
	if s == nil {
		return 0
	}
	n := 0
	s.Leaves(func(Shape) bool {
		n++
		return true
	})
	return n
}

// Empty reports a shape with no leaves or whose bounds have no volume.
func Empty(s Shape) bool {
	if LeafCount(s) == 0 {
		return true
	}
	return !s.Bounds().Valid()
}
