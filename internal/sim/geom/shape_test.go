package geom

import "testing"

func TestCompound_LeavesInOrder(t *testing.T) {
	a := NewBox(0, 0, 0, 1, 1, 1)
	b := NewBox(2, 0, 0, 3, 1, 1)
	m := NewConvexMesh([]Vec3{V(5, 0, 0), V(6, 1, 0), V(5, 0, 1), V(6, 1, 1)})
	c := Compound{a, Compound{b, m}}

	var kinds []ShapeKind
	c.Leaves(func(s Shape) bool {
		kinds = append(kinds, s.Kind())
		return true
	})
	if len(kinds) != 3 || kinds[0] != KindBox || kinds[1] != KindBox || kinds[2] != KindMesh {
		t.Fatalf("leaves=%v", kinds)
	}
	if got := c.Bounds(); got != NewBox(0, 0, 0, 6, 1, 1) {
		t.Fatalf("bounds=%v", got)
	}
	if n := LeafCount(c); n != 3 {
		t.Fatalf("LeafCount=%d want 3", n)
	}
}

func TestCompound_LeavesStopsEarly(t *testing.T) {
	c := Compound{NewBox(0, 0, 0, 1, 1, 1), NewBox(1, 0, 0, 2, 1, 1)}
	n := 0
	done := c.Leaves(func(Shape) bool {
		n++
		return false
	})
	if done || n != 1 {
		t.Fatalf("done=%v n=%d", done, n)
	}
}

func TestCovers(t *testing.T) {
	left := NewBox(0, 0, 0, 1, 1, 1)
	right := NewBox(1, 0, 0, 2, 1, 1)
	if !Covers([]Box{left, right}, NewBox(0.5, 0.25, 0.25, 1.5, 0.75, 0.75)) {
		t.Fatalf("straddling target should be covered by the union")
	}
	if Covers([]Box{left, NewBox(1.5, 0, 0, 2, 1, 1)}, NewBox(0.5, 0.25, 0.25, 1.75, 0.75, 0.75)) {
		t.Fatalf("target across a gap must not be covered")
	}
	if Covers(nil, left) {
		t.Fatalf("nothing covers nothing")
	}
	if !Covers([]Box{left}, NewBox(0, 0, 0.5, 1, 1, 0.5)) {
		t.Fatalf("flat target inside a box is covered")
	}
}
