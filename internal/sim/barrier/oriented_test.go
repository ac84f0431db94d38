package barrier

import (
	"errors"
	"math"
	"testing"

	"coldestland.ai/internal/sim/geom"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestVoxelize_AxisAligned(t *testing.T) {
	o := OrientedBox{Center: geom.V(0, 64, 0), Width: 2, Height: 1, Depth: 1, Precision: 0.5}
	voxels, err := o.Voxelize(0)
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	if len(voxels) != 16 {
		t.Fatalf("voxels: got %d want 16", len(voxels))
	}
	first := voxels[0]
	if !near(first.Min[0], -1) || !near(first.Min[1], 63.5) || !near(first.Max[2], 0) {
		t.Fatalf("first voxel: got %v", first)
	}
}

func TestVoxelize_YawQuarterTurnSwapsAxes(t *testing.T) {
	o := OrientedBox{Width: 4, Height: 1, Depth: 1, Yaw: 90, Precision: 1}
	voxels, err := o.Voxelize(0)
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	hull := voxels[0]
	for _, v := range voxels[1:] {
		hull = hull.Union(v)
	}
	if !near(hull.Max[0]-hull.Min[0], 1) || !near(hull.Max[2]-hull.Min[2], 4) {
		t.Fatalf("rotated hull: got %v", hull)
	}
}

func TestVoxelize_TooManyVoxels(t *testing.T) {
	o := OrientedBox{Width: 10, Height: 10, Depth: 10, Precision: 0.1}
	_, err := o.Voxelize(5000)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Reason != ReasonTooManyVoxels {
		t.Fatalf("got %v want %s", err, ReasonTooManyVoxels)
	}
}

func TestVoxelize_HugeDimensionsAreTooMany(t *testing.T) {
	cases := []struct {
		o   OrientedBox
		max int
	}{
		{OrientedBox{Width: 1e7, Height: 1e7, Depth: 1e7, Precision: 0.01}, 4096},
		{OrientedBox{Width: 1e30, Height: 1, Depth: 1, Precision: 1}, 4096},
		{OrientedBox{Width: 1e300, Height: 1e300, Depth: 1e300, Precision: 0.01}, 4096},
		{OrientedBox{Width: 1e7, Height: 1e7, Depth: 1e7, Precision: 0.01}, 0},
	}
	for i, tc := range cases {
		_, err := NewOriented(NewID(), tc.o, tc.max, Options{})
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Reason != ReasonTooManyVoxels {
			t.Fatalf("case %d: got %v want %s", i, err, ReasonTooManyVoxels)
		}
	}
	if est := (OrientedBox{Width: 2, Height: 3, Depth: 4, Precision: 0.5}).VoxelEstimate(); est != 4*6*8 {
		t.Fatalf("estimate: got %v want %d", est, 4*6*8)
	}
}

func TestVoxelize_RejectsBadParameters(t *testing.T) {
	cases := []OrientedBox{
		{Width: 0, Height: 1, Depth: 1, Precision: 0.5},
		{Width: 1, Height: 1, Depth: 1, Precision: 0},
		{Width: 1, Height: 1, Depth: 1, Precision: 10},
		{Width: math.NaN(), Height: 1, Depth: 1, Precision: 0.5},
	}
	for i, o := range cases {
		_, err := o.Voxelize(0)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Reason != ReasonInvalidOrientedBox {
			t.Fatalf("case %d: got %v want %s", i, err, ReasonInvalidOrientedBox)
		}
	}
}

func TestNewOriented_SetsIDOnError(t *testing.T) {
	id := NewID()
	_, err := NewOriented(id, OrientedBox{Width: 1, Height: 1, Depth: 1}, 0, Options{})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.ID != id {
		t.Fatalf("got %v", err)
	}
}

func TestNewOriented_Builds(t *testing.T) {
	o := OrientedBox{Center: geom.V(10, 70, -4), Width: 3, Height: 2, Depth: 1, Yaw: 30, Pitch: 15, Precision: 0.25}
	b, err := NewOriented(NewID(), o, 4096, Options{ExpiresTick: 200})
	if err != nil {
		t.Fatalf("NewOriented: %v", err)
	}
	if len(b.BoundingBoxes) != len(b.CollisionShape) || len(b.BoundingBoxes) == 0 {
		t.Fatalf("got %d boxes %d shapes", len(b.BoundingBoxes), len(b.CollisionShape))
	}
	for _, c := range o.Corners() {
		if geom.DistSq(c, o.Center) > o.Radius()*o.Radius()+1e-9 {
			t.Fatalf("corner %v outside radius", c)
		}
	}
}
