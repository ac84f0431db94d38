package barrier

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"coldestland.ai/internal/sim/geom"
)

const (
	MinPrecision = 0.01
	MaxPrecision = 5.0
)

// OrientedBox is a box rotated by yaw (around Y) and pitch (around X), in
// degrees. It is approximated by axis-aligned voxels Precision wide.
type OrientedBox struct {
	Center    geom.Vec3
	Width     float64
	Height    float64
	Depth     float64
	Yaw       float64
	Pitch     float64
	Precision float64
}

func (o OrientedBox) rotation() mgl64.Mat3 {
	yaw := mgl64.Rotate3DY(mgl64.DegToRad(-o.Yaw))
	pitch := mgl64.Rotate3DX(mgl64.DegToRad(o.Pitch))
	return yaw.Mul3(pitch)
}

func (o OrientedBox) validate() error {
	dims := []float64{o.Width, o.Height, o.Depth, o.Yaw, o.Pitch, o.Precision, o.Center[0], o.Center[1], o.Center[2]}
	for _, v := range dims {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite parameter")
		}
	}
	if o.Width <= 0 || o.Height <= 0 || o.Depth <= 0 {
		return fmt.Errorf("dimensions must be positive: %gx%gx%g", o.Width, o.Height, o.Depth)
	}
	if o.Precision < MinPrecision || o.Precision > MaxPrecision {
		return fmt.Errorf("precision %g outside [%g, %g]", o.Precision, MinPrecision, MaxPrecision)
	}
	return nil
}

// steps counts voxels per axis. The counts stay float64 until checked
// against a cap.
func (o OrientedBox) steps() (float64, float64, float64) {
	return math.Ceil(o.Width / o.Precision),
		math.Ceil(o.Height / o.Precision),
		math.Ceil(o.Depth / o.Precision)
}

// VoxelEstimate is the upper bound on the voxels Voxelize would emit. It may
// be +Inf for absurd dimensions.
func (o OrientedBox) VoxelEstimate() float64 {
	sx, sy, sz := o.steps()
	return sx * sy * sz
}

// uncappedVoxels bounds Voxelize when the caller disables the cap.
const uncappedVoxels = math.MaxInt32

// Voxelize returns one box per voxel whose local center lies inside the
// oriented box. maxVoxels <= 0 disables the cap.
func (o OrientedBox) Voxelize(maxVoxels int) ([]geom.Box, error) {
	if err := o.validate(); err != nil {
		return nil, &ValidationError{Reason: ReasonInvalidOrientedBox, Detail: err.Error()}
	}
	limit := float64(uncappedVoxels)
	if maxVoxels > 0 {
		limit = float64(maxVoxels)
	}
	fx, fy, fz := o.steps()
	if est := fx * fy * fz; fx > limit || fy > limit || fz > limit || est > limit {
		return nil, &ValidationError{Reason: ReasonTooManyVoxels, Detail: fmt.Sprintf("%.0f voxels exceeds %.0f", est, limit)}
	}
	sx, sy, sz := int(fx), int(fy), int(fz)

	rot := o.rotation()
	hw, hh, hd := o.Width/2, o.Height/2, o.Depth/2
	half := o.Precision / 2

	out := make([]geom.Box, 0, min(sx*sy*sz, 4096))
	for ix := 0; ix < sx; ix++ {
		lx := -hw + (float64(ix)+0.5)*o.Precision
		if lx > hw {
			continue
		}
		for iy := 0; iy < sy; iy++ {
			ly := -hh + (float64(iy)+0.5)*o.Precision
			if ly > hh {
				continue
			}
			for iz := 0; iz < sz; iz++ {
				lz := -hd + (float64(iz)+0.5)*o.Precision
				if lz > hd {
					continue
				}
				c := rot.Mul3x1(mgl64.Vec3{lx, ly, lz}).Add(o.Center)
				out = append(out, geom.Box{
					Min: geom.V(c[0]-half, c[1]-half, c[2]-half),
					Max: geom.V(c[0]+half, c[1]+half, c[2]+half),
				})
			}
		}
	}
	return out, nil
}

// Corners returns the eight world-space corners of the oriented box.
func (o OrientedBox) Corners() [8]geom.Vec3 {
	rot := o.rotation()
	hw, hh, hd := o.Width/2, o.Height/2, o.Depth/2
	var out [8]geom.Vec3
	i := 0
	for _, x := range [2]float64{-hw, hw} {
		for _, y := range [2]float64{-hh, hh} {
			for _, z := range [2]float64{-hd, hd} {
				out[i] = rot.Mul3x1(mgl64.Vec3{x, y, z}).Add(o.Center)
				i++
			}
		}
	}
	return out
}

// Radius is the distance from the center to any corner.
func (o OrientedBox) Radius() float64 {
	return mgl64.Vec3{o.Width / 2, o.Height / 2, o.Depth / 2}.Len()
}

// NewOriented voxelizes o into a barrier whose bounding boxes and collision
// boxes are the same voxels.
func NewOriented(id ID, o OrientedBox, maxVoxels int, opts Options) (*Barrier, error) {
	voxels, err := o.Voxelize(maxVoxels)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.ID = id
		}
		return nil, err
	}
	shapes := make([]geom.Shape, len(voxels))
	for i, v := range voxels {
		shapes[i] = v
	}
	return New(id, voxels, shapes, opts)
}
