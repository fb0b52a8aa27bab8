// Package pose maps meshes into a canonical frame so that shapes can be
// compared regardless of position, orientation and scale.
package pose

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Anchor selects the point moved to the origin in the translate step.
type Anchor int

const (
	AnchorBoundingBox Anchor = iota // midpoint of the bounding box
	AnchorCentroid                  // mean vertex position
)

// ParseAnchor converts a config value to an Anchor.
func ParseAnchor(s string) (Anchor, error) {
	switch s {
	case "", "bbox":
		return AnchorBoundingBox, nil
	case "centroid":
		return AnchorCentroid, nil
	default:
		return 0, fmt.Errorf("unknown anchor %q", s)
	}
}

// String returns the config name of the anchor.
func (a Anchor) String() string {
	if a == AnchorCentroid {
		return "centroid"
	}
	return "bbox"
}

// Transform records what Normalize applied. A vertex v of the input maps to
// ((((v - Translation) * Axes) - Recenter) * Flip) / Scale.
type Transform struct {
	Translation math.Vec3
	Axes        math.Mat3 // columns are the principal axes
	Eigenvalues [3]float64
	Recenter    math.Vec3
	Flip        math.Vec3 // +1 or -1 per axis
	Scale       float64
}

// Apply maps a point through the transform.
func (t Transform) Apply(v math.Vec3) math.Vec3 {
	v = t.Axes.MulRow(v.Sub(t.Translation)).Sub(t.Recenter)
	return math.Diagonal(t.Flip).MulVec(v).Scale(1 / t.Scale)
}

// Normalize translates, orients, flips and scales m. The returned mesh has
// the same faces and vertex count; only positions change.
func Normalize(m *mesh.Mesh, anchor Anchor) (*mesh.Mesh, Transform, error) {
	log := logger.Named("pose")
	var t Transform

	origin, err := anchorPoint(m.Vertices, anchor)
	if err != nil {
		return nil, t, err
	}
	t.Translation = origin
	out := m.Transform(func(v math.Vec3) math.Vec3 { return v.Sub(origin) })

	frame, err := orientation(out.Vertices)
	if err != nil {
		return nil, t, err
	}
	t.Axes = frame.Basis()
	t.Eigenvalues = frame.Values
	out = out.Transform(t.Axes.MulRow)

	// Rotation moves the box center off the origin; center again in the
	// principal frame.
	t.Recenter = out.BoundingBox().Center()
	out = out.Transform(func(v math.Vec3) math.Vec3 { return v.Sub(t.Recenter) })

	t.Flip = flipSigns(out)
	reflect := math.Diagonal(t.Flip)
	out = out.Transform(reflect.MulVec)

	box := out.BoundingBox()
	t.Scale = box.Max.Abs().Max(box.Min.Abs()).MaxComponent()
	if t.Scale <= 0 {
		return nil, t, fmt.Errorf("zero extent after centering: %w", math.ErrDegenerateGeometry)
	}
	inv := 1 / t.Scale
	out = out.Transform(func(v math.Vec3) math.Vec3 { return v.Scale(inv) })

	log.Debug("normalized pose",
		zap.Stringer("anchor", anchor),
		zap.Float64s("eigenvalues", t.Eigenvalues[:]),
		zap.Float64s("flip", []float64{t.Flip.X, t.Flip.Y, t.Flip.Z}),
		zap.Bool("mirrored", reflect.Det() < 0),
		zap.Stringer("extent", box.Size()),
		zap.Float64("scale", t.Scale),
	)
	return out, t, nil
}

func anchorPoint(points []math.Vec3, anchor Anchor) (math.Vec3, error) {
	var (
		p   math.Vec3
		err error
	)
	if anchor == AnchorCentroid {
		p, err = math.Centroid(points)
	} else {
		p, err = math.BoundingBoxCenter(points)
	}
	if err != nil {
		return math.Vec3{}, fmt.Errorf("translate: %w", wrapEmpty(err))
	}
	return p, nil
}

func orientation(points []math.Vec3) (math.PrincipalFrame, error) {
	cov, err := math.Covariance(points)
	if err != nil {
		return math.PrincipalFrame{}, fmt.Errorf("orient: %w", err)
	}
	frame, err := math.PrincipalAxes(cov)
	if err != nil {
		return math.PrincipalFrame{}, fmt.Errorf("orient: %w", err)
	}
	return frame, nil
}

// flipSigns returns -1 for each axis whose moment
// sum(sign(c) * c^2) over triangle centers c is negative.
func flipSigns(m *mesh.Mesh) math.Vec3 {
	var moment [3]float64
	for i := range m.Faces {
		c := m.FaceCenter(i)
		for axis := 0; axis < 3; axis++ {
			x := c.Index(axis)
			if x < 0 {
				moment[axis] -= x * x
			} else {
				moment[axis] += x * x
			}
		}
	}
	var signs [3]float64
	for axis, f := range moment {
		signs[axis] = 1
		if f < 0 {
			signs[axis] = -1
		}
	}
	return math.FromArray(signs)
}

// wrapEmpty reports an empty vertex list as degenerate geometry.
func wrapEmpty(err error) error {
	if errors.Is(err, math.ErrEmptyPointSet) {
		return fmt.Errorf("%w: %w", math.ErrDegenerateGeometry, err)
	}
	return err
}
