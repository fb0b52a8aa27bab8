package math

import gomath "math"

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// EmptyBox returns a box that any Extend call will replace.
func EmptyBox() Box {
	inf := gomath.Inf(1)
	return Box{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// Extend grows the box to contain p.
func (b Box) Extend(p Vec3) Box {
	return Box{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Center returns the midpoint of the per-axis min/max.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the per-axis extent.
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// BoundingBox returns the axis-aligned box of points.
func BoundingBox(points []Vec3) (Box, error) {
	if len(points) == 0 {
		return Box{}, ErrEmptyPointSet
	}
	box := EmptyBox()
	for _, p := range points {
		box = box.Extend(p)
	}
	return box, nil
}

// BoundingBoxCenter returns the midpoint of the bounding box of points.
// It is a steadier anchor than the centroid for unevenly triangulated meshes.
func BoundingBoxCenter(points []Vec3) (Vec3, error) {
	box, err := BoundingBox(points)
	if err != nil {
		return Vec3{}, err
	}
	return box.Center(), nil
}
