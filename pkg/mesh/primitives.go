package mesh

import (
	gomath "math"

	"github.com/Faultbox/shapenorm/pkg/math"
)

// Cube returns a closed cube spanning [-1, 1] on every axis, wound
// counter-clockwise when seen from outside.
func Cube() *Mesh {
	return &Mesh{
		Vertices: []math.Vec3{
			{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
			{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
		},
		Faces: []Face{
			{0, 2, 1}, {0, 3, 2}, // -Z
			{4, 5, 6}, {4, 6, 7}, // +Z
			{0, 1, 5}, {0, 5, 4}, // -Y
			{2, 3, 7}, {2, 7, 6}, // +Y
			{0, 4, 7}, {0, 7, 3}, // -X
			{1, 2, 6}, {1, 6, 5}, // +X
		},
	}
}

// Icosahedron returns a closed icosahedron with vertices on the unit sphere.
func Icosahedron() *Mesh {
	t := (1 + gomath.Sqrt(5)) / 2
	raw := []math.Vec3{
		{X: -1, Y: t, Z: 0}, {X: 1, Y: t, Z: 0}, {X: -1, Y: -t, Z: 0}, {X: 1, Y: -t, Z: 0},
		{X: 0, Y: -1, Z: t}, {X: 0, Y: 1, Z: t}, {X: 0, Y: -1, Z: -t}, {X: 0, Y: 1, Z: -t},
		{X: t, Y: 0, Z: -1}, {X: t, Y: 0, Z: 1}, {X: -t, Y: 0, Z: -1}, {X: -t, Y: 0, Z: 1},
	}
	vertices := make([]math.Vec3, len(raw))
	for i, v := range raw {
		vertices[i] = v.Normalize()
	}
	return &Mesh{
		Vertices: vertices,
		Faces: []Face{
			{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
			{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
			{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
			{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
		},
	}
}

// Grid returns an open n x n grid of unit cells in the XY plane. Its
// boundary is a single loop of 4n vertices.
func Grid(n int) *Mesh {
	m := &Mesh{}
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Vertices = append(m.Vertices, math.Vec3{X: float64(x), Y: float64(y)})
		}
	}
	at := func(x, y int) int { return y*(n+1) + x }
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			m.Faces = append(m.Faces,
				Face{at(x, y), at(x+1, y), at(x+1, y+1)},
				Face{at(x, y), at(x+1, y+1), at(x, y+1)},
			)
		}
	}
	return m
}

// WithoutFaces returns a copy with the listed faces removed. Vertices are
// kept, so the removed faces leave holes.
func (m *Mesh) WithoutFaces(indices ...int) *Mesh {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	out := &Mesh{Vertices: make([]math.Vec3, len(m.Vertices))}
	copy(out.Vertices, m.Vertices)
	for i, f := range m.Faces {
		if !drop[i] {
			out.Faces = append(out.Faces, f)
		}
	}
	return out
}
