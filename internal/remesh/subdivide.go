package remesh

import (
	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// edgeKey identifies an undirected edge by its sorted vertex indices.
type edgeKey struct {
	a, b int
}

func keyOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Subdivide splits every triangle into four at its edge midpoints. A
// midpoint is created once per undirected edge and shared by both adjacent
// triangles, so a watertight input stays watertight.
func Subdivide(m *mesh.Mesh) *mesh.Mesh {
	out := &mesh.Mesh{
		Vertices: make([]math.Vec3, len(m.Vertices), len(m.Vertices)+len(m.Faces)*3/2+1),
		Faces:    make([]mesh.Face, 0, len(m.Faces)*4),
	}
	copy(out.Vertices, m.Vertices)

	midpoints := make(map[edgeKey]int, len(m.Faces)*3/2+1)
	midpoint := func(a, b int) int {
		k := keyOf(a, b)
		if i, ok := midpoints[k]; ok {
			return i
		}
		i := len(out.Vertices)
		out.Vertices = append(out.Vertices, out.Vertices[a].Add(out.Vertices[b]).Scale(0.5))
		midpoints[k] = i
		return i
	}

	for _, f := range m.Faces {
		a, b, c := f[0], f[1], f[2]
		ab, bc, ca := midpoint(a, b), midpoint(b, c), midpoint(c, a)
		out.Faces = append(out.Faces,
			mesh.Face{a, ab, ca},
			mesh.Face{ab, b, bc},
			mesh.Face{ca, bc, c},
			mesh.Face{ab, bc, ca},
		)
	}
	return out
}
