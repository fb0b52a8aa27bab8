package remesh

import (
	"github.com/fogleman/simplify"

	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Decimation constants.
const (
	TargetFraction    = 0.75 // aim below the band ceiling
	MaxReductionRatio = 0.95
)

// ReductionRatio returns the fraction of faces a decimation pass should
// remove to approach target faces, clamped to [0, MaxReductionRatio].
func ReductionRatio(target, faces int) float64 {
	if faces <= 0 {
		return 0
	}
	r := 1 - float64(target)*TargetFraction/float64(faces)
	if r < 0 {
		return 0
	}
	if r > MaxReductionRatio {
		return MaxReductionRatio
	}
	return r
}

// Decimate removes roughly ratio of the faces by quadric-error edge
// collapse. The simplified triangle soup is welded back into an indexed
// mesh; degenerate faces and unreferenced vertices are dropped.
func Decimate(m *mesh.Mesh, ratio float64) *mesh.Mesh {
	triangles := make([]*simplify.Triangle, len(m.Faces))
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		triangles[i] = &simplify.Triangle{V1: toSimplify(a), V2: toSimplify(b), V3: toSimplify(c)}
	}

	simplified := simplify.NewMesh(triangles).Simplify(1 - ratio)

	corners := make([]math.Vec3, 0, len(simplified.Triangles)*3)
	for _, t := range simplified.Triangles {
		corners = append(corners, fromSimplify(t.V1), fromSimplify(t.V2), fromSimplify(t.V3))
	}
	return mesh.FromTriangleSoup(corners)
}

func toSimplify(v math.Vec3) simplify.Vector {
	return simplify.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func fromSimplify(v simplify.Vector) math.Vec3 {
	return math.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}
