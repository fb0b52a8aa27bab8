package formats

import (
	"fmt"

	"github.com/fogleman/simplify"

	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// LoadSTL reads a binary STL file. STL stores a triangle soup, so corners
// that share a position are welded into one vertex.
func LoadSTL(path string) (*mesh.Mesh, error) {
	soup, err := simplify.LoadBinarySTL(path)
	if err != nil {
		return nil, fmt.Errorf("reading STL file: %w", err)
	}
	corners := make([]math.Vec3, 0, len(soup.Triangles)*3)
	for _, t := range soup.Triangles {
		corners = append(corners,
			math.Vec3{X: t.V1.X, Y: t.V1.Y, Z: t.V1.Z},
			math.Vec3{X: t.V2.X, Y: t.V2.Y, Z: t.V2.Z},
			math.Vec3{X: t.V3.X, Y: t.V3.Y, Z: t.V3.Z},
		)
	}
	return mesh.FromTriangleSoup(corners), nil
}

// SaveSTL writes m as a binary STL file. Coordinates are stored as float32.
func SaveSTL(path string, m *mesh.Mesh) error {
	triangles := make([]*simplify.Triangle, len(m.Faces))
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		triangles[i] = &simplify.Triangle{
			V1: simplify.Vector{X: a.X, Y: a.Y, Z: a.Z},
			V2: simplify.Vector{X: b.X, Y: b.Y, Z: b.Z},
			V3: simplify.Vector{X: c.X, Y: c.Y, Z: c.Z},
		}
	}
	if err := simplify.NewMesh(triangles).SaveBinarySTL(path); err != nil {
		return fmt.Errorf("writing STL file: %w", err)
	}
	return nil
}
