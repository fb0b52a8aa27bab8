package mesh

import (
	"fmt"
	"strings"

	"github.com/Faultbox/shapenorm/pkg/math"
)

// Stats summarizes a mesh for dataset reports.
type Stats struct {
	ID            string
	VertexCount   int
	FaceCount     int
	BoundingBox   math.Box
	SurfaceArea   float64
	Volume        float64 // signed; meaningful only for closed meshes
	BoundaryEdges int
}

// ComputeStats returns the statistics of m. BoundaryEdges is left for the
// caller, which owns the boundary extraction. A mesh without vertices gets
// a zero box.
func ComputeStats(id string, m *Mesh) Stats {
	s := Stats{
		ID:          id,
		VertexCount: m.VertexCount(),
		FaceCount:   m.FaceCount(),
		BoundingBox: m.BoundingBox(),
	}
	if s.BoundingBox.IsEmpty() {
		s.BoundingBox = math.Box{}
	}
	for i := range m.Faces {
		s.SurfaceArea += m.FaceNormal(i).Length() / 2
		a, b, c := m.Triangle(i)
		s.Volume += a.Dot(b.Cross(c)) / 6
	}
	return s
}

// StatsHeaders returns the column names matching Stats.String.
func StatsHeaders() string {
	return strings.Join([]string{
		"ID", "#Vertices", "#Faces",
		"AABB_min_X", "AABB_min_Y", "AABB_min_Z",
		"AABB_max_X", "AABB_max_Y", "AABB_max_Z",
		"SurfaceArea", "Volume", "#BoundaryEdges",
	}, ";")
}

// String formats the statistics as one ';'-separated row.
func (s Stats) String() string {
	return strings.Join([]string{
		s.ID,
		fmt.Sprint(s.VertexCount),
		fmt.Sprint(s.FaceCount),
		fmt.Sprint(s.BoundingBox.Min.X), fmt.Sprint(s.BoundingBox.Min.Y), fmt.Sprint(s.BoundingBox.Min.Z),
		fmt.Sprint(s.BoundingBox.Max.X), fmt.Sprint(s.BoundingBox.Max.Y), fmt.Sprint(s.BoundingBox.Max.Z),
		fmt.Sprint(s.SurfaceArea),
		fmt.Sprint(s.Volume),
		fmt.Sprint(s.BoundaryEdges),
	}, ";")
}
