// Package mesh provides the indexed triangle mesh shared by every
// normalization stage.
//
// Vertices and faces are flat arrays with stable indices. Stages never
// mutate a mesh they receive; they return a new one.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/shapenorm/pkg/math"
)

// Mesh errors.
var (
	ErrIndexOutOfRange       = errors.New("face index out of range")
	ErrRepeatedIndex         = errors.New("face repeats a vertex index")
	ErrVertexNotFound        = errors.New("vertex not found")
	ErrVertexLookupAmbiguous = errors.New("vertex lookup ambiguous")
	ErrNonFiniteVertex       = errors.New("non-finite vertex position")
	ErrNoFaces               = errors.New("mesh has no faces")
)

// Face is a triangle given by three vertex indices.
type Face [3]int

// Edges returns the three directed edges of the face in winding order.
func (f Face) Edges() [3][2]int {
	return [3][2]int{{f[0], f[1]}, {f[1], f[2]}, {f[2], f[0]}}
}

// Reversed returns the face with opposite winding.
func (f Face) Reversed() Face {
	return Face{f[0], f[2], f[1]}
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []math.Vec3
	Faces    []Face
}

// New returns a mesh over copies of vertices and faces.
func New(vertices []math.Vec3, faces []Face) *Mesh {
	m := &Mesh{
		Vertices: make([]math.Vec3, len(vertices)),
		Faces:    make([]Face, len(faces)),
	}
	copy(m.Vertices, vertices)
	copy(m.Faces, faces)
	return m
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return New(m.Vertices, m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Validate checks that every face index is in range, that no face repeats an
// index and that all positions are finite.
func (m *Mesh) Validate() error {
	for i, v := range m.Vertices {
		if !v.IsFinite() {
			return fmt.Errorf("vertex %d: %w", i, ErrNonFiniteVertex)
		}
	}
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d index %d (vertices: %d): %w", i, idx, n, ErrIndexOutOfRange)
			}
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return fmt.Errorf("face %d %v: %w", i, f, ErrRepeatedIndex)
		}
	}
	return nil
}

// Triangle returns the three corner positions of face i.
func (m *Mesh) Triangle(i int) (a, b, c math.Vec3) {
	f := m.Faces[i]
	return m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
}

// FaceCenter returns the centroid of face i.
func (m *Mesh) FaceCenter(i int) math.Vec3 {
	a, b, c := m.Triangle(i)
	return a.Add(b).Add(c).Scale(1.0 / 3.0)
}

// FaceNormal returns the unnormalized normal of face i (twice its area).
func (m *Mesh) FaceNormal(i int) math.Vec3 {
	a, b, c := m.Triangle(i)
	return b.Sub(a).Cross(c.Sub(a))
}

// BoundingBox returns the axis-aligned box of all vertices.
func (m *Mesh) BoundingBox() math.Box {
	box := math.EmptyBox()
	for _, v := range m.Vertices {
		box = box.Extend(v)
	}
	return box
}

// Locate returns the single vertex index whose position equals p exactly.
func (m *Mesh) Locate(p math.Vec3) (int, error) {
	found := -1
	for i, v := range m.Vertices {
		if v != p {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("position %v matches vertices %d and %d: %w", p, found, i, ErrVertexLookupAmbiguous)
		}
		found = i
	}
	if found < 0 {
		return -1, fmt.Errorf("position %v: %w", p, ErrVertexNotFound)
	}
	return found, nil
}

// Transform returns a copy whose vertices are mapped through fn.
func (m *Mesh) Transform(fn func(math.Vec3) math.Vec3) *Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = fn(v)
	}
	return out
}

// Compact drops faces that repeat a vertex index and vertices no face
// references, renumbering the remaining vertices in order.
func (m *Mesh) Compact() *Mesh {
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}

	out := &Mesh{Faces: make([]Face, 0, len(m.Faces))}
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		var nf Face
		for k, idx := range f {
			if remap[idx] < 0 {
				remap[idx] = len(out.Vertices)
				out.Vertices = append(out.Vertices, m.Vertices[idx])
			}
			nf[k] = remap[idx]
		}
		out.Faces = append(out.Faces, nf)
	}
	return out
}

// Weld merges vertices with identical positions, keeping the first
// occurrence, and then compacts the result.
func (m *Mesh) Weld() *Mesh {
	canon := CanonicalIndices(m.Vertices)
	out := &Mesh{
		Vertices: m.Vertices,
		Faces:    make([]Face, len(m.Faces)),
	}
	for i, f := range m.Faces {
		out.Faces[i] = Face{canon[f[0]], canon[f[1]], canon[f[2]]}
	}
	return out.Compact()
}

// CleanReport counts what Clean removed.
type CleanReport struct {
	MergedVertices int // folded into an earlier vertex at the same position
	UnusedVertices int // referenced by no face
	DroppedFaces   int // collapsed by merging, or repeating another face
}

// Changed reports whether Clean removed anything.
func (r CleanReport) Changed() bool {
	return r.MergedVertices+r.UnusedVertices+r.DroppedFaces > 0
}

// Clean welds vertices that share a position, drops faces that collapse or
// repeat an earlier face over the same three vertices, and removes
// unreferenced vertices. Surviving faces keep their order and winding.
func (m *Mesh) Clean() (*Mesh, CleanReport) {
	var rep CleanReport
	canon := CanonicalIndices(m.Vertices)
	for i, c := range canon {
		if c != i {
			rep.MergedVertices++
		}
	}

	seen := make(map[Face]bool, len(m.Faces))
	used := make([]bool, len(m.Vertices))
	faces := make([]Face, 0, len(m.Faces))
	for _, f := range m.Faces {
		nf := Face{canon[f[0]], canon[f[1]], canon[f[2]]}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[0] == nf[2] {
			rep.DroppedFaces++
			continue
		}
		key := sortedFace(nf)
		if seen[key] {
			rep.DroppedFaces++
			continue
		}
		seen[key] = true
		for _, idx := range nf {
			used[idx] = true
		}
		faces = append(faces, nf)
	}

	// Unlike Compact, surviving vertices keep their relative order.
	remap := make([]int, len(m.Vertices))
	out := &Mesh{Faces: faces}
	for i, v := range m.Vertices {
		if used[i] {
			remap[i] = len(out.Vertices)
			out.Vertices = append(out.Vertices, v)
		}
	}
	for i, f := range out.Faces {
		out.Faces[i] = Face{remap[f[0]], remap[f[1]], remap[f[2]]}
	}
	rep.UnusedVertices = len(m.Vertices) - rep.MergedVertices - len(out.Vertices)
	return out, rep
}

func sortedFace(f Face) Face {
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}

// CanonicalIndices maps every vertex to the first index that has the same
// position.
func CanonicalIndices(vertices []math.Vec3) []int {
	first := make(map[math.Vec3]int, len(vertices))
	canon := make([]int, len(vertices))
	for i, v := range vertices {
		if j, ok := first[v]; ok {
			canon[i] = j
			continue
		}
		first[v] = i
		canon[i] = i
	}
	return canon
}

// FromTriangleSoup builds an indexed mesh from corner positions, three per
// triangle, welding corners that share a position. A trailing partial
// triangle is ignored.
func FromTriangleSoup(corners []math.Vec3) *Mesh {
	n := len(corners) / 3
	soup := &Mesh{
		Vertices: corners[:n*3],
		Faces:    make([]Face, n),
	}
	for i := range soup.Faces {
		soup.Faces[i] = Face{3 * i, 3*i + 1, 3*i + 2}
	}
	return soup.Weld()
}
