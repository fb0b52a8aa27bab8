// Package holes closes the boundary loops of a triangle mesh.
package holes

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shapenorm/internal/boundary"
	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Report describes one Fill call.
type Report struct {
	BoundaryEdges int
	Cycles        int
	Added         int // new triangles
	Flipped       int // cycles whose patch winding was reversed
}

// NoHolesFound reports whether the mesh was already closed.
func (r Report) NoHolesFound() bool {
	return r.BoundaryEdges == 0
}

// Fill closes every boundary loop of m.
func Fill(m *mesh.Mesh) (*mesh.Mesh, Report, error) {
	return FillGraph(m, boundary.Build(m))
}

// FillGraph closes the loops of g, a boundary graph built from m or from a
// mesh with the same vertex positions. Vertex positions never change; only
// triangles are appended.
//
// A node whose index does not hold its position in m is resolved again by
// position. If that lookup fails, m is returned unpatched with the error.
func FillGraph(m *mesh.Mesh, g *boundary.Graph) (*mesh.Mesh, Report, error) {
	log := logger.Named("holes")
	rep := Report{BoundaryEdges: len(g.Edges())}
	if g.Empty() {
		return m.Clone(), rep, nil
	}
	if err := m.Validate(); err != nil {
		return m.Clone(), rep, fmt.Errorf("fill holes: %w", err)
	}

	cycles := boundary.CycleBasis(g)
	rep.Cycles = len(cycles)

	var patch []mesh.Face
	for ci, c := range cycles {
		indices, err := resolve(m, c)
		if err != nil {
			log.Warn("boundary cycle not found in mesh",
				zap.Int("cycle", ci),
				zap.Ints("vertices", c.Indices()),
				zap.Error(err),
			)
			return m.Clone(), Report{BoundaryEdges: rep.BoundaryEdges, Cycles: rep.Cycles},
				fmt.Errorf("fill holes: cycle %d: %w", ci, err)
		}
		if len(indices) < 3 {
			log.Warn("skipping short cycle", zap.Int("cycle", ci), zap.Ints("vertices", indices))
			continue
		}

		faces := ZigZag(indices)
		if patchReversed(g, c) {
			for i, f := range faces {
				faces[i] = f.Reversed()
			}
			rep.Flipped++
		}
		log.Debug("filled hole",
			zap.Int("cycle", ci),
			zap.Int("boundary_vertices", len(indices)),
			zap.Int("triangles", len(faces)),
		)
		patch = append(patch, faces...)
	}

	out := m.Clone()
	out.Faces = append(out.Faces, patch...)
	rep.Added = len(patch)
	return out, rep, nil
}

// ZigZag triangulates a loop of vertex indices by sweeping from both ends
// towards the middle, producing len(loop) - 2 triangles. Every triangle
// walks the loop edges it uses in loop order.
func ZigZag(loop []int) []mesh.Face {
	n := len(loop)
	if n < 3 {
		return nil
	}
	faces := make([]mesh.Face, 0, n-2)
	back, left, right := 0, 1, n-1
	fromLeft := true
	for left < right {
		faces = append(faces, mesh.Face{loop[back], loop[left], loop[right]})
		if fromLeft {
			back = left
			left++
		} else {
			back = right
			right--
		}
		fromLeft = !fromLeft
	}
	return faces
}

// resolve returns the mesh indices of the cycle nodes.
func resolve(m *mesh.Mesh, c boundary.Cycle) ([]int, error) {
	out := make([]int, len(c))
	for i, n := range c {
		if n.Index >= 0 && n.Index < len(m.Vertices) && m.Vertices[n.Index] == n.Position {
			out[i] = n.Index
			continue
		}
		idx, err := m.Locate(n.Position)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// patchReversed reports whether the patch, which walks the cycle in order,
// must be flipped to match its neighbors. A neighbor walking a seam edge in
// cycle order votes for flipping; ties keep cycle order.
func patchReversed(g *boundary.Graph, c boundary.Cycle) bool {
	votes := 0
	for i, n := range c {
		next := c[(i+1)%len(c)]
		forward, ok := g.Direction(n.Index, next.Index)
		if !ok {
			continue
		}
		if forward {
			votes++
		} else {
			votes--
		}
	}
	return votes > 0
}
