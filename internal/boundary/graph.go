// Package boundary extracts the open edges of a triangle mesh as an
// undirected graph.
//
// Vertices that share a position are treated as one point, but every node
// keeps a real index into the mesh it was built from, so later stages never
// have to map coordinates back to indices.
package boundary

import (
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Node is a boundary vertex. Its graph ID is the vertex index.
type Node struct {
	Index    int // canonical vertex index in the source mesh
	Position math.Vec3
}

// ID implements graph.Node.
func (n Node) ID() int64 { return int64(n.Index) }

// Edge is a boundary edge. From -> To is the direction in which the single
// owning triangle traverses it.
type Edge struct {
	From int
	To   int
	Face int // owning face
}

type edgeKey struct{ a, b int }

func keyOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Graph is the undirected graph of boundary edges.
type Graph struct {
	g     *simple.UndirectedGraph
	edges []Edge
	owner map[edgeKey]Edge
}

type edgeCount struct {
	count int
	first Edge
}

// Build returns the boundary graph of m. Edges used by exactly one triangle
// are boundary edges. Edges whose ends collapse to the same position are
// dropped with a warning, as are faces with indices outside the vertex
// array.
func Build(m *mesh.Mesh) *Graph {
	log := logger.Named("boundary")
	canon := mesh.CanonicalIndices(m.Vertices)
	n := len(m.Vertices)

	counts := make(map[edgeKey]*edgeCount)
	var order []edgeKey
	for fi, f := range m.Faces {
		f := f
		if f[0] < 0 || f[0] >= n || f[1] < 0 || f[1] >= n || f[2] < 0 || f[2] >= n {
			log.Warn("skipping face with invalid index", zap.Int("face", fi), zap.Ints("indices", f[:]))
			continue
		}
		for _, e := range f.Edges() {
			a, b := canon[e[0]], canon[e[1]]
			if a == b {
				log.Warn("dropping degenerate edge",
					zap.Int("face", fi),
					zap.Int("vertex", a),
					zap.Stringer("position", m.Vertices[a]),
				)
				continue
			}
			k := keyOf(a, b)
			c, ok := counts[k]
			if !ok {
				c = &edgeCount{first: Edge{From: a, To: b, Face: fi}}
				counts[k] = c
				order = append(order, k)
			}
			c.count++
		}
	}

	g := &Graph{
		g:     simple.NewUndirectedGraph(),
		owner: make(map[edgeKey]Edge),
	}
	for _, k := range order {
		c := counts[k]
		if c.count != 1 {
			continue
		}
		e := c.first
		g.edges = append(g.edges, e)
		g.owner[k] = e
		g.g.SetEdge(simple.Edge{
			F: Node{Index: e.From, Position: m.Vertices[e.From]},
			T: Node{Index: e.To, Position: m.Vertices[e.To]},
		})
	}

	log.Debug("boundary graph built",
		zap.Int("nodes", g.g.Nodes().Len()),
		zap.Int("edges", len(g.edges)),
	)
	return g
}

// Empty reports whether the graph has no edges, i.e. the mesh is closed.
func (g *Graph) Empty() bool {
	return len(g.edges) == 0
}

// Nodes returns the boundary vertices ordered by index.
func (g *Graph) Nodes() []Node {
	out := nodesOf(graph.NodesOf(g.g.Nodes()))
	sortNodes(out)
	return out
}

// Edges returns the boundary edges in face order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Neighbors returns the indices adjacent to index, in ascending order.
func (g *Graph) Neighbors(index int) []int {
	nbrs := graph.NodesOf(g.g.From(int64(index)))
	out := make([]int, len(nbrs))
	for i, n := range nbrs {
		out[i] = int(n.ID())
	}
	sort.Ints(out)
	return out
}

// Direction reports whether the owning triangle of edge {a, b} traverses it
// from a to b. ok is false when {a, b} is not a boundary edge.
func (g *Graph) Direction(a, b int) (forward, ok bool) {
	e, ok := g.owner[keyOf(a, b)]
	if !ok {
		return false, false
	}
	return e.From == a, true
}

// Components returns the node indices of each connected component. Each
// component is sorted and components are ordered by their smallest index.
func (g *Graph) Components() [][]int {
	var out [][]int
	for _, cc := range topo.ConnectedComponents(g.g) {
		comp := make([]int, len(cc))
		for i, n := range cc {
			comp[i] = int(n.ID())
		}
		sort.Ints(comp)
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func nodesOf(ns []graph.Node) []Node {
	out := make([]Node, len(ns))
	for i, n := range ns {
		out[i] = n.(Node)
	}
	return out
}

func sortNodes(ns []Node) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].Index < ns[j].Index })
}
