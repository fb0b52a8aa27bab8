package boundary

import (
	"sort"

	"gonum.org/v1/gonum/graph/topo"
)

// Cycle is a closed walk over boundary nodes; consecutive nodes, and the
// last and first node, are joined by a boundary edge.
type Cycle []Node

// CycleBasis returns an independent set of simple cycles covering the
// graph. Each connected component with E edges and V nodes contributes
// E - V + 1 cycles, so a component that is a single loop yields that loop.
//
// Each cycle starts at its smallest index and continues towards the smaller
// of that node's two cycle neighbors. Cycles are ordered by start index,
// then length.
func CycleBasis(g *Graph) []Cycle {
	var cycles []Cycle
	for _, walk := range topo.UndirectedCyclesIn(g.g) {
		// Paton cycles repeat the first node at the end.
		if len(walk) > 1 && walk[len(walk)-1].ID() == walk[0].ID() {
			walk = walk[:len(walk)-1]
		}
		cycles = append(cycles, canonical(Cycle(nodesOf(walk))))
	}
	sort.SliceStable(cycles, func(i, j int) bool {
		a, b := cycles[i], cycles[j]
		if a[0].Index != b[0].Index {
			return a[0].Index < b[0].Index
		}
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k].Index != b[k].Index {
				return a[k].Index < b[k].Index
			}
		}
		return false
	})
	return cycles
}

// canonical rotates c to start at its smallest index and walks it towards
// the smaller neighbor.
func canonical(c Cycle) Cycle {
	n := len(c)
	if n == 0 {
		return c
	}
	start := 0
	for i, node := range c {
		if node.Index < c[start].Index {
			start = i
		}
	}
	out := make(Cycle, n)
	for i := range out {
		out[i] = c[(start+i)%n]
	}
	if n > 2 && out[n-1].Index < out[1].Index {
		for i, j := 1, n-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Indices returns the node indices of the cycle in order.
func (c Cycle) Indices() []int {
	out := make([]int, len(c))
	for i, n := range c {
		out[i] = n.Index
	}
	return out
}
