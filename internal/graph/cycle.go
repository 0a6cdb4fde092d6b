package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/pullgraph/internal/substrate"
)

// CycleWarning reports a set of vertices wired into a loop.
//
// Analysis works on vertices, not ports, so a loop through an output that
// never pulls its inputs (a cache's Changed port, say) is reported even
// though evaluating it terminates. Hence a warning: the runtime guard in
// Context is what turns a real cyclic pull into an error.
type CycleWarning struct {
	Path    []substrate.ID `json:"path"`
	Message string         `json:"message"`
}

// dependencyGraph maps producer -> consumers, one entry per arc.
type dependencyGraph map[substrate.ID][]substrate.ID

func buildDependencyGraph(w *substrate.World) dependencyGraph {
	g := make(dependencyGraph)
	substrate.Each(w, func(id substrate.ID, _ *Vertex) {
		if g[id] == nil {
			g[id] = []substrate.ID{}
		}
	})
	substrate.Each(w, func(_ substrate.ID, a *Arc) {
		g[a.Producer] = append(g[a.Producer], a.Consumer)
	})
	for k := range g {
		slices.Sort(g[k])
	}
	return g
}

// AnalyzeCycles finds every strongly connected set of vertices in w.
// An acyclic graph yields no warnings. Warnings are ordered by their
// smallest vertex ID.
func AnalyzeCycles(w *substrate.World) []CycleWarning {
	g := buildDependencyGraph(w)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			warnings = append(warnings, sccToWarning(scc, g))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return cmp.Compare(slices.Min(a.Path), slices.Min(b.Path))
	})
	return warnings
}

func hasSelfLoop(node substrate.ID, g dependencyGraph) bool {
	return slices.Contains(g[node], node)
}

// tarjanSCC returns the strongly connected components of g. Nodes are
// visited in ID order so results are stable.
func tarjanSCC(g dependencyGraph) [][]substrate.ID {
	var (
		index   = 0
		stack   []substrate.ID
		indices = make(map[substrate.ID]int)
		lowlink = make(map[substrate.ID]int)
		onStack = make(map[substrate.ID]bool)
		sccs    [][]substrate.ID
	)

	var strongConnect func(substrate.ID)
	strongConnect = func(v substrate.ID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []substrate.ID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]substrate.ID, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

func sccToWarning(scc []substrate.ID, g dependencyGraph) CycleWarning {
	path := cyclePath(scc, g)
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("vertices wired in a loop: %s", strings.Join(parts, " -> ")),
	}
}

// cyclePath walks arcs inside scc from its smallest vertex back to it.
func cyclePath(scc []substrate.ID, g dependencyGraph) []substrate.ID {
	members := make(map[substrate.ID]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := slices.Min(scc)
	path := []substrate.ID{start}
	visited := map[substrate.ID]bool{}
	for current := start; ; {
		visited[current] = true
		next, found := substrate.ID(0), false
		for _, n := range g[current] {
			if members[n] && (!visited[n] || n == start) {
				next, found = n, true
				break
			}
		}
		if !found {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}

// Validate checks a built world: every declared input is wired and no
// vertices are wired in a loop. All problems are returned together.
func Validate(w *substrate.World) error {
	var result *multierror.Error

	substrate.Each(w, func(id substrate.ID, p *Ports) {
		for _, in := range p.Inputs {
			if !in.Wired() {
				spec := in.Spec
				result = multierror.Append(result, &GraphError{
					Code:    ErrCodeUnwiredInput,
					Message: "input is not wired",
					Vertex:  id,
					Port:    &spec,
				})
			}
		}
	})

	for _, cw := range AnalyzeCycles(w) {
		result = multierror.Append(result, &GraphError{
			Code:    ErrCodeCycleDetected,
			Message: cw.Message,
			Vertex:  cw.Path[0],
		})
	}

	return result.ErrorOrNil()
}
