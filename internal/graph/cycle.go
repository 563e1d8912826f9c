package graph

import "sort"

// cycles finds the strongly connected components of the dependency edges
// and renders each one that is a real cycle (more than one node, or a self
// loop) as a path.
func (g *Graph) cycles() [][]string {
	var paths [][]string
	for _, scc := range tarjanSCC(g.deps) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], g.deps) {
			continue
		}
		path := reconstructCyclePath(scc, g.deps)
		names := make([]string, len(path))
		for i, n := range path {
			names[i] = g.futures[n].Ref.String()
		}
		paths = append(paths, names)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i][0] < paths[j][0] })
	return paths
}

// Cycles is Tarjan's algorithm over an adjacency list of string nodes. It
// is used for module-level cycle reports, where nodes are module names.
func Cycles(edges map[string][]string) [][]string {
	names := make([]string, 0, len(edges))
	for n := range edges {
		names = append(names, n)
	}
	sort.Strings(names)
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	adj := make([][]int, len(names))
	for i, n := range names {
		for _, m := range edges[n] {
			if j, ok := idx[m]; ok {
				adj[i] = append(adj[i], j)
			}
		}
	}

	var paths [][]string
	for _, scc := range tarjanSCC(adj) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], adj) {
			continue
		}
		path := reconstructCyclePath(scc, adj)
		out := make([]string, len(path))
		for i, n := range path {
			out[i] = names[n]
		}
		paths = append(paths, out)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i][0] < paths[j][0] })
	return paths
}

func hasSelfLoop(node int, adj [][]int) bool {
	for _, n := range adj[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of adj. Nodes are
// visited in index order so the result is deterministic.
func tarjanSCC(adj [][]int) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make([]int, len(adj))
		lowlink = make([]int, len(adj))
		onStack = make([]bool, len(adj))
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}

	for v := range adj {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

// reconstructCyclePath returns the shortest cycle through the SCC's
// smallest node, found breadth-first, ending where it started.
func reconstructCyclePath(scc []int, adj [][]int) []int {
	members := make(map[int]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	prev := map[int]int{start: -1}
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, w := range adj[u] {
			if w == start {
				var path []int
				for n := u; n >= 0; n = prev[n] {
					path = append([]int{n}, path...)
				}
				return append(path, start)
			}
			if _, seen := prev[w]; !seen && members[w] {
				prev[w] = u
				queue = append(queue, w)
			}
		}
	}
	return []int{start}
}
