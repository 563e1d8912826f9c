package graph

import (
	"container/heap"

	"github.com/roach88/keystone/internal/ir"
)

// Graph is an indexed set of futures and the edges between them. Node
// indices follow the order the futures were passed to New.
type Graph struct {
	futures    []*ir.Future
	index      map[ir.FutureRef]int
	deps       [][]int
	dependents [][]int
}

// New builds a graph over futures. Every reference (target, input or
// after) must name a future in the set.
func New(futures []*ir.Future) (*Graph, error) {
	g := &Graph{
		futures:    futures,
		index:      make(map[ir.FutureRef]int, len(futures)),
		deps:       make([][]int, len(futures)),
		dependents: make([][]int, len(futures)),
	}
	for i, f := range futures {
		if _, dup := g.index[f.Ref]; dup {
			return nil, &DuplicateFutureError{Ref: f.Ref.String()}
		}
		g.index[f.Ref] = i
	}
	for i, f := range futures {
		for _, dep := range f.Dependencies() {
			j, ok := g.index[dep]
			if !ok {
				return nil, &UnknownReferenceError{From: f.Ref.String(), Ref: dep.String()}
			}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	return g, nil
}

// Len returns the number of futures.
func (g *Graph) Len() int {
	return len(g.futures)
}

// Futures returns the futures in declaration order.
func (g *Graph) Futures() []*ir.Future {
	return g.futures
}

// Future looks up a future by ref.
func (g *Graph) Future(ref ir.FutureRef) (*ir.Future, bool) {
	i, ok := g.index[ref]
	if !ok {
		return nil, false
	}
	return g.futures[i], true
}

// Dependencies returns the futures ref directly depends on.
func (g *Graph) Dependencies(ref ir.FutureRef) []ir.FutureRef {
	i, ok := g.index[ref]
	if !ok {
		return nil
	}
	return g.refs(g.deps[i])
}

// Dependents returns the futures that directly depend on ref.
func (g *Graph) Dependents(ref ir.FutureRef) []ir.FutureRef {
	i, ok := g.index[ref]
	if !ok {
		return nil
	}
	return g.refs(g.dependents[i])
}

// Downstream returns every future that transitively depends on ref, in
// declaration order.
func (g *Graph) Downstream(ref ir.FutureRef) []ir.FutureRef {
	start, ok := g.index[ref]
	if !ok {
		return nil
	}
	seen := make([]bool, len(g.futures))
	queue := []int{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[n] {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	var out []ir.FutureRef
	for i, s := range seen {
		if s {
			out = append(out, g.futures[i].Ref)
		}
	}
	return out
}

func (g *Graph) refs(idx []int) []ir.FutureRef {
	out := make([]ir.FutureRef, len(idx))
	for k, i := range idx {
		out[k] = g.futures[i].Ref
	}
	return out
}

// Resolve returns the futures in execution order.
func (g *Graph) Resolve() ([]*ir.Future, error) {
	indegree := make([]int, len(g.futures))
	for i := range g.futures {
		indegree[i] = len(g.deps[i])
	}

	ready := &indexHeap{}
	for i, d := range indegree {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]*ir.Future, 0, len(g.futures))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		order = append(order, g.futures[n])
		for _, d := range g.dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	if len(order) == len(g.futures) {
		return order, nil
	}

	var remaining []string
	for i, d := range indegree {
		if d > 0 {
			remaining = append(remaining, g.futures[i].Ref.String())
		}
	}
	return order, &CyclicDependencyError{
		Scope:     ScopeFutures,
		Remaining: remaining,
		Cycles:    g.cycles(),
	}
}

// indexHeap is a min-heap of node indices; the smallest index is the
// earliest declared future.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
