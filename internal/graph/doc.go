// Package graph orders a module's futures for execution.
//
// New indexes the futures and checks that every reference names a declared
// future. Resolve runs Kahn's algorithm: a future is emitted only after
// every future it references, and among futures that are ready at the same
// time the one declared first (module build order, then declaration order)
// wins. The order is therefore a pure function of the input.
//
// When futures remain after Kahn's algorithm terminates, the graph has a
// cycle. The returned CyclicDependencyError names every remaining future and,
// for diagnostics, the concrete cycles found by Tarjan's strongly connected
// components algorithm.
package graph
