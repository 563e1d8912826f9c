// Package module maps module names to builders and builds them into
// futures.
//
// A Builder declares futures through a Context and returns the futures it
// exposes to other modules as Outputs. Builders must be deterministic:
// the same parameters always declare the same futures in the same order.
//
// Building happens inside a Session. Context.Use builds a referenced module
// first, depth-first, and memoizes the result, so a module shared by two
// consumers is built once and its futures are declared once. A module that
// ends up using itself fails with graph.CyclicDependencyError.
package module
