// Package testutil provides deterministic collaborators for engine and CLI
// tests: a scripted in-memory Transport and a fixed run id generator.
package testutil
