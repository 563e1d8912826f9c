package testutil

// FixedRunID returns the same run id every time.
//
// Unlike engine.FixedGenerator which returns ids in sequence, every run
// shares the id, so journal contents are byte-identical across repeated
// scenarios.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed run id generator. If id is empty,
// Generate returns "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run id.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
