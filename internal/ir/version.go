package ir

// Version constants.
const (
	// JournalVersion is the journal schema version written with each run.
	JournalVersion = "1"

	// EngineVersion is the Keystone engine version.
	EngineVersion = "0.1.0"
)
