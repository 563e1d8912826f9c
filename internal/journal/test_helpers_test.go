package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/keystone/internal/ir"
)

const testNamespace = "chain-10"

// createTestJournal opens a SQLite journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// backends returns a SQLite journal, plus a Postgres one when
// KEYSTONE_TEST_POSTGRES_DSN is set.
func backends(t *testing.T) map[string]*Journal {
	t.Helper()
	out := map[string]*Journal{"sqlite": createTestJournal(t)}
	if dsn := os.Getenv("KEYSTONE_TEST_POSTGRES_DSN"); dsn != "" {
		j, err := Open(dsn)
		if err != nil {
			t.Fatalf("Open(postgres) failed: %v", err)
		}
		t.Cleanup(func() { j.Close() })
		out["postgres"] = j
	}
	return out
}

// uniqueNamespace isolates tests sharing one Postgres database.
func uniqueNamespace(t *testing.T) string {
	return testNamespace + "/" + t.Name()
}

func entry(namespace, ref string, status ir.Status, seq int64) ir.JournalEntry {
	r, err := ir.ParseFutureRef(ref)
	if err != nil {
		panic(err)
	}
	return ir.JournalEntry{
		Namespace:      namespace,
		Ref:            r,
		Kind:           ir.KindDeploy,
		Status:         status,
		DefinitionHash: "hash-" + r.ID,
		RunID:          "run-1",
		Seq:            seq,
	}
}
