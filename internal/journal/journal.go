package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Schema version tracking:
// 1 - entries, events, locks
const currentSchemaVersion = 1

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Journal is a deployment journal backed by SQLite or Postgres. It is safe
// for concurrent use.
type Journal struct {
	db      *sql.DB
	dialect dialect
}

// Locate returns the DSN for a namespace: dsn when set, otherwise a SQLite
// file named after the namespace inside dir.
func Locate(dsn, dir, namespace string) string {
	if dsn != "" {
		return dsn
	}
	return filepath.Join(dir, namespace+".db")
}

// IsPostgres reports whether dsn selects the Postgres backend.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open creates or opens the journal at dsn and applies the schema. It is
// idempotent.
func Open(dsn string) (*Journal, error) {
	if IsPostgres(dsn) {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

func openSQLite(path string) (*Journal, error) {
	if file := strings.TrimPrefix(path, "file:"); file != ":memory:" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	j := &Journal{db: db, dialect: dialectSQLite}
	if err := j.applySchema(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return j, nil
}

func openPostgres(dsn string) (*Journal, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	j := &Journal{db: db, dialect: dialectPostgres}
	if err := j.applySchema(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. A journal written by a newer schema is refused.
func (j *Journal) applySchema(schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	var raw string
	err := j.db.QueryRow(j.rebind(`SELECT value FROM meta WHERE key = ?`), "schema_version").Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("get schema version: %w", err)
	default:
		version, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid schema version %q", raw)
		}
		if version > currentSchemaVersion {
			return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
		}
	}

	_, err = j.db.Exec(j.rebind(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`), "schema_version", strconv.Itoa(currentSchemaVersion))
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (j *Journal) rebind(query string) string {
	if j.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
