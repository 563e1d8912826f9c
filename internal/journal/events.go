package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/keystone/internal/ir"
)

func (j *Journal) appendEvent(ctx context.Context, tx *sql.Tx, ev ir.JournalEvent, namespace string) error {
	_, err := tx.ExecContext(ctx, j.rebind(`
		INSERT INTO events (namespace, seq, run_id, module, future_id, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), namespace, ev.Seq, ev.RunID, ev.Ref.Module, ev.Ref.ID, string(ev.Status), ev.Detail)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events returns the namespace's event log in write order.
//
// Returns an empty slice (not nil) if the namespace has no events.
func (j *Journal) Events(ctx context.Context, namespace string) ([]ir.JournalEvent, error) {
	rows, err := j.db.QueryContext(ctx, j.rebind(`
		SELECT seq, run_id, module, future_id, status, detail
		FROM events
		WHERE namespace = ?
		ORDER BY seq ASC, id ASC
	`), namespace)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.JournalEvent{}
	for rows.Next() {
		var (
			ev     ir.JournalEvent
			status string
		)
		if err := rows.Scan(&ev.Seq, &ev.RunID, &ev.Ref.Module, &ev.Ref.ID, &status, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Status = ir.Status(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest seq written to namespace, or 0 for an empty
// namespace. The engine resumes its logical clock from it.
func (j *Journal) LastSeq(ctx context.Context, namespace string) (int64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, j.rebind(`
		SELECT MAX(seq) FROM events WHERE namespace = ?
	`), namespace).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}
