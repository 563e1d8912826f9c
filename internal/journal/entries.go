package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keystone/internal/ir"
)

const entryColumns = `namespace, module, future_id, kind, status, result, tx_hash, tx_from, tx_nonce, definition_hash, run_id, seq, error`

// Get returns the entry for ref in namespace, or ErrNotFound.
func (j *Journal) Get(ctx context.Context, namespace string, ref ir.FutureRef) (*ir.JournalEntry, error) {
	row := j.db.QueryRowContext(ctx, j.rebind(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE namespace = ? AND module = ? AND future_id = ?
	`), namespace, ref.Module, ref.ID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return e, nil
}

// Put writes an entry and appends the matching event, atomically. It
// returns ErrConfirmed, and writes nothing, if the stored entry is already
// confirmed.
func (j *Journal) Put(ctx context.Context, e ir.JournalEntry) error {
	result, err := marshalResult(e.Result)
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Ref, err)
	}
	var pending ir.PendingTx
	if e.Pending != nil {
		pending = *e.Pending
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put %s: begin: %w", e.Ref, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, j.rebind(`
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, module, future_id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			result = excluded.result,
			tx_hash = excluded.tx_hash,
			tx_from = excluded.tx_from,
			tx_nonce = excluded.tx_nonce,
			definition_hash = excluded.definition_hash,
			run_id = excluded.run_id,
			seq = excluded.seq,
			error = excluded.error
		WHERE entries.status <> 'confirmed'
	`),
		e.Namespace, e.Ref.Module, e.Ref.ID, string(e.Kind), string(e.Status), result,
		pending.TxHash, pending.From, int64(pending.Nonce),
		e.DefinitionHash, e.RunID, e.Seq, e.Error,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Ref, err)
	}
	if n == 0 {
		return ErrConfirmed
	}

	detail := e.Error
	if detail == "" && pending.TxHash != "" {
		detail = "tx " + pending.TxHash
	}
	if err := j.appendEvent(ctx, tx, ir.JournalEvent{
		Seq:    e.Seq,
		RunID:  e.RunID,
		Ref:    e.Ref,
		Status: e.Status,
		Detail: detail,
	}, e.Namespace); err != nil {
		return fmt.Errorf("put %s: %w", e.Ref, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put %s: commit: %w", e.Ref, err)
	}
	return nil
}

// List returns every entry in namespace ordered by seq.
//
// Returns an empty slice (not nil) if the namespace has no entries.
func (j *Journal) List(ctx context.Context, namespace string) ([]ir.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, j.rebind(`
		SELECT `+entryColumns+`
		FROM entries
		WHERE namespace = ?
		ORDER BY seq ASC, module ASC, future_id ASC
	`), namespace)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Wipe deletes a non-confirmed entry so the future runs again on the next
// deploy. Wiping a confirmed entry returns ErrConfirmed; wiping a missing
// one returns ErrNotFound.
func (j *Journal) Wipe(ctx context.Context, namespace string, ref ir.FutureRef, runID string, seq int64) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("wipe %s: begin: %w", ref, err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, j.rebind(`
		SELECT status FROM entries WHERE namespace = ? AND module = ? AND future_id = ?
	`), namespace, ref.Module, ref.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("wipe %s: %w", ref, err)
	}
	if ir.Status(status) == ir.StatusConfirmed {
		return ErrConfirmed
	}

	if _, err := tx.ExecContext(ctx, j.rebind(`
		DELETE FROM entries WHERE namespace = ? AND module = ? AND future_id = ? AND status <> 'confirmed'
	`), namespace, ref.Module, ref.ID); err != nil {
		return fmt.Errorf("wipe %s: %w", ref, err)
	}

	if err := j.appendEvent(ctx, tx, ir.JournalEvent{
		Seq:    seq,
		RunID:  runID,
		Ref:    ref,
		Status: ir.StatusPending,
		Detail: "wiped " + status + " entry",
	}, namespace); err != nil {
		return fmt.Errorf("wipe %s: %w", ref, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("wipe %s: commit: %w", ref, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*ir.JournalEntry, error) {
	var (
		e       ir.JournalEntry
		kind    string
		status  string
		result  sql.NullString
		txHash  string
		txFrom  string
		txNonce int64
	)
	if err := s.Scan(
		&e.Namespace, &e.Ref.Module, &e.Ref.ID, &kind, &status, &result,
		&txHash, &txFrom, &txNonce, &e.DefinitionHash, &e.RunID, &e.Seq, &e.Error,
	); err != nil {
		return nil, err
	}
	e.Kind = ir.Kind(kind)
	e.Status = ir.Status(status)

	if result.Valid {
		v, err := ir.UnmarshalIRValue([]byte(result.String))
		if err != nil {
			return nil, fmt.Errorf("decode result of %s: %w", e.Ref, err)
		}
		e.Result = v
	} else if e.Status == ir.StatusConfirmed {
		e.Result = ir.IRNull{}
	}

	if txHash != "" {
		e.Pending = &ir.PendingTx{TxHash: txHash, From: txFrom, Nonce: uint64(txNonce)}
	}
	return &e, nil
}

// marshalResult encodes a result as canonical JSON. A missing or null
// result is stored as SQL NULL.
func marshalResult(v ir.IRValue) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if _, isNull := v.(ir.IRNull); isNull {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
