package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Lock is the holder of a namespace's advisory write lock.
type Lock struct {
	Namespace  string `json:"namespace"`
	Holder     string `json:"holder"`
	AcquiredAt string `json:"acquired_at"`
}

// Lock takes the advisory single-writer lock on namespace for holder.
// Re-acquiring a lock already held by holder succeeds. A lock held by
// anyone else returns *LockedError.
func (j *Journal) Lock(ctx context.Context, namespace, holder string) error {
	res, err := j.db.ExecContext(ctx, j.rebind(`
		INSERT INTO locks (namespace, holder, acquired_at) VALUES (?, ?, ?)
		ON CONFLICT (namespace) DO NOTHING
	`), namespace, holder, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("lock %s: %w", namespace, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock %s: %w", namespace, err)
	}
	if n == 1 {
		return nil
	}

	current, err := j.LockHolder(ctx, namespace)
	if err != nil {
		return err
	}
	if current == nil {
		// Released between the insert and the read.
		return j.Lock(ctx, namespace, holder)
	}
	if current.Holder == holder {
		return nil
	}
	return &LockedError{Namespace: namespace, Holder: current.Holder, AcquiredAt: current.AcquiredAt}
}

// Unlock releases holder's lock on namespace. An empty holder releases the
// lock whoever holds it, for recovering from a crashed run.
func (j *Journal) Unlock(ctx context.Context, namespace, holder string) error {
	_, err := j.db.ExecContext(ctx, j.rebind(`
		DELETE FROM locks WHERE namespace = ? AND (holder = ? OR ? = '')
	`), namespace, holder, holder)
	if err != nil {
		return fmt.Errorf("unlock %s: %w", namespace, err)
	}
	return nil
}

// LockHolder returns the current lock on namespace, or nil when unlocked.
func (j *Journal) LockHolder(ctx context.Context, namespace string) (*Lock, error) {
	l := Lock{Namespace: namespace}
	err := j.db.QueryRowContext(ctx, j.rebind(`
		SELECT holder, acquired_at FROM locks WHERE namespace = ?
	`), namespace).Scan(&l.Holder, &l.AcquiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock holder %s: %w", namespace, err)
	}
	return &l, nil
}
