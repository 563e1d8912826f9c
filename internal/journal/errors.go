package journal

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no entry exists for a future.
var ErrNotFound = errors.New("journal entry not found")

// ErrConfirmed is returned when a write or wipe targets a confirmed entry.
var ErrConfirmed = errors.New("journal entry is confirmed and cannot be changed")

// LockedError reports a namespace held by another writer.
type LockedError struct {
	Namespace  string
	Holder     string
	AcquiredAt string
}

// Error implements the error interface.
func (e *LockedError) Error() string {
	return fmt.Sprintf("namespace %s is locked by %s since %s", e.Namespace, e.Holder, e.AcquiredAt)
}

// IsLockedError reports whether err is or wraps a LockedError.
func IsLockedError(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}
