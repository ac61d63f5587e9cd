package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested article does not exist in the
	// replica.
	ErrNotFound = errors.New("not found")

	// ErrObjectNotFound indicates an object storage key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrSnapshotNotFound indicates no snapshot exists in object
	// storage. Valid at first-ever startup; callers fall back to an
	// empty replica.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupt indicates a snapshot failed checksum
	// verification and must not be loaded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrValidationFailed indicates a standby replica failed its
	// pre-promotion sanity check. The active replica is untouched.
	ErrValidationFailed = errors.New("standby validation failed")

	// ErrRefreshInProgress indicates a refresh cycle is already
	// running. The trigger is a no-op, not a failure.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// TransientError marks a network or object storage failure that is
// safe to retry with backoff. Nothing transient is fatal: every
// transient failure resolves to serving the last good replica.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil if err is nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
