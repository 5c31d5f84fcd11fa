package database

import "errors"

var (
	// ErrRecordNotFound is returned when a room record does not exist. Absence
	// is a valid outcome on reads; on writes it means the record was deleted
	// out from under the caller.
	ErrRecordNotFound = errors.New("room record not found")
	// ErrRecordExists is returned when creating a record whose id collides
	// with an existing one. Ids are derived from stage ARNs, so a collision
	// is a bug, not a retryable condition.
	ErrRecordExists = errors.New("room record already exists")
	// ErrPreconditionFailed is returned when a conditional update finds the
	// record no longer active. Callers treat this as a silent no-op.
	ErrPreconditionFailed = errors.New("room record precondition failed")
)
