package store

import "errors"

var (
	// ErrNotFound is returned when an appointment id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when an insert collides with an existing id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrStoreConflict is returned when the backing store's overlap guard
	// rejects a write at commit time. Callers re-run the conflict check
	// before surfacing this as an overlap.
	ErrStoreConflict = errors.New("store conflict")
)
