package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a document does not exist or has been
	// soft-deleted.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a document with the given ID already
	// exists, or when a batch write would violate a uniqueness guarantee.
	ErrConflict = errors.New("document already exists")
)
