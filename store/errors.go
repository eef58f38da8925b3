package store

import "errors"

var (
	// ErrNotFound is returned when a document doesn't exist.
	ErrNotFound = errors.New("grove: document not found")

	// ErrAlreadyExists is returned when creating a document with an existing ID.
	ErrAlreadyExists = errors.New("grove: document already exists")

	// ErrConflict is returned when a transaction's read set changed before commit.
	// The transaction had no effect and may be retried.
	ErrConflict = errors.New("grove: transaction conflict")

	// ErrReadAfterWrite is returned when a transaction reads after it started writing.
	ErrReadAfterWrite = errors.New("grove: read after write in transaction")

	// ErrInvalidWrite is returned when writes to the same document cannot be combined.
	ErrInvalidWrite = errors.New("grove: incompatible writes in transaction")

	// ErrTxnTooLarge is returned when a transaction exceeds the backend's size limits.
	ErrTxnTooLarge = errors.New("grove: transaction too large")
)
