package tree

import (
	"errors"

	"github.com/jacentio/grove/store"
)

var (
	// ErrNotFound is returned when a node or namespace doesn't exist.
	ErrNotFound = errors.New("grove: not found")

	// ErrAlreadyExists is returned when creating a node or namespace whose ID is taken.
	ErrAlreadyExists = errors.New("grove: already exists")

	// ErrPermissionDenied is returned when the caller doesn't own the target.
	ErrPermissionDenied = errors.New("grove: permission denied")

	// ErrTypeMismatch is returned when a node has the wrong kind for the operation.
	ErrTypeMismatch = errors.New("grove: node type mismatch")

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("grove: invalid argument")

	// ErrFailedPrecondition is returned when the tree's state forbids the operation,
	// e.g. renaming the root or moving a directory below itself.
	ErrFailedPrecondition = errors.New("grove: failed precondition")

	// ErrDepthExceeded is returned when an ancestor chain doesn't reach the root
	// within the configured depth.
	ErrDepthExceeded = errors.New("grove: max traversal depth exceeded")

	// ErrAborted is returned when an operation kept conflicting with concurrent
	// writers until the retry budget ran out. Nothing was written.
	ErrAborted = errors.New("grove: aborted after repeated conflicts")

	// ErrUnimplemented is returned for namespace types other than "document".
	ErrUnimplemented = errors.New("grove: unimplemented")
)

// Wire codes returned by Code.
const (
	CodeNotFound           = "not-found"
	CodeAlreadyExists      = "already-exists"
	CodePermissionDenied   = "permission-denied"
	CodeInvalidArgument    = "invalid-argument"
	CodeFailedPrecondition = "failed-precondition"
	CodeAborted            = "aborted"
	CodeUnimplemented      = "unimplemented"
	CodeInternal           = "internal"
)

// Code maps an error returned by this package to its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrTypeMismatch), errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrFailedPrecondition), errors.Is(err, store.ErrTxnTooLarge):
		return CodeFailedPrecondition
	case errors.Is(err, ErrAborted), errors.Is(err, store.ErrConflict):
		return CodeAborted
	case errors.Is(err, ErrUnimplemented):
		return CodeUnimplemented
	default:
		return CodeInternal
	}
}

// IsRetryable reports whether the operation failed only because of concurrent
// writers and may be retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, store.ErrConflict)
}
