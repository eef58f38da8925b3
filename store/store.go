package store

import (
	"context"
)

// DB is a transactional document store.
type DB interface {
	// RunTransaction runs fn inside a transaction and commits its writes atomically.
	// If fn returns an error nothing is written and the error is returned as is.
	// Returns ErrConflict if a document read by fn changed before commit.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Get reads a single document outside of any transaction.
	Get(ctx context.Context, collection, id string) (*Snapshot, error)

	// Query returns documents whose indexed field equals the given value.
	Query(ctx context.Context, input QueryInput) ([]*Snapshot, error)

	// DeleteMany removes documents without transactional guarantees.
	// Missing documents are ignored.
	DeleteMany(ctx context.Context, collection string, ids []string) error

	// Close releases the underlying resources.
	Close() error
}

// Tx is a transaction handle. Reads must precede writes.
type Tx interface {
	// Get reads a document and adds it to the transaction's read set.
	// A missing document is returned as a Snapshot with Exists == false.
	Get(ctx context.Context, collection, id string) (*Snapshot, error)

	// Create inserts a new document. The commit fails if it already exists.
	Create(collection, id string, doc any) error

	// Update applies field mutations to an existing document.
	Update(collection, id string, mutations ...Mutation) error

	// Delete removes a document.
	Delete(collection, id string) error
}

// QueryInput defines an equality query over an index field.
type QueryInput struct {
	// Collection is the collection to query.
	Collection string

	// Field is the indexed top-level field name (see Registry).
	Field string

	// Value is the value the field must equal.
	Value string

	// Limit is the maximum number of documents to return (0 = no limit).
	Limit int
}

// Snapshot is a document read from the store.
type Snapshot struct {
	// Collection is the collection the document belongs to.
	Collection string

	// ID is the document identifier.
	ID string

	// Exists reports whether the document was present when read.
	Exists bool

	decode func(out any) error
}

// NewSnapshot creates a Snapshot. Backends supply the decoder for their encoding.
func NewSnapshot(collection, id string, exists bool, decode func(out any) error) *Snapshot {
	return &Snapshot{
		Collection: collection,
		ID:         id,
		Exists:     exists,
		decode:     decode,
	}
}

// DataTo decodes the document into out. Returns ErrNotFound for a missing document.
func (s *Snapshot) DataTo(out any) error {
	if s == nil || !s.Exists || s.decode == nil {
		return ErrNotFound
	}
	return s.decode(out)
}
