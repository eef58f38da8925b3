package store

import "fmt"

// OpKind identifies the kind of a buffered write.
type OpKind int

const (
	// OpCreate inserts a new document.
	OpCreate OpKind = iota + 1
	// OpUpdate mutates fields of an existing document.
	OpUpdate
	// OpDelete removes a document.
	OpDelete
)

// String implements fmt.Stringer.
func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one coalesced write against a single document.
type Op struct {
	Collection string
	ID         string
	Kind       OpKind

	// Doc is the full document for OpCreate.
	Doc any

	// Mutations are the field changes for OpUpdate.
	Mutations []Mutation
}

type docKey struct {
	collection string
	id         string
}

// WriteSet buffers transaction writes, coalescing writes to the same document.
// Backends embed it in their Tx implementation and drain it at commit.
type WriteSet struct {
	ops   []*Op
	byKey map[docKey]*Op
}

// Len returns the number of distinct documents written.
func (w *WriteSet) Len() int {
	return len(w.ops)
}

// Ops returns the buffered writes in first-write order.
func (w *WriteSet) Ops() []*Op {
	return w.ops
}

// Has reports whether the document has a buffered write.
func (w *WriteSet) Has(collection, id string) bool {
	_, ok := w.byKey[docKey{collection, id}]
	return ok
}

func (w *WriteSet) lookup(collection, id string) *Op {
	if w.byKey == nil {
		w.byKey = make(map[docKey]*Op)
	}
	return w.byKey[docKey{collection, id}]
}

func (w *WriteSet) add(op *Op) {
	w.ops = append(w.ops, op)
	w.byKey[docKey{op.Collection, op.ID}] = op
}

// Create buffers a document insert.
func (w *WriteSet) Create(collection, id string, doc any) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: empty collection or id", ErrInvalidWrite)
	}
	if doc == nil {
		return fmt.Errorf("%w: nil document for %s/%s", ErrInvalidWrite, collection, id)
	}
	if existing := w.lookup(collection, id); existing != nil {
		return fmt.Errorf("%w: create of %s/%s after %s", ErrInvalidWrite, collection, id, existing.Kind)
	}
	w.add(&Op{Collection: collection, ID: id, Kind: OpCreate, Doc: doc})
	return nil
}

// Update buffers field mutations, merging them into earlier updates of the same document.
func (w *WriteSet) Update(collection, id string, mutations ...Mutation) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: empty collection or id", ErrInvalidWrite)
	}
	existing := w.lookup(collection, id)
	if existing == nil {
		merged, err := mergeMutations(nil, mutations)
		if err != nil {
			return err
		}
		w.add(&Op{Collection: collection, ID: id, Kind: OpUpdate, Mutations: merged})
		return nil
	}
	if existing.Kind != OpUpdate {
		return fmt.Errorf("%w: update of %s/%s after %s", ErrInvalidWrite, collection, id, existing.Kind)
	}
	merged, err := mergeMutations(existing.Mutations, mutations)
	if err != nil {
		return err
	}
	existing.Mutations = merged
	return nil
}

// Delete buffers a document removal. A pending update of the document is dropped.
func (w *WriteSet) Delete(collection, id string) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: empty collection or id", ErrInvalidWrite)
	}
	existing := w.lookup(collection, id)
	if existing == nil {
		w.add(&Op{Collection: collection, ID: id, Kind: OpDelete})
		return nil
	}
	switch existing.Kind {
	case OpUpdate:
		existing.Kind = OpDelete
		existing.Mutations = nil
		return nil
	case OpDelete:
		return nil
	default:
		return fmt.Errorf("%w: delete of %s/%s after %s", ErrInvalidWrite, collection, id, existing.Kind)
	}
}
