package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/jacentio/grove/store"
)

// txn is a store.Tx over a Badger read-write transaction.
// Writes are buffered in a WriteSet and applied to the Badger transaction at commit.
type txn struct {
	db      *DB
	txn     *badger.Txn
	writes  store.WriteSet
	writing bool
}

// Get implements store.Tx.
func (t *txn) Get(ctx context.Context, collection, id string) (*store.Snapshot, error) {
	if t.writing {
		return nil, fmt.Errorf("%w: get %s/%s", store.ErrReadAfterWrite, collection, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readSnapshot(t.txn, collection, id)
}

// Create implements store.Tx.
func (t *txn) Create(collection, id string, doc any) error {
	t.writing = true
	return t.writes.Create(collection, id, doc)
}

// Update implements store.Tx.
func (t *txn) Update(collection, id string, mutations ...store.Mutation) error {
	t.writing = true
	return t.writes.Update(collection, id, mutations...)
}

// Delete implements store.Tx.
func (t *txn) Delete(collection, id string) error {
	t.writing = true
	return t.writes.Delete(collection, id)
}

func (t *txn) commit(ctx context.Context) error {
	if t.writes.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, op := range t.writes.Ops() {
		var err error
		switch op.Kind {
		case store.OpCreate:
			err = t.applyCreate(op)
		case store.OpUpdate:
			err = t.applyUpdate(op)
		case store.OpDelete:
			err = t.db.deleteDoc(t.txn, op.Collection, op.ID)
		}
		if err != nil {
			return mapError(err)
		}
	}
	return mapError(t.txn.Commit())
}

func (t *txn) applyCreate(op *store.Op) error {
	existing, err := readRaw(t.txn, op.Collection, op.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s/%s", store.ErrAlreadyExists, op.Collection, op.ID)
	}

	doc, err := encodeDocument(op.Doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", op.Collection, op.ID, err)
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = op.ID
	}
	return t.put(op.Collection, op.ID, nil, doc)
}

func (t *txn) applyUpdate(op *store.Op) error {
	current, err := readDocument(t.txn, op.Collection, op.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: update of %s/%s", store.ErrNotFound, op.Collection, op.ID)
	}

	before := make(map[string]string)
	for _, idx := range t.db.registry.IndexesOf(op.Collection) {
		before[idx.Field] = current.str(idx.Field)
	}
	for _, m := range op.Mutations {
		if err := current.apply(m); err != nil {
			return err
		}
	}
	return t.put(op.Collection, op.ID, before, current)
}

// put writes the document and moves index entries whose value changed.
// before is nil for a new document.
func (t *txn) put(collection, id string, before map[string]string, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := t.txn.Set(keyDoc(collection, id), data); err != nil {
		return err
	}

	for _, idx := range t.db.registry.IndexesOf(collection) {
		old, now := before[idx.Field], doc.str(idx.Field)
		if old == now {
			continue
		}
		if old != "" {
			if err := t.txn.Delete(keyIndex(collection, idx.Field, old, id)); err != nil {
				return err
			}
		}
		if now != "" {
			if err := t.txn.Set(keyIndex(collection, idx.Field, now, id), []byte{}); err != nil {
				return err
			}
		}
	}
	return nil
}
