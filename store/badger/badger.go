// Package badger implements store.DB on an embedded BadgerDB.
//
// Documents are stored as JSON under "d" keys and every registered index
// field gets a companion "x" key per document (see keys.go). Transactions map
// directly onto Badger's optimistic read-write transactions: every key read
// through Tx.Get joins the read set and Badger rejects the commit with
// ErrConflict if any of them was written by a transaction that committed first.
//
// The in-memory mode backs unit tests and local tooling.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/jacentio/grove/store"
)

// deleteChunk bounds the documents removed per Badger transaction in DeleteMany.
const deleteChunk = 100

// Config contains configuration for opening a Badger store.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	Path string `mapstructure:"path"`

	// InMemory keeps all data in memory. Path is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// Logger receives Badger's internal log output. Defaults to slog.Default().
	Logger *slog.Logger `mapstructure:"-"`
}

// DB is a store.DB backed by BadgerDB.
type DB struct {
	db       *badger.DB
	registry *store.Registry
}

var _ store.DB = (*DB)(nil)

// Open opens (or creates) a Badger store.
func Open(ctx context.Context, config Config, registry *store.Registry) (*DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !config.InMemory && config.Path == "" {
		return nil, errors.New("badger: path is required unless in_memory is set")
	}

	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(newLogAdapter(config.Logger)).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.Path, err)
	}

	if registry == nil {
		registry = store.NewRegistry()
	}
	return &DB{db: db, registry: registry}, nil
}

// OpenInMemory opens an empty in-memory store.
func OpenInMemory(registry *store.Registry) (*DB, error) {
	return Open(context.Background(), Config{InMemory: true}, registry)
}

// Close implements store.DB.
func (d *DB) Close() error {
	return d.db.Close()
}

// Get implements store.DB.
func (d *DB) Get(ctx context.Context, collection, id string) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var snap *store.Snapshot
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = readSnapshot(txn, collection, id)
		return err
	})
	return snap, err
}

// RunTransaction implements store.DB.
func (d *DB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	btx := d.db.NewTransaction(true)
	defer btx.Discard()

	tx := &txn{db: d, txn: btx}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

// Query implements store.DB. Results are ordered by ID.
func (d *DB) Query(ctx context.Context, input store.QueryInput) ([]*store.Snapshot, error) {
	if !d.registry.Has(input.Collection, input.Field) {
		return nil, fmt.Errorf("grove: field %q of %q is not indexed", input.Field, input.Collection)
	}

	var snaps []*store.Snapshot
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyIndexPrefix(input.Collection, input.Field, input.Value)

		it := txn.NewIterator(opts)
		defer it.Close()

		scanned := 0
		for it.Rewind(); it.Valid(); it.Next() {
			// Check context periodically
			if scanned%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			scanned++

			id := idFromIndexKey(it.Item().Key())
			snap, err := readSnapshot(txn, input.Collection, id)
			if err != nil {
				return err
			}
			// Index entries are written with their document, so a dangling entry is skipped
			if !snap.Exists {
				continue
			}
			snaps = append(snaps, snap)
			if input.Limit > 0 && len(snaps) >= input.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// DeleteMany implements store.DB.
func (d *DB) DeleteMany(ctx context.Context, collection string, ids []string) error {
	for start := 0; start < len(ids); start += deleteChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+deleteChunk, len(ids))

		err := d.db.Update(func(txn *badger.Txn) error {
			for _, id := range ids[start:end] {
				if err := d.deleteDoc(txn, collection, id); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", collection, mapError(err))
		}
	}
	return nil
}

// deleteDoc removes a document and its index entries. Missing documents are ignored.
func (d *DB) deleteDoc(txn *badger.Txn, collection, id string) error {
	current, err := readDocument(txn, collection, id)
	if err != nil || current == nil {
		return err
	}
	for _, idx := range d.registry.IndexesOf(collection) {
		if v := current.str(idx.Field); v != "" {
			if err := txn.Delete(keyIndex(collection, idx.Field, v, id)); err != nil {
				return err
			}
		}
	}
	return txn.Delete(keyDoc(collection, id))
}

// readSnapshot reads a document into a snapshot decoded with encoding/json.
func readSnapshot(txn *badger.Txn, collection, id string) (*store.Snapshot, error) {
	data, err := readRaw(txn, collection, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return store.NewSnapshot(collection, id, false, nil), nil
	}
	return store.NewSnapshot(collection, id, true, func(out any) error {
		return json.Unmarshal(data, out)
	}), nil
}

func readDocument(txn *badger.Txn, collection, id string) (document, error) {
	data, err := readRaw(txn, collection, id)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeDocument(data)
}

// readRaw returns the stored bytes, or nil if the document doesn't exist.
func readRaw(txn *badger.Txn, collection, id string) ([]byte, error) {
	item, err := txn.Get(keyDoc(collection, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return item.ValueCopy(nil)
}

// mapError maps Badger errors onto store errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return store.ErrConflict
	case errors.Is(err, badger.ErrTxnTooBig):
		return fmt.Errorf("%w: %v", store.ErrTxnTooLarge, err)
	default:
		return err
	}
}
