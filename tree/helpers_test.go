package tree_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/store/badger"
	"github.com/jacentio/grove/tree"
)

const (
	alice = "alice"
	bob   = "bob"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *tree.Service
	db       store.DB
	ns       *tree.Namespace
	root     string
	notifier *countingNotifier
}

// newFixture opens an in-memory store and creates one namespace owned by alice.
func newFixture(t *testing.T, configure ...func(*tree.Config)) *fixture {
	t.Helper()

	db, err := badger.OpenInMemory(tree.NewRegistry())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	notifier := &countingNotifier{}
	config := tree.DefaultConfig()
	config.InitialInterval = time.Millisecond
	config.MaxInterval = 5 * time.Millisecond
	config.Notifier = notifier
	config.Now = func() time.Time { return testTime }
	for _, fn := range configure {
		fn(&config)
	}

	svc := tree.New(db, config, nil)
	ns, err := svc.CreateNamespace(context.Background(), alice, tree.CreateNamespaceInput{Name: "Documents"})
	if err != nil {
		t.Fatalf("create namespace: %v", err)
	}
	return &fixture{svc: svc, db: db, ns: ns, root: ns.RootNodeID, notifier: notifier}
}

func (f *fixture) mkdir(t *testing.T, parent, name string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := f.svc.CreateDirectory(context.Background(), alice, tree.CreateDirectoryInput{
		ID:       id,
		ParentID: parent,
		Name:     name,
	}); err != nil {
		t.Fatalf("create directory %s: %v", name, err)
	}
	return id
}

func (f *fixture) addFile(t *testing.T, parent, name string, size int64) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := f.svc.CreateFile(context.Background(), alice, fileInput(id, parent, name, size)); err != nil {
		t.Fatalf("create file %s: %v", name, err)
	}
	return id
}

func (f *fixture) dir(t *testing.T, id string) *tree.Directory {
	t.Helper()
	n, err := f.svc.Get(context.Background(), alice, id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	d, ok := n.(*tree.Directory)
	if !ok {
		t.Fatalf("expected %s to be a directory, got %T", id, n)
	}
	return d
}

func (f *fixture) file(t *testing.T, id string) *tree.File {
	t.Helper()
	n, err := f.svc.Get(context.Background(), alice, id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	file, ok := n.(*tree.File)
	if !ok {
		t.Fatalf("expected %s to be a file, got %T", id, n)
	}
	return file
}

// revisions snapshots the revision of every given node.
func (f *fixture) revisions(t *testing.T, ids ...string) map[string]int64 {
	t.Helper()
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		n, err := f.svc.Get(context.Background(), alice, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		out[id] = n.Info().Revision
	}
	return out
}

func (f *fixture) expectVerified(t *testing.T) {
	t.Helper()
	report, err := f.svc.Verify(context.Background(), alice, f.root)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.OK() {
		t.Errorf("expected consistent tree, got violations %v", report.Violations)
	}
}

func (f *fixture) reapJobs(t *testing.T) []tree.ReapJob {
	t.Helper()
	snaps, err := f.db.Query(context.Background(), store.QueryInput{
		Collection: tree.CollectionReapJobs,
		Field:      tree.FieldState,
		Value:      tree.ReapPending,
	})
	if err != nil {
		t.Fatalf("query reap jobs: %v", err)
	}
	jobs := make([]tree.ReapJob, 0, len(snaps))
	for _, snap := range snaps {
		var job tree.ReapJob
		if err := snap.DataTo(&job); err != nil {
			t.Fatalf("decode reap job: %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func fileInput(id, parent, name string, size int64) tree.CreateFileInput {
	return tree.CreateFileInput{
		ID:            id,
		ParentID:      parent,
		Name:          name,
		ContentHash:   "sha256:" + name,
		StorageHandle: "blobs/" + id,
		Size:          size,
		ContentType:   "text/plain",
	}
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

// conflictDB fails every transaction with store.ErrConflict.
type conflictDB struct {
	store.DB
	mu       sync.Mutex
	attempts int
}

func (c *conflictDB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
	return store.ErrConflict
}

// limitDB rejects transactions touching more than limit documents, the way
// DynamoDB caps TransactWriteItems.
type limitDB struct {
	store.DB
	limit int
}

func (d *limitDB) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return d.DB.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		lt := &limitTx{Tx: tx, docs: make(map[string]bool)}
		if err := fn(ctx, lt); err != nil {
			return err
		}
		if len(lt.docs) > d.limit {
			return fmt.Errorf("%w: %d documents, limit %d", store.ErrTxnTooLarge, len(lt.docs), d.limit)
		}
		return nil
	})
}

type limitTx struct {
	store.Tx
	docs map[string]bool
}

func (t *limitTx) Get(ctx context.Context, collection, id string) (*store.Snapshot, error) {
	t.docs[collection+"/"+id] = true
	return t.Tx.Get(ctx, collection, id)
}

func (t *limitTx) Create(collection, id string, doc any) error {
	t.docs[collection+"/"+id] = true
	return t.Tx.Create(collection, id, doc)
}

func (t *limitTx) Update(collection, id string, mutations ...store.Mutation) error {
	t.docs[collection+"/"+id] = true
	return t.Tx.Update(collection, id, mutations...)
}

func (t *limitTx) Delete(collection, id string) error {
	t.docs[collection+"/"+id] = true
	return t.Tx.Delete(collection, id)
}
