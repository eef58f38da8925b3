package tree_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/tree"
)

// --- CreateDirectory Tests ---

func TestCreateDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := uuid.NewString()
	dir, err := f.svc.CreateDirectory(ctx, alice, tree.CreateDirectoryInput{ID: id, ParentID: f.root, Name: "docs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.ID != id || dir.ParentID != f.root || dir.Owner != alice || dir.Name != "docs" {
		t.Errorf("unexpected directory: %+v", dir.Header)
	}
	if dir.Revision != 0 {
		t.Errorf("expected revision 0, got %d", dir.Revision)
	}

	stored := f.dir(t, id)
	if stored.Type != tree.TypeDirectory {
		t.Errorf("expected type dir, got %q", stored.Type)
	}
	if !stored.Metadata.TimeCreated.Equal(testTime) {
		t.Errorf("expected time created %v, got %v", testTime, stored.Metadata.TimeCreated)
	}

	root := f.dir(t, f.root)
	if root.Metadata.DirCount != 1 {
		t.Errorf("expected root dirCount 1, got %d", root.Metadata.DirCount)
	}
	if root.Revision != 1 {
		t.Errorf("expected root revision 1, got %d", root.Revision)
	}
}

func TestCreateDirectory_BumpsEveryAncestor(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	b := f.mkdir(t, a, "b")
	before := f.revisions(t, f.root, a, b)

	f.mkdir(t, b, "c")

	after := f.revisions(t, f.root, a, b)
	for id, rev := range before {
		if after[id] != rev+1 {
			t.Errorf("expected revision of %s to go from %d to %d, got %d", id, rev, rev+1, after[id])
		}
	}
}

func TestCreateDirectory_AlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := tree.CreateDirectoryInput{ID: uuid.NewString(), ParentID: f.root, Name: "docs"}
	if _, err := f.svc.CreateDirectory(ctx, alice, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := f.dir(t, f.root)

	_, err := f.svc.CreateDirectory(ctx, alice, in)
	if !errors.Is(err, tree.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if tree.Code(err) != tree.CodeAlreadyExists {
		t.Errorf("expected code %q, got %q", tree.CodeAlreadyExists, tree.Code(err))
	}

	after := f.dir(t, f.root)
	if after.Metadata.DirCount != before.Metadata.DirCount || after.Revision != before.Revision {
		t.Errorf("expected root unchanged, got dirCount %d revision %d", after.Metadata.DirCount, after.Revision)
	}
}

func TestCreateDirectory_ParentMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateDirectory(context.Background(), alice, tree.CreateDirectoryInput{
		ID: uuid.NewString(), ParentID: uuid.NewString(), Name: "docs",
	})
	if !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDirectory_ParentIsFile(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, f.root, "notes.txt", 10)

	_, err := f.svc.CreateDirectory(context.Background(), alice, tree.CreateDirectoryInput{
		ID: uuid.NewString(), ParentID: file, Name: "docs",
	})
	if !errors.Is(err, tree.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if tree.Code(err) != tree.CodeInvalidArgument {
		t.Errorf("expected code %q, got %q", tree.CodeInvalidArgument, tree.Code(err))
	}
}

func TestCreateDirectory_PermissionDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateDirectory(context.Background(), bob, tree.CreateDirectoryInput{
		ID: uuid.NewString(), ParentID: f.root, Name: "docs",
	})
	if !errors.Is(err, tree.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if f.dir(t, f.root).Metadata.DirCount != 0 {
		t.Error("expected no directory to be created")
	}
}

func TestCreateDirectory_DepthExceeded(t *testing.T) {
	f := newFixture(t, func(c *tree.Config) { c.MaxDepth = 3 })
	a := f.mkdir(t, f.root, "a")
	b := f.mkdir(t, a, "b")
	c := f.mkdir(t, b, "c")

	_, err := f.svc.CreateDirectory(context.Background(), alice, tree.CreateDirectoryInput{
		ID: uuid.NewString(), ParentID: c, Name: "d",
	})
	if !errors.Is(err, tree.ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
	if tree.Code(err) != tree.CodeInternal {
		t.Errorf("expected code %q, got %q", tree.CodeInternal, tree.Code(err))
	}
}

// --- CreateFile Tests ---

func TestCreateFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mkdir(t, f.root, "a")

	id := uuid.NewString()
	file, err := f.svc.CreateFile(ctx, alice, fileInput(id, a, "report.pdf", 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.Status != tree.StatusCreated {
		t.Errorf("expected status created, got %q", file.Status)
	}

	stored := f.file(t, id)
	if stored.ContentHash != "sha256:report.pdf" {
		t.Errorf("expected content hash to be stored, got %q", stored.ContentHash)
	}
	if stored.StorageHandle != "blobs/"+id {
		t.Errorf("expected storage handle to be stored, got %q", stored.StorageHandle)
	}
	if stored.Metadata.Size != 100 || stored.Metadata.ContentType != "text/plain" {
		t.Errorf("unexpected metadata: %+v", stored.Metadata)
	}

	dir := f.dir(t, a)
	if dir.Metadata.FileCount != 1 || dir.Metadata.CumulativeSize != 100 {
		t.Errorf("expected a to hold 1 file of 100 bytes, got %+v", dir.Metadata)
	}
	root := f.dir(t, f.root)
	if root.Metadata.FileCount != 0 || root.Metadata.CumulativeSize != 100 {
		t.Errorf("expected root to hold 0 direct files and 100 bytes, got %+v", root.Metadata)
	}
	f.expectVerified(t)
}

func TestCreateFile_AlreadyExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := fileInput(uuid.NewString(), f.root, "a.txt", 40)
	if _, err := f.svc.CreateFile(ctx, alice, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.CreateFile(ctx, alice, in); !errors.Is(err, tree.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	root := f.dir(t, f.root)
	if root.Metadata.CumulativeSize != 40 || root.Metadata.FileCount != 1 || root.Revision != 1 {
		t.Errorf("expected aggregates applied once, got %+v revision %d", root.Metadata, root.Revision)
	}
}

func TestCreateFile_IDTakenByDirectory(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")

	_, err := f.svc.CreateFile(context.Background(), alice, fileInput(a, f.root, "a.txt", 1))
	if !errors.Is(err, tree.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateFile_ZeroSize(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, f.root, "empty", 0)

	root := f.dir(t, f.root)
	if root.Metadata.FileCount != 1 || root.Metadata.CumulativeSize != 0 {
		t.Errorf("unexpected root metadata: %+v", root.Metadata)
	}
}

// --- Rename Tests ---

func TestRename(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	b := f.mkdir(t, a, "b")
	before := f.revisions(t, f.root, a, b)

	n, err := f.svc.Rename(context.Background(), alice, tree.RenameInput{ID: b, Name: "renamed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Info().Name != "renamed" || n.Info().Revision != before[b]+1 {
		t.Errorf("unexpected result: %+v", n.Info())
	}

	after := f.revisions(t, f.root, a, b)
	for id, rev := range before {
		if after[id] != rev+1 {
			t.Errorf("expected revision of %s to be %d, got %d", id, rev+1, after[id])
		}
	}
	if f.dir(t, b).Name != "renamed" {
		t.Error("expected stored name to change")
	}
}

func TestRename_File(t *testing.T) {
	f := newFixture(t)
	id := f.addFile(t, f.root, "a.txt", 5)

	n, err := f.svc.Rename(context.Background(), alice, tree.RenameInput{ID: id, Name: "b.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(*tree.File); !ok {
		t.Fatalf("expected *tree.File, got %T", n)
	}
	if got := f.file(t, id); got.Name != "b.txt" || got.Metadata.Size != 5 {
		t.Errorf("unexpected file after rename: %+v", got)
	}
}

func TestRename_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")

	_, err := f.svc.Rename(context.Background(), bob, tree.RenameInput{ID: a, Name: "mine"})
	if !errors.Is(err, tree.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

// --- Root Invariant Tests ---

func TestRoot_CannotBeChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mkdir(t, f.root, "a")
	before := f.revisions(t, f.root, a)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"rename", func() error {
			_, err := f.svc.Rename(ctx, alice, tree.RenameInput{ID: f.root, Name: "root"})
			return err
		}},
		{"move", func() error {
			_, err := f.svc.MoveDirectory(ctx, alice, tree.MoveInput{ID: f.root, NewParentID: a})
			return err
		}},
		{"delete", func() error {
			return f.svc.DeleteDirectory(ctx, alice, tree.DeleteInput{ID: f.root})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, tree.ErrFailedPrecondition) {
				t.Errorf("expected ErrFailedPrecondition, got %v", err)
			}
			if tree.Code(err) != tree.CodeFailedPrecondition {
				t.Errorf("expected code %q, got %q", tree.CodeFailedPrecondition, tree.Code(err))
			}
		})
	}

	after := f.revisions(t, f.root, a)
	for id, rev := range before {
		if after[id] != rev {
			t.Errorf("expected revision of %s unchanged at %d, got %d", id, rev, after[id])
		}
	}
	if f.dir(t, f.root).Name != tree.RootName {
		t.Error("expected root name unchanged")
	}
}

// --- MoveDirectory Tests ---

func TestMoveDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// root/x/y/a (with 30 bytes) moves to root/x/z
	x := f.mkdir(t, f.root, "x")
	y := f.mkdir(t, x, "y")
	z := f.mkdir(t, x, "z")
	a := f.mkdir(t, y, "a")
	f.addFile(t, a, "one", 10)
	f.addFile(t, a, "two", 20)
	before := f.revisions(t, f.root, x, y, z, a)

	moved, err := f.svc.MoveDirectory(ctx, alice, tree.MoveInput{ID: a, NewParentID: z})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.ParentID != z {
		t.Errorf("expected parent %s, got %s", z, moved.ParentID)
	}

	after := f.revisions(t, f.root, x, y, z, a)
	for id, rev := range before {
		if after[id] != rev+1 {
			t.Errorf("expected revision of %s to be %d, got %d", id, rev+1, after[id])
		}
	}

	sizes := map[string]int64{f.root: 30, x: 30, y: 0, z: 30, a: 30}
	for id, want := range sizes {
		if got := f.dir(t, id).Metadata.CumulativeSize; got != want {
			t.Errorf("expected size of %s to be %d, got %d", id, want, got)
		}
	}
	if got := f.dir(t, y).Metadata.DirCount; got != 0 {
		t.Errorf("expected old parent dirCount 0, got %d", got)
	}
	if got := f.dir(t, z).Metadata.DirCount; got != 1 {
		t.Errorf("expected new parent dirCount 1, got %d", got)
	}
	f.expectVerified(t)
}

func TestMoveDirectory_SameParent(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	f.addFile(t, a, "f", 7)
	before := f.dir(t, f.root)

	if _, err := f.svc.MoveDirectory(context.Background(), alice, tree.MoveInput{ID: a, NewParentID: f.root}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := f.dir(t, f.root)
	if after.Metadata.DirCount != 1 || after.Metadata.CumulativeSize != 7 {
		t.Errorf("expected aggregates unchanged, got %+v", after.Metadata)
	}
	if after.Revision != before.Revision+1 {
		t.Errorf("expected revision %d, got %d", before.Revision+1, after.Revision)
	}
}

func TestMoveDirectory_IntoOwnSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mkdir(t, f.root, "a")
	b := f.mkdir(t, a, "b")

	for _, dest := range []string{a, b} {
		_, err := f.svc.MoveDirectory(ctx, alice, tree.MoveInput{ID: a, NewParentID: dest})
		if !errors.Is(err, tree.ErrFailedPrecondition) {
			t.Errorf("expected ErrFailedPrecondition moving into %s, got %v", dest, err)
		}
	}
	if f.dir(t, a).ParentID != f.root {
		t.Error("expected a to stay below root")
	}
}

func TestMoveDirectory_File(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	file := f.addFile(t, f.root, "f", 1)

	_, err := f.svc.MoveDirectory(context.Background(), alice, tree.MoveInput{ID: file, NewParentID: a})
	if !errors.Is(err, tree.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMoveDirectory_DestinationIsFile(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	file := f.addFile(t, f.root, "f", 1)

	_, err := f.svc.MoveDirectory(context.Background(), alice, tree.MoveInput{ID: a, NewParentID: file})
	if !errors.Is(err, tree.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestMoveDirectory_AcrossOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mkdir(t, f.root, "a")

	other, err := f.svc.CreateNamespace(ctx, bob, tree.CreateNamespaceInput{Name: "Bob's"})
	if err != nil {
		t.Fatalf("create namespace: %v", err)
	}

	_, err = f.svc.MoveDirectory(ctx, alice, tree.MoveInput{ID: a, NewParentID: other.RootNodeID})
	if !errors.Is(err, tree.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

// --- DeleteDirectory Tests ---

func TestDeleteDirectory_Empty(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")

	if err := f.svc.DeleteDirectory(context.Background(), alice, tree.DeleteInput{ID: a}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), alice, a); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	root := f.dir(t, f.root)
	if root.Metadata.DirCount != 0 || root.Revision != 2 {
		t.Errorf("expected dirCount 0 revision 2, got %d and %d", root.Metadata.DirCount, root.Revision)
	}
	if jobs := f.reapJobs(t); len(jobs) != 0 {
		t.Errorf("expected no reap jobs for an empty directory, got %d", len(jobs))
	}
	if f.notifier.Count() != 0 {
		t.Errorf("expected no notification, got %d", f.notifier.Count())
	}
}

func TestDeleteDirectory_EnqueuesReap(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	b := f.mkdir(t, a, "b")
	f.addFile(t, b, "f", 64)

	if err := f.svc.DeleteDirectory(context.Background(), alice, tree.DeleteInput{ID: b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{f.root, a} {
		if got := f.dir(t, id).Metadata.CumulativeSize; got != 0 {
			t.Errorf("expected size of %s to be 0, got %d", id, got)
		}
	}

	jobs := f.reapJobs(t)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 reap job, got %d", len(jobs))
	}
	if jobs[0].NodeID != b || jobs[0].Owner != alice || jobs[0].State != tree.ReapPending {
		t.Errorf("unexpected reap job: %+v", jobs[0])
	}
	if f.notifier.Count() != 1 {
		t.Errorf("expected 1 notification, got %d", f.notifier.Count())
	}
	f.expectVerified(t)
}

func TestDeleteDirectory_File(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, f.root, "f", 1)

	err := f.svc.DeleteDirectory(context.Background(), alice, tree.DeleteInput{ID: file})
	if !errors.Is(err, tree.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestDeleteDirectory_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")

	err := f.svc.DeleteDirectory(context.Background(), bob, tree.DeleteInput{ID: a})
	if !errors.Is(err, tree.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

// --- DeleteFile Tests ---

func TestDeleteFile(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	keep := f.addFile(t, a, "keep", 5)
	drop := f.addFile(t, a, "drop", 11)

	if err := f.svc.DeleteFile(context.Background(), alice, tree.DeleteInput{ID: drop}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := f.dir(t, a)
	if dir.Metadata.FileCount != 1 || dir.Metadata.CumulativeSize != 5 {
		t.Errorf("unexpected metadata: %+v", dir.Metadata)
	}
	if f.dir(t, f.root).Metadata.CumulativeSize != 5 {
		t.Error("expected root size 5")
	}
	f.file(t, keep)
	f.expectVerified(t)
}

func TestDelete_Dispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mkdir(t, f.root, "a")
	file := f.addFile(t, f.root, "f", 3)

	for _, id := range []string{a, file} {
		if err := f.svc.Delete(ctx, alice, tree.DeleteInput{ID: id}); err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
	}

	root := f.dir(t, f.root)
	if root.Metadata.DirCount != 0 || root.Metadata.FileCount != 0 || root.Metadata.CumulativeSize != 0 {
		t.Errorf("expected empty root, got %+v", root.Metadata)
	}
}

// --- SetFileStatus Tests ---

func TestSetFileStatus(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	file := f.addFile(t, a, "f", 3)
	before := f.revisions(t, f.root, a, file)

	got, err := f.svc.SetFileStatus(context.Background(), alice, tree.SetFileStatusInput{ID: file, Status: tree.StatusProcessed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != tree.StatusProcessed {
		t.Errorf("expected status processed, got %q", got.Status)
	}
	if f.file(t, file).Status != tree.StatusProcessed {
		t.Error("expected stored status to change")
	}

	after := f.revisions(t, f.root, a, file)
	for id, rev := range before {
		if after[id] != rev+1 {
			t.Errorf("expected revision of %s to be %d, got %d", id, rev+1, after[id])
		}
	}
}

func TestSetFileStatus_Directory(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")

	_, err := f.svc.SetFileStatus(context.Background(), alice, tree.SetFileStatusInput{ID: a, Status: tree.StatusQueued})
	if !errors.Is(err, tree.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

// --- Scenario Tests ---

func TestScenario_CreateMoveDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mkdir(t, f.root, "A")
	if got := f.dir(t, f.root).Metadata.DirCount; got != 1 {
		t.Fatalf("expected dirCount(R) 1, got %d", got)
	}

	f.addFile(t, a, "f", 100)
	if d := f.dir(t, a); d.Metadata.FileCount != 1 || d.Metadata.CumulativeSize != 100 {
		t.Fatalf("expected A to hold f, got %+v", d.Metadata)
	}
	if got := f.dir(t, f.root).Metadata.CumulativeSize; got != 100 {
		t.Fatalf("expected cumulativeSize(R) 100, got %d", got)
	}

	b := f.mkdir(t, f.root, "B")
	if got := f.dir(t, f.root).Metadata.DirCount; got != 2 {
		t.Fatalf("expected dirCount(R) 2, got %d", got)
	}

	if _, err := f.svc.MoveDirectory(ctx, alice, tree.MoveInput{ID: a, NewParentID: b}); err != nil {
		t.Fatalf("move: %v", err)
	}
	root := f.dir(t, f.root)
	if root.Metadata.CumulativeSize != 100 || root.Metadata.DirCount != 1 {
		t.Errorf("expected R to keep 100 bytes with 1 direct directory, got %+v", root.Metadata)
	}
	if got := f.dir(t, b).Metadata.CumulativeSize; got != 100 {
		t.Errorf("expected cumulativeSize(B) 100, got %d", got)
	}
	if got := f.dir(t, a).Metadata.CumulativeSize; got != 100 {
		t.Errorf("expected cumulativeSize(A) 100, got %d", got)
	}

	if err := f.svc.DeleteDirectory(ctx, alice, tree.DeleteInput{ID: a}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.dir(t, b).Metadata.CumulativeSize; got != 0 {
		t.Errorf("expected cumulativeSize(B) 0, got %d", got)
	}
	if jobs := f.reapJobs(t); len(jobs) != 1 || jobs[0].NodeID != a {
		t.Errorf("expected a reap job for A, got %+v", jobs)
	}
	f.expectVerified(t)
}

// --- Concurrency Tests ---

func TestConcurrentCreates(t *testing.T) {
	f := newFixture(t, func(c *tree.Config) { c.MaxAttempts = 50 })
	a := f.mkdir(t, f.root, "a")

	const workers, perWorker = 4, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				in := fileInput(uuid.NewString(), a, fmt.Sprintf("f-%d-%d", w, i), 10)
				if _, err := f.svc.CreateFile(context.Background(), alice, in); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	dir := f.dir(t, a)
	if dir.Metadata.FileCount != workers*perWorker {
		t.Errorf("expected fileCount %d, got %d", workers*perWorker, dir.Metadata.FileCount)
	}
	if dir.Revision != workers*perWorker {
		t.Errorf("expected revision %d, got %d", workers*perWorker, dir.Revision)
	}
	if got := f.dir(t, f.root).Metadata.CumulativeSize; got != 10*workers*perWorker {
		t.Errorf("expected root size %d, got %d", 10*workers*perWorker, got)
	}
	f.expectVerified(t)
}

func TestRetry_Aborted(t *testing.T) {
	db := &conflictDB{}
	config := tree.DefaultConfig()
	config.MaxAttempts = 3
	config.InitialInterval = time.Millisecond
	config.MaxInterval = time.Millisecond
	svc := tree.New(db, config, nil)

	_, err := svc.CreateDirectory(context.Background(), alice, tree.CreateDirectoryInput{
		ID: uuid.NewString(), ParentID: uuid.NewString(), Name: "a",
	})
	if !errors.Is(err, tree.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if !tree.IsRetryable(err) {
		t.Error("expected aborted error to be retryable")
	}
	if db.attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", db.attempts)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateDirectory(ctx, alice, tree.CreateDirectoryInput{
		ID: uuid.NewString(), ParentID: f.root, Name: "a",
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMoveDirectory_TooLarge(t *testing.T) {
	f := newFixture(t)
	x, y := f.root, f.root
	for i := range 4 {
		x = f.mkdir(t, x, fmt.Sprintf("x%d", i))
		y = f.mkdir(t, y, fmt.Sprintf("y%d", i))
	}
	f.addFile(t, x, "f", 10)
	before := f.revisions(t, f.root, x, y)

	// moved node + 4 old ancestors + 5 new ancestors - shared root = 9 documents
	svc := tree.New(&limitDB{DB: f.db, limit: 8}, f.svc.Config(), nil)
	_, err := svc.MoveDirectory(context.Background(), alice, tree.MoveInput{ID: x, NewParentID: y})
	if !errors.Is(err, store.ErrTxnTooLarge) {
		t.Fatalf("expected ErrTxnTooLarge, got %v", err)
	}
	if tree.Code(err) != tree.CodeFailedPrecondition {
		t.Errorf("expected code %q, got %q", tree.CodeFailedPrecondition, tree.Code(err))
	}
	if tree.IsRetryable(err) {
		t.Error("expected oversized transaction not to be retryable")
	}

	after := f.revisions(t, f.root, x, y)
	for id, rev := range before {
		if after[id] != rev {
			t.Errorf("expected revision of %s to stay %d, got %d", id, rev, after[id])
		}
	}
	f.expectVerified(t)

	// the same move fits a larger budget
	svc = tree.New(&limitDB{DB: f.db, limit: 9}, f.svc.Config(), nil)
	if _, err := svc.MoveDirectory(context.Background(), alice, tree.MoveInput{ID: x, NewParentID: y}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.expectVerified(t)
}

func TestCreateDirectory_IDPendingReap(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	f.addFile(t, a, "f", 5)
	if err := f.svc.DeleteDirectory(context.Background(), alice, tree.DeleteInput{ID: a}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	in := tree.CreateDirectoryInput{ID: a, ParentID: f.root, Name: "again"}
	_, err := f.svc.CreateDirectory(context.Background(), alice, in)
	if !errors.Is(err, tree.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists while reap is pending, got %v", err)
	}
	if got := f.dir(t, f.root).Metadata.DirCount; got != 0 {
		t.Errorf("expected root dirCount 0, got %d", got)
	}

	jobs := f.reapJobs(t)
	if len(jobs) != 1 || jobs[0].ID != a {
		t.Fatalf("expected one reap job keyed by %s, got %+v", a, jobs)
	}
	// the reaper removes the job once the subtree is gone
	if err := f.db.DeleteMany(context.Background(), tree.CollectionReapJobs, []string{a}); err != nil {
		t.Fatalf("remove job: %v", err)
	}
	if _, err := f.svc.CreateDirectory(context.Background(), alice, in); err != nil {
		t.Fatalf("unexpected error after reap: %v", err)
	}
	f.expectVerified(t)
}

func TestCreateFile_IDPendingReap(t *testing.T) {
	f := newFixture(t)
	a := f.mkdir(t, f.root, "a")
	f.mkdir(t, a, "b")
	if err := f.svc.DeleteDirectory(context.Background(), alice, tree.DeleteInput{ID: a}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err := f.svc.CreateFile(context.Background(), alice, fileInput(a, f.root, "f", 1))
	if !errors.Is(err, tree.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

// --- Validation Tests ---

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.NewString()

	tests := []struct {
		name  string
		owner string
		in    tree.CreateFileInput
	}{
		{"empty owner", "", fileInput(id, f.root, "a", 1)},
		{"bad id", alice, fileInput("not-a-uuid", f.root, "a", 1)},
		{"bad parent", alice, fileInput(id, "root", "a", 1)},
		{"empty name", alice, fileInput(id, f.root, "", 1)},
		{"root name", alice, fileInput(id, f.root, tree.RootName, 1)},
		{"slash", alice, fileInput(id, f.root, "a/b", 1)},
		{"negative size", alice, fileInput(id, f.root, "a", -1)},
		{"missing handle", alice, func() tree.CreateFileInput {
			in := fileInput(id, f.root, "a", 1)
			in.StorageHandle = ""
			return in
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateFile(ctx, tt.owner, tt.in)
			if !errors.Is(err, tree.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}

	if f.dir(t, f.root).Revision != 0 {
		t.Error("expected rejected input to write nothing")
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"report.pdf", true},
		{"My Documents", true},
		{"a-b_c.d", true},
		{"", false},
		{tree.RootName, false},
		{"a/b", false},
		{"tab\there", false},
	}

	for _, tt := range tests {
		if got := tree.ValidName(tt.name); got != tt.valid {
			t.Errorf("ValidName(%q): expected %v, got %v", tt.name, tt.valid, got)
		}
	}
}

// --- Error Code Tests ---

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{tree.ErrNotFound, tree.CodeNotFound},
		{fmt.Errorf("%w: node x", tree.ErrNotFound), tree.CodeNotFound},
		{tree.ErrAlreadyExists, tree.CodeAlreadyExists},
		{tree.ErrPermissionDenied, tree.CodePermissionDenied},
		{tree.ErrTypeMismatch, tree.CodeInvalidArgument},
		{tree.ErrInvalidArgument, tree.CodeInvalidArgument},
		{tree.ErrFailedPrecondition, tree.CodeFailedPrecondition},
		{fmt.Errorf("%w: 128 actions, limit 100", store.ErrTxnTooLarge), tree.CodeFailedPrecondition},
		{tree.ErrAborted, tree.CodeAborted},
		{store.ErrConflict, tree.CodeAborted},
		{tree.ErrUnimplemented, tree.CodeUnimplemented},
		{tree.ErrDepthExceeded, tree.CodeInternal},
		{errors.New("boom"), tree.CodeInternal},
	}

	for _, tt := range tests {
		if got := tree.Code(tt.err); got != tt.code {
			t.Errorf("Code(%v): expected %q, got %q", tt.err, tt.code, got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !tree.IsRetryable(store.ErrConflict) {
		t.Error("expected store.ErrConflict to be retryable")
	}
	if tree.IsRetryable(tree.ErrNotFound) {
		t.Error("expected ErrNotFound not to be retryable")
	}
}

// --- Config Tests ---

func TestConfig_Defaults(t *testing.T) {
	svc := tree.New(nil, tree.Config{}, nil)
	config := svc.Config()

	if config.MaxDepth != tree.DefaultMaxDepth {
		t.Errorf("expected MaxDepth %d, got %d", tree.DefaultMaxDepth, config.MaxDepth)
	}
	if config.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts 5, got %d", config.MaxAttempts)
	}
	if config.Now == nil {
		t.Error("expected default clock")
	}
}

func TestConfig_Clamping(t *testing.T) {
	svc := tree.New(nil, tree.Config{MaxDepth: 5000, MaxAttempts: 500, InitialInterval: time.Second, MaxInterval: time.Millisecond}, nil)
	config := svc.Config()

	if config.MaxDepth != 1024 {
		t.Errorf("expected MaxDepth clamped to 1024, got %d", config.MaxDepth)
	}
	if config.MaxAttempts != 50 {
		t.Errorf("expected MaxAttempts clamped to 50, got %d", config.MaxAttempts)
	}
	if config.MaxInterval < config.InitialInterval {
		t.Errorf("expected MaxInterval >= InitialInterval, got %v < %v", config.MaxInterval, config.InitialInterval)
	}
}
