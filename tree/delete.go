package tree

import (
	"context"
	"fmt"

	"github.com/jacentio/grove/store"
)

// DeleteDirectory removes a Directory's record and subtracts its size from
// every ancestor. Its descendants are left to the reaper: a reap job is
// written in the same transaction whenever the Directory wasn't empty.
func (s *Service) DeleteDirectory(ctx context.Context, owner string, in DeleteInput) error {
	if err := validateInput(owner, in); err != nil {
		return err
	}

	reap := false
	err := s.run(ctx, "deleteDirectory", func(ctx context.Context, tx store.Tx) error {
		reap = false
		dir, err := getDirectory(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		if dir.IsRoot() {
			return fmt.Errorf("%w: the root directory can't be deleted", ErrFailedPrecondition)
		}
		if err := checkOwner(dir, owner); err != nil {
			return err
		}
		chain, err := ResolveAncestorChain(ctx, tx, dir.ParentID, s.config.MaxDepth)
		if err != nil {
			return err
		}

		if err := tx.Delete(CollectionNodes, dir.ID); err != nil {
			return err
		}
		if err := tx.Update(CollectionNodes, chain[0].Info().ID,
			store.Inc(fieldDirCount, -1),
			store.Set(fieldTimeUpdated, s.config.Now()),
		); err != nil {
			return err
		}
		if err := touchChain(tx, chain, store.Inc(fieldSize, -dir.Metadata.CumulativeSize)); err != nil {
			return err
		}
		if dir.Metadata.FileCount+dir.Metadata.DirCount > 0 {
			reap = true
			return s.enqueueReap(tx, dir.ID, owner)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if reap {
		s.notify()
	}
	return nil
}

// DeleteFile removes a File and subtracts its size from every ancestor.
func (s *Service) DeleteFile(ctx context.Context, owner string, in DeleteInput) error {
	if err := validateInput(owner, in); err != nil {
		return err
	}

	return s.run(ctx, "deleteFile", func(ctx context.Context, tx store.Tx) error {
		file, err := getFile(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		if err := checkOwner(file, owner); err != nil {
			return err
		}
		chain, err := ResolveAncestorChain(ctx, tx, file.ParentID, s.config.MaxDepth)
		if err != nil {
			return err
		}

		if err := tx.Delete(CollectionNodes, file.ID); err != nil {
			return err
		}
		if err := tx.Update(CollectionNodes, chain[0].Info().ID,
			store.Inc(fieldFileCount, -1),
			store.Set(fieldTimeUpdated, s.config.Now()),
		); err != nil {
			return err
		}
		return touchChain(tx, chain, store.Inc(fieldSize, -file.Metadata.Size))
	})
}

// Delete removes the node in.ID, dispatching on its kind.
func (s *Service) Delete(ctx context.Context, owner string, in DeleteInput) error {
	if err := validateInput(owner, in); err != nil {
		return err
	}
	n, err := getNode(ctx, s.db, in.ID)
	if err != nil {
		s.logResult("delete", err)
		return err
	}
	if _, ok := n.(*File); ok {
		return s.DeleteFile(ctx, owner, in)
	}
	return s.DeleteDirectory(ctx, owner, in)
}
