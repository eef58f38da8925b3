package tree

import (
	"context"
	"fmt"

	"github.com/jacentio/grove/store"
)

// CreateDirectory inserts an empty Directory below in.ParentID.
func (s *Service) CreateDirectory(ctx context.Context, owner string, in CreateDirectoryInput) (*Directory, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}

	var created *Directory
	err := s.run(ctx, "createDirectory", func(ctx context.Context, tx store.Tx) error {
		parent, chain, err := s.resolveParent(ctx, tx, owner, in.ParentID, in.ID)
		if err != nil {
			return err
		}

		now := s.config.Now()
		rec := nodeRecord{
			ID:       in.ID,
			ParentID: parent.ID,
			Owner:    owner,
			Type:     TypeDirectory,
			Name:     in.Name,
			Metadata: recordMetadata{TimeCreated: now, TimeUpdated: now},
		}
		if err := tx.Create(CollectionNodes, rec.ID, rec); err != nil {
			return err
		}
		if err := tx.Update(CollectionNodes, parent.ID,
			store.Inc(fieldDirCount, 1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := touchChain(tx, chain); err != nil {
			return err
		}
		created = rec.node().(*Directory)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateFile inserts a File below in.ParentID and adds its size to every ancestor.
func (s *Service) CreateFile(ctx context.Context, owner string, in CreateFileInput) (*File, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}

	var created *File
	err := s.run(ctx, "createFile", func(ctx context.Context, tx store.Tx) error {
		parent, chain, err := s.resolveParent(ctx, tx, owner, in.ParentID, in.ID)
		if err != nil {
			return err
		}

		now := s.config.Now()
		rec := nodeRecord{
			ID:       in.ID,
			ParentID: parent.ID,
			Owner:    owner,
			Type:     TypeFile,
			Name:     in.Name,
			Hash:     in.ContentHash,
			Handle:   in.StorageHandle,
			Status:   StatusCreated,
			Metadata: recordMetadata{
				Size:        in.Size,
				ContentType: in.ContentType,
				TimeCreated: now,
				TimeUpdated: now,
			},
		}
		if err := tx.Create(CollectionNodes, rec.ID, rec); err != nil {
			return err
		}
		if err := tx.Update(CollectionNodes, parent.ID,
			store.Inc(fieldFileCount, 1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := touchChain(tx, chain, store.Inc(fieldSize, in.Size)); err != nil {
			return err
		}
		created = rec.node().(*File)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// resolveParent runs the read phase shared by the create operations: the
// parent chain, the parent's kind, the absence of newID and ownership.
func (s *Service) resolveParent(ctx context.Context, tx store.Tx, owner, parentID, newID string) (*Directory, []Node, error) {
	chain, err := ResolveAncestorChain(ctx, tx, parentID, s.config.MaxDepth)
	if err != nil {
		return nil, nil, err
	}
	parent, ok := chain[0].(*Directory)
	if !ok {
		return nil, nil, fmt.Errorf("%w: parent %s is not a directory", ErrTypeMismatch, parentID)
	}

	if err := checkIDFree(ctx, tx, newID); err != nil {
		return nil, nil, err
	}

	if err := checkOwner(parent, owner); err != nil {
		return nil, nil, err
	}
	return parent, chain, nil
}
