package tree

import (
	"context"

	"github.com/jacentio/grove/store"
)

// SetFileStatus records an ingestion status change on a File.
func (s *Service) SetFileStatus(ctx context.Context, owner string, in SetFileStatusInput) (*File, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}

	var updated *File
	err := s.run(ctx, "setFileStatus", func(ctx context.Context, tx store.Tx) error {
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

		now := s.config.Now()
		if err := tx.Update(CollectionNodes, file.ID,
			store.Set(fieldStatus, string(in.Status)),
			store.Inc(fieldRevision, 1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := touchChain(tx, chain); err != nil {
			return err
		}

		f := *file
		f.Status = in.Status
		f.Revision++
		f.Metadata.TimeUpdated = now
		updated = &f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
