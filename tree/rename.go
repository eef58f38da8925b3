package tree

import (
	"context"
	"fmt"
	"time"

	"github.com/jacentio/grove/store"
)

// Rename changes the name of a Directory or File. The root can't be renamed.
func (s *Service) Rename(ctx context.Context, owner string, in RenameInput) (Node, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}

	var renamed Node
	err := s.run(ctx, "rename", func(ctx context.Context, tx store.Tx) error {
		chain, err := ResolveAncestorChain(ctx, tx, in.ID, s.config.MaxDepth)
		if err != nil {
			return err
		}
		target := chain[0]
		if isRoot(target) {
			return fmt.Errorf("%w: the root directory can't be renamed", ErrFailedPrecondition)
		}
		if err := checkOwner(target, owner); err != nil {
			return err
		}

		now := s.config.Now()
		if err := tx.Update(CollectionNodes, in.ID,
			store.Set(fieldName, in.Name),
			store.Inc(fieldRevision, 1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := touchChain(tx, chain[1:]); err != nil {
			return err
		}
		renamed = withRename(target, in.Name, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// withRename returns a copy of n as it looks after a committed rename.
func withRename(n Node, name string, now time.Time) Node {
	switch v := n.(type) {
	case *Directory:
		d := *v
		d.Name = name
		d.Revision++
		d.Metadata.TimeUpdated = now
		return &d
	case *File:
		f := *v
		f.Name = name
		f.Revision++
		f.Metadata.TimeUpdated = now
		return &f
	}
	return n
}
