package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/grove/store"
)

// MoveDirectory reparents a Directory, shifting its cumulative size from the
// ancestors it leaves to the ancestors it joins. Ancestors on both paths only
// get a revision bump. Files can't be moved and a Directory can't be moved
// into its own subtree.
func (s *Service) MoveDirectory(ctx context.Context, owner string, in MoveInput) (*Directory, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}

	var moved *Directory
	err := s.run(ctx, "moveDirectory", func(ctx context.Context, tx store.Tx) error {
		dir, err := getDirectory(ctx, tx, in.ID)
		if errors.Is(err, ErrTypeMismatch) {
			return fmt.Errorf("%w: only directories can be moved", ErrInvalidArgument)
		}
		if err != nil {
			return err
		}
		if dir.IsRoot() {
			return fmt.Errorf("%w: the root directory can't be moved", ErrFailedPrecondition)
		}
		if err := checkOwner(dir, owner); err != nil {
			return err
		}

		fromChain, err := ResolveAncestorChain(ctx, tx, dir.ParentID, s.config.MaxDepth)
		if err != nil {
			return err
		}
		toChain, err := ResolveAncestorChain(ctx, tx, in.NewParentID, s.config.MaxDepth)
		if err != nil {
			return err
		}
		dest, ok := toChain[0].(*Directory)
		if !ok {
			return fmt.Errorf("%w: destination %s is not a directory", ErrTypeMismatch, in.NewParentID)
		}
		if err := checkOwner(dest, owner); err != nil {
			return err
		}
		for _, n := range toChain {
			if n.Info().ID == dir.ID {
				return fmt.Errorf("%w: %s can't be moved into its own subtree", ErrFailedPrecondition, dir.ID)
			}
		}

		common, onlyFrom, onlyTo := partitionChains(fromChain, toChain)
		size := dir.Metadata.CumulativeSize
		now := s.config.Now()

		if err := tx.Update(CollectionNodes, dir.ID,
			store.Set(fieldParentID, dest.ID),
			store.Inc(fieldRevision, 1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := tx.Update(CollectionNodes, fromChain[0].Info().ID,
			store.Inc(fieldDirCount, -1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := tx.Update(CollectionNodes, dest.ID,
			store.Inc(fieldDirCount, 1),
			store.Set(fieldTimeUpdated, now),
		); err != nil {
			return err
		}
		if err := touchChain(tx, onlyFrom, store.Inc(fieldSize, -size)); err != nil {
			return err
		}
		if err := touchChain(tx, onlyTo, store.Inc(fieldSize, size)); err != nil {
			return err
		}
		if err := touchChain(tx, common); err != nil {
			return err
		}

		d := *dir
		d.ParentID = dest.ID
		d.Revision++
		d.Metadata.TimeUpdated = now
		moved = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// partitionChains splits two ancestor chains into the nodes on both, the nodes
// only on from and the nodes only on to. Order within each part follows the
// input chains.
func partitionChains(from, to []Node) (common, onlyFrom, onlyTo []Node) {
	inTo := make(map[string]bool, len(to))
	for _, n := range to {
		inTo[n.Info().ID] = true
	}
	inFrom := make(map[string]bool, len(from))
	for _, n := range from {
		id := n.Info().ID
		inFrom[id] = true
		if inTo[id] {
			common = append(common, n)
		} else {
			onlyFrom = append(onlyFrom, n)
		}
	}
	for _, n := range to {
		if !inFrom[n.Info().ID] {
			onlyTo = append(onlyTo, n)
		}
	}
	return common, onlyFrom, onlyTo
}
