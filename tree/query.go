package tree

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jacentio/grove/store"
)

// Get returns the node id.
func (s *Service) Get(ctx context.Context, owner, id string) (Node, error) {
	if err := validateInput(owner, DeleteInput{ID: id}); err != nil {
		return nil, err
	}
	n, err := getNode(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(n, owner); err != nil {
		return nil, err
	}
	return n, nil
}

// List returns the direct children of a Directory, Directories first, then by name.
func (s *Service) List(ctx context.Context, owner, dirID string) ([]Node, error) {
	if err := validateInput(owner, DeleteInput{ID: dirID}); err != nil {
		return nil, err
	}
	dir, err := getDirectory(ctx, s.db, dirID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(dir, owner); err != nil {
		return nil, err
	}

	children, err := s.children(ctx, dirID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(children, func(a, b Node) int {
		ha, hb := a.Info(), b.Info()
		if ha.Type != hb.Type {
			if ha.Type == TypeDirectory {
				return -1
			}
			return 1
		}
		return cmp.Or(cmp.Compare(ha.Name, hb.Name), cmp.Compare(ha.ID, hb.ID))
	})
	return children, nil
}

// Ancestors returns the node id and its ancestors up to the root, closest first.
func (s *Service) Ancestors(ctx context.Context, owner, id string) ([]Node, error) {
	if err := validateInput(owner, DeleteInput{ID: id}); err != nil {
		return nil, err
	}
	var chain []Node
	err := s.db.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		chain, err = ResolveAncestorChain(ctx, tx, id, s.config.MaxDepth)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := checkOwner(chain[0], owner); err != nil {
		return nil, err
	}
	return chain, nil
}

// children returns the nodes whose parent is parentID, in ID order.
func (s *Service) children(ctx context.Context, parentID string) ([]Node, error) {
	snaps, err := s.db.Query(ctx, store.QueryInput{
		Collection: CollectionNodes,
		Field:      FieldParentID,
		Value:      parentID,
	})
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", parentID, err)
	}
	nodes := make([]Node, 0, len(snaps))
	for _, snap := range snaps {
		var rec nodeRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode node %s: %w", snap.ID, err)
		}
		nodes = append(nodes, rec.node())
	}
	return nodes, nil
}
