package tree

import (
	"context"
	"fmt"

	"github.com/jacentio/grove/store"
)

// ResolveAncestorChain reads the node startID and its ancestors up to the
// namespace root, closest first. Every read joins tx's read set, so a
// concurrent change anywhere on the chain fails the commit.
//
// The first node may be a File; every later node must be a Directory.
// A chain longer than maxDepth returns ErrDepthExceeded.
func ResolveAncestorChain(ctx context.Context, tx store.Tx, startID string, maxDepth int) ([]Node, error) {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}

	chain := make([]Node, 0, 8)
	id := startID
	for len(chain) < maxDepth {
		n, err := getNode(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if _, ok := n.(*Directory); !ok && len(chain) > 0 {
			return nil, fmt.Errorf("%w: ancestor %s of %s is not a directory", ErrTypeMismatch, id, startID)
		}
		chain = append(chain, n)
		if isRoot(n) {
			return chain, nil
		}
		id = n.Info().ParentID
	}
	return nil, fmt.Errorf("%w: %s has more than %d ancestors", ErrDepthExceeded, startID, maxDepth)
}
