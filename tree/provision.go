package tree

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/grove/store"
)

const (
	// NamespaceTypeDocument is the only implemented namespace type.
	NamespaceTypeDocument = "document"

	// DefaultNamespaceName is the name of the namespace BootstrapOwner creates.
	DefaultNamespaceName = "Default"
)

// Namespace is a named tree owned by one principal.
type Namespace struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	RootNodeID  string    `json:"root_node_id"`
	TimeCreated time.Time `json:"time_created"`
}

// CreateNamespace creates a namespace and its empty root Directory atomically.
func (s *Service) CreateNamespace(ctx context.Context, owner string, in CreateNamespaceInput) (*Namespace, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = NamespaceTypeDocument
	}
	if in.Type != NamespaceTypeDocument {
		return nil, fmt.Errorf("%w: namespace type %q", ErrUnimplemented, in.Type)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	ns, _, err := s.provision(ctx, "createNamespace", owner, in.ID, uuid.NewString(), in.Name, false)
	return ns, err
}

// BootstrapOwner gives a new principal its default namespace. The namespace
// and root IDs derive from owner, so repeated calls return the namespace
// created by the first one.
func (s *Service) BootstrapOwner(ctx context.Context, owner string) (*Namespace, bool, error) {
	if owner == "" {
		return nil, false, fmt.Errorf("%w: owner is required", ErrInvalidArgument)
	}
	nsID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("grove:namespace:"+owner)).String()
	rootID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("grove:root:"+owner)).String()
	return s.provision(ctx, "bootstrapOwner", owner, nsID, rootID, DefaultNamespaceName, true)
}

// provision writes a namespace and its root. With reuse set an existing
// namespace of the same owner is returned instead of ErrAlreadyExists.
// The boolean result reports whether anything was created.
func (s *Service) provision(ctx context.Context, op, owner, nsID, rootID, name string, reuse bool) (*Namespace, bool, error) {
	var ns *Namespace
	created := false
	err := s.run(ctx, op, func(ctx context.Context, tx store.Tx) error {
		created = false
		existing, err := getNamespace(ctx, tx, nsID)
		if err == nil {
			if !reuse {
				return fmt.Errorf("%w: namespace %s", ErrAlreadyExists, nsID)
			}
			if err := checkNamespaceOwner(existing, owner); err != nil {
				return err
			}
			ns = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		if err := checkIDFree(ctx, tx, rootID); err != nil {
			return err
		}

		now := s.config.Now()
		ns = &Namespace{
			ID:          nsID,
			Owner:       owner,
			Name:        name,
			Type:        NamespaceTypeDocument,
			RootNodeID:  rootID,
			TimeCreated: now,
		}
		root := nodeRecord{
			ID:       rootID,
			ParentID: nsID,
			Owner:    owner,
			Type:     TypeDirectory,
			Name:     RootName,
			Metadata: recordMetadata{TimeCreated: now, TimeUpdated: now},
		}
		if err := tx.Create(CollectionNamespaces, ns.ID, ns); err != nil {
			return err
		}
		created = true
		return tx.Create(CollectionNodes, root.ID, root)
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("namespace created", "namespace", ns.ID, "owner", owner, "root", ns.RootNodeID)
	}
	return ns, created, nil
}

// GetNamespace returns the namespace id.
func (s *Service) GetNamespace(ctx context.Context, owner, id string) (*Namespace, error) {
	if err := validateInput(owner, DeleteNamespaceInput{ID: id}); err != nil {
		return nil, err
	}
	ns, err := getNamespace(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := checkNamespaceOwner(ns, owner); err != nil {
		return nil, err
	}
	return ns, nil
}

// ListNamespaces returns the owner's namespaces ordered by name.
func (s *Service) ListNamespaces(ctx context.Context, owner string) ([]*Namespace, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidArgument)
	}
	snaps, err := s.db.Query(ctx, store.QueryInput{
		Collection: CollectionNamespaces,
		Field:      FieldOwner,
		Value:      owner,
	})
	if err != nil {
		return nil, fmt.Errorf("query namespaces of %s: %w", owner, err)
	}

	namespaces := make([]*Namespace, 0, len(snaps))
	for _, snap := range snaps {
		var ns Namespace
		if err := snap.DataTo(&ns); err != nil {
			return nil, fmt.Errorf("decode namespace %s: %w", snap.ID, err)
		}
		namespaces = append(namespaces, &ns)
	}
	slices.SortFunc(namespaces, func(a, b *Namespace) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return namespaces, nil
}

// RenameNamespace changes a namespace's name.
func (s *Service) RenameNamespace(ctx context.Context, owner string, in RenameNamespaceInput) (*Namespace, error) {
	if err := validateInput(owner, in); err != nil {
		return nil, err
	}

	var renamed *Namespace
	err := s.run(ctx, "renameNamespace", func(ctx context.Context, tx store.Tx) error {
		ns, err := getNamespace(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		if err := checkNamespaceOwner(ns, owner); err != nil {
			return err
		}
		if err := tx.Update(CollectionNamespaces, ns.ID, store.Set("name", in.Name)); err != nil {
			return err
		}
		ns.Name = in.Name
		renamed = ns
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// DeleteNamespace removes a namespace and its root Directory atomically.
// A non-empty tree is handed to the reaper through a reap job on the root.
func (s *Service) DeleteNamespace(ctx context.Context, owner string, in DeleteNamespaceInput) error {
	if err := validateInput(owner, in); err != nil {
		return err
	}

	reap := false
	err := s.run(ctx, "deleteNamespace", func(ctx context.Context, tx store.Tx) error {
		reap = false
		ns, err := getNamespace(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		if err := checkNamespaceOwner(ns, owner); err != nil {
			return err
		}
		root, err := getDirectory(ctx, tx, ns.RootNodeID)
		if err != nil && !isNotFound(err) {
			return err
		}

		if err := tx.Delete(CollectionNamespaces, ns.ID); err != nil {
			return err
		}
		if root == nil {
			return nil
		}
		if err := tx.Delete(CollectionNodes, root.ID); err != nil {
			return err
		}
		if root.Metadata.FileCount+root.Metadata.DirCount > 0 {
			reap = true
			return s.enqueueReap(tx, root.ID, owner)
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

func getNamespace(ctx context.Context, r reader, id string) (*Namespace, error) {
	snap, err := r.Get(ctx, CollectionNamespaces, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, fmt.Errorf("%w: namespace %s", ErrNotFound, id)
	}
	var ns Namespace
	if err := snap.DataTo(&ns); err != nil {
		return nil, fmt.Errorf("decode namespace %s: %w", id, err)
	}
	return &ns, nil
}

func checkNamespaceOwner(ns *Namespace, owner string) error {
	if ns.Owner != owner {
		return fmt.Errorf("%w: namespace %s", ErrPermissionDenied, ns.ID)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
