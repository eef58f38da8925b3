package tree

import "github.com/jacentio/grove/store"

// Collections used by the tree.
const (
	CollectionNamespaces = "namespaces"
	CollectionNodes      = "nodes"
	CollectionReapJobs   = "reap_jobs"
)

// Indexed fields.
const (
	FieldOwner    = "owner"
	FieldParentID = fieldParentID
	FieldState    = "state"
)

// Indexes returns the secondary indexes the tree and the reaper query.
// Backends must be opened with a registry containing them.
func Indexes() []store.Index {
	return []store.Index{
		{Collection: CollectionNamespaces, Field: FieldOwner},
		{Collection: CollectionNodes, Field: FieldParentID},
		{Collection: CollectionReapJobs, Field: FieldState},
	}
}

// NewRegistry returns a registry holding Indexes.
func NewRegistry() *store.Registry {
	return store.NewRegistry(Indexes()...)
}
