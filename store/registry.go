package store

// Index declares a queryable top-level string field of a collection.
type Index struct {
	// Collection is the collection holding the documents (e.g., "nodes").
	Collection string

	// Field is the top-level string attribute to index (e.g., "parent_id").
	Field string
}

// Registry holds all secondary indexes known to a backend.
type Registry struct {
	indexes      []Index
	byCollection map[string][]Index
}

// NewRegistry creates a Registry holding the given indexes.
func NewRegistry(indexes ...Index) *Registry {
	r := &Registry{
		indexes:      []Index{},
		byCollection: make(map[string][]Index),
	}
	for _, idx := range indexes {
		r.Register(idx)
	}
	return r
}

// Register adds an index to the registry. Duplicate registrations are ignored.
func (r *Registry) Register(idx Index) {
	if r.Has(idx.Collection, idx.Field) {
		return
	}
	r.indexes = append(r.indexes, idx)
	r.byCollection[idx.Collection] = append(r.byCollection[idx.Collection], idx)
}

// IndexesOf returns all indexes declared for a collection.
func (r *Registry) IndexesOf(collection string) []Index {
	if r == nil {
		return nil
	}
	return r.byCollection[collection]
}

// AllIndexes returns all registered indexes.
func (r *Registry) AllIndexes() []Index {
	if r == nil {
		return nil
	}
	return r.indexes
}

// Has reports whether the collection has an index on field.
func (r *Registry) Has(collection, field string) bool {
	if r == nil {
		return false
	}
	for _, idx := range r.byCollection[collection] {
		if idx.Field == field {
			return true
		}
	}
	return false
}
