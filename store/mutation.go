package store

import (
	"fmt"
	"strings"
)

// Mutation is a single field change applied by Tx.Update.
// Paths address nested fields with dots, e.g. "metadata.size".
type Mutation struct {
	// Path is the dotted field path.
	Path string

	// Value is the new value for a set mutation.
	Value any

	// Delta is the amount added by an increment mutation.
	Delta int64

	increment bool
}

// Inc returns a mutation adding delta to the numeric field at path.
// A missing field is treated as zero.
func Inc(path string, delta int64) Mutation {
	return Mutation{Path: path, Delta: delta, increment: true}
}

// Set returns a mutation replacing the field at path with value.
func Set(path string, value any) Mutation {
	return Mutation{Path: path, Value: value}
}

// IsIncrement reports whether the mutation is an increment.
func (m Mutation) IsIncrement() bool {
	return m.increment
}

// Segments splits the mutation path into its field names.
func (m Mutation) Segments() []string {
	return strings.Split(m.Path, ".")
}

// String implements fmt.Stringer.
func (m Mutation) String() string {
	if m.increment {
		return fmt.Sprintf("%s += %d", m.Path, m.Delta)
	}
	return fmt.Sprintf("%s = %v", m.Path, m.Value)
}

// mergeMutations folds next into current. Increments on one path are summed and
// a set replaces whatever was there. An increment after a set is rejected.
func mergeMutations(current []Mutation, next []Mutation) ([]Mutation, error) {
	out := append([]Mutation(nil), current...)
	for _, m := range next {
		if m.Path == "" {
			return nil, fmt.Errorf("%w: empty mutation path", ErrInvalidWrite)
		}
		idx := -1
		for i := range out {
			if out[i].Path == m.Path {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			out = append(out, m)
		case !m.increment:
			out[idx] = m
		case out[idx].increment:
			out[idx].Delta += m.Delta
		default:
			return nil, fmt.Errorf("%w: increment of %q after set", ErrInvalidWrite, m.Path)
		}
	}
	return out, nil
}
