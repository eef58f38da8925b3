package badger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jacentio/grove/store"
)

// document is a decoded JSON object. Numbers are kept as json.Number so that
// integers survive a read-modify-write cycle without float rounding.
type document map[string]any

func decodeDocument(data []byte) (document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

// encodeDocument converts an arbitrary value into a document.
func encodeDocument(v any) (document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// normalize round-trips v through JSON so stored values match what a decode returns.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// str returns the top-level string field, or "" if absent or not a string.
func (d document) str(field string) string {
	s, _ := d[field].(string)
	return s
}

// apply applies a mutation in place, creating intermediate objects as needed.
func (d document) apply(m store.Mutation) error {
	segments := m.Segments()
	parent := map[string]any(d)
	for _, seg := range segments[:len(segments)-1] {
		next, ok := parent[seg].(map[string]any)
		if !ok {
			if parent[seg] != nil {
				return fmt.Errorf("%w: %s is not an object", store.ErrInvalidWrite, m.Path)
			}
			next = make(map[string]any)
			parent[seg] = next
		}
		parent = next
	}
	leaf := segments[len(segments)-1]

	if !m.IsIncrement() {
		v, err := normalize(m.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", m.Path, err)
		}
		parent[leaf] = v
		return nil
	}

	var current int64
	switch v := parent[leaf].(type) {
	case nil:
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return fmt.Errorf("%w: %s is not an integer", store.ErrInvalidWrite, m.Path)
		}
		current = n
	case int64:
		current = v
	default:
		return fmt.Errorf("%w: %s is not a number", store.ErrInvalidWrite, m.Path)
	}
	parent[leaf] = current + m.Delta
	return nil
}
