package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Fields holds a document's top-level fields as raw JSON values.
type Fields map[string]json.RawMessage

// Document is one per-user document as seen by a read or a snapshot.
// Exists is false when the remote side has no document for ID.
type Document struct {
	ID     string
	Fields Fields
	Exists bool
}

type ArrayOp string

const (
	ArrayUnion      ArrayOp = "union"
	ArrayDifference ArrayOp = "difference"
)

// SnapshotFunc receives every snapshot of a subscribed document.
type SnapshotFunc func(doc *Document)

// CancelFunc stops a subscription. After it returns no further snapshots
// are delivered. It is safe to call more than once.
type CancelFunc func()

// EncodeFields marshals a merge patch field by field.
func EncodeFields(patch map[string]any) (Fields, error) {
	fields := make(Fields, len(patch))
	for key, value := range patch {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", key, err)
		}
		fields[key] = raw
	}
	return fields, nil
}

// Field decodes one field, falling back to def when the field is absent,
// null or of the wrong shape.
func Field[T any](f Fields, key string, def T) T {
	raw, ok := f[key]
	if !ok || len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return def
	}
	// a fresh value, so a decode that fails halfway never touches def
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

var jsonNull = []byte("null")

func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
