package prune

import (
	"context"
	"fmt"
)

// PropertyAccessor is the first field-access strategy: computed or
// relation-aware access supplied by a host adapter. An error means the
// property path failed; the resolver then falls back to indexed access.
type PropertyAccessor interface {
	GetProperty(name string) (any, error)
}

// IndexAccessor is the second field-access strategy: raw keyed access.
type IndexAccessor interface {
	GetIndex(name string) (any, bool)
}

// Identifiable exposes a record's stable identity. An empty string means the
// record has none; such records are pruned but never memoized or tagged.
type Identifiable interface {
	RecordID() string
}

// Typed exposes a record's runtime type discriminator, matched against
// type-selector keys when pruning heterogeneous lists.
type Typed interface {
	RecordType() string
}

// LazyQuery is a deferred, modifiable description of a record collection.
// Apply returns a modified copy; unknown modifier names must be no-ops.
type LazyQuery interface {
	Apply(name string, arg any) LazyQuery
	Materialize(ctx context.Context) ([]any, error)
}

// Keyed gives a lazy query a stable identity for memoization. Queries
// without one are materialized uncached.
type Keyed interface {
	QueryKey() string
}

// Verbatim marks rich content values that are exempt from pruning and pass
// through the projection unchanged.
type Verbatim interface {
	VerbatimValue() any
}

// Serializable is the preferred capability in the serialization fallback
// chain for opaque objects kept with a bare true leaf.
type Serializable interface {
	Serialize() map[string]any
}

// ArrayConvertible is the second capability in the fallback chain.
type ArrayConvertible interface {
	ToArray() []any
}

// MapRecord adapts a plain map to the record capabilities. An "id" key
// supplies identity and a "type" key the discriminator, when present.
type MapRecord map[string]any

func (m MapRecord) GetIndex(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapRecord) RecordID() string {
	if id, ok := m["id"]; ok && id != nil {
		return fmt.Sprintf("%v", id)
	}
	return ""
}

func (m MapRecord) RecordType() string {
	if t, ok := m["type"].(string); ok {
		return t
	}
	return ""
}

// asRecord wraps v as a readable record if it exposes either field-access
// capability. Plain maps are adapted on the fly.
func asRecord(v any) (any, bool) {
	switch rec := v.(type) {
	case nil:
		return nil, false
	case MapRecord:
		return rec, true
	case map[string]any:
		return MapRecord(rec), true
	case PropertyAccessor:
		return rec, true
	case IndexAccessor:
		return rec, true
	}
	return nil, false
}

// identityOf returns the record's identity, or "" when it has none.
func identityOf(rec any) string {
	if ident, ok := rec.(Identifiable); ok {
		return ident.RecordID()
	}
	return ""
}

// typeOf returns the record's runtime type discriminator, or "".
func typeOf(rec any) string {
	if t, ok := rec.(Typed); ok {
		return t.RecordType()
	}
	return ""
}
