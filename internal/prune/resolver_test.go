package prune

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeQuery is an in-memory LazyQuery for tests. Modifiers limit and offset
// are honored; everything else is a no-op. Materialize counts invocations so
// memoization tests can observe cache hits.
type fakeQuery struct {
	items   []any
	limit   int
	offset  int
	key     string
	applied []string

	materialized *int
	err          error
}

func (q *fakeQuery) Apply(name string, arg any) LazyQuery {
	c := *q
	c.applied = append(append([]string(nil), q.applied...), name)
	switch name {
	case "limit":
		if n, ok := arg.(int); ok {
			c.limit = n
		}
	case "offset":
		if n, ok := arg.(int); ok {
			c.offset = n
		}
	}
	return &c
}

func (q *fakeQuery) Materialize(ctx context.Context) ([]any, error) {
	if q.materialized != nil {
		*q.materialized++
	}
	if q.err != nil {
		return nil, q.err
	}
	items := q.items
	if q.offset > 0 && q.offset < len(items) {
		items = items[q.offset:]
	} else if q.offset >= len(items) {
		items = nil
	}
	if q.limit > 0 && q.limit < len(items) {
		items = items[:q.limit]
	}
	return items, nil
}

func (q *fakeQuery) QueryKey() string { return q.key }

type verbatimContent struct{ payload any }

func (v verbatimContent) VerbatimValue() any { return v.payload }

func TestClassify_Scalar(t *testing.T) {
	for _, v := range []any{nil, true, "hello", 42, 3.14, time.Now()} {
		rv := Classify(v)
		if rv.Kind != KindScalar {
			t.Fatalf("expected scalar for %T, got kind %d", v, rv.Kind)
		}
	}
}

func TestClassify_Lists(t *testing.T) {
	rv := Classify([]any{1, 2, 3})
	if rv.Kind != KindPlainList {
		t.Fatalf("expected plain list, got kind %d", rv.Kind)
	}

	rv = Classify([]any{map[string]any{"id": 1}, map[string]any{"id": 2}})
	if rv.Kind != KindRecordList {
		t.Fatalf("expected record list, got kind %d", rv.Kind)
	}
	if len(rv.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rv.Records))
	}

	// One non-record element makes the whole list plain.
	rv = Classify([]any{map[string]any{"id": 1}, "stray"})
	if rv.Kind != KindPlainList {
		t.Fatalf("expected plain list for mixed elements, got kind %d", rv.Kind)
	}

	rv = Classify([]any{})
	if rv.Kind != KindPlainList {
		t.Fatalf("expected plain list for empty slice, got kind %d", rv.Kind)
	}
}

func TestClassify_SingleRecordAndOpaque(t *testing.T) {
	rv := Classify(map[string]any{"id": "u1", "name": "Ada"})
	if rv.Kind != KindSingleRecord {
		t.Fatalf("expected single record, got kind %d", rv.Kind)
	}

	// A record shape without identity is opaque.
	rv = Classify(map[string]any{"name": "Ada"})
	if rv.Kind != KindOpaque {
		t.Fatalf("expected opaque for id-less map, got kind %d", rv.Kind)
	}

	rv = Classify(struct{ X int }{1})
	if rv.Kind != KindOpaque {
		t.Fatalf("expected opaque for struct, got kind %d", rv.Kind)
	}
}

func TestClassify_QueryAndVerbatim(t *testing.T) {
	rv := Classify(&fakeQuery{})
	if rv.Kind != KindLazyQuery {
		t.Fatalf("expected lazy query, got kind %d", rv.Kind)
	}

	rv = Classify(verbatimContent{payload: map[string]any{"html": "<b>x</b>"}})
	if rv.Kind != KindVerbatim {
		t.Fatalf("expected verbatim, got kind %d", rv.Kind)
	}
}

func TestResolve_AppliesDirectivesToQuery(t *testing.T) {
	rec := MapRecord{"posts": &fakeQuery{items: []any{1, 2, 3}}}
	rv := Resolve(rec, "posts", map[string]any{"limit": 2, "sort": "-created_at"})
	if rv.Kind != KindLazyQuery {
		t.Fatalf("expected lazy query, got kind %d", rv.Kind)
	}
	q := rv.Query.(*fakeQuery)
	if len(q.applied) != 2 {
		t.Fatalf("expected 2 applied modifiers, got %v", q.applied)
	}
	if q.limit != 2 {
		t.Fatalf("expected limit 2, got %d", q.limit)
	}
}

func TestResolve_AbsentFieldIsNil(t *testing.T) {
	rv := Resolve(MapRecord{"a": 1}, "missing", nil)
	if rv.Kind != KindScalar || rv.Value != nil {
		t.Fatalf("expected nil scalar for absent field, got kind %d value %v", rv.Kind, rv.Value)
	}
}

func TestResolve_PropertyBeforeIndex(t *testing.T) {
	rec := &propertyRecord{
		props: map[string]any{"name": "computed"},
		row:   map[string]any{"name": "raw"},
	}
	rv := Resolve(rec, "name", nil)
	if rv.Value != "computed" {
		t.Fatalf("expected property access to win, got %v", rv.Value)
	}

	// Property failure falls back to indexed access.
	rv = Resolve(rec, "other", nil)
	if rv.Value != "indexed" {
		t.Fatalf("expected index fallback, got %v", rv.Value)
	}
}

type propertyRecord struct {
	props map[string]any
	row   map[string]any
}

func (r *propertyRecord) GetProperty(name string) (any, error) {
	if v, ok := r.props[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no property %s", name)
}

func (r *propertyRecord) GetIndex(name string) (any, bool) {
	if name == "other" {
		return "indexed", true
	}
	v, ok := r.row[name]
	return v, ok
}
