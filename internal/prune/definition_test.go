package prune

import (
	"reflect"
	"testing"
)

func TestNormalize_FieldList(t *testing.T) {
	want := Definition{"id": true, "name": true}

	got := Normalize([]string{"id", "name"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = Normalize([]any{"id", "name"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalize_MixedList(t *testing.T) {
	// A list may mix field names with nested mappings.
	got := Normalize([]any{"id", map[string]any{"author": map[string]any{"name": true}}})
	want := Definition{
		"id":     true,
		"author": Definition{"name": true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalize_JSONString(t *testing.T) {
	got := Normalize(`{"id": true, "ssn": false}`)
	want := Definition{"id": true, "ssn": false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = Normalize(`["id", "name"]`)
	want = Definition{"id": true, "name": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalize_PlainString(t *testing.T) {
	// Not valid JSON: the whole string is one field name.
	got := Normalize("title")
	want := Definition{"title": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// A JSON scalar string is also just a field name.
	got = Normalize("42")
	want = Definition{"42": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalize_NilAndFallback(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("expected empty definition for nil, got %v", got)
	}

	got := Normalize(42)
	want := Definition{"42": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []any{
		[]string{"id", "name"},
		`{"a": {"b": true}}`,
		map[string]any{"x": []any{"y", "z"}, "$limit": 5},
		nil,
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("normalize not idempotent for %v: %v vs %v", in, once, twice)
		}
	}
}

func TestNormalize_DirectivePayloadsPreserved(t *testing.T) {
	got := Normalize(map[string]any{"$limit": 5, "$sort": "-created_at", "name": true})
	if got["$limit"] != 5 {
		t.Fatalf("expected $limit payload preserved, got %v", got["$limit"])
	}
	if got["$sort"] != "-created_at" {
		t.Fatalf("expected $sort payload preserved, got %v", got["$sort"])
	}
}

func TestKeep(t *testing.T) {
	if keep(nil) || keep(false) {
		t.Fatal("nil and false must omit the field")
	}
	if !keep(true) || !keep(Definition{"a": true}) || !keep("payload") {
		t.Fatal("true, mappings and payloads must keep the field")
	}
}
