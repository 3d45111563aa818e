package prune

import (
	"reflect"
	"testing"
)

func TestExtractSpecials(t *testing.T) {
	def := Definition{"$limit": 5, "$sort": "-created_at", "id": true, "name": true}
	fields, directives := ExtractSpecials(def)

	wantFields := Definition{"id": true, "name": true}
	if !reflect.DeepEqual(fields, wantFields) {
		t.Fatalf("expected fields %v, got %v", wantFields, fields)
	}

	wantDirectives := map[string]any{"limit": 5, "sort": "-created_at"}
	if !reflect.DeepEqual(directives, wantDirectives) {
		t.Fatalf("expected directives %v, got %v", wantDirectives, directives)
	}
}

func TestExtractSpecials_NoDirectives(t *testing.T) {
	fields, directives := ExtractSpecials(Definition{"id": true})
	if directives != nil {
		t.Fatalf("expected nil directives, got %v", directives)
	}
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %v", fields)
	}
}

func TestExtractSpecials_BarePrefixIsField(t *testing.T) {
	// A lone "$" has no directive name and stays a field key.
	fields, directives := ExtractSpecials(Definition{"$": true})
	if directives != nil {
		t.Fatalf("expected nil directives, got %v", directives)
	}
	if _, ok := fields["$"]; !ok {
		t.Fatal("expected bare $ kept as a field")
	}
}

func TestAllTypeSelectors(t *testing.T) {
	if !AllTypeSelectors(Definition{"_text": true, "_image": Definition{"url": true}}) {
		t.Fatal("expected all-selector map to be a dispatch table")
	}
	if AllTypeSelectors(Definition{"_text": true, "body": true}) {
		t.Fatal("mixed keys must not form a dispatch table")
	}
	if AllTypeSelectors(Definition{}) {
		t.Fatal("empty definition must not form a dispatch table")
	}
	if AllTypeSelectors(Definition{"_": true}) {
		t.Fatal("bare underscore is not a type selector")
	}
}
