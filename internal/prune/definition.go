package prune

import (
	"encoding/json"
	"fmt"
)

// Definition is the canonical prune definition: a mapping from field name to
// one of true (keep the field as-is), false/nil (omit), a scalar directive
// payload, or a nested Definition for a related record or collection.
type Definition map[string]any

// Normalize converts any accepted definition shorthand into the canonical
// shape. Accepted inputs: a Definition or map, a list of field names, a
// string (JSON first, otherwise a single field name), or any other scalar.
// Normalization is total; it never fails and is idempotent.
func Normalize(raw any) Definition {
	switch v := raw.(type) {
	case nil:
		return Definition{}
	case Definition:
		return normalizeMap(v)
	case map[string]any:
		return normalizeMap(v)
	case []string:
		def := make(Definition, len(v))
		for _, name := range v {
			def[name] = true
		}
		return def
	case []any:
		return normalizeList(v)
	case string:
		return normalizeString(v)
	default:
		// Defensive fallback: keep whatever this names.
		return Definition{fmt.Sprintf("%v", raw): true}
	}
}

func normalizeList(list []any) Definition {
	def := make(Definition, len(list))
	for _, el := range list {
		switch e := el.(type) {
		case string:
			def[e] = true
		case map[string]any:
			for k, v := range normalizeMap(e) {
				def[k] = v
			}
		case Definition:
			for k, v := range normalizeMap(e) {
				def[k] = v
			}
		default:
			def[fmt.Sprintf("%v", el)] = true
		}
	}
	return def
}

func normalizeString(s string) Definition {
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		switch parsed.(type) {
		case map[string]any, []any:
			return Normalize(parsed)
		}
	}
	// Not a structured definition: the whole string is one field name.
	return Definition{s: true}
}

func normalizeMap(m map[string]any) Definition {
	def := make(Definition, len(m))
	for k, v := range m {
		def[k] = normalizeNode(v)
	}
	return def
}

// normalizeNode normalizes one value inside a definition mapping. Boolean,
// numeric, string and nil leaves pass through unchanged (numbers and strings
// are only meaningful later as directive payloads); maps and lists recurse;
// anything else defaults to true.
func normalizeNode(v any) any {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	case Definition:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case []any:
		return normalizeList(val)
	case []string:
		return Normalize(val)
	default:
		return true
	}
}

// asDefinition returns the node as a canonical Definition if it is a mapping.
func asDefinition(node any) (Definition, bool) {
	switch d := node.(type) {
	case Definition:
		return d, true
	case map[string]any:
		return Definition(d), true
	}
	return nil, false
}

// keep reports whether a leaf definition value keeps the field.
// false and nil omit; everything else keeps.
func keep(node any) bool {
	if node == nil {
		return false
	}
	if b, ok := node.(bool); ok {
		return b
	}
	return true
}
