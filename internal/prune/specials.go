package prune

import "strings"

const (
	// DirectivePrefix marks a definition key as a query modifier
	// ("$limit": 5) rather than a field to keep.
	DirectivePrefix = "$"

	// TypeSelectorPrefix marks a definition key as a type-dispatch entry
	// ("_body": {...}) for heterogeneous record lists.
	TypeSelectorPrefix = "_"
)

// ExtractSpecials splits a definition node into keep-field entries and query
// modifier directives (prefix stripped, payload passed through unchanged).
// Directive keys may appear anywhere in the node.
func ExtractSpecials(def Definition) (Definition, map[string]any) {
	fields := make(Definition, len(def))
	var directives map[string]any
	for k, v := range def {
		if strings.HasPrefix(k, DirectivePrefix) && len(k) > len(DirectivePrefix) {
			if directives == nil {
				directives = make(map[string]any)
			}
			directives[strings.TrimPrefix(k, DirectivePrefix)] = v
			continue
		}
		fields[k] = v
	}
	return fields, directives
}

// IsTypeSelector reports whether a definition key is a type-dispatch entry.
func IsTypeSelector(key string) bool {
	return strings.HasPrefix(key, TypeSelectorPrefix) && len(key) > len(TypeSelectorPrefix)
}

// AllTypeSelectors reports whether every key of a non-empty definition node
// is a type selector, making the node a dispatch table for record lists.
func AllTypeSelectors(def Definition) bool {
	if len(def) == 0 {
		return false
	}
	for k := range def {
		if !IsTypeSelector(k) {
			return false
		}
	}
	return true
}
