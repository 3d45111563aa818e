package prune

import (
	"encoding/json"
	"fmt"
)

// serializeValue converts an opaque object kept with a bare true leaf into
// plain data. The fallback chain is ordered: an object-provided Serialize,
// then ToArray, then string conversion, then enumerating the object's own
// visible properties (map copy, or a JSON round-trip for arbitrary values).
func serializeValue(v any) any {
	if v == nil || isScalar(v) {
		return v
	}
	switch val := v.(type) {
	case Serializable:
		return val.Serialize()
	case ArrayConvertible:
		return val.ToArray()
	case fmt.Stringer:
		return val.String()
	case MapRecord:
		return copyMap(val)
	case map[string]any:
		return copyMap(val)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
