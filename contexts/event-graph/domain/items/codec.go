package items

import "encoding/json"

// Summary structs ride inside attribute maps as plain string-keyed maps so
// both store adapters persist them identically. The JSON round-trip keeps
// the field naming in one place (the struct tags).

// AsMap converts a summary struct to its stored map form; services use it
// when patching a denormalized summary field on pointers.
func AsMap(v any) map[string]any {
	return structToMap(v)
}

// AsMaps converts a slice of summary structs to its stored form.
func AsMaps[T any](entries []T) []any {
	return sliceToMaps(entries)
}

func structToMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func mapToStruct(m map[string]any, target any) {
	if m == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, target)
}

func sliceToMaps[T any](entries []T) []any {
	out := make([]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, structToMap(entry))
	}
	return out
}
