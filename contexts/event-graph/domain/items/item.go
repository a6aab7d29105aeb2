// Package items holds the tagged record variants stored in the single
// table and the explicit codecs between each variant and its flat attribute
// map. The sort-key shape, not a discriminator field, decides which decoder
// applies; decoding an item whose key does not match the expected shape is a
// programming error surfaced as ErrInternal by callers.
package items

import (
	"encoding/json"
)

// Attribute names shared across variants. Per-variant attributes are named
// at their codec.
const (
	AttrPK             = "pk"
	AttrSK             = "sk"
	AttrGSI1PK         = "gsi1pk"
	AttrGSI1SK         = "gsi1sk"
	AttrStartTimestamp = "startTimestamp"
	AttrEndTimestamp   = "endTimestamp"
	AttrVersion        = "version"
)

// Item is a flat attribute map as stored on the wire. Values are strings,
// numbers, bools, string slices, or nested string-keyed maps.
type Item map[string]any

func (i Item) PK() string { return i.String(AttrPK) }
func (i Item) SK() string { return i.String(AttrSK) }

func (i Item) String(name string) string {
	v, _ := i[name].(string)
	return v
}

// Int64 tolerates the numeric representations produced by the in-memory
// adapter (native ints) and the JSON round-trip of the postgres adapter
// (float64 / json.Number).
func (i Item) Int64(name string) int64 {
	switch v := i[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func (i Item) Int(name string) int {
	return int(i.Int64(name))
}

func (i Item) Bool(name string) bool {
	v, _ := i[name].(bool)
	return v
}

func (i Item) StringSlice(name string) []string {
	switch v := i[name].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (i Item) StringMap(name string) map[string]string {
	switch v := i[name].(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, value := range v {
			out[k] = value
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, value := range v {
			if s, ok := value.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

func (i Item) Map(name string) map[string]any {
	v, _ := i[name].(map[string]any)
	return v
}

func (i Item) Has(name string) bool {
	_, ok := i[name]
	return ok
}

// Clone is a deep copy through JSON, which normalizes value types the same
// way the postgres adapter does. Adapters clone on every read and write so
// callers never alias stored state.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	raw, err := json.Marshal(i)
	if err != nil {
		out := make(Item, len(i))
		for k, v := range i {
			out[k] = v
		}
		return out
	}
	var out Item
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func setIfString(item Item, name, value string) {
	if value != "" {
		item[name] = value
	}
}
