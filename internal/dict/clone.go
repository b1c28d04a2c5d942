package dict

import "sort"

// Cloner is implemented by values that define their own deep copy.
type Cloner interface {
	CloneValue() any
}

// Dicter is implemented by types exporting an explicit allow-list of fields.
type Dicter interface {
	ToDict() *Dict
}

// FromDicter is implemented by types that can be populated from a document.
// Implementations only set fields they know and ignore other keys.
type FromDicter interface {
	FromDict(d *Dict) error
}

// CloneValue deep-copies documents, slices and maps. Values implementing
// Cloner copy themselves; everything else is returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Dict:
		return t.Clone()
	case Cloner:
		return t.CloneValue()
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = CloneValue(t[i])
		}
		return out
	case []*Dict:
		out := make([]*Dict, len(t))
		for i := range t {
			out[i] = t[i].Clone()
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case map[string]float64:
		out := make(map[string]float64, len(t))
		for k, f := range t {
			out[k] = f
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a plain map. A nil map stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// MapToDict converts a parameter map into a document with sorted keys.
func MapToDict(m map[string]any) *Dict {
	d := New()
	for _, k := range sortedKeys(m) {
		v := m[k]
		if inner, ok := v.(map[string]any); ok {
			d.Set(k, MapToDict(inner))
			continue
		}
		d.Set(k, CloneValue(v))
	}
	return d
}

// DictToMap converts a document back into a parameter map, recursing into
// nested documents.
func DictToMap(d *Dict) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, d.Len())
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		out[k] = unwrap(v)
	}
	return out
}

func unwrap(v any) any {
	switch t := v.(type) {
	case *Dict:
		return DictToMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = unwrap(t[i])
		}
		return out
	default:
		return CloneValue(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
