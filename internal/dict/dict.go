// Package dict provides the insertion-ordered key-value documents used to
// persist records and datasets.
package dict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// #region dict
// Dict is an insertion-ordered string-keyed document. The zero value is ready to use.
type Dict struct {
	keys   []string
	values map[string]any
}

// New returns an empty Dict.
func New() *Dict {
	return &Dict{values: make(map[string]any)}
}

// Set stores v under key, keeping the original position when key already exists.
func (d *Dict) Set(key string, v any) *Dict {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
	return d
}

// Get returns the value under key.
func (d *Dict) Get(key string) (any, bool) {
	if d == nil || d.values == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (d *Dict) Delete(key string) {
	if d == nil || d.values == nil {
		return
	}
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

// Len returns the number of keys.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Clone returns a deep copy.
func (d *Dict) Clone() *Dict {
	if d == nil {
		return nil
	}
	out := &Dict{
		keys:   append([]string(nil), d.keys...),
		values: make(map[string]any, len(d.values)),
	}
	for k, v := range d.values {
		out.values[k] = CloneValue(v)
	}
	return out
}

// ToMap converts the document into plain maps and slices, recursively.
// Key order is lost.
func (d *Dict) ToMap() map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d.keys))
	for _, k := range d.keys {
		out[k] = plain(d.values[k])
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *Dict:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = plain(t[i])
		}
		return out
	case []*Dict:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i].ToMap()
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i := range t {
			out[i] = float64(t[i])
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	default:
		return v
	}
}

// FromMap builds a Dict from a plain map. Keys are sorted so the result is deterministic.
func FromMap(m map[string]any) *Dict {
	d := New()
	for _, k := range sortedKeys(m) {
		d.Set(k, fromPlain(m[k]))
	}
	return d
}

func fromPlain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromPlain(t[i])
		}
		return out
	default:
		return v
	}
}

// #endregion dict

// #region typed-getters

// String returns the string under key or "".
func (d *Dict) String(key string) string {
	v, _ := d.Get(key)
	s, _ := v.(string)
	return s
}

// Bool returns the bool under key or false.
func (d *Dict) Bool(key string) bool {
	v, _ := d.Get(key)
	b, _ := v.(bool)
	return b
}

// Int returns the integer under key, accepting JSON/YAML number representations.
func (d *Dict) Int(key string) (int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// Float returns the number under key.
func (d *Dict) Float(key string) (float64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Dict returns the nested document under key, or nil.
func (d *Dict) Dict(key string) *Dict {
	v, _ := d.Get(key)
	switch t := v.(type) {
	case *Dict:
		return t
	case map[string]any:
		return FromMap(t)
	}
	return nil
}

// List returns the list under key, or nil.
func (d *Dict) List(key string) []any {
	v, _ := d.Get(key)
	switch t := v.(type) {
	case []any:
		return t
	case []*Dict:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	}
	return nil
}

// Dicts returns the documents in the list under key, skipping non-document entries.
func (d *Dict) Dicts(key string) []*Dict {
	var out []*Dict
	for _, v := range d.List(key) {
		switch t := v.(type) {
		case *Dict:
			out = append(out, t)
		case map[string]any:
			out = append(out, FromMap(t))
		}
	}
	return out
}

// Floats returns the numeric list under key.
func (d *Dict) Floats(key string) []float64 {
	v, _ := d.Get(key)
	if fs, ok := v.([]float64); ok {
		return append([]float64(nil), fs...)
	}
	raw := d.List(key)
	if raw == nil {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, e := range raw {
		if f, ok := toFloat(e); ok {
			out = append(out, f)
		}
	}
	return out
}

// Ints returns the integer list under key.
func (d *Dict) Ints(key string) []int {
	v, _ := d.Get(key)
	if is, ok := v.([]int); ok {
		return append([]int(nil), is...)
	}
	fs := d.Floats(key)
	if fs == nil {
		return nil
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out
}

// Strings returns the string list under key.
func (d *Dict) Strings(key string) []string {
	v, _ := d.Get(key)
	if ss, ok := v.([]string); ok {
		return append([]string(nil), ss...)
	}
	var out []string
	for _, e := range d.List(key) {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Time parses the timestamp under key.
func (d *Dict) Time(key string) (time.Time, error) {
	return ParseTime(d.String(key))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// #endregion typed-getters

// #region time

// TimeLayout is the textual timestamp format used in every persisted document.
const TimeLayout = time.RFC3339Nano

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// #endregion time

// #region json

// MarshalJSON writes keys in insertion order.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if d != nil {
		for i, k := range d.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := json.Marshal(d.values[k])
			if err != nil {
				return nil, fmt.Errorf("marshal %s: %w", k, err)
			}
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping the key order of the input.
func (d *Dict) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dict: expected object, got %v", tok)
	}
	out, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*d = *out
	return nil
}

func decodeObject(dec *json.Decoder) (*Dict, error) {
	d := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("dict: expected key, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("dict: %s: %w", key, err)
		}
		d.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			list := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}
		return t.Float64()
	default:
		return tok, nil
	}
}

// #endregion json

// #region yaml

// MarshalYAML emits a mapping node with keys in insertion order.
func (d *Dict) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if d == nil {
		return node, nil
	}
	for _, k := range d.keys {
		var kn, vn yaml.Node
		if err := kn.Encode(k); err != nil {
			return nil, err
		}
		if err := vn.Encode(d.values[k]); err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		node.Content = append(node.Content, &kn, &vn)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping node keeping its key order.
func (d *Dict) UnmarshalYAML(node *yaml.Node) error {
	out, err := decodeNode(node)
	if err != nil {
		return err
	}
	m, ok := out.(*Dict)
	if !ok {
		return fmt.Errorf("dict: expected mapping at line %d", node.Line)
	}
	*d = *m
	return nil
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return New(), nil
		}
		return decodeNode(node.Content[0])
	case yaml.MappingNode:
		d := New()
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := decodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			d.Set(node.Content[i].Value, v)
		}
		return d, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := decodeNode(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// #endregion yaml
