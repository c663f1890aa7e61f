package supabase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Row is one table row: column names mapped to values, in the order the
// server returned them. Decoded values are string, json.Number, bool, nil,
// Row for nested objects or []any for arrays.
//
// The zero Row is empty and ready to use.
type Row struct {
	keys   []string
	values map[string]any
}

// RowOf builds a Row from alternating column names and values.
func RowOf(kv ...any) Row {
	var r Row
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return r
}

// Set assigns value to key. New keys are appended after existing ones.
func (r *Row) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

func (r Row) Len() int { return len(r.keys) }

// Map returns the row as a plain map. Column order is lost.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		m[k] = r.values[k]
	}
	return m
}

// MarshalJSON encodes the row as an object with its columns in order. A value
// that cannot be encoded is written as its fmt.Sprint text instead.
func (r Row) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := marshalValue(k)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')

		v, err := marshalValue(r.values[k])
		if err != nil {
			if v, err = marshalValue(fmt.Sprint(r.values[k])); err != nil {
				return nil, err
			}
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. null yields an
// empty row.
func (r *Row) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("supabase: invalid JSON row")
	}
	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.Null:
		*r = Row{}
	case res.IsObject():
		*r = rowFromResult(res)
	default:
		return fmt.Errorf("supabase: row must be a JSON object, got %s", res.Type)
	}
	return nil
}

func marshalValue(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(b.Bytes(), "\n"), nil
}

func rowFromResult(res gjson.Result) Row {
	var r Row
	res.ForEach(func(key, value gjson.Result) bool {
		r.Set(key.String(), valueOf(value))
		return true
	})
	return r
}

func valueOf(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	}

	if v.IsObject() {
		return rowFromResult(v)
	}
	items := []any{}
	v.ForEach(func(_, item gjson.Result) bool {
		items = append(items, valueOf(item))
		return true
	})
	return items
}

// decodeRows decodes a PostgREST response body, which is always a JSON array
// of objects for table requests.
func decodeRows(body []byte) ([]Row, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []Row{}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("supabase: response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, fmt.Errorf("supabase: expected a JSON array of rows, got %s", doc.Type)
	}

	rows := []Row{}
	var err error
	doc.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			err = fmt.Errorf("supabase: expected a row object, got %s", item.Type)
			return false
		}
		rows = append(rows, rowFromResult(item))
		return true
	})
	return rows, err
}
