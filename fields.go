package harvest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value in an extraction or enrichment result.
//
// Value is nil when nothing matched, a string for single-match rules,
// []string for all-match rules, or an arbitrary JSON value for enrichment.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered name to value mapping. Order is the rule declaration
// order for extracted fields and the response order for enrichment fields.
// It marshals as a JSON object with keys in that order.
type Fields []Field

// Get returns the value for name and whether the field is present.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Set replaces the value for name, appending the field if it is absent.
func (f *Fields) Set(name string, value any) {
	for i := range *f {
		if (*f)[i].Name == name {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Name: name, Value: value})
}

// Names returns the field names in order.
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, field := range f {
		names[i] = field.Name
	}
	return names
}

// Clone returns a deep copy of the fields. Sequence values are copied so the
// clone can be modified without affecting the original.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for i, field := range f {
		out[i] = Field{Name: field.Name, Value: cloneValue(field.Value)}
	}
	return out
}

// NonNull returns the number of fields holding a non-null value.
func (f Fields) NonNull() int {
	var n int
	for _, field := range f {
		if !IsNull(field.Value) {
			n++
		}
	}
	return n
}

// IsNull reports whether v represents a missing value. Empty sequences are
// null because they come from rules that matched nothing.
func IsNull(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// MarshalJSON encodes the fields as an ordered JSON object.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Arrays of strings
// decode to []string and numbers decode to json.Number.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var fields Fields
	isNull, err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, Field{Name: key, Value: v})
		return nil
	})
	if err != nil {
		return err
	}
	if isNull {
		*f = nil
		return nil
	}
	if fields == nil {
		fields = Fields{}
	}
	*f = fields
	return nil
}

// decodeOrderedObject walks the members of a JSON object in document order.
// It reports true when data is the JSON literal null.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) (bool, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if tok == nil {
		return true, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return false, fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return false, err
		}
		key, ok := tok.(string)
		if !ok {
			return false, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return false, err
		}
		if err := fn(key, raw); err != nil {
			return false, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return false, err
	}
	return false, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeValue(v), nil
}

func normalizeValue(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	strs := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(string)
		if !ok {
			return v
		}
		strs = append(strs, s)
	}
	return strs
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = cloneValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}
