package resource

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// Field is a single key of an object whose keys are emitted in a
// fixed order.
type Field struct {
	Key   string
	Value interface{}
}

// Fields is an ordered object. Both the YAML and the JSON encodings
// keep the order of the slice, which is what makes a manifest
// serialise to the same bytes every time.
type Fields []Field

// Get returns the value for key, if present.
func (fs Fields) Get(key string) (interface{}, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set returns a copy of fs with key set to v; an existing key keeps
// its position, a new key goes last.
func (fs Fields) Set(key string, v interface{}) Fields {
	out := make(Fields, len(fs), len(fs)+1)
	copy(out, fs)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Key: key, Value: v})
}

// Keys lists the keys in order.
func (fs Fields) Keys() []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Key
	}
	return keys
}

func (fs Fields) MarshalYAML() (interface{}, error) {
	ms := make(yaml.MapSlice, len(fs))
	for i, f := range fs {
		ms[i] = yaml.MapItem{Key: f.Key, Value: f.Value}
	}
	return ms, nil
}

func (fs Fields) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Prune returns a copy of fs without the keys whose value is empty:
// nil, a blank string, an empty list or an empty object. Nested
// objects and lists are pruned in the same way, and dropped when
// pruning leaves them empty. Prune expects normalized values.
func Prune(fs Fields) Fields {
	out := Fields{}
	for _, f := range fs {
		if v, ok := pruneValue(f.Value); ok {
			out = append(out, Field{Key: f.Key, Value: v})
		}
	}
	return out
}

func pruneValue(v interface{}) (interface{}, bool) {
	switch v := v.(type) {
	case nil:
		return nil, false
	case string:
		return v, strings.TrimSpace(v) != ""
	case Fields:
		p := Prune(v)
		return p, len(p) > 0
	case []interface{}:
		var items []interface{}
		for _, item := range v {
			if p, ok := pruneValue(item); ok {
				items = append(items, p)
			}
		}
		return items, len(items) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return pruneValue(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Array:
		return v, rv.Len() > 0
	}
	return v, true
}

// Normalize turns free-form values into their canonical emitted form:
// maps become Fields sorted by key, lists become []interface{}, and
// whole floating point numbers (as decoded from JSON) become int64.
func Normalize(v interface{}) interface{} {
	switch v := v.(type) {
	case nil, string, bool, int64:
		return v
	case Fields:
		out := make(Fields, len(v))
		for i, f := range v {
			out[i] = Field{Key: f.Key, Value: Normalize(f.Value)}
		}
		return out
	case []Fields:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := map[string]reflect.Value{}
		for _, k := range rv.MapKeys() {
			ks := toString(k.Interface())
			keys = append(keys, ks)
			byKey[ks] = rv.MapIndex(k)
		}
		sort.Strings(keys)
		out := make(Fields, 0, len(keys))
		for _, k := range keys {
			out = append(out, Field{Key: k, Value: Normalize(byKey[k].Interface())})
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	case reflect.Float32:
		return Normalize(rv.Float())
	}
	return v
}

func toString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, _ := json.Marshal(k)
	return strings.Trim(string(b), `"`)
}
