// Package value holds the ordered data model used for message content.
//
// A value is one of nil, bool, float64, string, []any or Object. Objects keep
// their entries in insertion order so that a decoded message serializes back
// to exactly the bytes it was decoded from.
package value

// Field is one entry of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is an ordered map from string keys to values.
type Object []Field

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value under key when it is a string.
func (o Object) String(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the value under key when it is a bool.
func (o Object) Bool(key string) (bool, bool) {
	v, ok := o.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Has reports whether key is present, whatever its value.
func (o Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set replaces the value under key or appends a new entry.
func (o Object) Set(key string, v any) Object {
	for i := range o {
		if o[i].Key == key {
			o[i].Value = v
			return o
		}
	}
	return append(o, Field{Key: key, Value: v})
}

// Keys returns the keys in order.
func (o Object) Keys() []string {
	out := make([]string, 0, len(o))
	for _, f := range o {
		out = append(out, f.Key)
	}
	return out
}

// Type returns content.type when v is an object with a string type.
func Type(v any) (string, bool) {
	obj, ok := v.(Object)
	if !ok {
		return "", false
	}
	return obj.String("type")
}

// Walk visits every value reachable from v, depth first, including object
// keys. The visitor sees object keys as strings before the entry's value.
func Walk(v any, visit func(any)) {
	visit(v)
	switch t := v.(type) {
	case Object:
		for _, f := range t {
			visit(f.Key)
			Walk(f.Value, visit)
		}
	case []any:
		for _, item := range t {
			Walk(item, visit)
		}
	}
}
