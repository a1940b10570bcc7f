package codec

import (
	"math"

	"ssbsql/internal/models"
	"ssbsql/internal/value"
)

var (
	messageFields = []string{"key", "value", "timestamp"}
	valueFields   = []string{"previous", "author", "sequence", "timestamp", "hash", "content", "signature"}
)

// maxDepth bounds nesting so hostile frames cannot exhaust the stack.
const maxDepth = 256

func valueToObject(v models.Value) value.Object {
	var previous any
	if v.Previous != nil {
		previous = *v.Previous
	}
	return value.Object{
		{Key: "previous", Value: previous},
		{Key: "author", Value: v.Author},
		{Key: "sequence", Value: v.Sequence},
		{Key: "timestamp", Value: v.Timestamp},
		{Key: "hash", Value: v.Hash},
		{Key: "content", Value: v.Content},
		{Key: "signature", Value: v.Signature},
	}
}

func messageToObject(m *models.Message) value.Object {
	obj := value.Object{
		{Key: "key", Value: m.Key},
		{Key: "value", Value: valueToObject(m.Value)},
	}
	if m.Timestamp != nil {
		obj = append(obj, value.Field{Key: "timestamp", Value: *m.Timestamp})
	}
	return obj
}

// messageFromObject enforces the positional layout shared by both formats.
func messageFromObject(obj value.Object) (*models.Message, error) {
	if len(obj) != 2 && len(obj) != 3 {
		return nil, malformed("message has %d fields", len(obj))
	}
	for i, f := range obj {
		if f.Key != messageFields[i] {
			return nil, malformed("message field %d is %q, want %q", i, f.Key, messageFields[i])
		}
	}

	m := &models.Message{}
	key, ok := obj[0].Value.(string)
	if !ok {
		return nil, malformed("key is not a string")
	}
	m.Key = key

	inner, ok := obj[1].Value.(value.Object)
	if !ok {
		return nil, malformed("value is not an object")
	}
	v, err := valueFromObject(inner)
	if err != nil {
		return nil, err
	}
	m.Value = v

	if len(obj) == 3 {
		ts, ok := obj[2].Value.(float64)
		if !ok {
			return nil, malformed("timestamp is not a number")
		}
		m.Timestamp = &ts
	}
	return m, nil
}

func valueFromObject(obj value.Object) (models.Value, error) {
	var v models.Value
	if len(obj) != len(valueFields) {
		return v, malformed("value has %d fields, want %d", len(obj), len(valueFields))
	}
	for i, f := range obj {
		if f.Key != valueFields[i] {
			return v, malformed("value field %d is %q, want %q", i, f.Key, valueFields[i])
		}
	}

	switch prev := obj[0].Value.(type) {
	case nil:
	case string:
		v.Previous = &prev
	default:
		return v, malformed("previous is neither null nor a string")
	}

	var ok bool
	if v.Author, ok = obj[1].Value.(string); !ok {
		return v, malformed("author is not a string")
	}

	seq, ok := obj[2].Value.(float64)
	if !ok || seq < 1 || seq != math.Trunc(seq) || seq > 1<<53 {
		return v, malformed("sequence is not a positive integer")
	}
	v.Sequence = int64(seq)

	if v.Timestamp, ok = obj[3].Value.(float64); !ok {
		return v, malformed("timestamp is not a number")
	}
	if v.Hash, ok = obj[4].Value.(string); !ok {
		return v, malformed("hash is not a string")
	}

	switch content := obj[5].Value.(type) {
	case value.Object, string:
		v.Content = content
	default:
		return v, malformed("content is neither an object nor a string")
	}

	if v.Signature, ok = obj[6].Value.(string); !ok {
		return v, malformed("signature is not a string")
	}
	return v, nil
}
