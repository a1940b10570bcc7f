package codec

import (
	"bytes"
	"context"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"ssbsql/internal/models"
	"ssbsql/internal/value"
)

// EncodeCompact writes m as msgpack. Maps are written in field order and
// every content number as a float64, so the output is canonical.
func EncodeCompact(m *models.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)

	if err := encodeCompactValue(enc, messageToObject(m), 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCompactValue(enc *msgpack.Encoder, v any, depth int) error {
	if depth > maxDepth {
		return malformed("nesting deeper than %d", maxDepth)
	}
	switch t := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(t)
	case float64:
		return enc.EncodeFloat64(t)
	case int64:
		return enc.EncodeInt(t)
	case string:
		return enc.EncodeString(t)
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, item := range t {
			if err := encodeCompactValue(enc, item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case value.Object:
		if err := enc.EncodeMapLen(len(t)); err != nil {
			return err
		}
		for _, f := range t {
			if err := enc.EncodeString(f.Key); err != nil {
				return err
			}
			if err := encodeCompactValue(enc, f.Value, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return malformed("unsupported value type %T", v)
	}
}

// DecodeCompact parses a frame produced by EncodeCompact.
func DecodeCompact(data []byte) (*models.Message, error) {
	r := bytes.NewReader(data)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(r)

	v, err := decodeCompactValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, malformed("%d trailing bytes after message", r.Len())
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, malformed("message is not a map")
	}
	return messageFromObject(obj)
}

// Result carries the outcome of an asynchronous decode.
type Result struct {
	Message *models.Message
	Err     error
}

// DecodeCompactAsync decodes data on its own goroutine. The returned channel
// yields exactly one Result and is then closed. A cancelled ctx is reported
// as the result's error.
func DecodeCompactAsync(ctx context.Context, data []byte) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		if err := ctx.Err(); err != nil {
			out <- Result{Err: err}
			return
		}
		m, err := DecodeCompact(data)
		if ctxErr := ctx.Err(); ctxErr != nil {
			out <- Result{Err: ctxErr}
			return
		}
		out <- Result{Message: m, Err: err}
	}()
	return out
}

func decodeCompactValue(dec *msgpack.Decoder, depth int) (any, error) {
	if depth > maxDepth {
		return nil, malformed("nesting deeper than %d", maxDepth)
	}
	code, err := dec.PeekCode()
	if err != nil {
		return nil, malformed("truncated input")
	}

	switch {
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, malformed("map header: %v", err)
		}
		obj := make(value.Object, 0, min(n, 2048))
		seen := map[string]struct{}{}
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return nil, malformed("map key: %v", err)
			}
			if _, dup := seen[key]; dup {
				return nil, malformed("duplicate key %q", key)
			}
			seen[key] = struct{}{}
			item, err := decodeCompactValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			obj = append(obj, value.Field{Key: key, Value: item})
		}
		return obj, nil

	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, malformed("array header: %v", err)
		}
		arr := make([]any, 0, min(n, 2048))
		for i := 0; i < n; i++ {
			item, err := decodeCompactValue(dec, depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	}

	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, malformed("scalar: %v", err)
	}
	switch t := raw.(type) {
	case nil, bool, string, float64:
		return t, nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	default:
		return nil, malformed("unsupported msgpack type %T", raw)
	}
}
