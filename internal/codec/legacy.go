package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"ssbsql/internal/models"
	"ssbsql/internal/value"
)

// EncodeLegacy writes m as a two-space indented JSON document, byte for byte
// what JSON.stringify(m, null, 2) produces.
func EncodeLegacy(m *models.Message) ([]byte, error) {
	w := &legacyWriter{}
	if err := w.write(messageToObject(m), 0); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// DecodeLegacy parses a document produced by EncodeLegacy. Whitespace is not
// significant to the parser, field order is.
func DecodeLegacy(data []byte) (*models.Message, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, malformed("message is not an object")
	}
	return messageFromObject(obj)
}

// DecodeJSONValue parses any JSON document into the ordered value model.
func DecodeJSONValue(data []byte) (any, error) {
	return decodeJSON(data)
}

// EncodeJSONValue writes v compactly, with the same number and string rules
// as the legacy format.
func EncodeJSONValue(v any) ([]byte, error) {
	w := &legacyWriter{compact: true}
	if err := w.write(v, 0); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

type legacyWriter struct {
	buf     bytes.Buffer
	compact bool
}

func (w *legacyWriter) newline(depth int) {
	if w.compact {
		return
	}
	w.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		w.buf.WriteString("  ")
	}
}

func (w *legacyWriter) write(v any, depth int) error {
	if depth > maxDepth {
		return malformed("nesting deeper than %d", maxDepth)
	}
	switch t := v.(type) {
	case nil:
		w.buf.WriteString("null")
	case bool:
		if t {
			w.buf.WriteString("true")
		} else {
			w.buf.WriteString("false")
		}
	case float64:
		s, err := formatNumber(t)
		if err != nil {
			return err
		}
		w.buf.WriteString(s)
	case int64:
		w.buf.WriteString(strconv.FormatInt(t, 10))
	case string:
		writeString(&w.buf, t)
	case []any:
		if len(t) == 0 {
			w.buf.WriteString("[]")
			return nil
		}
		w.buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			if err := w.write(item, depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte(']')
	case value.Object:
		if len(t) == 0 {
			w.buf.WriteString("{}")
			return nil
		}
		w.buf.WriteByte('{')
		for i, f := range t {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			writeString(&w.buf, f.Key)
			w.buf.WriteByte(':')
			if !w.compact {
				w.buf.WriteByte(' ')
			}
			if err := w.write(f.Value, depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte('}')
	default:
		return malformed("unsupported value type %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// writeString escapes like JSON.stringify: quote, backslash and control
// characters only.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

func decodeJSON(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, malformed("invalid utf-8")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := readJSON(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("trailing data after message")
	}
	return v, nil
}

func readJSON(dec *json.Decoder, depth int) (any, error) {
	if depth > maxDepth {
		return nil, malformed("nesting deeper than %d", maxDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, jsonError(err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := value.Object{}
			seen := map[string]struct{}{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, jsonError(err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, malformed("object key is not a string")
				}
				if _, dup := seen[key]; dup {
					return nil, malformed("duplicate key %q", key)
				}
				seen[key] = struct{}{}
				item, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj = append(obj, value.Field{Key: key, Value: item})
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonError(err)
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				item, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonError(err)
			}
			return arr, nil
		default:
			return nil, malformed("unexpected delimiter %q", t)
		}
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil, malformed("bad number %q", string(t))
		}
		return f, nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, malformed("unexpected token %v", tok)
	}
}

func jsonError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return malformed("truncated input")
	}
	return malformed("%s", strings.TrimPrefix(err.Error(), "json: "))
}
