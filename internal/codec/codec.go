// Package codec converts feed messages between their wire formats and
// models.Message.
//
// Two formats are supported. The legacy format is the indented JSON layout
// the feed's hashes are computed over. The compact format is msgpack with the
// same field layout. Both decoders reject anything they would not produce,
// and both round trip byte for byte.
package codec

import (
	"bytes"

	"ssbsql/internal/models"
)

type Format int

const (
	// FormatAuto picks the format from the first non-space byte.
	FormatAuto Format = iota
	FormatLegacy
	FormatCompact
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatCompact:
		return "compact"
	default:
		return "auto"
	}
}

// ParseFormat maps a config string to a Format. Unknown names mean auto.
func ParseFormat(s string) Format {
	switch s {
	case "legacy", "json":
		return FormatLegacy
	case "compact", "msgpack":
		return FormatCompact
	default:
		return FormatAuto
	}
}

// Detect guesses the format of a frame.
func Detect(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatLegacy
	}
	return FormatCompact
}

// Decode parses data in the given format.
func Decode(data []byte, f Format) (*models.Message, error) {
	if f == FormatAuto {
		f = Detect(data)
	}
	if f == FormatLegacy {
		return DecodeLegacy(data)
	}
	return DecodeCompact(data)
}

// Encode serializes m in the given format. Auto means legacy.
func Encode(m *models.Message, f Format) ([]byte, error) {
	if f == FormatCompact {
		return EncodeCompact(m)
	}
	return EncodeLegacy(m)
}

// Constructor builds a caller-defined record from a decoded message.
type Constructor[T any] func(m *models.Message) (T, error)

// DecodeAs decodes data and hands the message to build, so callers can keep
// their own message shape without a second parsing pass.
func DecodeAs[T any](data []byte, f Format, build Constructor[T]) (T, error) {
	var zero T
	m, err := Decode(data, f)
	if err != nil {
		return zero, err
	}
	return build(m)
}
