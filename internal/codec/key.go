package codec

import (
	"crypto/sha256"
	"encoding/base64"
	"unicode/utf16"

	"ssbsql/internal/models"
)

// LegacyValue returns the canonical serialization of v that feed signatures
// and message keys are computed over.
func LegacyValue(v models.Value) ([]byte, error) {
	w := &legacyWriter{}
	if err := w.write(valueToObject(v), 0); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// ComputeKey returns the content address of v. The hash input is the legacy
// serialization taken as UTF-16 code units truncated to one byte each, which
// is how the reference implementation feeds the string to sha256.
func ComputeKey(v models.Value) (string, error) {
	b, err := LegacyValue(v)
	if err != nil {
		return "", err
	}
	units := utf16.Encode([]rune(string(b)))
	latin := make([]byte, len(units))
	for i, u := range units {
		latin[i] = byte(u)
	}
	sum := sha256.Sum256(latin)
	return "%" + base64.StdEncoding.EncodeToString(sum[:]) + ".sha256", nil
}
