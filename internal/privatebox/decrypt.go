package privatebox

import (
	"ssbsql/internal/codec"
	"ssbsql/internal/value"
)

// TryDecrypt attempts to open boxed content with each key in turn. Structured
// content is returned unchanged. On the first key that opens the box the
// decoded JSON payload is returned with true; any failure, whether the box is
// for someone else or is not a box at all, returns content unchanged with
// false.
func TryDecrypt(content any, keys []SecretKey) (any, bool) {
	s, ok := content.(string)
	if !ok || len(keys) == 0 {
		return content, false
	}
	box, err := DecodeContent(s)
	if err != nil {
		return content, false
	}
	for _, sk := range keys {
		plain, err := Open(box, sk)
		if err != nil {
			continue
		}
		decoded, err := codec.DecodeJSONValue(plain)
		if err != nil {
			return content, false
		}
		if _, isObject := decoded.(value.Object); !isObject {
			return content, false
		}
		return decoded, true
	}
	return content, false
}

// SealContent boxes a structured payload for recipients and returns the
// content string a message would carry.
func SealContent(payload value.Object, recipients []PublicKey) (string, error) {
	plain, err := codec.EncodeJSONValue(payload)
	if err != nil {
		return "", err
	}
	box, err := Seal(plain, recipients)
	if err != nil {
		return "", err
	}
	return EncodeContent(box), nil
}
