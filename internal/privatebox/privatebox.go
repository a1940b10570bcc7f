// Package privatebox opens and seals private messages.
//
// The box layout is nonce(24) | one-time public key(32) | one 49 byte header
// per recipient | body. Each header is secretbox(recipient count ‖ body key)
// under the X25519 shared secret of the one-time key and the recipient; the
// body is secretbox(plaintext) under the body key. All boxes share the nonce.
package privatebox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// Suffix marks boxed content strings.
	Suffix = ".box"

	MaxRecipients = 7

	nonceSize  = 24
	keySize    = 32
	headerSize = 1 + keySize + secretbox.Overhead
	minSize    = nonceSize + keySize + headerSize + secretbox.Overhead
)

var (
	ErrNotForUs      = errors.New("privatebox: no header opens with this key")
	ErrTooShort      = errors.New("privatebox: ciphertext too short")
	ErrBadRecipients = errors.New("privatebox: recipient count out of range")
)

// SecretKey is a curve25519 secret scalar.
type SecretKey [keySize]byte

// PublicKey is a curve25519 point.
type PublicKey [keySize]byte

// Open returns the plaintext of box if one of its headers opens with sk.
func Open(box []byte, sk SecretKey) ([]byte, error) {
	if len(box) < minSize {
		return nil, ErrTooShort
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	onetime := box[nonceSize : nonceSize+keySize]

	shared, err := curve25519.X25519(sk[:], onetime)
	if err != nil {
		return nil, fmt.Errorf("privatebox: shared secret: %w", err)
	}
	var sharedKey [keySize]byte
	copy(sharedKey[:], shared)

	headers := box[nonceSize+keySize:]
	for i := 0; i < MaxRecipients; i++ {
		start := i * headerSize
		if start+headerSize > len(headers) {
			break
		}
		plain, ok := secretbox.Open(nil, headers[start:start+headerSize], &nonce, &sharedKey)
		if !ok {
			continue
		}
		count := int(plain[0])
		if count < 1 || count > MaxRecipients {
			return nil, ErrBadRecipients
		}
		bodyStart := count * headerSize
		if bodyStart > len(headers) {
			return nil, ErrTooShort
		}
		var bodyKey [keySize]byte
		copy(bodyKey[:], plain[1:])
		body, ok := secretbox.Open(nil, headers[bodyStart:], &nonce, &bodyKey)
		if !ok {
			return nil, ErrNotForUs
		}
		return body, nil
	}
	return nil, ErrNotForUs
}

// Seal boxes plaintext for up to MaxRecipients recipients.
func Seal(plaintext []byte, recipients []PublicKey) ([]byte, error) {
	return seal(rand.Reader, plaintext, recipients)
}

func seal(random io.Reader, plaintext []byte, recipients []PublicKey) ([]byte, error) {
	if len(recipients) < 1 || len(recipients) > MaxRecipients {
		return nil, ErrBadRecipients
	}
	var (
		nonce     [nonceSize]byte
		onetimeSK [keySize]byte
		bodyKey   [keySize]byte
	)
	for _, b := range [][]byte{nonce[:], onetimeSK[:], bodyKey[:]} {
		if _, err := io.ReadFull(random, b); err != nil {
			return nil, err
		}
	}
	onetimePK, err := curve25519.X25519(onetimeSK[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, nonceSize+keySize+len(recipients)*headerSize+len(plaintext)+secretbox.Overhead)
	out = append(out, nonce[:]...)
	out = append(out, onetimePK...)

	header := append([]byte{byte(len(recipients))}, bodyKey[:]...)
	for _, pk := range recipients {
		shared, err := curve25519.X25519(onetimeSK[:], pk[:])
		if err != nil {
			return nil, fmt.Errorf("privatebox: shared secret: %w", err)
		}
		var sharedKey [keySize]byte
		copy(sharedKey[:], shared)
		out = secretbox.Seal(out, header, &nonce, &sharedKey)
	}
	return secretbox.Seal(out, plaintext, &nonce, &bodyKey), nil
}

// DecodeContent strips the suffix and base64 from a boxed content string.
func DecodeContent(content string) ([]byte, error) {
	if !strings.HasSuffix(content, Suffix) {
		return nil, fmt.Errorf("privatebox: missing %s suffix", Suffix)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSuffix(content, Suffix))
}

// EncodeContent is the inverse of DecodeContent.
func EncodeContent(box []byte) string {
	return base64.StdEncoding.EncodeToString(box) + Suffix
}

// SecretKeyFromEd25519 derives the curve25519 secret that matches an ed25519
// signing key.
func SecretKeyFromEd25519(priv ed25519.PrivateKey) (SecretKey, error) {
	var sk SecretKey
	if len(priv) != ed25519.PrivateKeySize {
		return sk, fmt.Errorf("privatebox: ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	h := sha512.Sum512(priv.Seed())
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	copy(sk[:], h[:keySize])
	return sk, nil
}

// PublicKeyFromEd25519 converts an ed25519 public key to its curve25519 form.
func PublicKeyFromEd25519(pub ed25519.PublicKey) (PublicKey, error) {
	var pk PublicKey
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return pk, fmt.Errorf("privatebox: invalid ed25519 public key: %w", err)
	}
	copy(pk[:], p.BytesMontgomery())
	return pk, nil
}

// PublicKey returns the curve25519 public key of sk.
func (sk SecretKey) PublicKey() (PublicKey, error) {
	var pk PublicKey
	b, err := curve25519.X25519(sk[:], curve25519.Basepoint)
	if err != nil {
		return pk, err
	}
	copy(pk[:], b)
	return pk, nil
}
