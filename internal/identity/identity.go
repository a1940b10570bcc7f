// Package identity reads and writes SSB secret files.
//
// A secret file is JSON preceded by optional '#' comment lines:
//
//	{"curve":"ed25519","public":"<b64>.ed25519","private":"<b64>.ed25519","id":"@<b64>.ed25519"}
package identity

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ssbsql/internal/privatebox"
)

const suffix = ".ed25519"

var ErrBadSecret = errors.New("identity: malformed secret file")

type Identity struct {
	ID      string
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

type secretFile struct {
	Curve   string `json:"curve"`
	Public  string `json:"public"`
	Private string `json:"private"`
	ID      string `json:"id"`
}

// Generate creates a fresh identity.
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return FromPrivate(priv)
}

// FromPrivate derives an identity from its signing key.
func FromPrivate(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrBadSecret, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{
		ID:      FeedID(pub),
		Public:  pub,
		Private: priv,
	}, nil
}

// FeedID formats a public key as a feed id.
func FeedID(pub ed25519.PublicKey) string {
	return "@" + base64.StdEncoding.EncodeToString(pub) + suffix
}

// ParseFeedID returns the public key inside a feed id.
func ParseFeedID(id string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(id, "@") || !strings.HasSuffix(id, suffix) {
		return nil, fmt.Errorf("feed id %q: want @<base64>%s", id, suffix)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSuffix(id[1:], suffix))
	if err != nil {
		return nil, fmt.Errorf("feed id %q: %w", id, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("feed id %q: key is %d bytes", id, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Load reads a secret file.
func Load(path string) (*Identity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes secret file contents.
func Parse(b []byte) (*Identity, error) {
	var body bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var f secretFile
	if err := json.Unmarshal(body.Bytes(), &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSecret, err)
	}
	if f.Curve != "ed25519" {
		return nil, fmt.Errorf("%w: unsupported curve %q", ErrBadSecret, f.Curve)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSuffix(f.Private, suffix))
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrBadSecret, err)
	}
	id, err := FromPrivate(ed25519.PrivateKey(raw))
	if err != nil {
		return nil, err
	}
	if f.ID != "" && f.ID != id.ID {
		return nil, fmt.Errorf("%w: id %s does not match private key", ErrBadSecret, f.ID)
	}
	return id, nil
}

// Save writes the identity as a secret file readable only by the owner.
func Save(path string, id *Identity) error {
	f := secretFile{
		Curve:   "ed25519",
		Public:  base64.StdEncoding.EncodeToString(id.Public) + suffix,
		Private: base64.StdEncoding.EncodeToString(id.Private) + suffix,
		ID:      id.ID,
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	header := "# this is your SECRET name.\n# do not share it with anyone.\n\n"
	return os.WriteFile(path, append([]byte(header), append(b, '\n')...), 0o600)
}

// BoxKey returns the key that opens private messages sent to this identity.
func (id *Identity) BoxKey() (privatebox.SecretKey, error) {
	return privatebox.SecretKeyFromEd25519(id.Private)
}

// BoxPublicKey returns the key others seal private messages to.
func (id *Identity) BoxPublicKey() (privatebox.PublicKey, error) {
	return privatebox.PublicKeyFromEd25519(id.Public)
}
