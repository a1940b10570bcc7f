// Package links pulls references and relations out of message content.
package links

import (
	"encoding/base64"
	"strings"

	"ssbsql/internal/value"
)

// Kind is the kind of thing a reference points at.
type Kind int

const (
	KindNone Kind = iota
	KindMessage
	KindFeed
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindFeed:
		return "feed"
	case KindBlob:
		return "blob"
	default:
		return "none"
	}
}

const hashLen = 32

// Classify reports what s references. Only whole strings count: a sigil, the
// base64 of a 32 byte hash or key, and the algorithm suffix.
func Classify(s string) Kind {
	if len(s) < 2 {
		return KindNone
	}
	var (
		kind   Kind
		suffix string
	)
	switch s[0] {
	case '%':
		kind, suffix = KindMessage, ".sha256"
	case '@':
		kind, suffix = KindFeed, ".ed25519"
	case '&':
		kind, suffix = KindBlob, ".sha256"
	default:
		return KindNone
	}
	if !strings.HasSuffix(s, suffix) {
		return KindNone
	}
	body := s[1 : len(s)-len(suffix)]
	if base64.StdEncoding.DecodedLen(len(body)) < hashLen {
		return KindNone
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil || len(raw) != hashLen {
		return KindNone
	}
	return kind
}

// Refs holds the distinct references found in one message, each list in
// order of first appearance.
type Refs struct {
	Messages []string
	Feeds    []string
	Blobs    []string
}

// Empty reports whether no reference was found.
func (r Refs) Empty() bool {
	return len(r.Messages) == 0 && len(r.Feeds) == 0 && len(r.Blobs) == 0
}

// Extract scans structured content, nested objects, arrays and object keys
// included. Content that is not an object, such as a still-boxed string,
// yields nothing.
func Extract(content any) Refs {
	var refs Refs
	obj, ok := content.(value.Object)
	if !ok {
		return refs
	}
	seen := make(map[string]struct{})
	value.Walk(obj, func(v any) {
		s, ok := v.(string)
		if !ok {
			return
		}
		kind := Classify(s)
		if kind == KindNone {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		switch kind {
		case KindMessage:
			refs.Messages = append(refs.Messages, s)
		case KindFeed:
			refs.Feeds = append(refs.Feeds, s)
		case KindBlob:
			refs.Blobs = append(refs.Blobs, s)
		}
	})
	return refs
}

func field(content any, key string) (any, bool) {
	obj, ok := content.(value.Object)
	if !ok {
		return nil, false
	}
	return obj.Get(key)
}

func stringField(content any, key string) (string, bool) {
	v, ok := field(content, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Root returns content.root when it is a string.
func Root(content any) (string, bool) {
	return stringField(content, "root")
}

// Fork returns content.fork when it is a string.
func Fork(content any) (string, bool) {
	return stringField(content, "fork")
}

// Branches returns content.branch as a list. A single string counts as one
// branch; non-string array items are ignored.
func Branches(content any) []string {
	v, ok := field(content, "branch")
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Contact state values.
const (
	StateNeutral   = 0
	StateFollowing = 1
	StateBlocking  = -1
)

// Contact returns the feed a contact message is about and the resulting
// relation. Blocking wins over following.
func Contact(content any) (string, int, bool) {
	contact, ok := stringField(content, "contact")
	if !ok {
		return "", 0, false
	}
	obj := content.(value.Object)
	if blocking, _ := obj.Bool("blocking"); blocking {
		return contact, StateBlocking, true
	}
	if following, _ := obj.Bool("following"); following {
		return contact, StateFollowing, true
	}
	return contact, StateNeutral, true
}

// AboutTarget is what an about message describes.
type AboutTarget struct {
	// Ref is the raw about value.
	Ref  string
	Kind Kind
}

// About returns content.about. Targets that are neither a feed nor a message
// are reported with KindNone so the about row is still recorded.
func About(content any) (AboutTarget, bool) {
	ref, ok := stringField(content, "about")
	if !ok {
		return AboutTarget{}, false
	}
	kind := KindNone
	switch {
	case strings.HasPrefix(ref, "@"):
		kind = KindFeed
	case strings.HasPrefix(ref, "%"):
		kind = KindMessage
	}
	return AboutTarget{Ref: ref, Kind: kind}, true
}
