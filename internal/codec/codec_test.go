package codec

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ssbsql/internal/models"
	"ssbsql/internal/value"
)

func strPtr(v string) *string      { return &v }
func floatPtr(v float64) *float64 { return &v }

func sampleMessage() *models.Message {
	return &models.Message{
		Key: "%k",
		Value: models.Value{
			Author:    "@a",
			Sequence:  1,
			Timestamp: 1543958997985,
			Hash:      "sha256",
			Content: value.Object{
				{Key: "type", Value: "post"},
				{Key: "text", Value: "hi\n"},
			},
			Signature: "sig",
		},
	}
}

func TestEncodeLegacyLayout(t *testing.T) {
	got, err := EncodeLegacy(sampleMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{
  "key": "%k",
  "value": {
    "previous": null,
    "author": "@a",
    "sequence": 1,
    "timestamp": 1543958997985,
    "hash": "sha256",
    "content": {
      "type": "post",
      "text": "hi\n"
    },
    "signature": "sig"
  }
}`
	if string(got) != want {
		t.Fatalf("unexpected layout:\n%s\nwant:\n%s", got, want)
	}
}

func TestEncodeLegacyWithReceivedTimestampAndEmptyCollections(t *testing.T) {
	m := sampleMessage()
	m.Value.Previous = strPtr("%prev")
	m.Value.Sequence = 2
	m.Value.Content = value.Object{
		{Key: "type", Value: "post"},
		{Key: "mentions", Value: []any{}},
		{Key: "reply", Value: value.Object{}},
	}
	m.Timestamp = floatPtr(1543959001933.5)

	got, err := EncodeLegacy(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, fragment := range []string{
		`"previous": "%prev"`,
		`"mentions": []`,
		`"reply": {}`,
		"\n  \"timestamp\": 1543959001933.5\n}",
	} {
		if !strings.Contains(string(got), fragment) {
			t.Fatalf("expected %q in:\n%s", fragment, got)
		}
	}
}

func TestFormatNumberMatchesECMAScript(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{0.1, "0.1"},
		{1543958997985, "1543958997985"},
		{1543958997985.5, "1543958997985.5"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{2.5e25, "2.5e+25"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1.5e-7, "1.5e-7"},
		{123.456, "123.456"},
	}
	for _, tc := range cases {
		got, err := formatNumber(tc.in)
		if err != nil {
			t.Fatalf("format %v: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("format %v = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteStringEscapesLikeJSONStringify(t *testing.T) {
	var buf bytes.Buffer
	writeString(&buf, "a\"b\\c\u0001<&> é\t")
	want := `"a\"b\\c\u0001<&>` + " " + `é\t"`
	if buf.String() != want {
		t.Fatalf("got %s want %s", buf.String(), want)
	}
}

func TestRoundTripBothFormats(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		m := randomMessage(rng, i)
		for _, f := range []Format{FormatLegacy, FormatCompact} {
			first, err := Encode(m, f)
			if err != nil {
				t.Fatalf("%s encode #%d: %v", f, i, err)
			}
			decoded, err := Decode(first, f)
			if err != nil {
				t.Fatalf("%s decode #%d: %v\n%s", f, i, err, first)
			}
			if diff := cmp.Diff(m, decoded); diff != "" {
				t.Fatalf("%s round trip #%d mismatch (-want +got):\n%s", f, i, diff)
			}
			second, err := Encode(decoded, f)
			if err != nil {
				t.Fatalf("%s re-encode #%d: %v", f, i, err)
			}
			if !bytes.Equal(first, second) {
				t.Fatalf("%s re-encode #%d not byte identical", f, i)
			}
		}
	}
}

func TestDecodeAutoDetectsFormat(t *testing.T) {
	m := sampleMessage()
	legacy, _ := EncodeLegacy(m)
	compact, _ := EncodeCompact(m)
	if Detect(legacy) != FormatLegacy || Detect(compact) != FormatCompact {
		t.Fatalf("format detection failed")
	}
	for _, data := range [][]byte{legacy, compact} {
		got, err := Decode(data, FormatAuto)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Key != m.Key {
			t.Fatalf("unexpected key %q", got.Key)
		}
	}
}

func TestDecodeLegacyRejectsMalformedInput(t *testing.T) {
	valid, _ := EncodeLegacy(sampleMessage())
	swapped := strings.Replace(string(valid), `"author": "@a",
    "sequence": 1,`, `"sequence": 1,
    "author": "@a",`, 1)

	cases := map[string]string{
		"empty":             "",
		"truncated":         string(valid[:len(valid)/2]),
		"unbalanced braces": string(valid) + "}",
		"trailing data":     string(valid) + " {}",
		"wrong field order": swapped,
		"not an object":     `["key"]`,
		"zero sequence":     strings.Replace(string(valid), `"sequence": 1`, `"sequence": 0`, 1),
		"numeric content":   strings.Replace(string(valid), `"content": {`, `"content": 5, "x": {`, 1),
		"duplicate key":     `{"key": "a", "key": "b"}`,
	}
	for name, in := range cases {
		if _, err := DecodeLegacy([]byte(in)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("%s: expected ErrMalformedMessage, got %v", name, err)
		}
	}
}

func TestDecodeCompactRejectsMalformedInput(t *testing.T) {
	valid, _ := EncodeCompact(sampleMessage())
	cases := map[string][]byte{
		"empty":     {},
		"truncated": valid[:len(valid)-3],
		"trailing":  append(append([]byte{}, valid...), 0xc0),
		"scalar":    {0x01},
	}
	for name, in := range cases {
		if _, err := DecodeCompact(in); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("%s: expected ErrMalformedMessage, got %v", name, err)
		}
	}
}

func TestStringContentIsPreservedOpaque(t *testing.T) {
	m := sampleMessage()
	m.Value.Content = "c2VjcmV0.box"
	for _, f := range []Format{FormatLegacy, FormatCompact} {
		data, err := Encode(m, f)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(data, f)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Value.Content != "c2VjcmV0.box" {
			t.Fatalf("%s: content changed: %#v", f, got.Value.Content)
		}
	}
}

func TestDecodeCompactAsync(t *testing.T) {
	data, _ := EncodeCompact(sampleMessage())
	res := <-DecodeCompactAsync(context.Background(), data)
	if res.Err != nil {
		t.Fatalf("async decode: %v", res.Err)
	}
	if res.Message.Value.Author != "@a" {
		t.Fatalf("unexpected author %q", res.Message.Value.Author)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = <-DecodeCompactAsync(ctx, data)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
}

type feedEntry struct {
	Feed string
	Seq  int64
}

func TestDecodeAsUsesInjectedConstructor(t *testing.T) {
	data, _ := EncodeLegacy(sampleMessage())
	got, err := DecodeAs(data, FormatAuto, func(m *models.Message) (feedEntry, error) {
		return feedEntry{Feed: m.Value.Author, Seq: m.Value.Sequence}, nil
	})
	if err != nil {
		t.Fatalf("decode as: %v", err)
	}
	if got != (feedEntry{Feed: "@a", Seq: 1}) {
		t.Fatalf("unexpected entry %+v", got)
	}

	if _, err := DecodeAs([]byte("{"), FormatAuto, func(m *models.Message) (feedEntry, error) {
		t.Fatalf("constructor must not run for malformed input")
		return feedEntry{}, nil
	}); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestComputeKeyHashesLegacyValue(t *testing.T) {
	v := sampleMessage().Value
	b, err := LegacyValue(v)
	if err != nil {
		t.Fatalf("legacy value: %v", err)
	}
	sum := sha256.Sum256(b)
	want := "%" + base64.StdEncoding.EncodeToString(sum[:]) + ".sha256"

	got, err := ComputeKey(v)
	if err != nil {
		t.Fatalf("compute key: %v", err)
	}
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}

	v.Content = value.Object{{Key: "type", Value: "post"}, {Key: "text", Value: "é"}}
	b, _ = LegacyValue(v)
	latin := bytes.Replace(b, []byte("é"), []byte{0xe9}, 1)
	sum = sha256.Sum256(latin)
	want = "%" + base64.StdEncoding.EncodeToString(sum[:]) + ".sha256"
	if got, _ := ComputeKey(v); got != want {
		t.Fatalf("non-ascii key: got %s want %s", got, want)
	}
}

func randomMessage(rng *rand.Rand, i int) *models.Message {
	m := &models.Message{
		Key: fmt.Sprintf("%%key%d=.sha256", i),
		Value: models.Value{
			Author:    fmt.Sprintf("@feed%d=.ed25519", rng.Intn(5)),
			Sequence:  int64(i + 1),
			Timestamp: float64(1500000000000 + rng.Int63n(1e11)),
			Hash:      "sha256",
			Signature: fmt.Sprintf("sig%d.sig.ed25519", i),
		},
	}
	if i > 0 {
		m.Value.Previous = strPtr(fmt.Sprintf("%%key%d=.sha256", i-1))
	}
	if rng.Intn(4) == 0 {
		m.Value.Content = randomString(rng) + ".box"
	} else {
		obj := value.Object{{Key: "type", Value: "post"}}
		for j := 0; j < rng.Intn(5); j++ {
			obj = append(obj, value.Field{Key: fmt.Sprintf("f%d", j), Value: randomValue(rng, 0)})
		}
		m.Value.Content = obj
	}
	if rng.Intn(2) == 0 {
		m.Timestamp = floatPtr(float64(rng.Int63n(1e13)) / 7)
	}
	return m
}

func randomValue(rng *rand.Rand, depth int) any {
	choice := rng.Intn(7)
	if depth > 3 {
		choice = rng.Intn(4)
	}
	switch choice {
	case 0:
		return nil
	case 1:
		return rng.Intn(2) == 0
	case 2:
		return rng.NormFloat64() * 1e6
	case 3:
		return randomString(rng)
	case 4:
		arr := []any{}
		for j := 0; j < rng.Intn(4); j++ {
			arr = append(arr, randomValue(rng, depth+1))
		}
		return arr
	default:
		obj := value.Object{}
		for j := 0; j < rng.Intn(4); j++ {
			obj = append(obj, value.Field{Key: fmt.Sprintf("k%d", j), Value: randomValue(rng, depth+1)})
		}
		return obj
	}
}

func randomString(rng *rand.Rand) string {
	alphabet := []rune("abcXYZ019 \"\\\n\t\u0001é漢🙂/+=%@&.")
	n := rng.Intn(12)
	out := make([]rune, n)
	for i := range out {
		out[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(out)
}
