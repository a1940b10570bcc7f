package value

import "testing"

func TestObjectKeepsInsertionOrder(t *testing.T) {
	var o Object
	o = o.Set("type", "post")
	o = o.Set("text", "hello")
	o = o.Set("root", nil)
	o = o.Set("type", "vote")

	keys := o.Keys()
	if len(keys) != 3 || keys[0] != "type" || keys[1] != "text" || keys[2] != "root" {
		t.Fatalf("unexpected key order: %v", keys)
	}
	if typ, ok := Type(o); !ok || typ != "vote" {
		t.Fatalf("unexpected type: %q %v", typ, ok)
	}
	if !o.Has("root") {
		t.Fatalf("expected root to be present")
	}
	if _, ok := o.String("root"); ok {
		t.Fatalf("null root must not read as a string")
	}
}

func TestWalkVisitsKeysAndNestedValues(t *testing.T) {
	o := Object{
		{Key: "a", Value: []any{"x", Object{{Key: "b", Value: "y"}}}},
		{Key: "c", Value: 1.0},
	}
	var strs []string
	Walk(o, func(v any) {
		if s, ok := v.(string); ok {
			strs = append(strs, s)
		}
	})
	want := []string{"a", "x", "b", "y", "c"}
	if len(strs) != len(want) {
		t.Fatalf("got %v want %v", strs, want)
	}
	for i := range want {
		if strs[i] != want[i] {
			t.Fatalf("got %v want %v", strs, want)
		}
	}
}

func TestTypeOfStringContent(t *testing.T) {
	if _, ok := Type("abc.box"); ok {
		t.Fatalf("string content has no type")
	}
}
