package pt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const helloJSON = `[
  {"_key": "123", "_type": "myTestBlockType", "style": "normal", "markDefs": [{"_key": "m1", "_type": "link", "href": "https://example.com"}],
   "children": [
     {"_key": "567", "_type": "span", "text": "Hello", "marks": ["strong", "m1"]},
     {"_key": "568", "_type": "someObject", "color": "red"},
     {"_key": "569", "_type": "span", "text": "", "marks": []}
   ]},
  {"_key": "img", "_type": "blockImage", "asset": {"_ref": "image-1"}},
  {"_key": "l1", "_type": "block", "listItem": "bullet", "level": 2, "markDefs": [],
   "children": [{"_key": "s9", "_type": "span", "text": "item", "marks": []}]}
]`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(helloJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc) != 3 {
		t.Fatalf("got %d blocks, want 3", len(doc))
	}
	b := doc[0]
	if b.Kind != TextBlock || b.Style != "normal" || len(b.Children) != 3 {
		t.Errorf("unexpected first block %+v", b)
	}
	if got := b.Children[1]; got.Kind != InlineObject || got.Fields["color"] != "red" {
		t.Errorf("unexpected inline object %+v", got)
	}
	md, ok := b.MarkDef("m1")
	if !ok || md.Fields["href"] != "https://example.com" {
		t.Errorf("markDef m1 not decoded: %+v", b.MarkDefs)
	}
	if doc[1].Kind != ObjectBlock || doc[1].Type != "blockImage" {
		t.Errorf("unexpected object block %+v", doc[1])
	}
	if doc[2].ListItem != "bullet" || doc[2].Level != 2 {
		t.Errorf("list attributes not decoded: %+v", doc[2])
	}
	if got, want := b.Text(), "Hello"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(helloJSON))
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var want, got any
	if err := json.Unmarshal([]byte(helloJSON), &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromValueErrors(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"not an array", map[string]any{}},
		{"block not an object", []any{"x"}},
		{"bad key", []any{map[string]any{"_key": 1.0, "children": []any{}}}},
		{"bad marks", []any{map[string]any{"children": []any{
			map[string]any{"_type": "span", "marks": []any{3.0}},
		}}}},
		{"fractional level", []any{map[string]any{"children": []any{}, "level": 1.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromValue(tt.in)
			if !errors.Is(err, ErrSchemaViolation) {
				t.Errorf("got %v, want schema violation", err)
			}
		})
	}
}

func TestNilDocument(t *testing.T) {
	doc, err := Parse([]byte("null"))
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Errorf("got %v, want nil", doc)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("got %s, want []", data)
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc, err := Parse([]byte(helloJSON))
	if err != nil {
		t.Fatal(err)
	}
	c := doc.Clone()
	c[0].Children[0].Marks[0] = "em"
	c[0].MarkDefs[0].Fields["href"] = "changed"
	c[1].Fields["asset"].(map[string]any)["_ref"] = "changed"
	if doc[0].Children[0].Marks[0] != "strong" {
		t.Error("marks shared with clone")
	}
	if doc[0].MarkDefs[0].Fields["href"] != "https://example.com" {
		t.Error("markDef fields shared with clone")
	}
	if doc[1].Fields["asset"].(map[string]any)["_ref"] != "image-1" {
		t.Error("nested payload shared with clone")
	}
	if Equal(doc, c) {
		t.Error("Equal reports modified clone equal")
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Parse([]byte(helloJSON))
	if err != nil {
		t.Fatal(err)
	}
	b := a.Clone()
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("equal documents have different fingerprints")
	}
	b[0].Children[0].Text = "Hello!"
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("different documents share a fingerprint")
	}
	if got := len(Fingerprint(nil)); got != 64 {
		t.Errorf("fingerprint length %d, want 64", got)
	}
}

func TestKeysAndPlaceholder(t *testing.T) {
	doc, err := Parse([]byte(helloJSON))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"123", "m1", "567", "568", "569", "img", "l1", "s9"}
	if diff := cmp.Diff(want, doc.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	empty := NewEmptyBlock("b", "s", "", "normal")
	if !empty.IsPlaceholder() {
		t.Error("canonical empty block is not a placeholder")
	}
	if doc[0].IsPlaceholder() {
		t.Error("non-empty block reported as placeholder")
	}
}
