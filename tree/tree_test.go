package tree

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/ptedit/keygen"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

const sampleJSON = `[
 {"_key":"b1","_type":"block","style":"normal","markDefs":[{"_key":"m1","_type":"link","href":"https://x"}],
  "children":[{"_key":"o0","_type":"someObject","color":"red"},
              {"_key":"s1","_type":"span","text":"Hello","marks":["m1"]},
              {"_key":"o1","_type":"someObject"},
              {"_key":"s2","_type":"span","text":"","marks":[]},
              {"_key":"o2","_type":"someObject"}]},
 {"_key":"img","_type":"blockImage","asset":{"ref":"a"}},
 {"_key":"l1","_type":"block","listItem":"bullet","level":2,"markDefs":[],
  "children":[{"_key":"s3","_type":"span","text":"item","marks":["strong"],"extra":true}]}
]`

func parse(t *testing.T, data string) pt.Document {
	t.Helper()
	doc, err := pt.Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func build(t *testing.T, data string) *Tree {
	t.Helper()
	tr, err := FromArray(parse(t, data))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func fresh() func() string {
	return keygen.NewCounter("k").Key
}

func checkDoc(t *testing.T, tr *Tree, want string) {
	t.Helper()
	if diff := cmp.Diff(parse(t, want).Value(), tr.ToArray().Value()); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	docs := []string{
		sampleJSON,
		`[]`,
		`[{"_key":"b","_type":"block","markDefs":[],"children":[{"_key":"s","_type":"span","text":"","marks":[]}]}]`,
		`[{"_key":"o","_type":"blockImage"},{"_key":"p","_type":"blockImage"}]`,
	}
	for _, d := range docs {
		doc := parse(t, d)
		tr, err := FromArray(doc)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(doc.Value(), tr.ToArray().Value()); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
		again, err := FromArray(tr.ToArray())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tr.Blocks(), again.Blocks()); diff != "" {
			t.Errorf("block order mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFromArrayErrors(t *testing.T) {
	docs := []string{
		`[{"_type":"blockImage"}]`,
		`[{"_key":"a","_type":"blockImage"},{"_key":"a","_type":"blockImage"}]`,
		`[{"_key":"a","_type":"block","markDefs":[{"_key":"s"}],"children":[{"_key":"s","_type":"span","text":""}]}]`,
		`[{"_key":"a","_type":"block","children":[{"_type":"span","text":""}]}]`,
	}
	for _, d := range docs {
		if _, err := FromArray(parse(t, d)); !errors.Is(err, pt.ErrSchemaViolation) {
			t.Errorf("FromArray(%s) = %v, want schema violation", d, err)
		}
	}
}

func TestReads(t *testing.T) {
	tr := build(t, sampleJSON)
	if tr.Len() != 3 {
		t.Errorf("Len() = %d", tr.Len())
	}
	if diff := cmp.Diff([]string{"o0", "s1", "o1", "s2", "o2"}, tr.Children("b1")); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
	if k, ok := tr.NextBlock("b1"); !ok || k != "img" {
		t.Errorf("NextBlock = %q, %v", k, ok)
	}
	if _, ok := tr.PrevBlock("b1"); ok {
		t.Error("first block has a predecessor")
	}
	if k, ok := tr.PrevChild("o1"); !ok || k != "s1" {
		t.Errorf("PrevChild = %q, %v", k, ok)
	}
	if p, ok := tr.Parent("m1"); !ok || p != "b1" {
		t.Errorf("Parent(m1) = %q, %v", p, ok)
	}
	if !tr.Has("m1") || !tr.Has("s3") || tr.Has("zz") {
		t.Error("Has mismatch")
	}
	c, ok := tr.Child("s3")
	if !ok || c.Text != "item" {
		t.Errorf("Child(s3) = %+v, %v", c, ok)
	}
	if i, ok := tr.ChildIndex("b1", "s2"); !ok || i != 3 {
		t.Errorf("ChildIndex = %d, %v", i, ok)
	}
	if _, ok := tr.ChildIndex("l1", "s2"); ok {
		t.Error("child resolved under the wrong block")
	}
	cmpRes, err := selection.Compare(tr,
		selection.Point{Path: selection.ChildPath("l1", "s3")},
		selection.Point{Path: selection.BlockPath("img")})
	if err != nil || cmpRes != 1 {
		t.Errorf("Compare = %d, %v", cmpRes, err)
	}
}

func TestBlockMutations(t *testing.T) {
	tr := build(t, sampleJSON)
	nb := pt.NewEmptyBlock("n1", "ns1", "block", "h1")
	if err := tr.InsertBlock(nb, "img", true); err != nil {
		t.Fatal(err)
	}
	if err := tr.InsertBlock(nb, "", true); !errors.Is(err, pt.ErrSchemaViolation) {
		t.Errorf("duplicate insert: %v", err)
	}
	if err := tr.InsertBlock(pt.NewEmptyBlock("x", "y", "block", ""), "gone", false); !errors.Is(err, pt.ErrStaleReference) {
		t.Errorf("insert at missing ref: %v", err)
	}
	if diff := cmp.Diff([]string{"b1", "n1", "img", "l1"}, tr.Blocks()); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
	if i, _ := tr.BlockIndex("l1"); i != 3 {
		t.Errorf("index not refreshed: %d", i)
	}
	if err := tr.RemoveBlock("b1"); err != nil {
		t.Fatal(err)
	}
	if tr.Has("s1") || tr.Has("m1") {
		t.Error("removed block left keys behind")
	}
	err := tr.SetBlock("l1", func(b *pt.Block) {
		b.Style = "h1"
		b.Level = 1
		b.Key = "other"
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := tr.Block("l1")
	if b.Style != "h1" || b.Level != 1 || b.Key != "l1" || len(b.Children) != 1 {
		t.Errorf("SetBlock result %+v", b)
	}
	if tr.FirstBlock() != "n1" || tr.LastBlock() != "l1" {
		t.Errorf("ends %q %q", tr.FirstBlock(), tr.LastBlock())
	}
}

func TestTextMutations(t *testing.T) {
	tr := build(t, `[{"_key":"b","_type":"block","markDefs":[],"children":[{"_key":"s","_type":"span","text":"héllo","marks":[]}]}]`)
	if err := tr.InsertText("s", 2, "XY"); err != nil {
		t.Fatal(err)
	}
	if err := tr.DeleteText("s", 0, 1); err != nil {
		t.Fatal(err)
	}
	c, _ := tr.Child("s")
	if c.Text != "éXYllo" {
		t.Errorf("text = %q", c.Text)
	}
	if err := tr.InsertText("s", 99, "x"); !errors.Is(err, pt.ErrInvalidOperation) {
		t.Errorf("out of range insert: %v", err)
	}
	if err := tr.InsertText("gone", 0, "x"); !errors.Is(err, pt.ErrStaleReference) {
		t.Errorf("missing span: %v", err)
	}
	if err := tr.SetMarks("s", []string{"strong"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.SplitSpan("s", 3, "s2"); err != nil {
		t.Fatal(err)
	}
	checkDoc(t, tr, `[{"_key":"b","_type":"block","markDefs":[],"children":[
		{"_key":"s","_type":"span","text":"éXY","marks":["strong"]},
		{"_key":"s2","_type":"span","text":"llo","marks":["strong"]}]}]`)
}

func TestSplitBlock(t *testing.T) {
	tr := build(t, `[{"_key":"b1","_type":"block","style":"h1","markDefs":[{"_key":"m1","_type":"link"},{"_key":"m2","_type":"link"}],
		"children":[{"_key":"s1","_type":"span","text":"Hello","marks":["m1"]},{"_key":"o1","_type":"x"},{"_key":"s2","_type":"span","text":"end","marks":["m2"]}]}]`)
	nb, caret, err := tr.SplitBlock("s1", 2, fresh())
	if err != nil {
		t.Fatal(err)
	}
	if nb != "k2" || caret != "k1" {
		t.Errorf("SplitBlock = %q, %q", nb, caret)
	}
	checkDoc(t, tr, `[
		{"_key":"b1","_type":"block","style":"h1","markDefs":[{"_key":"m1","_type":"link"}],
		 "children":[{"_key":"s1","_type":"span","text":"He","marks":["m1"]}]},
		{"_key":"k2","_type":"block","style":"h1","markDefs":[{"_key":"k3","_type":"link"},{"_key":"m2","_type":"link"}],
		 "children":[{"_key":"k1","_type":"span","text":"llo","marks":["k3"]},{"_key":"o1","_type":"x"},{"_key":"s2","_type":"span","text":"end","marks":["m2"]}]}]`)
	if p, _ := tr.Parent("m2"); p != "k2" {
		t.Errorf("moved mark definition still owned by %q", p)
	}

	// splitting before the first child leaves a placeholder behind
	tr = build(t, `[{"_key":"b1","_type":"block","markDefs":[],"children":[{"_key":"o1","_type":"x"}]}]`)
	nb, caret, err = tr.SplitBlock("o1", 0, fresh())
	if err != nil {
		t.Fatal(err)
	}
	if caret != "o1" {
		t.Errorf("caret = %q", caret)
	}
	checkDoc(t, tr, `[
		{"_key":"b1","_type":"block","markDefs":[],"children":[{"_key":"k2","_type":"span","text":"","marks":[]}]},
		{"_key":"`+nb+`","_type":"block","markDefs":[],"children":[{"_key":"o1","_type":"x"}]}]`)
	if _, _, err := tr.SplitBlock("o1", 1, fresh()); !errors.Is(err, pt.ErrInvalidOperation) {
		t.Errorf("split inside inline object: %v", err)
	}
}

func TestMergeBlocks(t *testing.T) {
	tr := build(t, `[
		{"_key":"a","_type":"block","markDefs":[],"children":[{"_key":"s1","_type":"span","text":"x","marks":[]}]},
		{"_key":"b","_type":"block","markDefs":[{"_key":"m","_type":"link"}],"children":[{"_key":"s2","_type":"span","text":"y","marks":["m"]}]},
		{"_key":"c","_type":"block","markDefs":[],"children":[{"_key":"s3","_type":"span","text":"z","marks":[]}]}]`)
	if err := tr.MergeBlocks("a", "c"); !errors.Is(err, pt.ErrInvalidOperation) {
		t.Errorf("non-adjacent merge: %v", err)
	}
	if err := tr.MergeBlocks("b", "a"); !errors.Is(err, pt.ErrInvalidOperation) {
		t.Errorf("reversed merge: %v", err)
	}
	if err := tr.MergeBlocks("a", "b"); err != nil {
		t.Fatal(err)
	}
	checkDoc(t, tr, `[
		{"_key":"a","_type":"block","markDefs":[{"_key":"m","_type":"link"}],
		 "children":[{"_key":"s1","_type":"span","text":"x","marks":[]},{"_key":"s2","_type":"span","text":"y","marks":["m"]}]},
		{"_key":"c","_type":"block","markDefs":[],"children":[{"_key":"s3","_type":"span","text":"z","marks":[]}]}]`)
	if p, _ := tr.Parent("s2"); p != "a" {
		t.Errorf("Parent(s2) = %q", p)
	}
}

func TestClean(t *testing.T) {
	tr := build(t, `[{"_key":"b","_type":"block","markDefs":[],"children":[
		{"_key":"o0","_type":"x"},
		{"_key":"e0","_type":"span","text":"","marks":[]},
		{"_key":"o1","_type":"x"},
		{"_key":"a","_type":"span","text":"ab","marks":["strong"]},
		{"_key":"e1","_type":"span","text":"","marks":[]},
		{"_key":"c","_type":"span","text":"cd","marks":["strong"]},
		{"_key":"d","_type":"span","text":"ef","marks":[]},
		{"_key":"o2","_type":"x"},
		{"_key":"e2","_type":"span","text":"","marks":["em"]}]}]`)
	remaps, err := tr.Clean("b", fresh())
	if err != nil {
		t.Fatal(err)
	}
	checkDoc(t, tr, `[{"_key":"b","_type":"block","markDefs":[],"children":[
		{"_key":"o0","_type":"x"},
		{"_key":"e0","_type":"span","text":"","marks":[]},
		{"_key":"o1","_type":"x"},
		{"_key":"a","_type":"span","text":"abcd","marks":["strong"]},
		{"_key":"d","_type":"span","text":"ef","marks":[]},
		{"_key":"o2","_type":"x"},
		{"_key":"e2","_type":"span","text":"","marks":["em"]}]}]`)
	if k, o := Follow(remaps, "c", 1); k != "a" || o != 3 {
		t.Errorf("Follow(c, 1) = %q, %d", k, o)
	}
	if k, o := Follow(remaps, "e1", 0); k != "a" || o != 2 {
		t.Errorf("Follow(e1, 0) = %q, %d", k, o)
	}
	if k, o := Follow(remaps, "d", 1); k != "d" || o != 1 {
		t.Errorf("Follow(d, 1) = %q, %d", k, o)
	}

	// the boundary case: a block emptied by removal gets a placeholder
	tr = build(t, `[{"_key":"b","_type":"block","markDefs":[],"children":[{"_key":"o","_type":"x"}]}]`)
	if err := tr.RemoveChild("o"); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Clean("b", fresh()); err != nil {
		t.Fatal(err)
	}
	b, _ := tr.Block("b")
	if !b.IsPlaceholder() {
		t.Errorf("block not replaced by placeholder: %+v", b)
	}
}

func TestMarkDefs(t *testing.T) {
	tr := build(t, `[{"_key":"b","_type":"block","markDefs":[],"children":[{"_key":"s","_type":"span","text":"x","marks":["em"]}]}]`)
	if err := tr.AddMarkDef("b", pt.MarkDef{Key: "m", Type: "link", Fields: map[string]any{"href": "h"}}); err != nil {
		t.Fatal(err)
	}
	if err := tr.AddMarkDef("b", pt.MarkDef{Key: "s", Type: "link"}); !errors.Is(err, pt.ErrSchemaViolation) {
		t.Errorf("colliding mark definition key: %v", err)
	}
	if err := tr.SetMarks("s", []string{"em", "m"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.RemoveMarkDefs("b", "m"); err != nil {
		t.Fatal(err)
	}
	checkDoc(t, tr, `[{"_key":"b","_type":"block","markDefs":[],"children":[{"_key":"s","_type":"span","text":"x","marks":["em"]}]}]`)
	if err := tr.RemoveMarkDefs("b", "m"); !errors.Is(err, pt.ErrStaleReference) {
		t.Errorf("removing a missing definition: %v", err)
	}
}

func TestDecorations(t *testing.T) {
	tr := build(t, sampleJSON)
	before := tr.ToArray()
	if err := tr.Decorate("s1", "caret"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Decorate("s1", "hit"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Decorate("gone", "caret"); !errors.Is(err, pt.ErrStaleReference) {
		t.Errorf("decorating a missing node: %v", err)
	}
	if diff := cmp.Diff([]string{"caret", "hit"}, tr.Decorations("s1")); diff != "" {
		t.Errorf("decorations mismatch (-want +got):\n%s", diff)
	}
	if !pt.Equal(before, tr.ToArray()) {
		t.Error("decorations reached the array")
	}
	tr.Undecorate("s1", "hit")
	if got := tr.Decorations("s1"); len(got) != 1 {
		t.Errorf("after Undecorate: %v", got)
	}
	if err := tr.RemoveBlock("b1"); err != nil {
		t.Fatal(err)
	}
	if got := tr.Decorations("s1"); len(got) != 0 {
		t.Errorf("decorations survived their node: %v", got)
	}
	tr.ClearDecorations()
}
