package validate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/ptedit/keygen"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/schema"
	"github.com/signadot/ptedit/selection"
)

const testSchema = `
block:
  name: block
  styles: [normal, h1]
  lists: [bullet]
  decorators: [strong, em]
  annotations:
    - name: link
      fields: [{name: href, type: string, required: true}]
  inlineObjects:
    - name: someObject
      fields: [{name: color, type: string}]
blockObjects:
  - name: blockImage
    fields: [{name: width, type: number}]
`

func testSchemaT(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(testSchema))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func parse(t *testing.T, data string) pt.Document {
	t.Helper()
	doc, err := pt.Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

const validDoc = `[
 {"_key":"b1","_type":"block","style":"normal","markDefs":[{"_key":"m1","_type":"link","href":"https://x"}],
  "children":[{"_key":"s1","_type":"span","text":"Hi","marks":["strong","m1"]},
              {"_key":"o1","_type":"someObject","color":"red"},
              {"_key":"s2","_type":"span","text":"","marks":[]}]},
 {"_key":"img","_type":"blockImage","width":100},
 {"_key":"l1","_type":"block","listItem":"bullet","level":1,"markDefs":[],
  "children":[{"_key":"s3","_type":"span","text":"item","marks":[]}]}
]`

func TestValidateValid(t *testing.T) {
	s := testSchemaT(t)
	res := Validate(parse(t, validDoc), s)
	if !res.Valid() {
		t.Fatalf("unexpected issues: %v", res.Issues)
	}
	if res.Err() != nil {
		t.Error("valid result has an error")
	}
	if !Validate(nil, s).Valid() {
		t.Error("empty document reported invalid")
	}
}

func TestValidateIssues(t *testing.T) {
	s := testSchemaT(t)
	b1 := selection.BlockPath("b1")
	s1 := selection.ChildPath("b1", "s1")
	tests := []struct {
		name string
		doc  string
		want []Issue
	}{
		{"dangling annotation mark", `[{"_key":"b1","_type":"block","markDefs":[],
			"children":[{"_key":"s1","_type":"span","text":"x","marks":["m9"]}]}]`,
			[]Issue{{Path: s1, Kind: SchemaViolation, Reason: `unresolvable mark "m9"`}}},
		{"undeclared decorator and duplicate", `[{"_key":"b1","_type":"block","markDefs":[],
			"children":[{"_key":"s1","_type":"span","text":"x","marks":["strong","strong","blink"]}]}]`,
			[]Issue{
				{Path: s1, Kind: SchemaViolation, Reason: `duplicate mark "strong"`},
				{Path: s1, Kind: SchemaViolation, Reason: `unresolvable mark "blink"`},
			}},
		{"mark of another block", `[
			{"_key":"b0","_type":"block","markDefs":[{"_key":"m1","_type":"link","href":"h"}],
			 "children":[{"_key":"s0","_type":"span","text":"","marks":[]}]},
			{"_key":"b1","_type":"block","markDefs":[],
			 "children":[{"_key":"s1","_type":"span","text":"x","marks":["m1"]}]}]`,
			[]Issue{{Path: s1, Kind: SchemaViolation, Reason: `unresolvable mark "m1"`}}},
		{"duplicate keys across kinds", `[{"_key":"b1","_type":"block","markDefs":[],
			"children":[{"_key":"b1","_type":"span","text":"x","marks":[]}]}]`,
			[]Issue{{Path: selection.ChildPath("b1", "b1"), Kind: SchemaViolation, Reason: `children[0]: duplicate key "b1"`}}},
		{"missing keys", `[{"_type":"block","markDefs":[],"children":[{"_key":"s1","_type":"span","text":"","marks":[]}]}]`,
			[]Issue{{Path: nil, Kind: SchemaViolation, Reason: "block 0: missing _key"}}},
		{"empty children", `[{"_key":"b1","_type":"block","markDefs":[],"children":[]}]`,
			[]Issue{{Path: b1, Kind: SchemaViolation, Reason: "text block has no children"}}},
		{"undeclared style and list level", `[{"_key":"b1","_type":"block","style":"h9","listItem":"bullet","level":0,"markDefs":[],
			"children":[{"_key":"s1","_type":"span","text":"","marks":[]}]}]`,
			[]Issue{
				{Path: b1.Append(selection.FieldSegment("style")), Kind: SchemaViolation, Reason: `undeclared style "h9"`},
				{Path: b1.Append(selection.FieldSegment("level")), Kind: SchemaViolation, Reason: "list level 0 must be at least 1"},
			}},
		{"undeclared types", `[{"_key":"v","_type":"video"},
			{"_key":"b1","_type":"block","markDefs":[{"_key":"m1","_type":"comment"}],
			 "children":[{"_key":"o1","_type":"widget"}]}]`,
			[]Issue{
				{Path: selection.BlockPath("v"), Kind: SchemaViolation, Reason: `undeclared block type "video"`},
				{Path: b1.Append(selection.FieldSegment("markDefs"), selection.KeySegment("m1")), Kind: SchemaViolation, Reason: `undeclared annotation type "comment"`},
				{Path: selection.ChildPath("b1", "o1"), Kind: SchemaViolation, Reason: `undeclared inline object type "widget"`},
			}},
		{"field shapes", `[{"_key":"img","_type":"blockImage","width":"wide"},
			{"_key":"b1","_type":"block","markDefs":[{"_key":"m1","_type":"link"}],
			 "children":[{"_key":"o1","_type":"someObject","size":3}]}]`,
			[]Issue{
				{Path: selection.BlockPath("img").Append(selection.FieldSegment("width")), Kind: SchemaViolation, Reason: "expected number, got string"},
				{Path: b1.Append(selection.FieldSegment("markDefs"), selection.KeySegment("m1"), selection.FieldSegment("href")), Kind: SchemaViolation, Reason: "required field is missing"},
				{Path: selection.ChildPath("b1", "o1").Append(selection.FieldSegment("size")), Kind: SchemaViolation, Reason: "undeclared field"},
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(parse(t, tt.doc), s)
			if diff := cmp.Diff(tt.want, res.Issues); diff != "" {
				t.Errorf("issues mismatch (-want +got):\n%s", diff)
			}
			if !errors.Is(res.Err(), pt.ErrSchemaViolation) {
				t.Errorf("Err() = %v", res.Err())
			}
		})
	}
}

func TestNormalizeScenarioB(t *testing.T) {
	s := testSchemaT(t)
	in := parse(t, `[{"_key":"b1","_type":"block","style":"normal","markDefs":[{"_key":"m1","_type":"link","href":"h"}],
		"children":[{"_key":"s1","_type":"span","text":"x","marks":["m1","m2","em"]}]}]`)

	res := Validate(in, s)
	if len(res.Issues) != 1 || !res.Issues[0].Path.Equal(selection.ChildPath("b1", "s1")) {
		t.Fatalf("want one issue at the span, got %v", res.Issues)
	}

	out, repaired := Normalize(in, s, keygen.NewCounter("k"))
	if !repaired {
		t.Error("not reported as repaired")
	}
	if diff := cmp.Diff([]string{"m1", "em"}, out[0].Children[0].Marks); diff != "" {
		t.Errorf("marks mismatch (-want +got):\n%s", diff)
	}
	if got := in[0].Children[0].Marks; len(got) != 3 {
		t.Errorf("input modified: %v", got)
	}
	if r := Validate(out, s); !r.Valid() {
		t.Errorf("normalized document invalid: %v", r.Issues)
	}
}

func TestNormalizeRepairs(t *testing.T) {
	s := testSchemaT(t)
	in := parse(t, `[
		{"_type":"block","style":"h9","listItem":"roman","level":3,"markDefs":[],"children":[]},
		{"_key":"b2","_type":"block","listItem":"bullet","markDefs":[{"_type":"link","href":"h"}],
		 "children":[{"_key":"b2","_type":"span","text":"x","marks":[]},{"_key":"1","_type":"span","text":"y","marks":[]}]},
		{"_key":"b3","markDefs":[],"children":[{"_key":"s9","_type":"span","text":"","marks":[]}]}
	]`)
	out, repaired := Normalize(in, s, keygen.NewCounter(""))
	if !repaired {
		t.Fatal("not reported as repaired")
	}
	want := `[
		{"_key":"2","_type":"block","style":"normal","markDefs":[],
		 "children":[{"_key":"3","_type":"span","text":"","marks":[]}]},
		{"_key":"b2","_type":"block","listItem":"bullet","level":1,"markDefs":[{"_key":"4","_type":"link","href":"h"}],
		 "children":[{"_key":"5","_type":"span","text":"x","marks":[]},{"_key":"1","_type":"span","text":"y","marks":[]}]},
		{"_key":"b3","_type":"block","markDefs":[],"children":[{"_key":"s9","_type":"span","text":"","marks":[]}]}
	]`
	if diff := cmp.Diff(parse(t, want).Value(), out.Value()); diff != "" {
		t.Errorf("normalize mismatch (-want +got):\n%s", diff)
	}
	if r := Validate(out, s); !r.Valid() {
		t.Errorf("normalized document invalid: %v", r.Issues)
	}
}

func TestNormalizeRekeyedMarkDef(t *testing.T) {
	s := testSchemaT(t)
	in := parse(t, `[{"_key":"m","_type":"block","style":"normal","markDefs":[{"_key":"m","_type":"link","href":"h"}],
		"children":[{"_key":"s1","_type":"span","text":"x","marks":["m","em"]}]}]`)
	out, repaired := Normalize(in, s, keygen.NewCounter("n"))
	if !repaired {
		t.Fatal("not reported as repaired")
	}
	if got := out[0].MarkDefs[0].Key; got != "n1" {
		t.Fatalf("markDef key = %q", got)
	}
	if diff := cmp.Diff([]string{"n1", "em"}, out[0].Children[0].Marks); diff != "" {
		t.Errorf("marks mismatch (-want +got):\n%s", diff)
	}
	if r := Validate(out, s); !r.Valid() {
		t.Errorf("normalized document invalid: %v", r.Issues)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	s := testSchemaT(t)
	for _, in := range []pt.Document{nil, {}} {
		out, repaired := Normalize(in, s, keygen.NewCounter(""))
		if repaired {
			t.Error("empty document reported as repaired")
		}
		if len(out) != 1 || !out[0].IsPlaceholder() || out[0].Style != "normal" || out[0].Type != "block" {
			t.Errorf("unexpected empty document %+v", out)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	s := testSchemaT(t)
	docs := []string{
		validDoc,
		`[{"_key":"b1","markDefs":[],"children":[{"_type":"span","text":"x","marks":["zz","strong"]}]}]`,
		`[{"_key":"a","_type":"block","children":[]},{"_key":"a","_type":"blockImage"}]`,
		`[{"_key":"v","_type":"video"}]`,
		`[]`,
	}
	for _, d := range docs {
		once, _ := Normalize(parse(t, d), s, keygen.NewCounter("n"))
		twice, repaired := Normalize(once, s, keygen.NewCounter("x"))
		if repaired {
			t.Errorf("second pass repaired %s", d)
		}
		if !pt.Equal(once, twice) {
			t.Errorf("not idempotent for %s", d)
		}
	}
}

func TestNormalizeLeavesUnrepairable(t *testing.T) {
	s := testSchemaT(t)
	in := parse(t, `[{"_key":"v","_type":"video","src":"x"}]`)
	out, repaired := Normalize(in, s, keygen.NewCounter(""))
	if repaired {
		t.Error("unrepairable document reported repaired")
	}
	if !pt.Equal(in, out) {
		t.Error("unrepairable data changed")
	}
	if Validate(out, s).Valid() {
		t.Error("undeclared block type not reported")
	}
}
