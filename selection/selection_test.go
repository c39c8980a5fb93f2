package selection

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signadot/ptedit/pt"
)

func testDoc() pt.Document {
	return pt.Document{
		{Kind: pt.TextBlock, Key: "b1", Type: "block", Children: []pt.Child{
			pt.NewSpan("s1", "Hello"),
			pt.NewInlineObject("i1", "someObject", nil),
			pt.NewSpan("s2", " world"),
		}},
		{Kind: pt.ObjectBlock, Key: "img", Type: "blockImage"},
		{Kind: pt.TextBlock, Key: "b2", Type: "block", Children: []pt.Child{
			pt.NewSpan("s3", "bye"),
		}},
	}
}

func pnt(block, child string, off int) Point {
	if child == "" {
		return Point{Path: BlockPath(block), Offset: off}
	}
	return Point{Path: ChildPath(block, child), Offset: off}
}

func TestCompare(t *testing.T) {
	idx := NewIndex(testDoc())
	tests := []struct {
		name string
		a, b Point
		want int
	}{
		{"same point", pnt("b1", "s1", 2), pnt("b1", "s1", 2), 0},
		{"offset", pnt("b1", "s1", 1), pnt("b1", "s1", 2), -1},
		{"child order", pnt("b1", "s2", 0), pnt("b1", "s1", 5), 1},
		{"inline object between", pnt("b1", "i1", 0), pnt("b1", "s2", 0), -1},
		{"block order", pnt("b1", "s2", 6), pnt("b2", "s3", 0), -1},
		{"object block", pnt("img", "", 0), pnt("b1", "s1", 0), 1},
		{"block point before children", pnt("b2", "", 0), pnt("b2", "s3", 0), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(idx, tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
			rev, err := Compare(idx, tt.b, tt.a)
			if err != nil {
				t.Fatal(err)
			}
			if rev != -tt.want {
				t.Errorf("Compare(b, a) = %d, want %d", rev, -tt.want)
			}
		})
	}
}

func TestCompareErrors(t *testing.T) {
	idx := NewIndex(testDoc())
	tests := []struct {
		name string
		p    Point
		want error
	}{
		{"missing block", pnt("gone", "s1", 0), pt.ErrStaleReference},
		{"missing child", pnt("b1", "gone", 0), pt.ErrStaleReference},
		{"child of other block", pnt("b2", "s1", 0), pt.ErrStaleReference},
		{"empty path", Point{}, pt.ErrInvalidPath},
		{"field path", Point{Path: Path{FieldSegment("children")}}, pt.ErrInvalidPath},
		{"two segments", Point{Path: Path{KeySegment("b1"), FieldSegment("children")}}, pt.ErrInvalidPath},
		{"negative offset", pnt("b1", "s1", -1), pt.ErrInvalidPath},
		{"offset on block point", pnt("img", "", 1), pt.ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(idx, pnt("b1", "s1", 0), tt.p)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if !errors.Is(pt.ErrInvalidPath, pt.ErrInvalidOperation) {
		t.Error("invalid path is not an invalid operation")
	}
}

func TestNormalize(t *testing.T) {
	idx := NewIndex(testDoc())
	fwd := Range{Anchor: pnt("b1", "s1", 1), Focus: pnt("b2", "s3", 2)}
	back := Range{Anchor: fwd.Focus, Focus: fwd.Anchor}

	got, err := Normalize(idx, back)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(fwd) {
		t.Errorf("Normalize(backward) = %v, want %v", got, fwd)
	}
	again, err := Normalize(idx, got)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Equal(got) {
		t.Error("Normalize is not idempotent")
	}
	isBack, err := IsBackward(idx, back)
	if err != nil || !isBack {
		t.Errorf("IsBackward = %v, %v", isBack, err)
	}

	// equal points keep the supplied orientation
	tie := Range{Anchor: Point{Path: ChildPath("b1", "s1"), Offset: 2}, Focus: Point{Path: ChildPath("b1", "s1"), Offset: 2}}
	got, err = Normalize(idx, tie)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(tie) {
		t.Errorf("tie reordered: %v", got)
	}

	if _, err := Normalize(idx, Range{Anchor: pnt("x", "", 0), Focus: pnt("b1", "s1", 0)}); !errors.Is(err, pt.ErrStaleReference) {
		t.Errorf("got %v, want stale reference", err)
	}
}

func TestIsCollapsed(t *testing.T) {
	if !IsCollapsed(Collapse(pnt("b1", "s1", 2))) {
		t.Error("collapsed range not reported collapsed")
	}
	if IsCollapsed(Range{Anchor: pnt("b1", "s1", 2), Focus: pnt("b1", "s1", 3)}) {
		t.Error("expanded range reported collapsed")
	}
	if IsCollapsed(Range{Anchor: pnt("b1", "s1", 0), Focus: pnt("b1", "s2", 0)}) {
		t.Error("different paths reported collapsed")
	}
}

func TestIncludes(t *testing.T) {
	idx := NewIndex(testDoc())
	r := Range{Anchor: pnt("b2", "s3", 1), Focus: pnt("b1", "s1", 3)}
	tests := []struct {
		p    Point
		want bool
	}{
		{pnt("b1", "s1", 3), true},
		{pnt("b1", "s1", 2), false},
		{pnt("b1", "i1", 0), true},
		{pnt("img", "", 0), true},
		{pnt("b2", "s3", 1), true},
		{pnt("b2", "s3", 2), false},
	}
	for _, tt := range tests {
		got, err := Includes(idx, r, tt.p)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Includes(%s) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestRangeJSON(t *testing.T) {
	in := `{"anchor":{"path":[{"_key":"123"},"children",{"_key":"567"}],"offset":2},"focus":{"path":[{"_key":"123"},"children",{"_key":"567"}],"offset":2}}`
	var r Range
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatal(err)
	}
	want := Collapse(Point{Path: ChildPath("123", "567"), Offset: 2})
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("decode mismatch (-want +got):\n%s", diff)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("encode got %s", out)
	}
	var bad Range
	err = json.Unmarshal([]byte(`{"anchor":{"path":[{"key":"x"}],"offset":0}}`), &bad)
	if !errors.Is(err, pt.ErrInvalidPath) {
		t.Errorf("got %v, want invalid path", err)
	}
}

func TestPathString(t *testing.T) {
	p := ChildPath("b1", "s1").Append(FieldSegment("text"))
	if got, want := p.String(), `[_key=="b1"].children[_key=="s1"].text`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	if k, ok := p.ChildKey(); !ok || k != "s1" {
		t.Errorf("ChildKey() = %q, %v", k, ok)
	}
}
