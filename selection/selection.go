package selection

import (
	"cmp"
	"fmt"

	"github.com/signadot/ptedit/pt"
)

// Point addresses a position in the document. For spans Offset is a
// character (rune) offset into the text; for inline objects and object
// blocks it must be 0.
type Point struct {
	Path   Path `json:"path"`
	Offset int  `json:"offset"`
}

func (p Point) Equal(o Point) bool {
	return p.Offset == o.Offset && p.Path.Equal(o.Path)
}

func (p Point) String() string {
	return fmt.Sprintf("%s:%d", p.Path, p.Offset)
}

// Range is an anchor/focus pair. The anchor is where the selection started
// and may follow the focus in document order.
type Range struct {
	Anchor Point `json:"anchor"`
	Focus  Point `json:"focus"`
}

// Collapse returns the collapsed range at p.
func Collapse(p Point) Range {
	return Range{Anchor: p, Focus: p}
}

func (r Range) Equal(o Range) bool {
	return r.Anchor.Equal(o.Anchor) && r.Focus.Equal(o.Focus)
}

// Resolver maps keys to document-order positions.
type Resolver interface {
	BlockIndex(block string) (int, bool)
	ChildIndex(block, child string) (int, bool)
}

type position struct {
	block, child, offset int
}

// locate resolves p. Block-level points sort before the block's children.
func locate(res Resolver, p Point) (position, error) {
	if p.Offset < 0 {
		return position{}, fmt.Errorf("%w: negative offset at %s", pt.ErrInvalidPath, p.Path)
	}
	bk, ok := p.Path.BlockKey()
	if !ok || (len(p.Path) != 1 && len(p.Path) != 3) {
		return position{}, fmt.Errorf("%w: %s is not a point path", pt.ErrInvalidPath, p.Path)
	}
	bi, ok := res.BlockIndex(bk)
	if !ok {
		return position{}, fmt.Errorf("%w: block %q", pt.ErrStaleReference, bk)
	}
	if len(p.Path) == 1 {
		if p.Offset != 0 {
			return position{}, fmt.Errorf("%w: offset %d on block point %s", pt.ErrInvalidPath, p.Offset, p.Path)
		}
		return position{block: bi, child: -1}, nil
	}
	ck, ok := p.Path.ChildKey()
	if !ok {
		return position{}, fmt.Errorf("%w: %s is not a point path", pt.ErrInvalidPath, p.Path)
	}
	ci, ok := res.ChildIndex(bk, ck)
	if !ok {
		return position{}, fmt.Errorf("%w: child %q of block %q", pt.ErrStaleReference, ck, bk)
	}
	return position{block: bi, child: ci, offset: p.Offset}, nil
}

// Compare returns -1, 0 or 1 as a precedes, equals or follows b in
// document order. Keys missing from the document yield an error wrapping
// pt.ErrStaleReference.
func Compare(res Resolver, a, b Point) (int, error) {
	pa, err := locate(res, a)
	if err != nil {
		return 0, err
	}
	pb, err := locate(res, b)
	if err != nil {
		return 0, err
	}
	if c := cmp.Compare(pa.block, pb.block); c != 0 {
		return c, nil
	}
	if c := cmp.Compare(pa.child, pb.child); c != 0 {
		return c, nil
	}
	return cmp.Compare(pa.offset, pb.offset), nil
}

// Check reports whether every key of r resolves.
func Check(res Resolver, r Range) error {
	if _, err := locate(res, r.Anchor); err != nil {
		return err
	}
	_, err := locate(res, r.Focus)
	return err
}

func IsCollapsed(r Range) bool {
	return r.Anchor.Equal(r.Focus)
}

// IsBackward reports whether the focus precedes the anchor.
func IsBackward(res Resolver, r Range) (bool, error) {
	c, err := Compare(res, r.Anchor, r.Focus)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Normalize orders r so that the anchor does not follow the focus. Equal
// points keep the supplied orientation.
func Normalize(res Resolver, r Range) (Range, error) {
	back, err := IsBackward(res, r)
	if err != nil {
		return Range{}, err
	}
	if back {
		return Range{Anchor: r.Focus, Focus: r.Anchor}, nil
	}
	return r, nil
}

// Includes reports whether p lies within r, bounds included.
func Includes(res Resolver, r Range, p Point) (bool, error) {
	n, err := Normalize(res, r)
	if err != nil {
		return false, err
	}
	lo, err := Compare(res, n.Anchor, p)
	if err != nil {
		return false, err
	}
	hi, err := Compare(res, p, n.Focus)
	if err != nil {
		return false, err
	}
	return lo <= 0 && hi <= 0, nil
}

// Index is a Resolver over a portable document.
type Index struct {
	blocks   map[string]int
	children map[string]map[string]int
}

func NewIndex(doc pt.Document) *Index {
	idx := &Index{
		blocks:   make(map[string]int, len(doc)),
		children: make(map[string]map[string]int, len(doc)),
	}
	for i := range doc {
		b := &doc[i]
		idx.blocks[b.Key] = i
		if len(b.Children) == 0 {
			continue
		}
		cs := make(map[string]int, len(b.Children))
		for j := range b.Children {
			cs[b.Children[j].Key] = j
		}
		idx.children[b.Key] = cs
	}
	return idx
}

func (x *Index) BlockIndex(block string) (int, bool) {
	i, ok := x.blocks[block]
	return i, ok
}

func (x *Index) ChildIndex(block, child string) (int, bool) {
	i, ok := x.children[block][child]
	return i, ok
}
