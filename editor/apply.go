package editor

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/signadot/ptedit/patch"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
	"github.com/signadot/ptedit/tree"
)

// run applies op to the live tree and returns the selection after it.
// On error the tree may be partly modified; the caller rebuilds it.
func (e *Editor) run(op Operation) (*selection.Range, error) {
	switch op := op.(type) {
	case InsertText:
		return e.insertText(op)
	case DeleteRange:
		r, err := e.rangeOf(op.Range)
		if err != nil {
			return nil, err
		}
		return e.deleteRange(r)
	case SplitBlock:
		return e.splitBlock(op)
	case MergeBlocks:
		return e.mergeBlocks(op)
	case ToggleMark:
		return e.toggleMark(op)
	case AddAnnotation:
		return e.addAnnotation(op)
	case RemoveAnnotation:
		return e.removeAnnotation(op)
	case SetListItem:
		return e.setListItem(op)
	case SetStyle:
		return e.setStyle(op)
	case InsertBlock:
		return e.insertBlock(op)
	case RemoveBlock:
		return e.removeBlock(op)
	case InsertInlineObject:
		return e.insertInlineObject(op)
	}
	return nil, fmt.Errorf("%w: unsupported operation %T", pt.ErrInvalidOperation, op)
}

func caret(block, child string, offset int) *selection.Range {
	r := selection.Collapse(selection.Point{Path: selection.ChildPath(block, child), Offset: offset})
	return &r
}

func blockCaret(block string) *selection.Range {
	r := selection.Collapse(selection.Point{Path: selection.BlockPath(block)})
	return &r
}

var errNoSelection = fmt.Errorf("%w: no selection", pt.ErrInvalidOperation)

func (e *Editor) rangeOf(r *selection.Range) (selection.Range, error) {
	if r != nil {
		return *r, nil
	}
	if e.sel == nil {
		return selection.Range{}, errNoSelection
	}
	return *e.sel, nil
}

// insertionPoint returns at or, when it is nil, the focus of the selection
// after deleting the selected content.
func (e *Editor) insertionPoint(at *selection.Point) (selection.Point, error) {
	if at != nil {
		return *at, nil
	}
	if e.sel == nil {
		return selection.Point{}, errNoSelection
	}
	if selection.IsCollapsed(*e.sel) {
		return e.sel.Focus, nil
	}
	r, err := e.deleteRange(*e.sel)
	if err != nil {
		return selection.Point{}, err
	}
	return r.Focus, nil
}

// childAt resolves a [block, "children", child] point against the tree.
func (e *Editor) childAt(p selection.Point) (string, string, error) {
	bk, _ := p.Path.BlockKey()
	ck, ok := p.Path.ChildKey()
	if !ok || len(p.Path) != 3 {
		return "", "", fmt.Errorf("%w: %s is not a child point", pt.ErrInvalidPath, p.Path)
	}
	if _, ok := e.tree.Child(ck); !ok {
		return "", "", fmt.Errorf("%w: %s", pt.ErrStaleReference, p.Path)
	}
	if parent, _ := e.tree.Parent(ck); parent != bk {
		return "", "", fmt.Errorf("%w: %s", pt.ErrStaleReference, p.Path)
	}
	return bk, ck, nil
}

func (e *Editor) isSpan(key string) bool {
	c, ok := e.tree.Child(key)
	return ok && c.IsSpan()
}

func (e *Editor) textLen(key string) int {
	c, _ := e.tree.Child(key)
	return utf8.RuneCountInString(c.Text)
}

func (e *Editor) insertText(op InsertText) (*selection.Range, error) {
	p, err := e.insertionPoint(op.At)
	if err != nil {
		return nil, err
	}
	bk, ck, err := e.childAt(p)
	if err != nil {
		return nil, err
	}
	if !e.isSpan(ck) {
		return nil, fmt.Errorf("%w: %q is not a span", pt.ErrInvalidOperation, ck)
	}
	if err := e.tree.InsertText(ck, p.Offset, op.Text); err != nil {
		return nil, err
	}
	return caret(bk, ck, p.Offset+utf8.RuneCountInString(op.Text)), nil
}

// deleteRange removes the content of r, merging the blocks at its ends,
// and returns the caret at the start of r. A point at an inline object
// lies before it.
func (e *Editor) deleteRange(r selection.Range) (*selection.Range, error) {
	n, err := selection.Normalize(e.tree, r)
	if err != nil {
		return nil, err
	}
	if selection.IsCollapsed(n) {
		return &n, nil
	}
	sb, sc, err := e.childAt(n.Anchor)
	if err != nil {
		return nil, err
	}
	eb, ec, err := e.childAt(n.Focus)
	if err != nil {
		return nil, err
	}
	so, eo := n.Anchor.Offset, n.Focus.Offset

	if !e.isSpan(sc) {
		// land in an empty span in front of the inline object
		k := e.fresh()
		if err := e.tree.InsertChild(pt.NewSpan(k, ""), sb, sc, true); err != nil {
			return nil, err
		}
		sc, so = k, 0
	}
	if sc == ec {
		if err := e.tree.DeleteText(sc, so, eo); err != nil {
			return nil, err
		}
	} else {
		var children, blocks []string
		if sb == eb {
			for k, _ := e.tree.NextChild(sc); k != ec; k, _ = e.tree.NextChild(k) {
				children = append(children, k)
			}
		} else {
			for k, ok := e.tree.NextChild(sc); ok; k, ok = e.tree.NextChild(k) {
				children = append(children, k)
			}
			for k, ok := e.tree.NextBlock(sb); ok && k != eb; k, ok = e.tree.NextBlock(k) {
				blocks = append(blocks, k)
			}
			for _, k := range e.tree.Children(eb) {
				if k == ec {
					break
				}
				children = append(children, k)
			}
		}
		if err := e.tree.DeleteText(sc, so, e.textLen(sc)); err != nil {
			return nil, err
		}
		if e.isSpan(ec) {
			if err := e.tree.DeleteText(ec, 0, eo); err != nil {
				return nil, err
			}
		}
		for _, k := range children {
			if err := e.tree.RemoveChild(k); err != nil {
				return nil, err
			}
		}
		for _, k := range blocks {
			if err := e.tree.RemoveBlock(k); err != nil {
				return nil, err
			}
		}
		if sb != eb {
			if err := e.tree.MergeBlocks(sb, eb); err != nil {
				return nil, err
			}
		}
	}
	remaps, err := e.tree.Clean(sb, e.fresh)
	if err != nil {
		return nil, err
	}
	k, o := tree.Follow(remaps, sc, so)
	return caret(sb, k, o), nil
}

func (e *Editor) splitBlock(op SplitBlock) (*selection.Range, error) {
	p, err := e.insertionPoint(op.At)
	if err != nil {
		return nil, err
	}
	bk, ck, err := e.childAt(p)
	if err != nil {
		return nil, err
	}
	nb, first, err := e.tree.SplitBlock(ck, p.Offset, e.fresh)
	if err != nil {
		return nil, err
	}
	r1, err := e.tree.Clean(bk, e.fresh)
	if err != nil {
		return nil, err
	}
	r2, err := e.tree.Clean(nb, e.fresh)
	if err != nil {
		return nil, err
	}
	k, o := tree.Follow(append(r1, r2...), first, 0)
	return caret(nb, k, o), nil
}

func (e *Editor) mergeBlocks(op MergeBlocks) (*selection.Range, error) {
	// the caret lands at the end of First's text, or in front of Second's
	// first child when First ends with an inline object
	var at string
	var off int
	if kids := e.tree.Children(op.First); len(kids) != 0 && e.isSpan(kids[len(kids)-1]) {
		at = kids[len(kids)-1]
		off = e.textLen(at)
	} else if kids := e.tree.Children(op.Second); len(kids) != 0 {
		at = kids[0]
	}
	if err := e.tree.MergeBlocks(op.First, op.Second); err != nil {
		return nil, err
	}
	remaps, err := e.tree.Clean(op.First, e.fresh)
	if err != nil {
		return nil, err
	}
	if at == "" {
		return e.landing(op.First), nil
	}
	k, o := tree.Follow(remaps, at, off)
	return caret(op.First, k, o), nil
}

// split records a span split so points past it can be followed.
type split struct {
	from, to string
	at       int
}

func followSplits(splits []split, key string, off int) (string, int) {
	for _, s := range splits {
		if s.from == key && off > s.at {
			key, off = s.to, off-s.at
		}
	}
	return key, off
}

// coverage is the set of spans lying within a range once the spans at its
// edges are split.
type coverage struct {
	spans  map[string][]string // block -> covered spans, in order
	blocks []string            // text blocks touched, in order
	splits []split
}

func (e *Editor) splitAt(key string, off int, cv *coverage) (string, error) {
	nk := e.fresh()
	if err := e.tree.SplitSpan(key, off, nk); err != nil {
		return "", err
	}
	cv.splits = append(cv.splits, split{from: key, to: nk, at: off})
	return nk, nil
}

func (e *Editor) cover(r selection.Range) (*coverage, error) {
	n, err := selection.Normalize(e.tree, r)
	if err != nil {
		return nil, err
	}
	sb, sc, err := e.childAt(n.Anchor)
	if err != nil {
		return nil, err
	}
	eb, ec, err := e.childAt(n.Focus)
	if err != nil {
		return nil, err
	}
	so, eo := n.Anchor.Offset, n.Focus.Offset
	cv := &coverage{spans: map[string][]string{}}

	endIncluded := false
	if e.isSpan(ec) && eo > 0 {
		if eo < e.textLen(ec) {
			if _, err := e.splitAt(ec, eo, cv); err != nil {
				return nil, err
			}
		}
		endIncluded = true
	}
	start := sc
	if e.isSpan(sc) && so > 0 {
		if so < e.textLen(sc) {
			if start, err = e.splitAt(sc, so, cv); err != nil {
				return nil, err
			}
		} else {
			start, _ = e.tree.NextChild(sc)
		}
	}
	// last is the final covered child, stop the first uncovered one
	var last, stop string
	if endIncluded {
		last = ec
		if sc == ec && start != sc {
			last = start
		}
	} else {
		stop = ec
	}

	for bk := sb; bk != ""; bk, _ = e.tree.NextBlock(bk) {
		k := start
		if bk != sb {
			k = ""
			if kids := e.tree.Children(bk); len(kids) != 0 {
				k = kids[0]
			}
		}
		if b, ok := e.tree.Block(bk); ok && b.Kind == pt.TextBlock {
			cv.blocks = append(cv.blocks, bk)
		}
		for ; k != "" && k != stop; k, _ = e.tree.NextChild(k) {
			if e.isSpan(k) {
				cv.spans[bk] = append(cv.spans[bk], k)
			}
			if k == last {
				break
			}
		}
		if bk == eb {
			break
		}
	}
	return cv, nil
}

// clean tidies the touched blocks and returns the selection followed
// through the splits and merges.
func (e *Editor) clean(cv *coverage) (*selection.Range, error) {
	var remaps []tree.Remap
	for _, bk := range cv.blocks {
		rs, err := e.tree.Clean(bk, e.fresh)
		if err != nil {
			return nil, err
		}
		remaps = append(remaps, rs...)
	}
	if e.sel == nil {
		return nil, nil
	}
	follow := func(p selection.Point) selection.Point {
		bk, _ := p.Path.BlockKey()
		ck, ok := p.Path.ChildKey()
		if !ok {
			return p
		}
		ck, off := followSplits(cv.splits, ck, p.Offset)
		ck, off = tree.Follow(remaps, ck, off)
		return selection.Point{Path: selection.ChildPath(bk, ck), Offset: off}
	}
	return &selection.Range{Anchor: follow(e.sel.Anchor), Focus: follow(e.sel.Focus)}, nil
}

func (e *Editor) toggleMark(op ToggleMark) (*selection.Range, error) {
	if !e.schema.IsDecorator(op.Mark) {
		return nil, fmt.Errorf("%w: undeclared decorator %q", pt.ErrInvalidOperation, op.Mark)
	}
	r, err := e.rangeOf(op.Range)
	if err != nil {
		return nil, err
	}
	if selection.IsCollapsed(r) {
		return e.sel, nil
	}
	cv, err := e.cover(r)
	if err != nil {
		return nil, err
	}
	all := true
	for _, bk := range cv.blocks {
		for _, k := range cv.spans[bk] {
			c, _ := e.tree.Child(k)
			if !slices.Contains(c.Marks, op.Mark) {
				all = false
			}
		}
	}
	for _, bk := range cv.blocks {
		for _, k := range cv.spans[bk] {
			c, _ := e.tree.Child(k)
			var marks []string
			if all {
				marks = withoutMark(c.Marks, op.Mark)
			} else if !slices.Contains(c.Marks, op.Mark) {
				marks = append(append([]string{}, c.Marks...), op.Mark)
			} else {
				continue
			}
			if err := e.tree.SetMarks(k, marks); err != nil {
				return nil, err
			}
		}
	}
	return e.clean(cv)
}

func withoutMark(marks []string, m string) []string {
	res := []string{}
	for _, x := range marks {
		if x != m {
			res = append(res, x)
		}
	}
	return res
}

func (e *Editor) addAnnotation(op AddAnnotation) (*selection.Range, error) {
	if _, ok := e.schema.Annotation(op.Annotation); !ok {
		return nil, fmt.Errorf("%w: undeclared annotation %q", pt.ErrInvalidOperation, op.Annotation)
	}
	r, err := e.rangeOf(op.Range)
	if err != nil {
		return nil, err
	}
	if selection.IsCollapsed(r) {
		return nil, fmt.Errorf("%w: cannot annotate an empty range", pt.ErrInvalidOperation)
	}
	cv, err := e.cover(r)
	if err != nil {
		return nil, err
	}
	for _, bk := range cv.blocks {
		spans := cv.spans[bk]
		if len(spans) == 0 {
			continue
		}
		md := pt.MarkDef{Key: e.fresh(), Type: op.Annotation}
		if len(op.Fields) != 0 {
			md.Fields = pt.CloneValue(op.Fields).(map[string]any)
		}
		if err := e.tree.AddMarkDef(bk, md); err != nil {
			return nil, err
		}
		for _, k := range spans {
			c, _ := e.tree.Child(k)
			if err := e.tree.SetMarks(k, append(append([]string{}, c.Marks...), md.Key)); err != nil {
				return nil, err
			}
		}
	}
	return e.clean(cv)
}

func (e *Editor) removeAnnotation(op RemoveAnnotation) (*selection.Range, error) {
	r, err := e.rangeOf(op.Range)
	if err != nil {
		return nil, err
	}
	var cv *coverage
	if selection.IsCollapsed(r) {
		// a caret inside an annotated span removes that annotation
		bk, ck, err := e.childAt(r.Focus)
		if err != nil {
			return nil, err
		}
		cv = &coverage{spans: map[string][]string{}}
		if e.isSpan(ck) {
			cv.spans[bk] = []string{ck}
			cv.blocks = []string{bk}
		}
	} else if cv, err = e.cover(r); err != nil {
		return nil, err
	}
	for _, bk := range cv.blocks {
		b, _ := e.tree.Block(bk)
		var keys []string
		seen := map[string]bool{}
		for _, k := range cv.spans[bk] {
			c, _ := e.tree.Child(k)
			for _, m := range c.Marks {
				md, ok := b.MarkDef(m)
				if ok && md.Type == op.Annotation && !seen[m] {
					seen[m] = true
					keys = append(keys, m)
				}
			}
		}
		if len(keys) == 0 {
			continue
		}
		if err := e.tree.RemoveMarkDefs(bk, keys...); err != nil {
			return nil, err
		}
	}
	return e.clean(cv)
}

func (e *Editor) textBlock(key string) error {
	b, ok := e.tree.Block(key)
	if !ok {
		return fmt.Errorf("%w: block %q", pt.ErrStaleReference, key)
	}
	if b.Kind != pt.TextBlock {
		return fmt.Errorf("%w: %q is not a text block", pt.ErrInvalidOperation, key)
	}
	return nil
}

func (e *Editor) setListItem(op SetListItem) (*selection.Range, error) {
	if err := e.textBlock(op.Block); err != nil {
		return nil, err
	}
	level := op.Level
	switch {
	case op.ListItem == "":
		level = 0
	case !e.schema.HasList(op.ListItem):
		return nil, fmt.Errorf("%w: undeclared list type %q", pt.ErrInvalidOperation, op.ListItem)
	case level < 1:
		level = 1
	}
	err := e.tree.SetBlock(op.Block, func(b *pt.Block) {
		b.ListItem, b.Level = op.ListItem, level
	})
	return e.sel, err
}

func (e *Editor) setStyle(op SetStyle) (*selection.Range, error) {
	if err := e.textBlock(op.Block); err != nil {
		return nil, err
	}
	if !e.schema.HasStyle(op.Style) {
		return nil, fmt.Errorf("%w: undeclared style %q", pt.ErrInvalidOperation, op.Style)
	}
	err := e.tree.SetBlock(op.Block, func(b *pt.Block) {
		b.Style = op.Style
	})
	return e.sel, err
}

// claim returns k, reserving it, or a fresh key when k is empty.
func (e *Editor) claim(k string) string {
	if k == "" {
		return e.fresh()
	}
	e.used[k] = true
	return k
}

func (e *Editor) insertBlock(op InsertBlock) (*selection.Range, error) {
	var before bool
	switch op.Position {
	case patch.Before:
		before = true
	case patch.After, "":
	default:
		return nil, fmt.Errorf("%w: position %q", pt.ErrInvalidOperation, op.Position)
	}
	b := op.Block.Clone()
	b.Key = e.claim(b.Key)
	if b.Kind == pt.TextBlock {
		if b.Type == "" {
			b.Type = e.schema.TextType()
		}
		if b.Style == "" {
			b.Style = e.schema.DefaultStyle()
		}
		if b.MarkDefs == nil {
			b.MarkDefs = []pt.MarkDef{}
		}
		for i := range b.MarkDefs {
			b.MarkDefs[i].Key = e.claim(b.MarkDefs[i].Key)
		}
		for i := range b.Children {
			b.Children[i].Key = e.claim(b.Children[i].Key)
		}
		if len(b.Children) == 0 {
			b.Children = []pt.Child{pt.NewSpan(e.fresh(), "")}
		}
	}
	if err := e.tree.InsertBlock(b, op.Ref, before); err != nil {
		return nil, err
	}
	if b.Kind == pt.TextBlock {
		return caret(b.Key, b.Children[0].Key, 0), nil
	}
	return blockCaret(b.Key), nil
}

// landing returns the caret at the start of block.
func (e *Editor) landing(block string) *selection.Range {
	if kids := e.tree.Children(block); len(kids) != 0 {
		return caret(block, kids[0], 0)
	}
	return blockCaret(block)
}

func (e *Editor) removeBlock(op RemoveBlock) (*selection.Range, error) {
	next, ok := e.tree.NextBlock(op.Block)
	if !ok {
		next, _ = e.tree.PrevBlock(op.Block)
	}
	if err := e.tree.RemoveBlock(op.Block); err != nil {
		return nil, err
	}
	if e.sel != nil && e.checkRange(*e.sel) == nil {
		return e.sel, nil
	}
	if next == "" {
		// the document is empty; the canonical block takes the caret
		return nil, nil
	}
	return e.landing(next), nil
}

func (e *Editor) insertInlineObject(op InsertInlineObject) (*selection.Range, error) {
	obj := op.Object.Clone()
	if obj.Kind != pt.InlineObject {
		return nil, fmt.Errorf("%w: %q is not an inline object", pt.ErrInvalidOperation, obj.Type)
	}
	if _, ok := e.schema.InlineObject(obj.Type); !ok {
		return nil, fmt.Errorf("%w: undeclared inline object %q", pt.ErrInvalidOperation, obj.Type)
	}
	p, err := e.insertionPoint(op.At)
	if err != nil {
		return nil, err
	}
	bk, ck, err := e.childAt(p)
	if err != nil {
		return nil, err
	}
	obj.Key = e.claim(obj.Key)
	before := false
	if e.isSpan(ck) {
		switch n := e.textLen(ck); {
		case p.Offset == 0:
			before = true
		case p.Offset > n:
			return nil, fmt.Errorf("%w: offset %d beyond %q", pt.ErrInvalidOperation, p.Offset, ck)
		case p.Offset < n:
			if err := e.tree.SplitSpan(ck, p.Offset, e.fresh()); err != nil {
				return nil, err
			}
		}
	} else if p.Offset != 0 {
		return nil, fmt.Errorf("%w: offset %d in inline object %q", pt.ErrInvalidOperation, p.Offset, ck)
	}
	if err := e.tree.InsertChild(obj, bk, ck, before); err != nil {
		return nil, err
	}
	if prev, ok := e.tree.PrevChild(obj.Key); !ok || !e.isSpan(prev) {
		if err := e.tree.InsertChild(pt.NewSpan(e.fresh(), ""), bk, obj.Key, true); err != nil {
			return nil, err
		}
	}
	next, ok := e.tree.NextChild(obj.Key)
	if !ok || !e.isSpan(next) {
		next = e.fresh()
		if err := e.tree.InsertChild(pt.NewSpan(next, ""), bk, obj.Key, false); err != nil {
			return nil, err
		}
	}
	remaps, err := e.tree.Clean(bk, e.fresh)
	if err != nil {
		return nil, err
	}
	k, o := tree.Follow(remaps, next, 0)
	return caret(bk, k, o), nil
}
