package tree

import (
	"fmt"
	"slices"

	"github.com/signadot/ptedit/debug"
	"github.com/signadot/ptedit/pt"
)

// node is an arena entry. Block nodes carry the block's own properties
// (Children is always nil there) and the ends of their child list; child
// nodes carry the child and the key of their block.
type node struct {
	key         string
	parent      string
	prev, next  string
	first, last string

	block *pt.Block
	child *pt.Child
}

func (n *node) isBlock() bool {
	return n.block != nil
}

// Tree is the live, mutable form of a document: a flat key to node mapping
// with explicit order links. A Tree is owned by one goroutine.
type Tree struct {
	nodes       map[string]*node
	markDefs    map[string]string // mark definition key -> block key
	first, last string
	size        int

	// document order positions, rebuilt after structural changes
	pos map[string]int

	decos map[string]map[string]bool
}

func New() *Tree {
	return &Tree{
		nodes:    map[string]*node{},
		markDefs: map[string]string{},
	}
}

// FromArray builds a tree from a portable document. Every block, child
// and mark definition must carry a key unique to the document.
func FromArray(doc pt.Document) (*Tree, error) {
	t := New()
	for i := range doc {
		if err := t.InsertBlock(doc[i], "", false); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	if debug.Tree() {
		debug.Logf("tree: built %d blocks, %d nodes\n", t.size, len(t.nodes))
	}
	return t, nil
}

// ToArray derives the portable document. Block and child order follows
// the tree's order links. Decorations are not part of the result.
func (t *Tree) ToArray() pt.Document {
	res := make(pt.Document, 0, t.size)
	for k := t.first; k != ""; k = t.nodes[k].next {
		res = append(res, t.toBlock(t.nodes[k]))
	}
	return res
}

func (t *Tree) toBlock(n *node) pt.Block {
	b := n.block.Clone()
	if b.Kind != pt.TextBlock {
		return b
	}
	b.Children = make([]pt.Child, 0, 1)
	for k := n.first; k != ""; k = t.nodes[k].next {
		b.Children = append(b.Children, t.nodes[k].child.Clone())
	}
	return b
}

// Len returns the number of blocks.
func (t *Tree) Len() int {
	return t.size
}

// Has reports whether key is in use by a block, child or mark definition.
func (t *Tree) Has(key string) bool {
	if _, ok := t.nodes[key]; ok {
		return true
	}
	_, ok := t.markDefs[key]
	return ok
}

// Keys returns the set of keys in use.
func (t *Tree) Keys() map[string]bool {
	res := make(map[string]bool, len(t.nodes)+len(t.markDefs))
	for k := range t.nodes {
		res[k] = true
	}
	for k := range t.markDefs {
		res[k] = true
	}
	return res
}

func (t *Tree) Block(key string) (pt.Block, bool) {
	n, ok := t.nodes[key]
	if !ok || !n.isBlock() {
		return pt.Block{}, false
	}
	return t.toBlock(n), true
}

func (t *Tree) Child(key string) (pt.Child, bool) {
	n, ok := t.nodes[key]
	if !ok || n.isBlock() {
		return pt.Child{}, false
	}
	return n.child.Clone(), true
}

// Parent returns the key of the block holding child or mark definition
// key.
func (t *Tree) Parent(key string) (string, bool) {
	if n, ok := t.nodes[key]; ok && !n.isBlock() {
		return n.parent, true
	}
	b, ok := t.markDefs[key]
	return b, ok
}

// Blocks returns the block keys in document order.
func (t *Tree) Blocks() []string {
	res := make([]string, 0, t.size)
	for k := t.first; k != ""; k = t.nodes[k].next {
		res = append(res, k)
	}
	return res
}

// Children returns the child keys of block in order.
func (t *Tree) Children(block string) []string {
	n, ok := t.nodes[block]
	if !ok || !n.isBlock() {
		return nil
	}
	var res []string
	for k := n.first; k != ""; k = t.nodes[k].next {
		res = append(res, k)
	}
	return res
}

// FirstBlock and LastBlock return "" for an empty tree.
func (t *Tree) FirstBlock() string { return t.first }
func (t *Tree) LastBlock() string  { return t.last }

func (t *Tree) NextBlock(key string) (string, bool) {
	return t.sibling(key, true, true)
}

func (t *Tree) PrevBlock(key string) (string, bool) {
	return t.sibling(key, true, false)
}

func (t *Tree) NextChild(key string) (string, bool) {
	return t.sibling(key, false, true)
}

func (t *Tree) PrevChild(key string) (string, bool) {
	return t.sibling(key, false, false)
}

func (t *Tree) sibling(key string, block, next bool) (string, bool) {
	n, ok := t.nodes[key]
	if !ok || n.isBlock() != block {
		return "", false
	}
	k := n.prev
	if next {
		k = n.next
	}
	return k, k != ""
}

func (t *Tree) positions() map[string]int {
	if t.pos != nil {
		return t.pos
	}
	pos := make(map[string]int, len(t.nodes))
	i := 0
	for k := t.first; k != ""; k = t.nodes[k].next {
		pos[k] = i
		i++
		j := 0
		for c := t.nodes[k].first; c != ""; c = t.nodes[c].next {
			pos[c] = j
			j++
		}
	}
	t.pos = pos
	return pos
}

// BlockIndex and ChildIndex make a Tree a selection.Resolver.
func (t *Tree) BlockIndex(block string) (int, bool) {
	n, ok := t.nodes[block]
	if !ok || !n.isBlock() {
		return 0, false
	}
	return t.positions()[block], true
}

func (t *Tree) ChildIndex(block, child string) (int, bool) {
	n, ok := t.nodes[child]
	if !ok || n.isBlock() || n.parent != block {
		return 0, false
	}
	return t.positions()[child], true
}

// link inserts n into the list with ends head and tail, next to ref, or at
// the start or end of the list when ref is nil.
func (t *Tree) link(head, tail *string, n, ref *node, before bool) {
	var prev, next string
	switch {
	case ref == nil && before:
		next = *head
	case ref == nil:
		prev = *tail
	case before:
		prev, next = ref.prev, ref.key
	default:
		prev, next = ref.key, ref.next
	}
	n.prev, n.next = prev, next
	if prev == "" {
		*head = n.key
	} else {
		t.nodes[prev].next = n.key
	}
	if next == "" {
		*tail = n.key
	} else {
		t.nodes[next].prev = n.key
	}
	t.pos = nil
}

func (t *Tree) unlink(head, tail *string, n *node) {
	if n.prev == "" {
		*head = n.next
	} else {
		t.nodes[n.prev].next = n.next
	}
	if n.next == "" {
		*tail = n.prev
	} else {
		t.nodes[n.next].prev = n.prev
	}
	n.prev, n.next = "", ""
	t.pos = nil
}

func (t *Tree) drop(key string) {
	delete(t.nodes, key)
	delete(t.decos, key)
}

func (t *Tree) blockNode(key string) (*node, error) {
	n, ok := t.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: block %q", pt.ErrStaleReference, key)
	}
	if !n.isBlock() {
		return nil, fmt.Errorf("%w: %q is not a block", pt.ErrInvalidOperation, key)
	}
	return n, nil
}

func (t *Tree) textBlockNode(key string) (*node, error) {
	n, err := t.blockNode(key)
	if err != nil {
		return nil, err
	}
	if n.block.Kind != pt.TextBlock {
		return nil, fmt.Errorf("%w: block %q is not a text block", pt.ErrInvalidOperation, key)
	}
	return n, nil
}

func (t *Tree) childNode(key string) (*node, error) {
	n, ok := t.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: child %q", pt.ErrStaleReference, key)
	}
	if n.isBlock() {
		return nil, fmt.Errorf("%w: %q is a block", pt.ErrInvalidOperation, key)
	}
	return n, nil
}

func (t *Tree) spanNode(key string) (*node, error) {
	n, err := t.childNode(key)
	if err != nil {
		return nil, err
	}
	if n.child.Kind != pt.Span {
		return nil, fmt.Errorf("%w: child %q is not a span", pt.ErrInvalidOperation, key)
	}
	return n, nil
}

// checkNew checks that the keys of b are present, unique, and unused.
func (t *Tree) checkNew(b *pt.Block) error {
	seen := map[string]bool{}
	check := func(k, what string) error {
		switch {
		case k == "":
			return fmt.Errorf("%w: %s: missing _key", pt.ErrSchemaViolation, what)
		case seen[k] || t.Has(k):
			return fmt.Errorf("%w: %s: duplicate key %q", pt.ErrSchemaViolation, what, k)
		}
		seen[k] = true
		return nil
	}
	if err := check(b.Key, "block"); err != nil {
		return err
	}
	for i := range b.MarkDefs {
		if err := check(b.MarkDefs[i].Key, fmt.Sprintf("markDefs[%d]", i)); err != nil {
			return err
		}
	}
	for i := range b.Children {
		if err := check(b.Children[i].Key, fmt.Sprintf("children[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) freshKey(fresh func() string) string {
	for {
		k := fresh()
		if k != "" && !t.Has(k) {
			return k
		}
	}
}

// InsertBlock inserts a copy of b before or after the block ref. An empty
// ref inserts at the start (before) or end of the document.
func (t *Tree) InsertBlock(b pt.Block, ref string, before bool) error {
	var rn *node
	if ref != "" {
		var err error
		if rn, err = t.blockNode(ref); err != nil {
			return err
		}
	}
	if err := t.checkNew(&b); err != nil {
		return err
	}
	props := b.Clone()
	props.Children = nil
	n := &node{key: b.Key, block: &props}
	t.nodes[n.key] = n
	for i := range props.MarkDefs {
		t.markDefs[props.MarkDefs[i].Key] = n.key
	}
	if b.Kind == pt.TextBlock {
		for i := range b.Children {
			c := b.Children[i].Clone()
			cn := &node{key: c.Key, parent: n.key, child: &c}
			t.nodes[cn.key] = cn
			t.link(&n.first, &n.last, cn, nil, false)
		}
	}
	t.link(&t.first, &t.last, n, rn, before)
	t.size++
	return nil
}

// RemoveBlock removes a block with its children and mark definitions.
func (t *Tree) RemoveBlock(key string) error {
	n, err := t.blockNode(key)
	if err != nil {
		return err
	}
	for k := n.first; k != ""; {
		next := t.nodes[k].next
		t.drop(k)
		k = next
	}
	for i := range n.block.MarkDefs {
		delete(t.markDefs, n.block.MarkDefs[i].Key)
	}
	t.unlink(&t.first, &t.last, n)
	t.drop(key)
	t.size--
	return nil
}

// SetBlock updates the properties of a block with f. Changes f makes to
// the key, kind, type, mark definitions or children are discarded.
func (t *Tree) SetBlock(key string, f func(b *pt.Block)) error {
	n, err := t.blockNode(key)
	if err != nil {
		return err
	}
	b := n.block.Clone()
	f(&b)
	b.Key, b.Kind, b.Type = n.block.Key, n.block.Kind, n.block.Type
	b.MarkDefs, b.Children = n.block.MarkDefs, nil
	*n.block = b
	return nil
}

// InsertChild inserts a copy of c into block, before or after its child
// ref. An empty ref inserts at the start (before) or end of the block.
func (t *Tree) InsertChild(c pt.Child, block, ref string, before bool) error {
	bn, err := t.textBlockNode(block)
	if err != nil {
		return err
	}
	var rn *node
	if ref != "" {
		if rn, err = t.childNode(ref); err != nil {
			return err
		}
		if rn.parent != block {
			return fmt.Errorf("%w: child %q is not in block %q", pt.ErrStaleReference, ref, block)
		}
	}
	switch {
	case c.Key == "":
		return fmt.Errorf("%w: child: missing _key", pt.ErrSchemaViolation)
	case t.Has(c.Key):
		return fmt.Errorf("%w: child: duplicate key %q", pt.ErrSchemaViolation, c.Key)
	}
	c = c.Clone()
	n := &node{key: c.Key, parent: block, child: &c}
	t.nodes[n.key] = n
	t.link(&bn.first, &bn.last, n, rn, before)
	return nil
}

// RemoveChild removes a child. A block left without children is repaired
// by Clean.
func (t *Tree) RemoveChild(key string) error {
	n, err := t.childNode(key)
	if err != nil {
		return err
	}
	bn := t.nodes[n.parent]
	t.unlink(&bn.first, &bn.last, n)
	t.drop(key)
	return nil
}

func checkOffset(n *node, offsets ...int) error {
	l := runeLen(n.child.Text)
	for _, o := range offsets {
		if o < 0 || o > l {
			return fmt.Errorf("%w: offset %d out of range [0, %d] in span %q", pt.ErrInvalidOperation, o, l, n.key)
		}
	}
	return nil
}

// InsertText inserts text into a span at a character offset.
func (t *Tree) InsertText(span string, offset int, text string) error {
	n, err := t.spanNode(span)
	if err != nil {
		return err
	}
	if err := checkOffset(n, offset); err != nil {
		return err
	}
	r := []rune(n.child.Text)
	n.child.Text = string(r[:offset]) + text + string(r[offset:])
	return nil
}

// DeleteText removes the characters [from, to) of a span.
func (t *Tree) DeleteText(span string, from, to int) error {
	n, err := t.spanNode(span)
	if err != nil {
		return err
	}
	if err := checkOffset(n, from, to); err != nil {
		return err
	}
	if from > to {
		return fmt.Errorf("%w: empty range [%d, %d) in span %q", pt.ErrInvalidOperation, from, to, span)
	}
	r := []rune(n.child.Text)
	n.child.Text = string(r[:from]) + string(r[to:])
	return nil
}

func (t *Tree) SetMarks(span string, marks []string) error {
	n, err := t.spanNode(span)
	if err != nil {
		return err
	}
	n.child.Marks = slices.Clone(marks)
	if n.child.Marks == nil {
		n.child.Marks = []string{}
	}
	return nil
}

// SplitSpan splits a span at offset. The text after offset moves to a new
// span keyed newKey, with the same marks, placed right after it.
func (t *Tree) SplitSpan(span string, offset int, newKey string) error {
	n, err := t.spanNode(span)
	if err != nil {
		return err
	}
	if err := checkOffset(n, offset); err != nil {
		return err
	}
	switch {
	case newKey == "":
		return fmt.Errorf("%w: span: missing _key", pt.ErrSchemaViolation)
	case t.Has(newKey):
		return fmt.Errorf("%w: span: duplicate key %q", pt.ErrSchemaViolation, newKey)
	}
	t.splitSpan(n, offset, newKey)
	return nil
}

func (t *Tree) splitSpan(n *node, offset int, newKey string) *node {
	r := []rune(n.child.Text)
	right := n.child.Clone()
	right.Key = newKey
	right.Text = string(r[offset:])
	n.child.Text = string(r[:offset])
	rn := &node{key: newKey, parent: n.parent, child: &right}
	t.nodes[newKey] = rn
	bn := t.nodes[n.parent]
	t.link(&bn.first, &bn.last, rn, n, false)
	return rn
}

// SplitBlock splits the block holding child at the point (child, offset).
// Everything after the point moves to a new block placed after it, with
// the same properties. Within a span the text after offset moves to a new
// span; an inline object (offset 0) moves with what follows it.
//
// Mark definitions follow the spans that use them; a definition used on
// both sides is copied to the new block under a fresh key. A block left
// empty gets the empty placeholder span.
//
// SplitBlock returns the key of the new block and of its first child, the
// landing point of the caret.
func (t *Tree) SplitBlock(child string, offset int, fresh func() string) (string, string, error) {
	cn, err := t.childNode(child)
	if err != nil {
		return "", "", err
	}
	bn := t.nodes[cn.parent]
	moveFrom := child
	if cn.child.Kind == pt.Span {
		if err := checkOffset(cn, offset); err != nil {
			return "", "", err
		}
		moveFrom = t.splitSpan(cn, offset, t.freshKey(fresh)).key
	} else if offset != 0 {
		return "", "", fmt.Errorf("%w: offset %d in inline object %q", pt.ErrInvalidOperation, offset, child)
	}

	props := bn.block.Clone()
	props.Key = t.freshKey(fresh)
	props.MarkDefs = []pt.MarkDef{}
	nn := &node{key: props.Key, block: &props}
	t.nodes[nn.key] = nn
	t.link(&t.first, &t.last, nn, bn, false)
	t.size++

	for k := moveFrom; k != ""; {
		c := t.nodes[k]
		next := c.next
		t.unlink(&bn.first, &bn.last, c)
		c.parent = nn.key
		t.link(&nn.first, &nn.last, c, nil, false)
		k = next
	}
	if bn.first == "" {
		t.placeholder(bn, fresh)
	}
	t.splitMarkDefs(bn, nn, fresh)
	if debug.Tree() {
		debug.Logf("tree: split %q at %q:%d into %q\n", bn.key, child, offset, nn.key)
	}
	return nn.key, moveFrom, nil
}

func (t *Tree) marksUsed(n *node) map[string]bool {
	res := map[string]bool{}
	for k := n.first; k != ""; k = t.nodes[k].next {
		for _, m := range t.nodes[k].child.Marks {
			res[m] = true
		}
	}
	return res
}

func (t *Tree) splitMarkDefs(left, right *node, fresh func() string) {
	usedLeft, usedRight := t.marksUsed(left), t.marksUsed(right)
	keep := make([]pt.MarkDef, 0, len(left.block.MarkDefs))
	for _, md := range left.block.MarkDefs {
		switch {
		case usedRight[md.Key] && usedLeft[md.Key]:
			cp := md.Clone()
			cp.Key = t.freshKey(fresh)
			t.markDefs[cp.Key] = right.key
			right.block.MarkDefs = append(right.block.MarkDefs, cp)
			t.renameMark(right, md.Key, cp.Key)
			keep = append(keep, md)
		case usedRight[md.Key]:
			t.markDefs[md.Key] = right.key
			right.block.MarkDefs = append(right.block.MarkDefs, md)
		default:
			keep = append(keep, md)
		}
	}
	left.block.MarkDefs = keep
}

func (t *Tree) renameMark(n *node, from, to string) {
	for k := n.first; k != ""; k = t.nodes[k].next {
		c := t.nodes[k].child
		for i, m := range c.Marks {
			if m == from {
				c.Marks[i] = to
			}
		}
	}
}

// MergeBlocks appends the children and mark definitions of second to
// first and removes second. second must directly follow first and both
// must be text blocks.
func (t *Tree) MergeBlocks(first, second string) error {
	a, err := t.textBlockNode(first)
	if err != nil {
		return err
	}
	b, err := t.textBlockNode(second)
	if err != nil {
		return err
	}
	if a.next != second {
		return fmt.Errorf("%w: blocks %q and %q are not adjacent", pt.ErrInvalidOperation, first, second)
	}
	for k := b.first; k != ""; {
		c := t.nodes[k]
		next := c.next
		t.unlink(&b.first, &b.last, c)
		c.parent = a.key
		t.link(&a.first, &a.last, c, nil, false)
		k = next
	}
	for _, md := range b.block.MarkDefs {
		t.markDefs[md.Key] = a.key
		a.block.MarkDefs = append(a.block.MarkDefs, md)
	}
	t.unlink(&t.first, &t.last, b)
	t.drop(second)
	t.size--
	return nil
}

// AddMarkDef adds a mark definition to a text block.
func (t *Tree) AddMarkDef(block string, md pt.MarkDef) error {
	n, err := t.textBlockNode(block)
	if err != nil {
		return err
	}
	switch {
	case md.Key == "":
		return fmt.Errorf("%w: markDef: missing _key", pt.ErrSchemaViolation)
	case t.Has(md.Key):
		return fmt.Errorf("%w: markDef: duplicate key %q", pt.ErrSchemaViolation, md.Key)
	}
	n.block.MarkDefs = append(n.block.MarkDefs, md.Clone())
	t.markDefs[md.Key] = block
	return nil
}

// RemoveMarkDefs removes mark definitions of block and the marks that
// refer to them.
func (t *Tree) RemoveMarkDefs(block string, keys ...string) error {
	n, err := t.textBlockNode(block)
	if err != nil {
		return err
	}
	rm := map[string]bool{}
	for _, k := range keys {
		if t.markDefs[k] != block {
			return fmt.Errorf("%w: mark definition %q of block %q", pt.ErrStaleReference, k, block)
		}
		rm[k] = true
	}
	n.block.MarkDefs = slices.DeleteFunc(n.block.MarkDefs, func(md pt.MarkDef) bool { return rm[md.Key] })
	for k := range rm {
		delete(t.markDefs, k)
	}
	for k := n.first; k != ""; k = t.nodes[k].next {
		c := t.nodes[k].child
		if c.Kind == pt.Span {
			c.Marks = slices.DeleteFunc(c.Marks, func(m string) bool { return rm[m] })
		}
	}
	return nil
}

func (t *Tree) placeholder(n *node, fresh func() string) {
	c := pt.NewSpan(t.freshKey(fresh), "")
	cn := &node{key: c.Key, parent: n.key, child: &c}
	t.nodes[cn.key] = cn
	t.link(&n.first, &n.last, cn, nil, false)
}
