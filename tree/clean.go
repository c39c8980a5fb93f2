package tree

import (
	"slices"
	"unicode/utf8"

	"github.com/signadot/ptedit/debug"
)

// Remap records that span From was folded into span To, starting Delta
// characters into it.
type Remap struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Delta int    `json:"delta"`
}

// Follow maps a child key and offset through remaps, in order.
func Follow(remaps []Remap, key string, offset int) (string, int) {
	for _, r := range remaps {
		if r.From == key {
			key = r.To
			offset += r.Delta
		}
	}
	return key, offset
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Clean tidies the children of a text block after an edit:
//   - adjacent spans with the same marks are merged,
//   - empty spans next to another span are dropped,
//   - a block without children gets the empty placeholder span.
//
// Inline objects are never merged, and an empty span between inline
// objects or between an inline object and the block edge is kept as a
// landing point for the caret. The returned remaps record where the
// positions in removed spans went.
func (t *Tree) Clean(block string, fresh func() string) ([]Remap, error) {
	n, err := t.textBlockNode(block)
	if err != nil {
		return nil, err
	}
	if n.first == "" {
		t.placeholder(n, fresh)
		return nil, nil
	}
	var remaps []Remap
	for changed := true; changed; {
		changed = t.mergeSpans(n, &remaps)
		if t.dropEmptySpans(n, &remaps) {
			changed = true
		}
	}
	if debug.Tree() && len(remaps) != 0 {
		debug.Logf("tree: clean %q: %v\n", block, remaps)
	}
	return remaps, nil
}

func (t *Tree) isSpan(key string) bool {
	if key == "" {
		return false
	}
	n := t.nodes[key]
	return !n.isBlock() && n.child.IsSpan()
}

func sameMarks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func (t *Tree) mergeSpans(n *node, remaps *[]Remap) bool {
	changed := false
	for k := n.first; k != ""; {
		c := t.nodes[k]
		if !t.isSpan(k) || !t.isSpan(c.next) {
			k = c.next
			continue
		}
		m := t.nodes[c.next]
		if !sameMarks(c.child.Marks, m.child.Marks) || len(c.child.Fields) != 0 || len(m.child.Fields) != 0 {
			k = c.next
			continue
		}
		*remaps = append(*remaps, Remap{From: m.key, To: c.key, Delta: runeLen(c.child.Text)})
		c.child.Text += m.child.Text
		t.unlink(&n.first, &n.last, m)
		t.drop(m.key)
		changed = true
	}
	return changed
}

func (t *Tree) dropEmptySpans(n *node, remaps *[]Remap) bool {
	changed := false
	for k := n.first; k != ""; {
		c := t.nodes[k]
		next := c.next
		if !t.isSpan(k) || c.child.Text != "" {
			k = next
			continue
		}
		switch {
		case t.isSpan(c.prev):
			p := t.nodes[c.prev]
			*remaps = append(*remaps, Remap{From: k, To: p.key, Delta: runeLen(p.child.Text)})
		case t.isSpan(next):
			*remaps = append(*remaps, Remap{From: k, To: next})
		default:
			k = next
			continue
		}
		t.unlink(&n.first, &n.last, c)
		t.drop(k)
		changed = true
		k = next
	}
	return changed
}
