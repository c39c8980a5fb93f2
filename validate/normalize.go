package validate

import (
	"slices"

	"github.com/signadot/ptedit/debug"
	"github.com/signadot/ptedit/keygen"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/schema"
)

// EmptyDocument returns the canonical empty document: one text block
// holding one empty span.
func EmptyDocument(s *schema.Schema, keys keygen.Generator) pt.Document {
	used := map[string]bool{}
	bk := keygen.Fresh(keys, used)
	sk := keygen.Fresh(keys, used)
	return pt.Document{pt.NewEmptyBlock(bk, sk, s.TextType(), s.DefaultStyle())}
}

type normalizer struct {
	s        *schema.Schema
	keys     keygen.Generator
	used     map[string]bool
	seen     map[string]bool
	repaired bool
}

// Normalize returns a repaired copy of doc and whether anything was
// repaired. doc is not modified.
//
// Repairs: missing and duplicate keys get fresh keys; unresolvable and
// duplicate marks are dropped; empty children become the canonical empty
// span; undeclared styles fall back to the default style; undeclared list
// types lose their list attributes; list levels below 1 become 1; text
// blocks without a type get the text block type. An empty document becomes
// the canonical empty document, which does not count as a repair.
//
// Findings that cannot be repaired without discarding data (undeclared
// object types, payload shapes) are left for Validate to report.
// Normalize is idempotent.
func Normalize(doc pt.Document, s *schema.Schema, keys keygen.Generator) (pt.Document, bool) {
	if len(doc) == 0 {
		return EmptyDocument(s, keys), false
	}
	n := &normalizer{
		s:    s,
		keys: keys,
		used: doc.KeySet(),
		seen: map[string]bool{},
	}
	res := doc.Clone()
	for i := range res {
		n.block(&res[i])
	}
	return res, n.repaired
}

func (n *normalizer) fix(what string, args ...any) {
	n.repaired = true
	if debug.Normalize() {
		debug.Logf("normalize: "+what+"\n", args...)
	}
}

func (n *normalizer) key(k *string, what string) {
	if *k != "" && !n.seen[*k] {
		n.seen[*k] = true
		return
	}
	old := *k
	*k = keygen.Fresh(n.keys, n.used)
	n.seen[*k] = true
	n.fix("%s: rekeyed %q as %q", what, old, *k)
}

func (n *normalizer) block(b *pt.Block) {
	n.key(&b.Key, "block")
	if b.Kind == pt.ObjectBlock {
		return
	}
	if b.Type == "" {
		b.Type = n.s.TextType()
		n.fix("block %q: set type %q", b.Key, b.Type)
	}
	if !n.s.HasStyle(b.Style) {
		old := b.Style
		b.Style = n.s.DefaultStyle()
		n.fix("block %q: style %q replaced by %q", b.Key, old, b.Style)
	}
	if !n.s.HasList(b.ListItem) {
		n.fix("block %q: dropped list %q", b.Key, b.ListItem)
		b.ListItem = ""
		b.Level = 0
	} else if b.ListItem != "" && b.Level < 1 {
		b.Level = 1
		n.fix("block %q: list level set to 1", b.Key)
	}
	if b.MarkDefs == nil {
		b.MarkDefs = []pt.MarkDef{}
	}
	markDefs := map[string]bool{}
	// spans of this block follow their rekeyed markDefs
	renamed := map[string]string{}
	for j := range b.MarkDefs {
		md := &b.MarkDefs[j]
		old := md.Key
		n.key(&md.Key, "markDef")
		if md.Key != old && old != "" && !markDefs[old] && !n.s.IsDecorator(old) {
			if _, ok := renamed[old]; !ok {
				renamed[old] = md.Key
			}
		}
		markDefs[md.Key] = true
	}
	if len(b.Children) == 0 {
		b.Children = []pt.Child{pt.NewSpan(keygen.Fresh(n.keys, n.used), "")}
		n.seen[b.Children[0].Key] = true
		n.fix("block %q: empty children replaced by placeholder", b.Key)
		return
	}
	for j := range b.Children {
		c := &b.Children[j]
		n.key(&c.Key, "child")
		if c.Kind != pt.Span {
			continue
		}
		marks := make([]string, 0, len(c.Marks))
		for _, m := range c.Marks {
			if k, ok := renamed[m]; ok {
				m = k
			}
			if slices.Contains(marks, m) || !(n.s.IsDecorator(m) || markDefs[m]) {
				continue
			}
			marks = append(marks, m)
		}
		if !slices.Equal(marks, c.Marks) {
			n.fix("span %q: marks %v reduced to %v", c.Key, c.Marks, marks)
		}
		c.Marks = marks
	}
}
