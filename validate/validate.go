package validate

import (
	"fmt"
	"strings"

	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/schema"
	"github.com/signadot/ptedit/selection"
)

type Kind string

const (
	SchemaViolation Kind = "schema-violation"
)

// Issue is one validation finding. Path addresses the offending node by
// key; nodes without a usable key are reported on their nearest keyed
// ancestor (or the empty path) with the position in Reason.
type Issue struct {
	Path   selection.Path `json:"path"`
	Kind   Kind           `json:"kind"`
	Reason string         `json:"reason"`
}

func (i Issue) String() string {
	if len(i.Path) == 0 {
		return fmt.Sprintf("%s: %s", i.Kind, i.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", i.Kind, i.Path, i.Reason)
}

type Result struct {
	Issues []Issue `json:"issues,omitempty"`
}

func (r Result) Valid() bool {
	return len(r.Issues) == 0
}

// Err returns nil for a valid result, and otherwise an error wrapping
// pt.ErrSchemaViolation.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	if len(r.Issues) == 1 {
		return fmt.Errorf("%w: %s", pt.ErrSchemaViolation, r.Issues[0])
	}
	msgs := make([]string, len(r.Issues))
	for i := range r.Issues {
		msgs[i] = r.Issues[i].String()
	}
	return fmt.Errorf("%w: %d issues: %s", pt.ErrSchemaViolation, len(r.Issues), strings.Join(msgs, "; "))
}

type validator struct {
	s    *schema.Schema
	seen map[string]bool
	res  Result
}

func (v *validator) add(p selection.Path, format string, args ...any) {
	v.res.Issues = append(v.res.Issues, Issue{Path: p, Kind: SchemaViolation, Reason: fmt.Sprintf(format, args...)})
}

// key checks k and returns the path to report k's node at.
func (v *validator) key(parent selection.Path, k, what string) selection.Path {
	if k == "" {
		v.add(parent, "%s: missing _key", what)
		return parent
	}
	p := parent.Append(selection.KeySegment(k))
	if v.seen[k] {
		v.add(p, "%s: duplicate key %q", what, k)
	}
	v.seen[k] = true
	return p
}

func (v *validator) fields(p selection.Path, ot *schema.ObjectType, fields map[string]any) {
	for _, fe := range v.s.CheckFields(ot, fields) {
		v.add(p.Append(selection.FieldSegment(fe.Field)), "%s", fe.Reason)
	}
}

// Validate checks doc against the invariants of the document model and
// the declarations of s. An empty document is valid.
func Validate(doc pt.Document, s *schema.Schema) Result {
	v := &validator{s: s, seen: map[string]bool{}}
	for i := range doc {
		v.block(&doc[i], i)
	}
	return v.res
}

func (v *validator) block(b *pt.Block, i int) {
	bp := v.key(nil, b.Key, fmt.Sprintf("block %d", i))
	if b.Kind == pt.ObjectBlock {
		ot, ok := v.s.BlockObject(b.Type)
		if !ok {
			v.add(bp, "undeclared block type %q", b.Type)
			return
		}
		v.fields(bp, ot, b.Fields)
		return
	}
	if b.Type != v.s.TextType() {
		v.add(bp, "undeclared text block type %q", b.Type)
	}
	if !v.s.HasStyle(b.Style) {
		v.add(bp.Append(selection.FieldSegment(pt.StyleField)), "undeclared style %q", b.Style)
	}
	if !v.s.HasList(b.ListItem) {
		v.add(bp.Append(selection.FieldSegment(pt.ListItemField)), "undeclared list type %q", b.ListItem)
	} else if b.ListItem != "" && b.Level < 1 {
		v.add(bp.Append(selection.FieldSegment(pt.LevelField)), "list level %d must be at least 1", b.Level)
	}
	mdp := bp.Append(selection.FieldSegment(pt.MarkDefsField))
	markDefs := map[string]bool{}
	for j := range b.MarkDefs {
		md := &b.MarkDefs[j]
		p := v.key(mdp, md.Key, fmt.Sprintf("markDefs[%d]", j))
		if md.Key != "" {
			markDefs[md.Key] = true
		}
		ot, ok := v.s.Annotation(md.Type)
		if !ok {
			v.add(p, "undeclared annotation type %q", md.Type)
			continue
		}
		v.fields(p, ot, md.Fields)
	}
	cp := bp.Append(selection.FieldSegment(pt.ChildrenField))
	if len(b.Children) == 0 {
		v.add(bp, "text block has no children")
	}
	for j := range b.Children {
		c := &b.Children[j]
		p := v.key(cp, c.Key, fmt.Sprintf("children[%d]", j))
		if c.Kind == pt.InlineObject {
			ot, ok := v.s.InlineObject(c.Type)
			if !ok {
				v.add(p, "undeclared inline object type %q", c.Type)
				continue
			}
			v.fields(p, ot, c.Fields)
			continue
		}
		v.marks(p, c.Marks, markDefs)
	}
}

func (v *validator) marks(p selection.Path, marks []string, markDefs map[string]bool) {
	seen := map[string]bool{}
	for _, m := range marks {
		switch {
		case seen[m]:
			v.add(p, "duplicate mark %q", m)
		case v.s.IsDecorator(m), markDefs[m]:
		default:
			v.add(p, "unresolvable mark %q", m)
		}
		seen[m] = true
	}
}
