package patch

import (
	"fmt"
	"slices"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/signadot/ptedit/debug"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

// Apply replays patches in order on a copy of doc.
func Apply(doc pt.Document, patches []Patch) (pt.Document, error) {
	var root any = doc.Value()
	for i := range patches {
		if err := applyOne(&root, &patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d (%s): %w", i, &patches[i], err)
		}
	}
	return pt.FromValue(root)
}

// slot is an assignable location in a generic value.
type slot struct {
	get func() any
	set func(any)
}

func indexOfKey(arr []any, key string) int {
	return slices.IndexFunc(arr, func(v any) bool {
		m, ok := v.(map[string]any)
		return ok && m[pt.KeyField] == key
	})
}

// walk resolves p to a slot within *root.
func walk(root *any, p selection.Path) (slot, error) {
	s := slot{get: func() any { return *root }, set: func(v any) { *root = v }}
	for _, seg := range p {
		cur := s.get()
		if seg.IsKey() {
			arr, ok := cur.([]any)
			if !ok {
				return slot{}, fmt.Errorf("%w: %s: key segment on %T", pt.ErrInvalidPath, p, cur)
			}
			j := indexOfKey(arr, seg.Key)
			if j < 0 {
				return slot{}, fmt.Errorf("%w: %s: no element keyed %q", pt.ErrStaleReference, p, seg.Key)
			}
			s = slot{get: func() any { return arr[j] }, set: func(v any) { arr[j] = v }}
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return slot{}, fmt.Errorf("%w: %s: field segment on %T", pt.ErrInvalidPath, p, cur)
		}
		f := seg.Field
		s = slot{get: func() any { return m[f] }, set: func(v any) { m[f] = v }}
	}
	return s, nil
}

// lookup reports the value at p, if any.
func lookup(root any, p selection.Path) (any, bool) {
	s, err := walk(&root, p[:max(len(p)-1, 0)])
	if err != nil {
		return nil, false
	}
	if len(p) == 0 {
		return root, true
	}
	last := p[len(p)-1]
	switch c := s.get().(type) {
	case []any:
		if !last.IsKey() {
			return nil, false
		}
		j := indexOfKey(c, last.Key)
		if j < 0 {
			return nil, false
		}
		return c[j], true
	case map[string]any:
		if last.IsKey() {
			return nil, false
		}
		v, ok := c[last.Field]
		return v, ok
	}
	return nil, false
}

func applyOne(root *any, p *Patch) error {
	if debug.Patch() {
		debug.Logf("patch: apply %s\n", p)
	}
	if len(p.Path) == 0 {
		if p.Op != Set {
			return fmt.Errorf("%w: %s needs a non-empty path", pt.ErrInvalidPath, p.Op)
		}
		*root = pt.CloneValue(p.Value)
		return nil
	}
	parent, err := walk(root, p.Path[:len(p.Path)-1])
	if err != nil {
		return err
	}
	last := p.Path[len(p.Path)-1]
	switch p.Op {
	case Set:
		return set(parent, last, pt.CloneValue(p.Value))
	case Unset:
		return unset(parent, last)
	case Insert:
		return insert(parent, last, p.Position, p.Items)
	case DiffMatchPatch:
		return applyText(parent, last, p.Value)
	}
	return fmt.Errorf("%w: unknown patch type %q", pt.ErrInvalidOperation, p.Op)
}

func set(parent slot, last selection.Segment, v any) error {
	switch c := parent.get().(type) {
	case []any:
		if !last.IsKey() {
			return fmt.Errorf("%w: field %q of an array", pt.ErrInvalidPath, last.Field)
		}
		j := indexOfKey(c, last.Key)
		if j < 0 {
			return fmt.Errorf("%w: no element keyed %q", pt.ErrStaleReference, last.Key)
		}
		c[j] = v
		return nil
	case map[string]any:
		if last.IsKey() {
			return fmt.Errorf("%w: key %q in an object", pt.ErrInvalidPath, last.Key)
		}
		c[last.Field] = v
		return nil
	default:
		return fmt.Errorf("%w: cannot set in %T", pt.ErrInvalidPath, c)
	}
}

func unset(parent slot, last selection.Segment) error {
	switch c := parent.get().(type) {
	case []any:
		if j := indexOfKey(c, last.Key); last.IsKey() && j >= 0 {
			parent.set(slices.Delete(slices.Clone(c), j, j+1))
		}
		return nil
	case map[string]any:
		if !last.IsKey() {
			delete(c, last.Field)
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot unset in %T", pt.ErrInvalidPath, c)
	}
}

func insert(parent slot, last selection.Segment, pos Position, items []any) error {
	c, ok := parent.get().([]any)
	if !ok || !last.IsKey() {
		return fmt.Errorf("%w: insert needs a keyed array element", pt.ErrInvalidPath)
	}
	j := indexOfKey(c, last.Key)
	if j < 0 {
		return fmt.Errorf("%w: no element keyed %q", pt.ErrStaleReference, last.Key)
	}
	switch pos {
	case Before:
	case After:
		j++
	default:
		return fmt.Errorf("%w: insert position %q", pt.ErrInvalidOperation, pos)
	}
	cp := make([]any, len(items))
	for i := range items {
		cp[i] = pt.CloneValue(items[i])
	}
	parent.set(slices.Insert(slices.Clone(c), j, cp...))
	return nil
}

func applyText(parent slot, last selection.Segment, v any) error {
	text, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: diffMatchPatch value is %T", pt.ErrInvalidOperation, v)
	}
	m, ok := parent.get().(map[string]any)
	if !ok || last.IsKey() {
		return fmt.Errorf("%w: diffMatchPatch needs an object field", pt.ErrInvalidPath)
	}
	cur, ok := m[last.Field].(string)
	if !ok {
		return fmt.Errorf("%w: %q is not a string", pt.ErrInvalidOperation, last.Field)
	}
	out, err := patchString(cur, text)
	if err != nil {
		return err
	}
	m[last.Field] = out
	return nil
}

func patchString(cur, text string) (string, error) {
	dmp := diffpatch.New()
	ps, err := dmp.PatchFromText(text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pt.ErrInvalidOperation, err)
	}
	out, applied := dmp.PatchApply(ps, cur)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("%w: text patch hunk %d does not apply", pt.ErrInvalidOperation, i)
		}
	}
	return out, nil
}
