package patch

import (
	"maps"
	"reflect"
	"slices"
	"unicode/utf8"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/signadot/ptedit/debug"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

type differ struct {
	dmp *diffpatch.DiffMatchPatch
	res []Patch
}

// Diff returns patches which, applied in order to from, yield to.
//
// Keyed arrays (blocks, children, mark definitions) are compared by key
// sequence: removed elements are unset, added runs are inserted next to
// a surviving neighbour, and elements present on both sides are compared
// field by field. Changed span text is sent as a diffMatchPatch. When no
// element of an array survives, the array is set as a whole.
func Diff(from, to pt.Document) []Patch {
	d := &differ{dmp: diffpatch.New()}
	d.array(nil, from.Value(), to.Value())
	if debug.Patch() {
		debug.Logf("patch: diff gave %d patches\n", len(d.res))
		for i := range d.res {
			debug.Logf("   | %s\n", d.res[i])
		}
	}
	return d.res
}

func keysOf(arr []any) ([]string, bool) {
	seen := make(map[string]bool, len(arr))
	res := make([]string, len(arr))
	for i, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		k, _ := m[pt.KeyField].(string)
		if k == "" || seen[k] {
			return nil, false
		}
		seen[k] = true
		res[i] = k
	}
	return res, true
}

func mapKeysTo(m map[string]rune, keys []string) []rune {
	rs := make([]rune, len(keys))
	for i, k := range keys {
		r, ok := m[k]
		if !ok {
			r = rune(len(m))
			m[k] = r
		}
		rs[i] = r
	}
	return rs
}

func (d *differ) array(p selection.Path, from, to []any) {
	fk, okFrom := keysOf(from)
	tk, okTo := keysOf(to)
	if !okFrom || !okTo {
		if !reflect.DeepEqual(from, to) {
			d.res = append(d.res, NewSet(p, pt.CloneValue(to)))
		}
		return
	}
	runes := map[string]rune{}
	fr := mapKeysTo(runes, fk)
	tr := mapKeysTo(runes, tk)
	diffs := d.dmp.DiffMainRunes(fr, tr, false)

	var deleted []string
	type pair struct{ from, to int }
	var same []pair
	inserted := make([]bool, len(to))
	fi, ti := 0, 0
	for i := range diffs {
		n := utf8.RuneCountInString(diffs[i].Text)
		switch diffs[i].Type {
		case diffpatch.DiffDelete:
			deleted = append(deleted, fk[fi:fi+n]...)
			fi += n
		case diffpatch.DiffEqual:
			for range n {
				same = append(same, pair{fi, ti})
				fi++
				ti++
			}
		case diffpatch.DiffInsert:
			for range n {
				inserted[ti] = true
				ti++
			}
		}
	}
	if len(same) == 0 && len(to) != 0 {
		d.res = append(d.res, NewSet(p, pt.CloneValue(to)))
		return
	}
	for _, k := range deleted {
		d.res = append(d.res, NewUnset(p.Append(selection.KeySegment(k))))
	}
	for s := 0; s < len(to); {
		if !inserted[s] {
			s++
			continue
		}
		e := s
		for e < len(to) && inserted[e] {
			e++
		}
		items := make([]any, 0, e-s)
		for _, v := range to[s:e] {
			items = append(items, pt.CloneValue(v))
		}
		if s > 0 {
			d.res = append(d.res, NewInsert(p.Append(selection.KeySegment(tk[s-1])), After, items...))
		} else {
			d.res = append(d.res, NewInsert(p.Append(selection.KeySegment(tk[e])), Before, items...))
		}
		s = e
	}
	for _, sp := range same {
		fm := from[sp.from].(map[string]any)
		tm := to[sp.to].(map[string]any)
		d.object(p.Append(selection.KeySegment(tk[sp.to])), fm, tm)
	}
}

func (d *differ) object(p selection.Path, from, to map[string]any) {
	fields := slices.Sorted(maps.Keys(from))
	for f := range to {
		if _, ok := from[f]; !ok {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)
	for _, f := range fields {
		fv, inFrom := from[f]
		tv, inTo := to[f]
		fp := p.Append(selection.FieldSegment(f))
		switch {
		case !inTo:
			d.res = append(d.res, NewUnset(fp))
		case !inFrom:
			d.res = append(d.res, NewSet(fp, pt.CloneValue(tv)))
		case reflect.DeepEqual(fv, tv):
		default:
			d.field(fp, f, fv, tv)
		}
	}
}

func (d *differ) field(p selection.Path, name string, from, to any) {
	switch name {
	case pt.ChildrenField, pt.MarkDefsField:
		fa, okFrom := from.([]any)
		ta, okTo := to.([]any)
		if okFrom && okTo {
			d.array(p, fa, ta)
			return
		}
	case pt.TextField:
		fs, okFrom := from.(string)
		ts, okTo := to.(string)
		if okFrom && okTo && fs != "" && ts != "" {
			d.res = append(d.res, NewDiffMatchPatch(p, d.dmp.PatchToText(d.dmp.PatchMake(fs, ts))))
			return
		}
	}
	d.res = append(d.res, NewSet(p, pt.CloneValue(to)))
}
