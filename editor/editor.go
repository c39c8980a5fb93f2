package editor

import (
	"fmt"
	"log/slog"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/signadot/ptedit/debug"
	"github.com/signadot/ptedit/keygen"
	"github.com/signadot/ptedit/patch"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/schema"
	"github.com/signadot/ptedit/selection"
	"github.com/signadot/ptedit/tree"
	"github.com/signadot/ptedit/validate"
)

const DefaultHistoryLimit = 100

type Config struct {
	// Schema defaults to schema.Default().
	Schema *schema.Schema
	// Keys generates the keys of new nodes; it defaults to
	// keygen.NewRandom().
	Keys keygen.Generator
	// Log defaults to slog.Default().
	Log *slog.Logger

	ReadOnly bool
	// SyncValue adds a value event carrying the whole document after
	// every mutation.
	SyncValue bool
	// HistoryLimit bounds undo history; 0 means DefaultHistoryLimit and a
	// negative limit disables undo.
	HistoryLimit int
}

// Editor is the change pipeline of one document. Its transition
// functions apply one change and return the events it produced. An Editor
// is not safe for concurrent use.
type Editor struct {
	id     string
	schema *schema.Schema
	keys   keygen.Generator
	log    *slog.Logger
	sync   bool

	state    State
	readOnly bool
	// set while the committed value is invalid even after repair
	invalid bool

	doc  pt.Document
	rev  string
	tree *tree.Tree
	sel  *selection.Range
	used map[string]bool
	hist history
}

func New(cfg Config) (*Editor, error) {
	s := cfg.Schema
	if s == nil {
		s = schema.Default()
	}
	if !s.Compiled() {
		if err := s.Compile(); err != nil {
			return nil, fmt.Errorf("editor schema: %w", err)
		}
	}
	keys := cfg.Keys
	if keys == nil {
		keys = keygen.NewRandom()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	limit := cfg.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	id := uuid.NewString()[:8]
	return &Editor{
		id:       id,
		schema:   s,
		keys:     keys,
		log:      log.With("editor", id),
		sync:     cfg.SyncValue,
		readOnly: cfg.ReadOnly,
		tree:     tree.New(),
		used:     map[string]bool{},
		hist:     history{limit: limit},
	}, nil
}

func (e *Editor) ID() string             { return e.id }
func (e *Editor) State() State           { return e.state }
func (e *Editor) ReadOnly() bool         { return e.readOnly }
func (e *Editor) Schema() *schema.Schema { return e.schema }
func (e *Editor) Revision() string       { return e.rev }

// Value returns a copy of the committed document.
func (e *Editor) Value() pt.Document {
	return e.doc.Clone()
}

func (e *Editor) Selection() *selection.Range {
	return cloneRange(e.sel)
}

// Tree returns the live tree. Callers must not modify it.
func (e *Editor) Tree() *tree.Tree {
	return e.tree
}

// Decorations returns the decorations on a block or child key. The
// editor marks the nodes holding the ends of the selection with "anchor"
// and "focus".
func (e *Editor) Decorations(key string) []string {
	if e.tree == nil {
		return nil
	}
	return e.tree.Decorations(key)
}

func (e *Editor) decorate() {
	if e.tree == nil {
		return
	}
	e.tree.ClearDecorations()
	if e.sel == nil {
		return
	}
	for _, end := range []struct {
		name string
		p    selection.Point
	}{{"anchor", e.sel.Anchor}, {"focus", e.sel.Focus}} {
		k, ok := end.p.Path.ChildKey()
		if !ok {
			k, _ = end.p.Path.BlockKey()
		}
		if err := e.tree.Decorate(k, end.name); err != nil {
			e.log.Debug("selection not decorated", "key", k, "error", err)
		}
	}
}

// Invalid reports whether the committed value failed validation even
// after repair; edits are refused until the host supplies a valid one.
func (e *Editor) Invalid() bool {
	return e.invalid
}

// SetReadOnly marks the document read-only or editable. While read-only,
// edit operations fail with pt.ErrReadOnly and emit nothing; selection
// changes and host values are still accepted.
func (e *Editor) SetReadOnly(ro bool) {
	e.readOnly = ro
}

func (e *Editor) fresh() string {
	return keygen.Fresh(e.keys, e.used)
}

func (e *Editor) remember(doc pt.Document) {
	for _, k := range doc.Keys() {
		e.used[k] = true
	}
}

func (e *Editor) event(t EventType, o Origin) Event {
	return Event{Type: t, Origin: o, Revision: e.rev}
}

func (e *Editor) selectionEvent(o Origin) Event {
	ev := e.event(EventSelection, o)
	ev.Selection = cloneRange(e.sel)
	return ev
}

func clonePoint(p selection.Point) selection.Point {
	return selection.Point{Path: slices.Clone(p.Path), Offset: p.Offset}
}

func cloneRange(r *selection.Range) *selection.Range {
	if r == nil {
		return nil
	}
	return &selection.Range{Anchor: clonePoint(r.Anchor), Focus: clonePoint(r.Focus)}
}

func sameRange(a, b *selection.Range) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// ApplyValue sets the document from the host; nil stands for an absent
// value. The first call moves the editor from Uninitialized to Ready and
// emits ready then value.
//
// An invalid value is repaired by normalization and reported by an
// invalidValue event carrying both documents. A value that is still
// invalid after repair is kept, but edits fail with pt.ErrInvalidValue
// until the host supplies a valid one. A value equal to the committed one
// emits nothing.
func (e *Editor) ApplyValue(doc pt.Document) ([]Event, error) {
	first := e.state == Uninitialized
	if !first && pt.Fingerprint(doc) == e.rev {
		return nil, nil
	}
	e.remember(doc)
	found := validate.Validate(doc, e.schema)
	norm, repaired := validate.Normalize(doc, e.schema, keygen.Func(e.fresh))
	post := validate.Validate(norm, e.schema)
	t, err := tree.FromArray(norm)
	if err != nil {
		e.log.Error("value rejected", "error", err)
		return nil, fmt.Errorf("apply value: %w", err)
	}
	e.doc, e.tree, e.rev = norm, t, pt.Fingerprint(norm)
	e.remember(norm)
	e.invalid = !post.Valid()
	e.hist.clear()

	var evs []Event
	if repaired || !found.Valid() {
		e.log.Info("value repaired", "issues", len(found.Issues), "invalid", e.invalid)
		ev := e.event(EventInvalidValue, Remote)
		ev.Original = doc.Clone()
		ev.Value = norm.Clone()
		ev.Issues = found.Issues
		evs = append(evs, ev)
	}
	if first {
		e.state = Ready
		evs = append(evs, e.event(EventReady, Remote))
	}
	ev := e.event(EventValue, Remote)
	ev.Value = norm.Clone()
	evs = append(evs, ev)
	if e.sel != nil && e.checkRange(*e.sel) != nil {
		e.sel = nil
		evs = append(evs, e.selectionEvent(Remote))
	}
	e.decorate()
	return evs, nil
}

// ApplySelection sets the selection from the host; nil clears it. Only a
// selection event is emitted, and only if the selection changed.
func (e *Editor) ApplySelection(r *selection.Range) ([]Event, error) {
	if e.state != Ready {
		return nil, pt.ErrNotReady
	}
	return e.setSelection(r, Remote)
}

func (e *Editor) setSelection(r *selection.Range, o Origin) ([]Event, error) {
	if r != nil {
		if err := e.checkRange(*r); err != nil {
			return nil, err
		}
	}
	if sameRange(e.sel, r) {
		return nil, nil
	}
	e.sel = cloneRange(r)
	e.decorate()
	if debug.Selection() {
		debug.Logf("editor: selection %v\n", e.sel)
	}
	return []Event{e.selectionEvent(o)}, nil
}

// checkRange reports whether r resolves in the live tree with its offsets
// in bounds.
func (e *Editor) checkRange(r selection.Range) error {
	if err := selection.Check(e.tree, r); err != nil {
		return err
	}
	for _, p := range []selection.Point{r.Anchor, r.Focus} {
		ck, ok := p.Path.ChildKey()
		if !ok {
			continue
		}
		c, _ := e.tree.Child(ck)
		limit := 0
		if c.IsSpan() {
			limit = utf8.RuneCountInString(c.Text)
		}
		if p.Offset > limit {
			return fmt.Errorf("%w: offset %d out of range at %s", pt.ErrInvalidOperation, p.Offset, p.Path)
		}
	}
	return nil
}

func (e *Editor) reject(op Operation, err error) error {
	e.log.Warn("operation rejected", "op", op.OpType(), "error", err)
	return fmt.Errorf("%s: %w", op.OpType(), err)
}

// rebuild discards the live tree in favour of the committed document.
func (e *Editor) rebuild() {
	t, err := tree.FromArray(e.doc)
	if err != nil {
		// committed documents always have unique keys
		panic(err)
	}
	e.tree = t
	e.decorate()
}

// Apply runs one operation. Operations are atomic: on error the document
// and selection are unchanged and, except for results that stay invalid
// after repair (reported by an error event), nothing is emitted.
func (e *Editor) Apply(op Operation) ([]Event, error) {
	op = deref(op)
	if debug.Ops() {
		debug.Logf("editor: %s %v\n", op.OpType(), op)
	}
	if e.state != Ready {
		return nil, e.reject(op, pt.ErrNotReady)
	}
	if sel, ok := op.(SetSelection); ok {
		return e.setSelection(sel.Selection, Local)
	}
	if e.readOnly {
		return nil, e.reject(op, pt.ErrReadOnly)
	}
	if e.invalid {
		return nil, e.reject(op, pt.ErrInvalidValue)
	}
	switch op.(type) {
	case Undo:
		return e.undo()
	case Redo:
		return e.redo()
	}
	sel, err := e.run(op)
	if err != nil {
		e.rebuild()
		return nil, e.reject(op, err)
	}
	return e.finish(op, sel)
}

func (e *Editor) finish(op Operation, sel *selection.Range) ([]Event, error) {
	if e.tree.Len() == 0 {
		b := validate.EmptyDocument(e.schema, keygen.Func(e.fresh))[0]
		if err := e.tree.InsertBlock(b, "", false); err != nil {
			e.rebuild()
			return nil, e.reject(op, err)
		}
		sel = caret(b.Key, b.Children[0].Key, 0)
	}
	next := e.tree.ToArray()
	if res := validate.Validate(next, e.schema); !res.Valid() {
		norm, _ := validate.Normalize(next, e.schema, keygen.Func(e.fresh))
		post := validate.Validate(norm, e.schema)
		if !post.Valid() {
			e.rebuild()
			err := e.reject(op, post.Err())
			ev := e.event(EventError, Local)
			ev.Kind = pt.ErrorKind(err)
			ev.Detail = err.Error()
			ev.Issues = post.Issues
			return []Event{ev}, err
		}
		e.log.Info("edit result repaired", "op", op.OpType(), "issues", len(res.Issues))
		t, err := tree.FromArray(norm)
		if err != nil {
			e.rebuild()
			return nil, e.reject(op, err)
		}
		next, e.tree = norm, t
	}
	if sel != nil && e.checkRange(*sel) != nil {
		sel = nil
	}
	evs := e.commit(next, sel, Local, true)
	e.log.Debug("operation applied", "op", op.OpType(), "events", len(evs))
	return evs, nil
}

// commit makes next the committed document and sel the selection, and
// returns the events describing the change.
func (e *Editor) commit(next pt.Document, sel *selection.Range, o Origin, record bool) []Event {
	patches := patch.Diff(e.doc, next)
	var evs []Event
	if len(patches) != 0 {
		if record {
			e.hist.record(snapshot{doc: e.doc, sel: cloneRange(e.sel)})
		}
		e.doc, e.rev = next, pt.Fingerprint(next)
		e.remember(next)
		if debug.Patches() {
			debug.LogAny(patches)
		}
		for i := range patches {
			ev := e.event(EventPatch, o)
			ev.Patch = &patches[i]
			evs = append(evs, ev)
		}
		ev := e.event(EventMutation, o)
		ev.Patches = patches
		ev.Selection = cloneRange(sel)
		evs = append(evs, ev)
	}
	if !sameRange(e.sel, sel) {
		e.sel = cloneRange(sel)
		evs = append(evs, e.selectionEvent(o))
	}
	if len(patches) != 0 && e.sync {
		ev := e.event(EventValue, o)
		ev.Value = e.doc.Clone()
		evs = append(evs, ev)
	}
	e.decorate()
	return evs
}

func (e *Editor) undo() ([]Event, error) {
	prev, ok := e.hist.back(snapshot{doc: e.doc, sel: cloneRange(e.sel)})
	if !ok {
		return nil, nil
	}
	return e.restore(prev)
}

func (e *Editor) redo() ([]Event, error) {
	next, ok := e.hist.forward(snapshot{doc: e.doc, sel: cloneRange(e.sel)})
	if !ok {
		return nil, nil
	}
	return e.restore(next)
}

func (e *Editor) restore(s snapshot) ([]Event, error) {
	t, err := tree.FromArray(s.doc)
	if err != nil {
		return nil, err
	}
	e.tree = t
	return e.commit(s.doc, s.sel, Local, false), nil
}

// ApplyPatches applies patches supplied by the host, such as writes
// received from a backend. The resulting events have remote origin. A
// selection left pointing at removed nodes is cleared. Patches are
// accepted while the document is read-only.
func (e *Editor) ApplyPatches(ps []patch.Patch) ([]Event, error) {
	if e.state != Ready {
		return nil, pt.ErrNotReady
	}
	next, err := patch.Apply(e.doc, ps)
	if err != nil {
		e.log.Warn("patches rejected", "error", err)
		return nil, fmt.Errorf("apply patches: %w", err)
	}
	if len(next) == 0 {
		next = validate.EmptyDocument(e.schema, keygen.Func(e.fresh))
	}
	if res := validate.Validate(next, e.schema); !res.Valid() {
		norm, _ := validate.Normalize(next, e.schema, keygen.Func(e.fresh))
		post := validate.Validate(norm, e.schema)
		if !post.Valid() {
			err := fmt.Errorf("apply patches: %w", post.Err())
			e.log.Warn("patches rejected", "error", err)
			ev := e.event(EventError, Remote)
			ev.Kind = pt.ErrorKind(err)
			ev.Detail = err.Error()
			ev.Issues = post.Issues
			return []Event{ev}, err
		}
		e.log.Info("patch result repaired", "issues", len(res.Issues))
		next = norm
	}
	t, err := tree.FromArray(next)
	if err != nil {
		return nil, fmt.Errorf("apply patches: %w", err)
	}
	e.tree = t
	e.invalid = false
	e.hist.clear()
	sel := e.sel
	if sel != nil && e.checkRange(*sel) != nil {
		sel = nil
	}
	return e.commit(next, sel, Remote, false), nil
}
