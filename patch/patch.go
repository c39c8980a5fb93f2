package patch

import (
	"fmt"

	"github.com/signadot/ptedit/selection"
)

type Op string

const (
	Set            Op = "set"
	Unset          Op = "unset"
	Insert         Op = "insert"
	DiffMatchPatch Op = "diffMatchPatch"
)

type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

// Patch is one structural change to a document, addressed by key path.
//
//   - set replaces the value at Path (the whole document for an empty
//     Path), adding a missing object field.
//   - unset removes the field or keyed element at Path. A missing target
//     is a no-op.
//   - insert places Items before or after the keyed element at Path.
//   - diffMatchPatch applies Value, a patch in diff-match-patch text form,
//     to the string at Path.
type Patch struct {
	Op       Op             `json:"type"`
	Path     selection.Path `json:"path"`
	Value    any            `json:"value,omitempty"`
	Position Position       `json:"position,omitempty"`
	Items    []any          `json:"items,omitempty"`
}

func (p Patch) String() string {
	if p.Op == Insert {
		return fmt.Sprintf("%s %s %s (%d items)", p.Op, p.Position, p.Path, len(p.Items))
	}
	return fmt.Sprintf("%s %s", p.Op, p.Path)
}

func NewSet(path selection.Path, v any) Patch {
	return Patch{Op: Set, Path: path, Value: v}
}

func NewUnset(path selection.Path) Patch {
	return Patch{Op: Unset, Path: path}
}

func NewInsert(path selection.Path, pos Position, items ...any) Patch {
	return Patch{Op: Insert, Path: path, Position: pos, Items: items}
}

func NewDiffMatchPatch(path selection.Path, patchText string) Patch {
	return Patch{Op: DiffMatchPatch, Path: path, Value: patchText}
}
