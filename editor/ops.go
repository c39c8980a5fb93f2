package editor

import (
	"encoding/json"
	"fmt"

	"github.com/signadot/ptedit/patch"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

// Operation is an edit command. The set of operations is closed: the
// types below are all there is.
//
// Operations with an optional point or range act on the current selection
// when it is nil.
type Operation interface {
	OpType() string
	isOperation()
}

// InsertText inserts Text at a span point. An expanded selection is
// deleted first.
type InsertText struct {
	At   *selection.Point `json:"at,omitempty"`
	Text string           `json:"text"`
}

// DeleteRange deletes the content of a range. A collapsed range deletes
// nothing.
type DeleteRange struct {
	Range *selection.Range `json:"range,omitempty"`
}

// SplitBlock splits a text block at a point, moving what follows into a
// new block.
type SplitBlock struct {
	At *selection.Point `json:"at,omitempty"`
}

// MergeBlocks appends the text block Second to the text block First,
// which it must directly follow.
type MergeBlocks struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// ToggleMark adds decorator Mark to the spans of a range, or removes it
// when every span there has it already.
type ToggleMark struct {
	Mark  string           `json:"mark"`
	Range *selection.Range `json:"range,omitempty"`
}

// AddAnnotation annotates the spans of a range with a new mark definition
// per block.
type AddAnnotation struct {
	Annotation string           `json:"annotation"`
	Fields     map[string]any   `json:"fields,omitempty"`
	Range      *selection.Range `json:"range,omitempty"`
}

// RemoveAnnotation removes the annotations of the given type found on the
// spans of a range, everywhere they apply.
type RemoveAnnotation struct {
	Annotation string           `json:"annotation"`
	Range      *selection.Range `json:"range,omitempty"`
}

// SetListItem sets the list type and level of a text block. An empty
// ListItem takes the block out of its list.
type SetListItem struct {
	Block    string `json:"block"`
	ListItem string `json:"listItem"`
	Level    int    `json:"level,omitempty"`
}

type SetStyle struct {
	Block string `json:"block"`
	Style string `json:"style"`
}

// InsertBlock inserts Block before or after Ref; an empty Ref means the
// start (before) or end of the document. Missing keys are generated.
type InsertBlock struct {
	Block    pt.Block       `json:"block"`
	Ref      string         `json:"ref,omitempty"`
	Position patch.Position `json:"position,omitempty"`
}

type RemoveBlock struct {
	Block string `json:"block"`
}

// InsertInlineObject inserts Object at a span point. A missing key is
// generated.
type InsertInlineObject struct {
	Object pt.Child         `json:"object"`
	At     *selection.Point `json:"at,omitempty"`
}

// SetSelection sets or, with a nil Selection, clears the selection.
type SetSelection struct {
	Selection *selection.Range `json:"selection"`
}

type Undo struct{}

type Redo struct{}

func (InsertText) OpType() string         { return "insertText" }
func (DeleteRange) OpType() string        { return "deleteRange" }
func (SplitBlock) OpType() string         { return "splitBlock" }
func (MergeBlocks) OpType() string        { return "mergeBlocks" }
func (ToggleMark) OpType() string         { return "toggleMark" }
func (AddAnnotation) OpType() string      { return "addAnnotation" }
func (RemoveAnnotation) OpType() string   { return "removeAnnotation" }
func (SetListItem) OpType() string        { return "setListItem" }
func (SetStyle) OpType() string           { return "setStyle" }
func (InsertBlock) OpType() string        { return "insertBlock" }
func (RemoveBlock) OpType() string        { return "removeBlock" }
func (InsertInlineObject) OpType() string { return "insertInlineObject" }
func (SetSelection) OpType() string       { return "setSelection" }
func (Undo) OpType() string               { return "undo" }
func (Redo) OpType() string               { return "redo" }

func (InsertText) isOperation()         {}
func (DeleteRange) isOperation()        {}
func (SplitBlock) isOperation()         {}
func (MergeBlocks) isOperation()        {}
func (ToggleMark) isOperation()         {}
func (AddAnnotation) isOperation()      {}
func (RemoveAnnotation) isOperation()   {}
func (SetListItem) isOperation()        {}
func (SetStyle) isOperation()           {}
func (InsertBlock) isOperation()        {}
func (RemoveBlock) isOperation()        {}
func (InsertInlineObject) isOperation() {}
func (SetSelection) isOperation()       {}
func (Undo) isOperation()               {}
func (Redo) isOperation()               {}

var opTypes = map[string]func() Operation{
	"insertText":         func() Operation { return &InsertText{} },
	"deleteRange":        func() Operation { return &DeleteRange{} },
	"splitBlock":         func() Operation { return &SplitBlock{} },
	"mergeBlocks":        func() Operation { return &MergeBlocks{} },
	"toggleMark":         func() Operation { return &ToggleMark{} },
	"addAnnotation":      func() Operation { return &AddAnnotation{} },
	"removeAnnotation":   func() Operation { return &RemoveAnnotation{} },
	"setListItem":        func() Operation { return &SetListItem{} },
	"setStyle":           func() Operation { return &SetStyle{} },
	"insertBlock":        func() Operation { return &InsertBlock{} },
	"removeBlock":        func() Operation { return &RemoveBlock{} },
	"insertInlineObject": func() Operation { return &InsertInlineObject{} },
	"setSelection":       func() Operation { return &SetSelection{} },
	"undo":               func() Operation { return &Undo{} },
	"redo":               func() Operation { return &Redo{} },
}

// DecodeOperation decodes an operation of the form
//
//	{"type": "insertText", "at": {...}, "text": "..."}
func DecodeOperation(data []byte) (Operation, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	mk, ok := opTypes[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation type %q", pt.ErrInvalidOperation, head.Type)
	}
	op := mk()
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("%s: %w", head.Type, err)
	}
	return deref(op), nil
}

// DecodeOperations decodes a JSON array of operations.
func DecodeOperations(data []byte) ([]Operation, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	res := make([]Operation, 0, len(raws))
	for i, raw := range raws {
		op, err := DecodeOperation(raw)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		res = append(res, op)
	}
	return res, nil
}

// MarshalOperation encodes op in the form DecodeOperation reads.
func MarshalOperation(op Operation) ([]byte, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["type"] = op.OpType()
	return json.Marshal(m)
}

func deref(op Operation) Operation {
	switch x := op.(type) {
	case *InsertText:
		return *x
	case *DeleteRange:
		return *x
	case *SplitBlock:
		return *x
	case *MergeBlocks:
		return *x
	case *ToggleMark:
		return *x
	case *AddAnnotation:
		return *x
	case *RemoveAnnotation:
		return *x
	case *SetListItem:
		return *x
	case *SetStyle:
		return *x
	case *InsertBlock:
		return *x
	case *RemoveBlock:
		return *x
	case *InsertInlineObject:
		return *x
	case *SetSelection:
		return *x
	case *Undo:
		return *x
	case *Redo:
		return *x
	}
	return op
}
