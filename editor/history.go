package editor

import (
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

type snapshot struct {
	doc pt.Document
	sel *selection.Range
}

type history struct {
	limit int
	undo  []snapshot
	redo  []snapshot
}

func (h *history) record(prev snapshot) {
	if h.limit <= 0 {
		return
	}
	h.undo = append(h.undo, prev)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
}

// back pops the last undo snapshot, saving cur for redo.
func (h *history) back(cur snapshot) (snapshot, bool) {
	if len(h.undo) == 0 {
		return snapshot{}, false
	}
	i := len(h.undo) - 1
	prev := h.undo[i]
	h.undo = h.undo[:i]
	h.redo = append(h.redo, cur)
	return prev, true
}

// forward pops the last redo snapshot, saving cur for undo.
func (h *history) forward(cur snapshot) (snapshot, bool) {
	if len(h.redo) == 0 {
		return snapshot{}, false
	}
	i := len(h.redo) - 1
	next := h.redo[i]
	h.redo = h.redo[:i]
	h.undo = append(h.undo, cur)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	return next, true
}

func (h *history) clear() {
	h.undo, h.redo = nil, nil
}

func (e *Editor) CanUndo() bool { return len(e.hist.undo) > 0 }

func (e *Editor) CanRedo() bool { return len(e.hist.redo) > 0 }
