package editor

import (
	"github.com/signadot/ptedit/patch"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
	"github.com/signadot/ptedit/validate"
)

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Origin tells local edits from changes supplied by the host, so a host
// can skip echoes of its own writes.
type Origin string

const (
	Local  Origin = "local"
	Remote Origin = "remote"
)

type EventType string

const (
	EventReady        EventType = "ready"
	EventValue        EventType = "value"
	EventInvalidValue EventType = "invalidValue"
	EventSelection    EventType = "selection"
	EventPatch        EventType = "patch"
	EventMutation     EventType = "mutation"
	EventError        EventType = "error"
)

// Event is one entry of the event stream. Which fields are set depends on
// Type:
//
//	value         Value
//	invalidValue  Original, Value (the repaired document), Issues
//	selection     Selection (nil when cleared)
//	patch         Patch
//	mutation      Patches, Selection
//	error         Kind, Detail, Issues
//
// Revision is the fingerprint of the committed document once the event's
// transition is done.
type Event struct {
	Type      EventType        `json:"type"`
	Origin    Origin           `json:"origin"`
	Revision  string           `json:"revision,omitempty"`
	Value     pt.Document      `json:"value,omitempty"`
	Original  pt.Document      `json:"original,omitempty"`
	Issues    []validate.Issue `json:"issues,omitempty"`
	Selection *selection.Range `json:"selection,omitempty"`
	Patch     *patch.Patch     `json:"patch,omitempty"`
	Patches   []patch.Patch    `json:"patches,omitempty"`
	Kind      string           `json:"kind,omitempty"`
	Detail    string           `json:"detail,omitempty"`
}

// Types lists the types of evs in order.
func Types(evs []Event) []EventType {
	res := make([]EventType, len(evs))
	for i := range evs {
		res[i] = evs[i].Type
	}
	return res
}
