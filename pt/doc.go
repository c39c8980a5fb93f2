// Package pt defines the portable-text document model.
//
// # Overview
//
// A Document is an ordered array of blocks. Text blocks hold an ordered
// sequence of children (spans and inline objects), an optional style, list
// attributes and the mark definitions (annotations) their spans refer to.
// Object blocks hold a schema declared payload and no children.
//
// The portable array is the document of record: it is what a host persists
// or transmits. It is JSON-compatible and schema agnostic on the wire:
//
//	[{"_key": "b1", "_type": "block", "style": "normal", "markDefs": [],
//	  "children": [{"_key": "s1", "_type": "span", "text": "Hello", "marks": []}]}]
//
// # Keys
//
// Blocks, children and mark definitions share one keyspace: every key is
// unique within the whole document. Keys are never reused or mutated, so
// addresses built from keys survive edits elsewhere in the document.
//
// # Generic form
//
// Value and FromValue convert between the typed model and the generic form
// ([]any, map[string]any, string, float64, bool) used by patches and JSON
// tooling. Fields the model does not know about are kept in the Fields map
// of their owner so that decode then encode is lossless.
//
// # Errors
//
// errs.go holds the error taxonomy shared by the other packages. Use
// errors.Is to classify errors returned anywhere in this module.
package pt
