// Package editor runs the change pipeline of a portable-text editor.
//
// An Editor holds one document as a tree and changes it only through
// transition functions: ApplyValue and ApplyPatches take host input,
// Apply takes an Operation, and ApplySelection moves the selection. Each
// returns the events the host should observe, in order.
//
// An edit is applied to the tree, flattened, validated and, if needed,
// normalized. A result that stays invalid is discarded. Otherwise the
// difference to the previous document is published as patch events
// followed by one mutation event.
//
// An Editor is not safe for concurrent use.
package editor
