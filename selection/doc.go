// Package selection implements key-based addressing of portable-text
// documents: paths, points, ranges, and their ordering.
//
// Paths address blocks and children by key, never by index:
//
//	[{"_key": "b1"}, "children", {"_key": "s1"}]
//
// so a selection survives insertions, splits and merges elsewhere in the
// document. Only removal of the addressed node invalidates it, and every
// function here reports that as pt.ErrStaleReference instead of guessing.
//
// The functions are pure: document order is obtained from a Resolver,
// either an Index over a portable array or a live tree.
package selection
