// Package tree provides the live editing form of a portable-text
// document.
//
// A Tree is an arena: every block and child is a node in one key to node
// map, linked to its parent and siblings by key. Splitting a block, moving
// children during a merge or removing a node therefore only rewrites a few
// links. FromArray and ToArray convert between the tree and the portable
// array; for any valid document d, ToArray(FromArray(d)) equals d.
package tree
