package tree

import (
	"fmt"
	"maps"
	"slices"

	"github.com/signadot/ptedit/pt"
)

// Decorate attaches a named decoration, such as a caret or a search hit,
// to the block or child key. Decorations live only in the tree: ToArray
// never returns them, and they vanish with their node.
func (t *Tree) Decorate(key, name string) error {
	if _, ok := t.nodes[key]; !ok {
		return fmt.Errorf("%w: %q", pt.ErrStaleReference, key)
	}
	if t.decos == nil {
		t.decos = map[string]map[string]bool{}
	}
	if t.decos[key] == nil {
		t.decos[key] = map[string]bool{}
	}
	t.decos[key][name] = true
	return nil
}

func (t *Tree) Undecorate(key, name string) {
	delete(t.decos[key], name)
	if len(t.decos[key]) == 0 {
		delete(t.decos, key)
	}
}

// Decorations returns the sorted decoration names of key.
func (t *Tree) Decorations(key string) []string {
	return slices.Sorted(maps.Keys(t.decos[key]))
}

func (t *Tree) ClearDecorations() {
	t.decos = nil
}
