package schema

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = map[string]*Schema{}
)

func init() {
	registry["default"] = Default()
}

// Register makes a compiled schema available by name, for hosts and tools
// that select a descriptor by name rather than by file.
func Register(s *Schema) error {
	if s == nil {
		return fmt.Errorf("cannot register nil schema")
	}
	if s.Name == "" {
		return fmt.Errorf("schema must have a name")
	}
	if err := s.Compile(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[s.Name]; exists {
		return fmt.Errorf("schema %q already registered", s.Name)
	}
	registry[s.Name] = s
	return nil
}

// Lookup looks up a schema by name
func Lookup(name string) *Schema {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// Names returns the registered names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}
