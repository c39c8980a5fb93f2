// Package keygen produces keys for blocks, children and mark definitions.
//
// A Generator is scoped to one editor: nothing here is process-wide, so
// tests and concurrent editors never depend on each other's key order.
package keygen

import (
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

type Generator interface {
	Key() string
}

// Func adapts a function to a Generator.
type Func func() string

func (f Func) Key() string {
	return f()
}

// Counter generates prefix+"1", prefix+"2", ...
type Counter struct {
	mu     sync.Mutex
	prefix string
	n      uint64
}

func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

func (c *Counter) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.prefix + strconv.FormatUint(c.n, 10)
}

// Reset restarts the sequence.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.n = 0
	c.mu.Unlock()
}

type random struct{}

// NewRandom returns a generator of 12 hex character keys taken from random
// (version 4) UUIDs.
func NewRandom() Generator {
	return random{}
}

func (random) Key() string {
	u := uuid.New()
	return hex.EncodeToString(u[:6])
}

// Fresh returns a key from g that is not in used, and records it in used.
func Fresh(g Generator, used map[string]bool) string {
	for {
		k := g.Key()
		if k == "" || used[k] {
			continue
		}
		if used != nil {
			used[k] = true
		}
		return k
	}
}
