package debug

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

type debug struct {
	Normalize bool
	Ops       bool
	Patch     bool
	Patches   bool
	Selection bool
	Tree      bool
}

var (
	d   *debug
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

func init() {
	d = &debug{}
	d.Normalize = boolEnv("PTE_DEBUG_NORMALIZE")
	d.Ops = boolEnv("PTE_DEBUG_OPS")
	d.Patch = boolEnv("PTE_DEBUG_PATCH")
	d.Patches = boolEnv("PTE_DEBUG_PATCHES")
	d.Selection = boolEnv("PTE_DEBUG_SELECTION")
	d.Tree = boolEnv("PTE_DEBUG_TREE")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Normalize() bool {
	return d.Normalize
}
func Ops() bool {
	return d.Ops
}
func Patch() bool {
	return d.Patch
}
func Patches() bool {
	return d.Patches
}
func Selection() bool {
	return d.Selection
}
func Tree() bool {
	return d.Tree
}

// SetOutput redirects debug output, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func LogAny(v any) {
	mu.Lock()
	defer mu.Unlock()
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(out, "%v\n", v)
		return
	}
	out.Write(d)
	out.Write([]byte{'\n'})
}
