package debug

import (
	"encoding/json"
	"fmt"
)

// Logf writes a debug line. Arguments that marshal as JSON objects or
// arrays (documents, patches, ranges, maps, slices) are rendered as
// indented JSON; scalars are formatted as usual.
func Logf(msg string, args ...any) {
	for i := range args {
		a := args[i]
		switch a.(type) {
		case bool, string, float64, int, int64, uint64, error, fmt.Stringer:
			continue
		case nil:
			continue
		}
		d, err := json.MarshalIndent(a, "   |", "  ")
		if err != nil {
			args[i] = fmt.Sprintf("%v", a)
			continue
		}
		args[i] = string(d)
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, msg, args...)
}
