package patch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/signadot/ptedit/debug"
	"github.com/signadot/ptedit/pt"
	"github.com/signadot/ptedit/selection"
)

// jsonOp is one RFC 6902 operation.
type jsonOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

// pointer renders p as a JSON pointer into root, resolving keys to
// indices.
func pointer(root any, p selection.Path) (string, error) {
	var b strings.Builder
	cur := root
	for _, seg := range p {
		if seg.IsKey() {
			arr, ok := cur.([]any)
			if !ok {
				return "", fmt.Errorf("%w: %s: key segment on %T", pt.ErrInvalidPath, p, cur)
			}
			j := indexOfKey(arr, seg.Key)
			if j < 0 {
				return "", fmt.Errorf("%w: %s: no element keyed %q", pt.ErrStaleReference, p, seg.Key)
			}
			b.WriteString("/" + strconv.Itoa(j))
			cur = arr[j]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: %s: field segment on %T", pt.ErrInvalidPath, p, cur)
		}
		b.WriteString("/" + escapePointer(seg.Field))
		cur = m[seg.Field]
	}
	return b.String(), nil
}

func rawValue(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// jsonOps renders patches as RFC 6902 operations against root. Key
// addresses are resolved against the state each patch applies to, so
// root is advanced by the patches as they are rendered.
func jsonOps(root any, patches []Patch) ([]jsonOp, error) {
	var res []jsonOp
	for i := range patches {
		ops, err := jsonOpsOf(&root, &patches[i])
		if err != nil {
			return nil, fmt.Errorf("patch %d (%s): %w", i, &patches[i], err)
		}
		res = append(res, ops...)
	}
	return res, nil
}

func jsonOpsOf(root *any, p *Patch) ([]jsonOp, error) {
	var res []jsonOp
	switch p.Op {
	case Set:
		if len(p.Path) == 0 {
			// replacing the whole document, element by element
			cur, _ := (*root).([]any)
			for range cur {
				res = append(res, jsonOp{Op: "remove", Path: "/0"})
			}
			items, ok := p.Value.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: document must be an array, got %T", pt.ErrSchemaViolation, p.Value)
			}
			for _, item := range items {
				raw, err := rawValue(item)
				if err != nil {
					return nil, err
				}
				res = append(res, jsonOp{Op: "add", Path: "/-", Value: raw})
			}
			break
		}
		ptr, err := pointer(*root, p.Path)
		if err != nil {
			return nil, err
		}
		raw, err := rawValue(p.Value)
		if err != nil {
			return nil, err
		}
		op := "add"
		if _, ok := lookup(*root, p.Path); ok {
			op = "replace"
		}
		res = append(res, jsonOp{Op: op, Path: ptr, Value: raw})
	case Unset:
		if _, ok := lookup(*root, p.Path); !ok {
			break
		}
		ptr, err := pointer(*root, p.Path)
		if err != nil {
			return nil, err
		}
		res = append(res, jsonOp{Op: "remove", Path: ptr})
	case Insert:
		if len(p.Path) == 0 || !p.Path[len(p.Path)-1].IsKey() {
			return nil, fmt.Errorf("%w: insert needs a keyed array element", pt.ErrInvalidPath)
		}
		ptr, err := pointer(*root, p.Path)
		if err != nil {
			return nil, err
		}
		cut := strings.LastIndexByte(ptr, '/')
		at, _ := strconv.Atoi(ptr[cut+1:])
		if p.Position == After {
			at++
		}
		for k, item := range p.Items {
			raw, err := rawValue(item)
			if err != nil {
				return nil, err
			}
			res = append(res, jsonOp{Op: "add", Path: ptr[:cut] + "/" + strconv.Itoa(at+k), Value: raw})
		}
	case DiffMatchPatch:
		ptr, err := pointer(*root, p.Path)
		if err != nil {
			return nil, err
		}
		res = append(res, jsonOp{Op: "replace", Path: ptr})
	}
	if err := applyOne(root, p); err != nil {
		return nil, err
	}
	if p.Op == DiffMatchPatch {
		// the replacement text is only known once the patch is applied
		v, _ := lookup(*root, p.Path)
		raw, err := rawValue(v)
		if err != nil {
			return nil, err
		}
		res[0].Value = raw
	}
	return res, nil
}

// ToJSONPatch renders patches, meant to be applied in order to doc, as an
// RFC 6902 JSON patch document.
func ToJSONPatch(doc pt.Document, patches []Patch) ([]byte, error) {
	ops, err := jsonOps(doc.Value(), patches)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []jsonOp{}
	}
	return json.Marshal(ops)
}

// ApplyJSON applies patches to the JSON document docJSON through their
// RFC 6902 rendition.
func ApplyJSON(docJSON []byte, patches []Patch) ([]byte, error) {
	var root any
	if err := json.Unmarshal(docJSON, &root); err != nil {
		return nil, err
	}
	if _, ok := root.([]any); !ok {
		return nil, fmt.Errorf("%w: document must be an array, got %T", pt.ErrSchemaViolation, root)
	}
	ops, err := jsonOps(root, patches)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return docJSON, nil
	}
	d, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	if debug.Patch() {
		debug.Logf("patch: json patch %s\n", d)
	}
	jp, err := jsonpatch.DecodePatch(d)
	if err != nil {
		return nil, err
	}
	return jp.Apply(docJSON)
}
