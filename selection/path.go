package selection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/signadot/ptedit/pt"
)

// Segment is one step of a Path: either a keyed array element
// ({"_key": "k"}) or an object field ("children").
type Segment struct {
	Key   string
	Field string
}

func KeySegment(key string) Segment {
	return Segment{Key: key}
}

func FieldSegment(field string) Segment {
	return Segment{Field: field}
}

func (s Segment) IsKey() bool {
	return s.Key != ""
}

func (s Segment) MarshalJSON() ([]byte, error) {
	if s.IsKey() {
		return json.Marshal(map[string]string{pt.KeyField: s.Key})
	}
	return json.Marshal(s.Field)
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var f string
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if f == "" {
			return fmt.Errorf("%w: empty field segment", pt.ErrInvalidPath)
		}
		*s = Segment{Field: f}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: segment %s", pt.ErrInvalidPath, data)
	}
	k := m[pt.KeyField]
	if k == "" || len(m) != 1 {
		return fmt.Errorf("%w: segment %s", pt.ErrInvalidPath, data)
	}
	*s = Segment{Key: k}
	return nil
}

// Path addresses a node or field of a document by keys, never by index.
type Path []Segment

func BlockPath(block string) Path {
	return Path{KeySegment(block)}
}

func ChildPath(block, child string) Path {
	return Path{KeySegment(block), FieldSegment(pt.ChildrenField), KeySegment(child)}
}

// Append returns a new path; p is not modified.
func (p Path) Append(segs ...Segment) Path {
	res := make(Path, 0, len(p)+len(segs))
	res = append(res, p...)
	return append(res, segs...)
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders p in GROQ style, e.g. [_key=="b1"].children[_key=="s1"].
func (p Path) String() string {
	buf := bytes.NewBuffer(nil)
	for _, s := range p {
		if s.IsKey() {
			buf.WriteString("[_key==")
			buf.WriteString(strconv.Quote(s.Key))
			buf.WriteByte(']')
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(s.Field)
	}
	return buf.String()
}

// BlockKey returns the key addressed by the first segment.
func (p Path) BlockKey() (string, bool) {
	if len(p) == 0 || !p[0].IsKey() {
		return "", false
	}
	return p[0].Key, true
}

// ChildKey returns the child key of a [block, "children", child] path.
func (p Path) ChildKey() (string, bool) {
	if len(p) < 3 || !p[0].IsKey() || p[1].Field != pt.ChildrenField || !p[2].IsKey() {
		return "", false
	}
	return p[2].Key, true
}

func (p Path) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Segment(p))
}
