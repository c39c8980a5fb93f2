package pt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/zeebo/blake3"
)

// wire field names
const (
	KeyField      = "_key"
	TypeField     = "_type"
	ChildrenField = "children"
	MarkDefsField = "markDefs"
	StyleField    = "style"
	ListItemField = "listItem"
	LevelField    = "level"
	TextField     = "text"
	MarksField    = "marks"
)

var reservedBlockFields = map[string]bool{
	KeyField: true, TypeField: true, ChildrenField: true, MarkDefsField: true,
	StyleField: true, ListItemField: true, LevelField: true,
}

var reservedChildFields = map[string]bool{
	KeyField: true, TypeField: true, TextField: true, MarksField: true,
}

// Value returns the generic JSON-compatible form of d: a []any of
// map[string]any. The result shares nothing with d.
func (d Document) Value() []any {
	res := make([]any, len(d))
	for i := range d {
		res[i] = d[i].Value()
	}
	return res
}

func (b *Block) Value() map[string]any {
	res := make(map[string]any, len(b.Fields)+6)
	for k, v := range b.Fields {
		res[k] = CloneValue(v)
	}
	if b.Key != "" {
		res[KeyField] = b.Key
	}
	if b.Type != "" {
		res[TypeField] = b.Type
	}
	if b.Kind != TextBlock {
		return res
	}
	if b.Style != "" {
		res[StyleField] = b.Style
	}
	if b.ListItem != "" {
		res[ListItemField] = b.ListItem
	}
	if b.Level != 0 {
		res[LevelField] = float64(b.Level)
	}
	markDefs := make([]any, len(b.MarkDefs))
	for i := range b.MarkDefs {
		markDefs[i] = b.MarkDefs[i].Value()
	}
	res[MarkDefsField] = markDefs
	children := make([]any, len(b.Children))
	for i := range b.Children {
		children[i] = b.Children[i].Value()
	}
	res[ChildrenField] = children
	return res
}

func (c *Child) Value() map[string]any {
	res := make(map[string]any, len(c.Fields)+4)
	for k, v := range c.Fields {
		res[k] = CloneValue(v)
	}
	if c.Key != "" {
		res[KeyField] = c.Key
	}
	if c.Type != "" {
		res[TypeField] = c.Type
	}
	if c.Kind != Span {
		return res
	}
	res[TextField] = c.Text
	marks := make([]any, len(c.Marks))
	for i, m := range c.Marks {
		marks[i] = m
	}
	res[MarksField] = marks
	return res
}

func (m *MarkDef) Value() map[string]any {
	res := make(map[string]any, len(m.Fields)+2)
	for k, v := range m.Fields {
		res[k] = CloneValue(v)
	}
	if m.Key != "" {
		res[KeyField] = m.Key
	}
	if m.Type != "" {
		res[TypeField] = m.Type
	}
	return res
}

// FromValue decodes the generic form produced by Value or by
// encoding/json into a Document. A nil value decodes to a nil Document.
//
// Decoding needs no schema: an object with children or markDefs, or typed
// "block", is a text block, and a child typed "span" is a span.
func FromValue(v any) (Document, error) {
	if v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: document must be an array, got %T", ErrSchemaViolation, v)
	}
	res := make(Document, len(arr))
	for i, bv := range arr {
		m, ok := bv.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: block %d must be an object, got %T", ErrSchemaViolation, i, bv)
		}
		b, err := BlockFromValue(m)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		res[i] = b
	}
	return res, nil
}

func BlockFromValue(m map[string]any) (Block, error) {
	b := Block{}
	var err error
	if b.Key, err = optString(m, KeyField); err != nil {
		return b, err
	}
	if b.Type, err = optString(m, TypeField); err != nil {
		return b, err
	}
	_, hasChildren := m[ChildrenField]
	_, hasMarkDefs := m[MarkDefsField]
	if !hasChildren && !hasMarkDefs && b.Type != DefaultTextType {
		b.Kind = ObjectBlock
		b.Fields = extraFields(m, map[string]bool{KeyField: true, TypeField: true})
		return b, nil
	}
	b.Kind = TextBlock
	if b.Style, err = optString(m, StyleField); err != nil {
		return b, err
	}
	if b.ListItem, err = optString(m, ListItemField); err != nil {
		return b, err
	}
	if lv, ok := m[LevelField]; ok && lv != nil {
		n, err := toInt(lv)
		if err != nil {
			return b, fmt.Errorf("%w: level: %w", ErrSchemaViolation, err)
		}
		b.Level = n
	}
	mds, err := optArray(m, MarkDefsField)
	if err != nil {
		return b, err
	}
	b.MarkDefs = make([]MarkDef, 0, len(mds))
	for i, mdv := range mds {
		mdm, ok := mdv.(map[string]any)
		if !ok {
			return b, fmt.Errorf("%w: markDefs[%d] must be an object", ErrSchemaViolation, i)
		}
		md := MarkDef{}
		if md.Key, err = optString(mdm, KeyField); err != nil {
			return b, err
		}
		if md.Type, err = optString(mdm, TypeField); err != nil {
			return b, err
		}
		md.Fields = extraFields(mdm, map[string]bool{KeyField: true, TypeField: true})
		b.MarkDefs = append(b.MarkDefs, md)
	}
	cs, err := optArray(m, ChildrenField)
	if err != nil {
		return b, err
	}
	b.Children = make([]Child, 0, len(cs))
	for i, cv := range cs {
		cm, ok := cv.(map[string]any)
		if !ok {
			return b, fmt.Errorf("%w: children[%d] must be an object", ErrSchemaViolation, i)
		}
		c, err := ChildFromValue(cm)
		if err != nil {
			return b, fmt.Errorf("children[%d]: %w", i, err)
		}
		b.Children = append(b.Children, c)
	}
	b.Fields = extraFields(m, reservedBlockFields)
	return b, nil
}

func ChildFromValue(m map[string]any) (Child, error) {
	c := Child{}
	var err error
	if c.Key, err = optString(m, KeyField); err != nil {
		return c, err
	}
	if c.Type, err = optString(m, TypeField); err != nil {
		return c, err
	}
	if c.Type != SpanType {
		c.Kind = InlineObject
		c.Fields = extraFields(m, map[string]bool{KeyField: true, TypeField: true})
		return c, nil
	}
	c.Kind = Span
	if c.Text, err = optString(m, TextField); err != nil {
		return c, err
	}
	marks, err := optArray(m, MarksField)
	if err != nil {
		return c, err
	}
	c.Marks = make([]string, 0, len(marks))
	for i, mv := range marks {
		s, ok := mv.(string)
		if !ok {
			return c, fmt.Errorf("%w: marks[%d] must be a string", ErrSchemaViolation, i)
		}
		c.Marks = append(c.Marks, s)
	}
	c.Fields = extraFields(m, reservedChildFields)
	return c, nil
}

func optString(m map[string]any, field string) (string, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrSchemaViolation, field, v)
	}
	return s, nil
}

func optArray(m map[string]any, field string) ([]any, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, nil
	}
	a, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an array, got %T", ErrSchemaViolation, field, v)
	}
	return a, nil
}

func extraFields(m map[string]any, reserved map[string]bool) map[string]any {
	var res map[string]any
	for k, v := range m {
		if reserved[k] {
			continue
		}
		if res == nil {
			res = map[string]any{}
		}
		res[k] = CloneValue(v)
	}
	return res
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}
		return int(x), nil
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case json.Number:
		n, err := x.Int64()
		return int(n), err
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Value())
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	doc, err := FromValue(v)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Value())
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	res, err := BlockFromValue(m)
	if err != nil {
		return err
	}
	*b = res
	return nil
}

func (c Child) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

func (c *Child) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	res, err := ChildFromValue(m)
	if err != nil {
		return err
	}
	*c = res
	return nil
}

// Parse decodes a JSON document. The literal null decodes to a nil
// Document.
func Parse(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Equal reports whether a and b have the same portable form.
func Equal(a, b Document) bool {
	return reflect.DeepEqual(a.Value(), b.Value())
}

// Fingerprint returns a hex BLAKE3-256 digest of the canonical JSON of d.
// Equal documents have equal fingerprints.
func Fingerprint(d Document) string {
	data, err := json.Marshal(d.Value())
	if err != nil {
		// payloads built in code may hold non-JSON values
		data = fmt.Appendf(nil, "%#v", d.Value())
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
