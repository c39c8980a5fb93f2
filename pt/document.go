package pt

import (
	"maps"
	"slices"
	"strings"
)

// DefaultTextType is the conventional _type of text blocks.
const DefaultTextType = "block"

// SpanType is the _type of every span.
const SpanType = "span"

type BlockKind uint8

const (
	TextBlock BlockKind = iota
	ObjectBlock
)

func (k BlockKind) String() string {
	switch k {
	case TextBlock:
		return "text"
	case ObjectBlock:
		return "object"
	}
	return "unknown"
}

type ChildKind uint8

const (
	Span ChildKind = iota
	InlineObject
)

func (k ChildKind) String() string {
	switch k {
	case Span:
		return "span"
	case InlineObject:
		return "inline-object"
	}
	return "unknown"
}

// Document is the portable array: the document of record for persistence.
type Document []Block

// Block is one top-level entry of a Document.
//
// Text blocks (Kind == TextBlock) use Children, Style, ListItem, Level and
// MarkDefs. Object blocks carry their schema declared payload in Fields and
// have no children. Fields also holds any extra fields of a text block so
// that they survive a round trip.
type Block struct {
	Kind     BlockKind
	Key      string
	Type     string
	Style    string
	ListItem string
	Level    int
	MarkDefs []MarkDef
	Children []Child
	Fields   map[string]any
}

// Child is a leaf of a text block: a span or an inline object.
type Child struct {
	Kind   ChildKind
	Key    string
	Type   string
	Text   string
	Marks  []string
	Fields map[string]any
}

// MarkDef is an annotation owned by a block and referenced by key from the
// marks of that block's spans.
type MarkDef struct {
	Key    string
	Type   string
	Fields map[string]any
}

func NewSpan(key, text string, marks ...string) Child {
	return Child{Kind: Span, Key: key, Type: SpanType, Text: text, Marks: marks}
}

func NewInlineObject(key, typ string, fields map[string]any) Child {
	return Child{Kind: InlineObject, Key: key, Type: typ, Fields: fields}
}

// NewEmptyBlock returns the canonical empty paragraph: one text block
// holding one empty span without marks.
func NewEmptyBlock(blockKey, spanKey, textType, style string) Block {
	if textType == "" {
		textType = DefaultTextType
	}
	return Block{
		Kind:     TextBlock,
		Key:      blockKey,
		Type:     textType,
		Style:    style,
		MarkDefs: []MarkDef{},
		Children: []Child{NewSpan(spanKey, "")},
	}
}

func (c *Child) IsSpan() bool {
	return c.Kind == Span
}

// IsPlaceholder reports whether the children of b are exactly the
// canonical empty span.
func (b *Block) IsPlaceholder() bool {
	if b.Kind != TextBlock || len(b.Children) != 1 {
		return false
	}
	c := &b.Children[0]
	return c.Kind == Span && c.Text == "" && len(c.Marks) == 0
}

// Text returns the concatenated text of the spans of b.
func (b *Block) Text() string {
	buf := strings.Builder{}
	for i := range b.Children {
		if b.Children[i].Kind == Span {
			buf.WriteString(b.Children[i].Text)
		}
	}
	return buf.String()
}

// ChildIndex returns the index of the child with the given key, or -1.
func (b *Block) ChildIndex(key string) int {
	return slices.IndexFunc(b.Children, func(c Child) bool { return c.Key == key })
}

// MarkDef returns the mark definition with the given key.
func (b *Block) MarkDef(key string) (*MarkDef, bool) {
	for i := range b.MarkDefs {
		if b.MarkDefs[i].Key == key {
			return &b.MarkDefs[i], true
		}
	}
	return nil, false
}

// BlockIndex returns the index of the block with the given key, or -1.
func (d Document) BlockIndex(key string) int {
	return slices.IndexFunc(d, func(b Block) bool { return b.Key == key })
}

// Keys returns every key of d in document order, including duplicates and
// excluding empty ones.
func (d Document) Keys() []string {
	var res []string
	for i := range d {
		b := &d[i]
		if b.Key != "" {
			res = append(res, b.Key)
		}
		for j := range b.MarkDefs {
			if k := b.MarkDefs[j].Key; k != "" {
				res = append(res, k)
			}
		}
		for j := range b.Children {
			if k := b.Children[j].Key; k != "" {
				res = append(res, k)
			}
		}
	}
	return res
}

// KeySet returns the set of keys used in d.
func (d Document) KeySet() map[string]bool {
	res := map[string]bool{}
	for _, k := range d.Keys() {
		res[k] = true
	}
	return res
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	res := make(Document, len(d))
	for i := range d {
		res[i] = d[i].Clone()
	}
	return res
}

func (b Block) Clone() Block {
	res := b
	if b.MarkDefs != nil {
		res.MarkDefs = make([]MarkDef, len(b.MarkDefs))
		for i := range b.MarkDefs {
			res.MarkDefs[i] = b.MarkDefs[i].Clone()
		}
	}
	if b.Children != nil {
		res.Children = make([]Child, len(b.Children))
		for i := range b.Children {
			res.Children[i] = b.Children[i].Clone()
		}
	}
	res.Fields = cloneFields(b.Fields)
	return res
}

func (c Child) Clone() Child {
	res := c
	if c.Marks != nil {
		res.Marks = slices.Clone(c.Marks)
	}
	res.Fields = cloneFields(c.Fields)
	return res
}

func (m MarkDef) Clone() MarkDef {
	res := m
	res.Fields = cloneFields(m.Fields)
	return res
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	res := make(map[string]any, len(fields))
	for k, v := range fields {
		res[k] = CloneValue(v)
	}
	return res
}

// CloneValue deep copies a JSON-compatible value.
func CloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		res := make(map[string]any, len(x))
		for k, xv := range x {
			res[k] = CloneValue(xv)
		}
		return res
	case []any:
		res := make([]any, len(x))
		for i := range x {
			res[i] = CloneValue(x[i])
		}
		return res
	default:
		return v
	}
}

// FieldNames returns the sorted payload field names of an object.
func FieldNames(fields map[string]any) []string {
	return slices.Sorted(maps.Keys(fields))
}
