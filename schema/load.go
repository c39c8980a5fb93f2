package schema

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// Load decodes a YAML (or JSON) descriptor and compiles it.
func Load(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if err := s.Compile(); err != nil {
		return nil, err
	}
	return s, nil
}

func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Default returns the descriptor used when a host does not supply one.
func Default() *Schema {
	s := &Schema{
		Name: "default",
		Block: TextBlockType{
			Name:       "block",
			Styles:     []string{"normal", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote"},
			Lists:      []string{"bullet", "number"},
			Decorators: []string{"strong", "em", "code", "underline", "strike-through"},
			Annotations: []*ObjectType{{
				Name: "link",
				Fields: []*Field{
					{Name: "href", Type: StringField, Required: true},
				},
			}},
		},
	}
	if err := s.Compile(); err != nil {
		panic(err)
	}
	return s
}
