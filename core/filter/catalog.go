package filter

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Field describes one property of the archive database.
type Field struct {
	Property string `yaml:"property" json:"property"`
	Kind     Kind   `yaml:"kind" json:"kind"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	Symbol   string `yaml:"symbol,omitempty" json:"symbol,omitempty"`
}

// Catalog is the ordered list of known fields.
type Catalog struct {
	Fields []Field `yaml:"fields" json:"fields"`

	index map[string]int
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("filter: embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog from path; an empty path yields the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse field catalog: %w", err)
	}
	c.index = make(map[string]int, len(c.Fields))
	for i, f := range c.Fields {
		if f.Property == "" {
			return nil, fmt.Errorf("field catalog entry %d has no property", i)
		}
		if !f.Kind.valid() {
			return nil, fmt.Errorf("field %q: unknown kind %q", f.Property, f.Kind)
		}
		if _, dup := c.index[f.Property]; dup {
			return nil, fmt.Errorf("field %q listed twice", f.Property)
		}
		c.index[f.Property] = i
	}
	return &c, nil
}

// Field looks up a field by property name.
func (c *Catalog) Field(property string) (Field, bool) {
	if c == nil {
		return Field{}, false
	}
	i, ok := c.index[property]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// Label is the chip label of property: its configured label, else the
// property name itself.
func (c *Catalog) Label(property string) string {
	if f, ok := c.Field(property); ok && f.Label != "" {
		return f.Label
	}
	return property
}

// Filterable returns the fields that can be filtered on, in catalog order.
func (c *Catalog) Filterable() []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Kind != KindNumber {
			out = append(out, f)
		}
	}
	return out
}

// Position is the index of property in the catalog, or -1.
func (c *Catalog) Position(property string) int {
	if c == nil {
		return -1
	}
	if i, ok := c.index[property]; ok {
		return i
	}
	return -1
}
