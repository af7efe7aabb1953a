package model

// PropertySchema describes one filterable database property.
type PropertySchema struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []Option `json:"options,omitempty"` // select / multi_select only
}

// Schema is the property metadata of the archive database.
type Schema struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Properties []PropertySchema `json:"properties"` // sorted by name
}

// Property looks up a property by name.
func (s *Schema) Property(name string) (PropertySchema, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySchema{}, false
}
