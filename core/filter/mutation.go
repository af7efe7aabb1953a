package filter

import (
	"encoding/json"
	"fmt"
)

// Mutation is a filter panel update addressed by property only; the catalog
// decides which setter it maps to.
type Mutation struct {
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// Apply dispatches m to the setter of the property's catalog kind:
// multi-choice toggles a string, tri-state takes "all"/"included"/"excluded",
// single choice takes a string or null, date range takes {start, end}.
func (s *State) Apply(cat *Catalog, m Mutation) error {
	f, ok := cat.Field(m.Property)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, m.Property)
	}
	switch f.Kind {
	case KindMultiChoice:
		var v string
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return fmt.Errorf("decode %q value: %w", m.Property, err)
		}
		s.ToggleMultiChoice(m.Property, v)
	case KindTriState:
		var v string
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return fmt.Errorf("decode %q value: %w", m.Property, err)
		}
		return s.SetTriState(m.Property, TriState(v))
	case KindSingleChoice:
		var v *string
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return fmt.Errorf("decode %q value: %w", m.Property, err)
		}
		s.SetSingleChoice(m.Property, v)
	case KindDateRange:
		var v DateRange
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return fmt.Errorf("decode %q value: %w", m.Property, err)
		}
		return s.SetDateRange(m.Property, v)
	default:
		return fmt.Errorf("%w: %q", ErrNotFilterable, m.Property)
	}
	return nil
}
