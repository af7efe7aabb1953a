package filter

import "encoding/json"

// State is the filter selection of one session. Absent properties carry no
// constraint; defaults ("all", empty selection, nil choice, open range) are
// never stored, so setting a default and unsetting are indistinguishable.
//
// State is not safe for concurrent use.
type State struct {
	values map[string]Value
	order  []string // properties in the order they became active
}

// NewState returns an empty state. Every tri-state field reads as "all".
func NewState() *State {
	return &State{values: make(map[string]Value)}
}

func (s *State) set(property string, v Value) {
	if v == nil || v.isZero() {
		s.unset(property)
		return
	}
	if _, ok := s.values[property]; !ok {
		s.order = append(s.order, property)
	}
	s.values[property] = v
}

func (s *State) unset(property string) {
	if _, ok := s.values[property]; !ok {
		return
	}
	delete(s.values, property)
	order := make([]string, 0, len(s.order))
	for _, p := range s.order {
		if p != property {
			order = append(order, p)
		}
	}
	s.order = order
}

// ToggleMultiChoice adds value to the property's selection, or removes it if
// already selected. The stored slice is replaced, never modified in place.
func (s *State) ToggleMultiChoice(property, value string) {
	current, _ := s.values[property].(MultiChoice)
	next := make(MultiChoice, 0, len(current)+1)
	if current.contains(value) {
		for _, v := range current {
			if v != value {
				next = append(next, v)
			}
		}
	} else {
		next = append(next, current...)
		next = append(next, value)
	}
	s.set(property, next)
}

// SetTriState overwrites a tri-state field. TriAll unsets it.
func (s *State) SetTriState(property string, state TriState) error {
	if _, err := ParseTriState(string(state)); err != nil {
		return err
	}
	s.set(property, state)
	return nil
}

// SetSingleChoice overwrites a single-choice field. nil clears it.
func (s *State) SetSingleChoice(property string, value *string) {
	if value == nil {
		s.unset(property)
		return
	}
	s.set(property, SingleChoice(*value))
}

// SetDateRange overwrites a date-range field. An open range unsets it.
func (s *State) SetDateRange(property string, r DateRange) error {
	if err := r.validate(); err != nil {
		return err
	}
	s.set(property, r)
	return nil
}

// Remove drops one constraint: a tri-state goes back to "all", a
// multi-choice loses value (or its whole selection when value is ""),
// anything else is unset.
func (s *State) Remove(property, value string) {
	switch v := s.values[property].(type) {
	case MultiChoice:
		if value == "" {
			s.unset(property)
			return
		}
		next := make(MultiChoice, 0, len(v))
		for _, sel := range v {
			if sel != value {
				next = append(next, sel)
			}
		}
		s.set(property, next)
	default:
		s.unset(property)
	}
}

// Clear resets every field to its default.
func (s *State) Clear() {
	s.values = make(map[string]Value)
	s.order = nil
}

// Get returns the stored value of property.
func (s *State) Get(property string) (Value, bool) {
	v, ok := s.values[property]
	return v, ok
}

// TriState returns the tri-state of property, TriAll when unset.
func (s *State) TriState(property string) TriState {
	if t, ok := s.values[property].(TriState); ok {
		return t
	}
	return TriAll
}

// Selected returns the multi-choice selection of property.
func (s *State) Selected(property string) MultiChoice {
	m, _ := s.values[property].(MultiChoice)
	return m
}

// Len is the number of constrained properties.
func (s *State) Len() int { return len(s.order) }

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := NewState()
	for _, p := range s.order {
		c.order = append(c.order, p)
		c.values[p] = s.values[p]
	}
	return c
}

// Entry is one constrained property, as exposed over the API.
type Entry struct {
	Property string `json:"property"`
	Kind     Kind   `json:"kind"`
	Value    any    `json:"value"`
}

// Entries lists the constrained properties in iteration order.
func (s *State) Entries() []Entry {
	entries := make([]Entry, 0, len(s.order))
	for _, p := range s.order {
		v := s.values[p]
		entries = append(entries, Entry{Property: p, Kind: v.Kind(), Value: v})
	}
	return entries
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Entries())
}
