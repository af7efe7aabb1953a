package filter

import "encoding/json"

// Operator is a comparison in the metadata service's filter grammar.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpOnOrAfter  Operator = "on_or_after"
	OpOnOrBefore Operator = "on_or_before"
)

// Predicate binds one property to one operator and operand. Type is the
// service-side property type the operator belongs to.
type Predicate struct {
	Property string
	Type     string
	Op       Operator
	Value    any
}

func (p Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"property": p.Property,
		p.Type:     map[string]any{string(p.Op): p.Value},
	})
}

// TitleEquals matches records whose title property equals title exactly.
func TitleEquals(property, title string) Predicate {
	return Predicate{Property: property, Type: "title", Op: OpEquals, Value: title}
}

// Query is a compiled filter. A nil *Query means "no constraint". A query
// with one predicate encodes as that bare predicate, otherwise as an "and"
// conjunction; the service accepts both and callers rely on the difference.
// A query built by Raw carries a caller-supplied filter document instead.
type Query struct {
	Predicates []Predicate
	Raw        json.RawMessage
}

// Raw wraps a filter document that is sent to the service unchanged.
func Raw(doc json.RawMessage) *Query {
	return &Query{Raw: doc}
}

// Single returns the only predicate of a non-conjunctive query.
func (q *Query) Single() (Predicate, bool) {
	if q == nil || len(q.Predicates) != 1 {
		return Predicate{}, false
	}
	return q.Predicates[0], true
}

// IsConjunction reports whether the query encodes as an "and" wrapper.
func (q *Query) IsConjunction() bool {
	return q != nil && len(q.Predicates) > 1
}

func (q *Query) MarshalJSON() ([]byte, error) {
	if len(q.Raw) > 0 {
		return q.Raw, nil
	}
	if p, ok := q.Single(); ok {
		return json.Marshal(p)
	}
	return json.Marshal(map[string]any{"and": q.Predicates})
}

// Where builds a query from explicit predicates, nil when there are none.
func Where(preds ...Predicate) *Query {
	if len(preds) == 0 {
		return nil
	}
	return &Query{Predicates: preds}
}

// predicates expands one stored value into its predicates.
func predicates(property string, v Value) []Predicate {
	switch v := v.(type) {
	case TriState:
		return []Predicate{{Property: property, Type: "checkbox", Op: OpEquals, Value: v == TriIncluded}}
	case MultiChoice:
		out := make([]Predicate, 0, len(v))
		for _, sel := range v {
			out = append(out, Predicate{Property: property, Type: "multi_select", Op: OpContains, Value: sel})
		}
		return out
	case SingleChoice:
		return []Predicate{{Property: property, Type: "select", Op: OpEquals, Value: string(v)}}
	case DateRange:
		var out []Predicate
		if v.Start != "" {
			out = append(out, Predicate{Property: property, Type: "date", Op: OpOnOrAfter, Value: v.Start})
		}
		if v.End != "" {
			out = append(out, Predicate{Property: property, Type: "date", Op: OpOnOrBefore, Value: v.End})
		}
		return out
	}
	return nil
}

// Compile turns the state into a query, nil when nothing is constrained.
// The result depends only on the state.
func (s *State) Compile() *Query {
	var preds []Predicate
	for _, p := range s.order {
		preds = append(preds, predicates(p, s.values[p])...)
	}
	return Where(preds...)
}

// Descriptor is a removable filter chip.
type Descriptor struct {
	Property string `json:"property"`
	Value    string `json:"value"`
	Label    string `json:"label"`
}

// ActiveFilters lists one chip per compiled predicate, in compile order.
// cat supplies labels and may be nil.
func (s *State) ActiveFilters(cat *Catalog) []Descriptor {
	var out []Descriptor
	for _, p := range s.order {
		label := cat.Label(p)
		for _, pred := range predicates(p, s.values[p]) {
			out = append(out, describe(label, pred, s.values[p]))
		}
	}
	return out
}

func describe(label string, pred Predicate, v Value) Descriptor {
	d := Descriptor{Property: pred.Property}
	switch v := v.(type) {
	case TriState:
		d.Value = string(v)
		if v == TriIncluded {
			d.Label = label + ": O"
		} else {
			d.Label = label + ": X"
		}
	case DateRange:
		d.Value = pred.Value.(string)
		if pred.Op == OpOnOrAfter {
			d.Label = label + " ≥ " + d.Value
		} else {
			d.Label = label + " ≤ " + d.Value
		}
	default:
		d.Value = pred.Value.(string)
		d.Label = label + ": " + d.Value
	}
	return d
}
