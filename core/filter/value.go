// Package filter holds the filter panel state of a browser session and
// compiles it into the metadata service's filter grammar.
package filter

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies which variant a filterable field uses.
type Kind string

const (
	KindMultiChoice  Kind = "multi_choice"
	KindTriState     Kind = "tri_state"
	KindSingleChoice Kind = "single_choice"
	KindDateRange    Kind = "date_range"
	// KindNumber fields are shown in track detail but cannot be filtered on.
	KindNumber Kind = "number"
)

func (k Kind) valid() bool {
	switch k {
	case KindMultiChoice, KindTriState, KindSingleChoice, KindDateRange, KindNumber:
		return true
	}
	return false
}

var (
	ErrInvalidTriState = errors.New("invalid tri-state value")
	ErrInvalidDate     = errors.New("invalid date, want YYYY-MM-DD")
	ErrNotFilterable   = errors.New("field is not filterable")
	ErrUnknownField    = errors.New("unknown field")
)

// Value is one of MultiChoice, TriState, SingleChoice or DateRange.
type Value interface {
	Kind() Kind
	isZero() bool
}

// MultiChoice is the set of selected options, in selection order.
type MultiChoice []string

func (MultiChoice) Kind() Kind      { return KindMultiChoice }
func (m MultiChoice) isZero() bool { return len(m) == 0 }

func (m MultiChoice) contains(v string) bool {
	for _, s := range m {
		if s == v {
			return true
		}
	}
	return false
}

// TriState is a checkbox-like constraint.
type TriState string

const (
	TriAll      TriState = "all"
	TriIncluded TriState = "included"
	TriExcluded TriState = "excluded"
)

func (TriState) Kind() Kind      { return KindTriState }
func (t TriState) isZero() bool { return t == TriAll || t == "" }

// ParseTriState validates s as a TriState.
func ParseTriState(s string) (TriState, error) {
	switch t := TriState(s); t {
	case TriAll, TriIncluded, TriExcluded:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTriState, s)
}

// SingleChoice is one selected option.
type SingleChoice string

func (SingleChoice) Kind() Kind      { return KindSingleChoice }
func (s SingleChoice) isZero() bool { return s == "" }

// DateRange bounds are YYYY-MM-DD dates; "" means unbounded.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func (DateRange) Kind() Kind      { return KindDateRange }
func (d DateRange) isZero() bool { return d.Start == "" && d.End == "" }

const dateLayout = "2006-01-02"

func (d DateRange) validate() error {
	for _, b := range []string{d.Start, d.End} {
		if b == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, b); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, b)
		}
	}
	return nil
}
