// Package view derives what the list UI shows from the accumulated records.
// Every function returns a new slice and leaves its input untouched.
package view

import (
	"fmt"
	"slices"
	"strings"

	"ESMP/model"
)

// SortKey selects the field records are ordered by.
type SortKey string

const (
	SortByDate  SortKey = "date"
	SortByTitle SortKey = "title"
)

// Order is a sort direction.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// ParseSortKey accepts "", "date" or "title". "" sorts by date.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(s)) {
	case "", SortByDate:
		return SortByDate, nil
	case SortByTitle:
		return SortByTitle, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseOrder accepts "", "asc" or "desc". "" is descending.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case "", Descending:
		return Descending, nil
	case Ascending:
		return Ascending, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Options composes a search and a sort.
type Options struct {
	Query        string
	Key          SortKey
	Order        Order
	DateProperty string // property holding the completion date
}

// Sort orders records by key. The sort is stable, so ties keep the
// service's order. Records without a date sort last either way.
func Sort(records []model.Record, key SortKey, order Order, dateProperty string) []model.Record {
	out := slices.Clone(records)
	desc := order == Descending
	slices.SortStableFunc(out, func(a, b model.Record) int {
		var x, y string
		if key == SortByTitle {
			x, y = a.Title(), b.Title()
		} else {
			x, y = a.Date(dateProperty), b.Date(dateProperty)
			switch {
			case x == "" && y == "":
				return 0
			case x == "":
				return 1
			case y == "":
				return -1
			}
		}
		if desc {
			return strings.Compare(y, x)
		}
		return strings.Compare(x, y)
	})
	return out
}

// Search keeps records whose title or any select, multi-select or
// rich-text value contains q, ignoring case. An empty q keeps everything.
func Search(records []model.Record, q string) []model.Record {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return slices.Clone(records)
	}
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r model.Record, q string) bool {
	for _, p := range r.Properties {
		switch p.Type {
		case model.PropTitle, model.PropRichText:
			if strings.Contains(strings.ToLower(p.Text()), q) {
				return true
			}
		case model.PropSelect, model.PropMultiSelect:
			for _, name := range p.Names() {
				if strings.Contains(strings.ToLower(name), q) {
					return true
				}
			}
		}
	}
	return false
}

// Find returns the record whose title is exactly title.
func Find(records []model.Record, title string) (model.Record, bool) {
	for _, r := range records {
		if r.Title() == title {
			return r, true
		}
	}
	return model.Record{}, false
}

// Apply searches, then sorts.
func Apply(records []model.Record, opts Options) []model.Record {
	return Sort(Search(records, opts.Query), opts.Key, opts.Order, opts.DateProperty)
}
