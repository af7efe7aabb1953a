// Package library answers single-title questions: the record itself, its
// playable link and the credit lines shown by the player.
package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ESMP/core/filter"
	"ESMP/core/notion"
	"ESMP/model"
)

// ErrEmptyTitle is returned when a lookup is asked for no title at all.
var ErrEmptyTitle = errors.New("library: title is required")

// Finder looks up the first record matching a predicate and returns
// notion.ErrNotFound when there is none. *notion.Database implements it.
type Finder interface {
	FindOne(ctx context.Context, pred filter.Predicate) (*model.Record, error)
}

// Options names the properties the lookups read.
type Options struct {
	TitleProperty     string // tracks database title
	SoldProperty      string // tracks database checkbox
	DateProperty      string // tracks database completion date
	LinkTitleProperty string // links database title
	LinkURLProperty   string // links database url
}

func (o *Options) setDefaults() {
	if o.TitleProperty == "" {
		o.TitleProperty = "Title"
	}
	if o.SoldProperty == "" {
		o.SoldProperty = "확정"
	}
	if o.DateProperty == "" {
		o.DateProperty = "완성일"
	}
	if o.LinkTitleProperty == "" {
		o.LinkTitleProperty = "Song"
	}
	if o.LinkURLProperty == "" {
		o.LinkURLProperty = "Link"
	}
}

// Library resolves titles against the tracks and links databases.
type Library struct {
	tracks  Finder
	links   Finder
	catalog func() *filter.Catalog
	opts    Options
}

// New creates a Library. catalog is consulted on every Detail call so a
// reloaded catalog takes effect immediately.
func New(tracks, links Finder, catalog func() *filter.Catalog, opts Options) *Library {
	opts.setDefaults()
	if catalog == nil {
		def := filter.DefaultCatalog()
		catalog = func() *filter.Catalog { return def }
	}
	return &Library{tracks: tracks, links: links, catalog: catalog, opts: opts}
}

// Track returns the record titled exactly title, or notion.ErrNotFound.
func (l *Library) Track(ctx context.Context, title string) (*model.Record, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	rec, err := l.tracks.FindOne(ctx, filter.TitleEquals(l.opts.TitleProperty, title))
	if err != nil {
		return nil, fmt.Errorf("track %q: %w", title, err)
	}
	return rec, nil
}

// Link returns the playable URL for title. A title with no link entry, or
// an entry with an empty url, yields nil without error.
func (l *Library) Link(ctx context.Context, title string) (*string, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	rec, err := l.links.FindOne(ctx, filter.TitleEquals(l.opts.LinkTitleProperty, title))
	if errors.Is(err, notion.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link %q: %w", title, err)
	}
	return rec.Link(l.opts.LinkURLProperty), nil
}

// CreditLine is one "symbol: names" line of the player detail.
type CreditLine struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Detail is what the player shows under a track.
type Detail struct {
	Title string       `json:"title"`
	Props []CreditLine `json:"props"`
	Sold  bool         `json:"sold"`
	Date  string       `json:"date,omitempty"`
}

// Detail looks up title and renders its credits in catalog order.
func (l *Library) Detail(ctx context.Context, title string) (*Detail, error) {
	rec, err := l.Track(ctx, title)
	if err != nil {
		return nil, err
	}
	return Describe(*rec, l.catalog(), l.opts.SoldProperty, l.opts.DateProperty), nil
}

// Describe renders rec's credit lines. Only catalog fields with a symbol
// that the record actually carries produce a line.
func Describe(rec model.Record, cat *filter.Catalog, soldProperty, dateProperty string) *Detail {
	d := &Detail{
		Title: rec.Title(),
		Props: []CreditLine{},
		Sold:  rec.Checked(soldProperty),
		Date:  rec.Date(dateProperty),
	}
	if cat == nil {
		return d
	}
	for _, f := range cat.Fields {
		if f.Symbol == "" {
			continue
		}
		if _, ok := rec.Properties[f.Property]; !ok {
			continue
		}
		d.Props = append(d.Props, CreditLine{
			Key:   f.Property,
			Value: f.Symbol + ": " + creditValue(rec, f),
		})
	}
	return d
}

func creditValue(rec model.Record, f filter.Field) string {
	if f.Kind == filter.KindNumber {
		if n, ok := rec.Number(f.Property); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return ""
	}
	if names := rec.Names(f.Property); len(names) > 0 {
		return strings.Join(names, ",")
	}
	return rec.Text(f.Property)
}

// PropertyLines renders every credit-bearing property of rec as
// "name: value", sorted by name. Titles and links are left out; an unchecked
// box reads "x" and an empty text "X".
func PropertyLines(rec model.Record) []string {
	names := make([]string, 0, len(rec.Properties))
	for name := range rec.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{}
	for _, name := range names {
		p := rec.Properties[name]
		var v string
		switch p.Type {
		case model.PropCheckbox:
			v = "x"
			if p.Checkbox != nil && *p.Checkbox {
				v = "O"
			}
		case model.PropRichText:
			v = "X"
			if len(p.RichText) > 0 {
				v = p.RichText[0].String()
			}
		case model.PropSelect, model.PropMultiSelect, model.PropNumber, model.PropDate:
			v = p.Text()
		default:
			continue
		}
		lines = append(lines, name+": "+v)
	}
	return lines
}
