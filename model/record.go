package model

import (
	"strconv"
	"strings"
	"time"
)

// Notion property types the archive reads.
const (
	PropTitle       = "title"
	PropRichText    = "rich_text"
	PropCheckbox    = "checkbox"
	PropSelect      = "select"
	PropMultiSelect = "multi_select"
	PropNumber      = "number"
	PropDate        = "date"
	PropURL         = "url"
)

// RichText is a single run of rich text. Only the plain text is kept.
type RichText struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

func (r RichText) String() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

// Option is a select / multi-select option.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DateValue holds an ISO-8601 date or date-time, as sent by the metadata service.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// PropertyValue is one typed property of an archive record.
type PropertyValue struct {
	Type        string     `json:"type"`
	Title       []RichText `json:"title,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	Checkbox    *bool      `json:"checkbox,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	Date        *DateValue `json:"date,omitempty"`
	URL         *string    `json:"url,omitempty"`
}

// Text renders the value as display text. Multi-select names are joined with ",".
func (p PropertyValue) Text() string {
	switch p.Type {
	case PropTitle:
		return joinRichText(p.Title)
	case PropRichText:
		return joinRichText(p.RichText)
	case PropCheckbox:
		if p.Checkbox != nil && *p.Checkbox {
			return "O"
		}
		return "X"
	case PropSelect:
		if p.Select != nil {
			return p.Select.Name
		}
	case PropMultiSelect:
		return strings.Join(p.Names(), ",")
	case PropNumber:
		if p.Number != nil {
			return strconv.FormatFloat(*p.Number, 'f', -1, 64)
		}
	case PropDate:
		if p.Date != nil {
			return p.Date.Start
		}
	case PropURL:
		if p.URL != nil {
			return *p.URL
		}
	}
	return ""
}

// Names returns the option names of a select or multi-select value.
func (p PropertyValue) Names() []string {
	if p.Type == PropSelect {
		if p.Select == nil {
			return nil
		}
		return []string{p.Select.Name}
	}
	names := make([]string, 0, len(p.MultiSelect))
	for _, o := range p.MultiSelect {
		names = append(names, o.Name)
	}
	return names
}

func joinRichText(parts []RichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.String())
	}
	return b.String()
}

// Record is one page of the archive database.
type Record struct {
	ID             string                   `json:"id"`
	URL            string                   `json:"url,omitempty"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Properties     map[string]PropertyValue `json:"properties"`
}

// Title returns the text of the record's title-typed property.
func (r Record) Title() string {
	for _, p := range r.Properties {
		if p.Type == PropTitle {
			return p.Text()
		}
	}
	return ""
}

// Text returns the display text of the named property, or "" when absent.
func (r Record) Text(name string) string {
	p, ok := r.Properties[name]
	if !ok {
		return ""
	}
	return p.Text()
}

// Checked reports whether the named checkbox is ticked.
func (r Record) Checked(name string) bool {
	p, ok := r.Properties[name]
	return ok && p.Checkbox != nil && *p.Checkbox
}

// Names returns select / multi-select option names of the named property.
func (r Record) Names(name string) []string {
	p, ok := r.Properties[name]
	if !ok {
		return nil
	}
	return p.Names()
}

// Number returns the named number property.
func (r Record) Number(name string) (float64, bool) {
	p, ok := r.Properties[name]
	if !ok || p.Number == nil {
		return 0, false
	}
	return *p.Number, true
}

// Date returns the start of the named date property, or "" when unset.
func (r Record) Date(name string) string {
	p, ok := r.Properties[name]
	if !ok || p.Date == nil {
		return ""
	}
	return p.Date.Start
}

// Link returns the named url property, or nil when absent or empty.
func (r Record) Link(name string) *string {
	p, ok := r.Properties[name]
	if !ok || p.URL == nil || *p.URL == "" {
		return nil
	}
	link := *p.URL
	return &link
}
