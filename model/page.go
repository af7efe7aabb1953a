package model

// ResultPage is one page of a cursor-paginated query.
// NextCursor is only meaningful while HasMore is true.
type ResultPage struct {
	Items      []Record `json:"results"`
	HasMore    bool     `json:"has_more"`
	NextCursor string   `json:"next_cursor,omitempty"`
}
