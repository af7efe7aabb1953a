package notion

import (
	"context"
	"net/http"
	"net/url"

	"ESMP/core/filter"
	"ESMP/model"
)

// MaxPageSize is the largest page the service returns.
const MaxPageSize = 100

// Sort orders query results by a property or a page timestamp.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

// Descending sorts by property, newest first.
func Descending(property string) Sort {
	return Sort{Property: property, Direction: "descending"}
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      *filter.Query `json:"filter,omitempty"`
	Sorts       []Sort        `json:"sorts,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
	PageSize    int           `json:"page_size,omitempty"`
}

// QueryDatabase returns one page of a database query.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*model.ResultPage, error) {
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	var page model.ResultPage
	path := "/databases/" + url.PathEscape(databaseID) + "/query"
	if err := c.do(ctx, "query", http.MethodPost, path, req, &page); err != nil {
		return nil, err
	}
	if !page.HasMore {
		page.NextCursor = ""
	}
	return &page, nil
}
