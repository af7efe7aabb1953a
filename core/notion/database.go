package notion

import (
	"context"

	"ESMP/core/filter"
	"ESMP/model"
)

// Database is a client bound to one database and its default sort.
type Database struct {
	client *Client
	id     string
	sorts  []Sort
}

// Database binds the client to databaseID. sorts apply to every query.
func (c *Client) Database(databaseID string, sorts ...Sort) *Database {
	return &Database{client: c, id: databaseID, sorts: sorts}
}

// ID is the bound database id.
func (d *Database) ID() string { return d.id }

// QueryPage fetches one page. A nil q queries without a filter; an empty
// cursor starts from the first page.
func (d *Database) QueryPage(ctx context.Context, q *filter.Query, cursor string, pageSize int) (*model.ResultPage, error) {
	return d.client.QueryDatabase(ctx, d.id, QueryRequest{
		Filter:      q,
		Sorts:       d.sorts,
		StartCursor: cursor,
		PageSize:    pageSize,
	})
}

// Schema describes the database's properties.
func (d *Database) Schema(ctx context.Context) (*model.Schema, error) {
	return d.client.RetrieveDatabase(ctx, d.id)
}

// FindOne returns the first record matching pred, or ErrNotFound.
func (d *Database) FindOne(ctx context.Context, pred filter.Predicate) (*model.Record, error) {
	page, err := d.client.QueryDatabase(ctx, d.id, QueryRequest{
		Filter:   filter.Where(pred),
		PageSize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, ErrNotFound
	}
	return &page.Items[0], nil
}
