package notion

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"ESMP/model"
)

type optionList struct {
	Options []model.Option `json:"options"`
}

type databaseResponse struct {
	ID         string           `json:"id"`
	Title      []model.RichText `json:"title"`
	Properties map[string]struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Type        string      `json:"type"`
		Select      *optionList `json:"select,omitempty"`
		MultiSelect *optionList `json:"multi_select,omitempty"`
	} `json:"properties"`
}

// RetrieveDatabase describes a database's properties.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*model.Schema, error) {
	var resp databaseResponse
	path := "/databases/" + url.PathEscape(databaseID)
	if err := c.do(ctx, "retrieve", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	schema := &model.Schema{ID: resp.ID}
	for _, t := range resp.Title {
		schema.Title += t.String()
	}
	for key, p := range resp.Properties {
		ps := model.PropertySchema{ID: p.ID, Name: p.Name, Type: p.Type}
		if ps.Name == "" {
			ps.Name = key
		}
		switch {
		case p.Select != nil:
			ps.Options = p.Select.Options
		case p.MultiSelect != nil:
			ps.Options = p.MultiSelect.Options
		}
		schema.Properties = append(schema.Properties, ps)
	}
	sort.Slice(schema.Properties, func(i, j int) bool {
		return schema.Properties[i].Name < schema.Properties[j].Name
	})
	return schema, nil
}
