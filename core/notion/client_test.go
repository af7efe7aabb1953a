package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ESMP/core/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageJSON = `{
	"object": "page",
	"id": "p1",
	"url": "https://www.notion.so/p1",
	"created_time": "2024-03-01T10:00:00.000Z",
	"last_edited_time": "2024-03-02T10:00:00.000Z",
	"properties": {
		"Title": {"type": "title", "title": [{"plain_text": "첫 곡", "text": {"content": "첫 곡"}}]},
		"확정": {"type": "checkbox", "checkbox": true},
		"성별": {"type": "select", "select": {"name": "여자"}},
		"멜로디메이커": {"type": "multi_select", "multi_select": [{"name": "A"}, {"name": "B"}]},
		"가이드비": {"type": "number", "number": 30},
		"완성일": {"type": "date", "date": {"start": "2024-02-28"}},
		"Link": {"type": "url", "url": null}
	}
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/v1/", "secret", "2022-06-28", 5*time.Second)
}

func TestQueryDatabaseSendsFilterAndDecodesPage(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","results":[`+pageJSON+`],"has_more":true,"next_cursor":"c2"}`)
	})

	s := filter.NewState()
	require.NoError(t, s.SetTriState("확정", filter.TriIncluded))

	page, err := c.QueryDatabase(context.Background(), "db1", QueryRequest{
		Filter:      s.Compile(),
		Sorts:       []Sort{Descending("완성일")},
		StartCursor: "c1",
		PageSize:    500,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"property": "확정", "checkbox": map[string]any{"equals": true}}, gotBody["filter"])
	assert.Equal(t, "c1", gotBody["start_cursor"])
	assert.Equal(t, float64(MaxPageSize), gotBody["page_size"])
	assert.Equal(t, []any{map[string]any{"property": "완성일", "direction": "descending"}}, gotBody["sorts"])

	require.Len(t, page.Items, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, "c2", page.NextCursor)

	rec := page.Items[0]
	assert.Equal(t, "첫 곡", rec.Title())
	assert.True(t, rec.Checked("확정"))
	assert.Equal(t, []string{"A", "B"}, rec.Names("멜로디메이커"))
	assert.Equal(t, "여자", rec.Text("성별"))
	assert.Equal(t, "2024-02-28", rec.Date("완성일"))
	n, ok := rec.Number("가이드비")
	assert.True(t, ok)
	assert.Equal(t, 30.0, n)
	assert.Nil(t, rec.Link("Link"))
}

func TestQueryDatabaseOmitsEmptyFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasFilter := body["filter"]
		assert.False(t, hasFilter)
		_, hasCursor := body["start_cursor"]
		assert.False(t, hasCursor)
		io.WriteString(w, `{"results":[],"has_more":false,"next_cursor":null}`)
	})

	page, err := c.Database("db1").QueryPage(context.Background(), nil, "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestAPIErrorIsSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"object":"error","status":400,"code":"validation_error","message":"bad filter"}`)
	})

	_, err := c.QueryDatabase(context.Background(), "db1", QueryRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, "bad filter", apiErr.Message)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.RetrieveDatabase(context.Background(), "db1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestMalformedBodyIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results": "nope"}`)
	})

	_, err := c.QueryDatabase(context.Background(), "db1", QueryRequest{})
	assert.Error(t, err)
}

func TestRetrieveDatabaseSchema(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/databases/db2", r.URL.Path)
		io.WriteString(w, `{
			"id": "db2",
			"title": [{"plain_text": "ESMP"}],
			"properties": {
				"확정": {"id": "a", "name": "확정", "type": "checkbox", "checkbox": {}},
				"성별": {"id": "b", "name": "성별", "type": "select", "select": {"options": [{"name": "여자"}, {"name": "남자"}]}},
				"작사": {"id": "c", "name": "작사", "type": "multi_select", "multi_select": {"options": [{"name": "X", "color": "red"}]}}
			}
		}`)
	})

	schema, err := c.Database("db2").Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ESMP", schema.Title)
	require.Len(t, schema.Properties, 3)

	p, ok := schema.Property("성별")
	require.True(t, ok)
	assert.Equal(t, "select", p.Type)
	assert.Len(t, p.Options, 2)

	p, ok = schema.Property("작사")
	require.True(t, ok)
	assert.Equal(t, "red", p.Options[0].Color)
}

func TestFindOne(t *testing.T) {
	found := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1), body["page_size"])
		assert.Equal(t, map[string]any{"property": "Title", "title": map[string]any{"equals": "첫 곡"}}, body["filter"])
		if found {
			io.WriteString(w, `{"results":[`+pageJSON+`],"has_more":false}`)
			return
		}
		io.WriteString(w, `{"results":[],"has_more":false}`)
	})
	db := c.Database("db1")

	rec, err := db.FindOne(context.Background(), filter.TitleEquals("Title", "첫 곡"))
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID)

	found = false
	_, err = db.FindOne(context.Background(), filter.TitleEquals("Title", "첫 곡"))
	assert.ErrorIs(t, err, ErrNotFound)
}
