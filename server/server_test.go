package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ESMP/config"
	"ESMP/core/fetch"
	"ESMP/core/filter"
	"ESMP/core/library"
	"ESMP/core/notion"
	"ESMP/model"
	"ESMP/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(title, date string) model.Record {
	return model.Record{
		ID: "id-" + title,
		Properties: map[string]model.PropertyValue{
			"Title": {Type: model.PropTitle, Title: []model.RichText{{PlainText: title}}},
			"완성일":   {Type: model.PropDate, Date: &model.DateValue{Start: date}},
		},
	}
}

type fakeSource struct {
	mu       sync.Mutex
	all      []model.Record
	filtered []model.Record
	err      error
	queries  []*filter.Query
	cursors  []string
	sizes    []int

	// gate runs before a filtered page is served, outside the lock.
	gate func(ctx context.Context) error
}

func (s *fakeSource) QueryPage(ctx context.Context, q *filter.Query, cursor string, pageSize int) (*model.ResultPage, error) {
	if q != nil && s.gate != nil {
		if err := s.gate(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	s.cursors = append(s.cursors, cursor)
	s.sizes = append(s.sizes, pageSize)
	if s.err != nil {
		return nil, s.err
	}
	if q != nil {
		return &model.ResultPage{Items: s.filtered}, nil
	}
	return &model.ResultPage{Items: s.all, HasMore: cursor == "", NextCursor: "more"}, nil
}

func (s *fakeSource) Schema(ctx context.Context) (*model.Schema, error) {
	return &model.Schema{ID: "db", Title: "ESMP"}, nil
}

type fakeFinder map[string]model.Record

func (f fakeFinder) FindOne(ctx context.Context, pred filter.Predicate) (*model.Record, error) {
	r, ok := f[pred.Value.(string)]
	if !ok {
		return nil, notion.ErrNotFound
	}
	return &r, nil
}

type fakeFetcher struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (f *fakeFetcher) Open(ctx context.Context, rawURL string) (*storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Object{Body: io.NopCloser(strings.NewReader("ID3audio")), Size: 8}, nil
}

type harness struct {
	srv     *httptest.Server
	client  *http.Client
	source  *fakeSource
	fetcher *fakeFetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		PageSize:               100,
		CompletionDateProperty: "완성일",
		DownloadPassword:       "0000",
	}
	src := &fakeSource{
		all: []model.Record{record("Bravo", "2024-01-01"), record("Alpha", "2024-03-01")},
	}
	url := "https://cdn.example.com/alpha.mp3"
	links := fakeFinder{"Alpha": {Properties: map[string]model.PropertyValue{"Link": {Type: model.PropURL, URL: &url}}}}
	tracks := fakeFinder{"Alpha": record("Alpha", "2024-03-01")}
	fetcher := &fakeFetcher{}

	h := NewAPIHandler(cfg, Services{
		Source:     src,
		Controller: fetch.NewController(src, nil, cfg.PageSize),
		Library:    library.New(tracks, links, nil, library.Options{}),
		Sessions:   NewSessionStore(time.Hour),
		Fetcher:    fetcher,
	})
	srv := httptest.NewServer(NewRouter(h, ""))
	t.Cleanup(srv.Close)

	return &harness{srv: srv, client: newClient(t), source: src, fetcher: fetcher}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (h *harness) do(t *testing.T, c *http.Client, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestSongListPassesPageThrough(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, h.client, http.MethodGet, "/api/songlist?start_cursor=abc&page_size=500", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page model.ResultPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
	assert.Equal(t, []string{"abc"}, h.source.cursors)
	assert.Equal(t, []int{notion.MaxPageSize}, h.source.sizes)

	resp, _ = h.do(t, h.client, http.MethodGet, "/api/songlist?page_size=x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTracksSweepsAndSorts(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, h.client, http.MethodGet, "/api/tracks?sort=title&order=asc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got tracksResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, 4, got.Total, "two pages of two records")
	assert.Equal(t, "Alpha", got.Records[0].Title())
	assert.Equal(t, []string{"", "more"}, h.source.cursors)

	resp, _ = h.do(t, h.client, http.MethodGet, "/api/tracks?sort=size", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTracksUpstreamFailureIsGeneric(t *testing.T) {
	h := newHarness(t)
	h.source.err = &notion.APIError{Status: 500, Code: "internal_server_error", Message: "secret detail"}

	resp, body := h.do(t, h.client, http.MethodGet, "/api/tracks", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.NotContains(t, string(body), "secret detail")

	_, body = h.do(t, h.client, http.MethodGet, "/api/tracks/state", nil)
	assert.Contains(t, string(body), `"phase":"failed"`)
}

func TestFilterLifecycle(t *testing.T) {
	h := newHarness(t)
	h.source.filtered = []model.Record{record("Alpha", "2024-03-01")}

	resp, _ := h.do(t, h.client, http.MethodPost, "/api/filters/tristate", map[string]string{"property": "확정", "state": "included"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := h.do(t, h.client, http.MethodPost, "/api/filters/select", map[string]string{"property": "성별", "value": "여자"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state struct {
		Active []filter.Descriptor `json:"active"`
		Query  json.RawMessage     `json:"query"`
	}
	require.NoError(t, json.Unmarshal(body, &state))
	assert.JSONEq(t, `{"and":[
		{"property":"확정","checkbox":{"equals":true}},
		{"property":"성별","select":{"equals":"여자"}}
	]}`, string(state.Query))
	assert.Len(t, state.Active, 2)

	resp, body = h.do(t, h.client, http.MethodPost, "/api/filters/search", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result searchResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Count)
	require.Len(t, h.source.queries, 1)
	assert.Len(t, h.source.queries[0].Predicates, 2)

	resp, body = h.do(t, h.client, http.MethodDelete, "/api/filters/%ED%99%95%EC%A0%95", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &state))
	assert.JSONEq(t, `{"property":"성별","select":{"equals":"여자"}}`, string(state.Query))

	resp, body = h.do(t, h.client, http.MethodDelete, "/api/filters", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, "null", string(state.Query))
	assert.Empty(t, state.Active)
}

func TestFilterToggleAndSet(t *testing.T) {
	h := newHarness(t)

	h.do(t, h.client, http.MethodPost, "/api/filters/toggle", map[string]string{"property": "작사", "value": "A"})
	h.do(t, h.client, http.MethodPost, "/api/filters/toggle", map[string]string{"property": "작사", "value": "B"})
	resp, body := h.do(t, h.client, http.MethodPost, "/api/filters/set", map[string]interface{}{
		"property": "완성일", "value": map[string]string{"start": "2024-01-01"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"on_or_after":"2024-01-01"`)
	assert.Contains(t, string(body), `"contains":"A"`)

	resp, body = h.do(t, h.client, http.MethodDelete, "/api/filters/%EC%9E%91%EC%82%AC?value=A", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), `"contains":"A"`)
	assert.Contains(t, string(body), `"contains":"B"`)
}

func TestFilterRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		path string
		body map[string]string
	}{
		{"/api/filters/toggle", map[string]string{"property": "확정", "value": "A"}},
		{"/api/filters/toggle", map[string]string{"property": "nope", "value": "A"}},
		{"/api/filters/tristate", map[string]string{"property": "확정", "state": "maybe"}},
		{"/api/filters/date", map[string]string{"property": "완성일", "start": "01/02/2024"}},
		{"/api/filters/set", map[string]string{"property": "가이드비", "value": "1"}},
	}
	for _, tt := range tests {
		resp, _ := h.do(t, h.client, http.MethodPost, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %v", tt.path, tt.body)
	}
}

func TestFiltersArePerSession(t *testing.T) {
	h := newHarness(t)
	other := newClient(t)

	h.do(t, h.client, http.MethodPost, "/api/filters/tristate", map[string]string{"property": "확정", "state": "excluded"})

	_, body := h.do(t, other, http.MethodGet, "/api/filters", nil)
	assert.Contains(t, string(body), `"query":null`)

	_, body = h.do(t, h.client, http.MethodGet, "/api/filters", nil)
	assert.Contains(t, string(body), `"equals":false`)
}

func TestConcurrentSearchesInSeparateSessions(t *testing.T) {
	h := newHarness(t)
	h.source.filtered = []model.Record{record("Alpha", "2024-03-01")}
	other := newClient(t)

	h.do(t, h.client, http.MethodPost, "/api/filters/tristate", map[string]string{"property": "확정", "state": "included"})
	h.do(t, other, http.MethodPost, "/api/filters/tristate", map[string]string{"property": "확정", "state": "excluded"})

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var gateMu sync.Mutex
	h.source.gate = func(ctx context.Context) error {
		gateMu.Lock()
		calls++
		first := calls == 1
		gateMu.Unlock()
		if !first {
			return nil
		}
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	type result struct {
		status int
		body   []byte
	}
	held := make(chan result, 1)
	go func() {
		resp, err := h.client.Post(h.srv.URL+"/api/filters/search", "application/json", nil)
		if err != nil {
			held <- result{body: []byte(err.Error())}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		held <- result{resp.StatusCode, body}
	}()
	<-started

	resp, body := h.do(t, other, http.MethodPost, "/api/filters/search", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	close(release)
	res := <-held
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var first searchResponse
	require.NoError(t, json.Unmarshal(res.body, &first))
	assert.Equal(t, 1, first.Count)

	_, body = h.do(t, h.client, http.MethodGet, "/api/tracks/state", nil)
	var state struct {
		Filtered fetch.Snapshot `json:"filtered"`
	}
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, fetch.PhaseReady, state.Filtered.Phase)
	assert.Equal(t, 1, state.Filtered.Count)
}

func TestSessionSweepForgetsExpiredSessions(t *testing.T) {
	store := NewSessionStore(time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return start }

	var forgotten []string
	store.OnExpire(func(id string) { forgotten = append(forgotten, id) })

	w := httptest.NewRecorder()
	sess := store.Session(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, 1, store.Len())

	store.now = func() time.Time { return start.Add(30 * time.Second) }
	assert.Equal(t, 0, store.Sweep())

	store.now = func() time.Time { return start.Add(2 * time.Minute) }
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []string{sess.ID}, forgotten)
}

func TestMatchRunsCallerFilter(t *testing.T) {
	h := newHarness(t)
	h.source.filtered = []model.Record{record("Alpha", "2024-03-01")}

	doc := map[string]interface{}{
		"filter": map[string]interface{}{"property": "Title", "title": map[string]string{"equals": "Alpha"}},
	}
	resp, body := h.do(t, h.client, http.MethodPost, "/api/records/match", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["완성일: 2024-03-01"]`, string(body))

	require.Len(t, h.source.queries, 1)
	assert.JSONEq(t, `{"property":"Title","title":{"equals":"Alpha"}}`, string(h.source.queries[0].Raw))
	assert.Equal(t, []int{1}, h.source.sizes)

	h.source.filtered = nil
	resp, body = h.do(t, h.client, http.MethodPost, "/api/records/match", doc)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"message":"No matching records found."}`, string(body))

	resp, _ = h.do(t, h.client, http.MethodPost, "/api/records/match", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchWithoutFiltersIsUnfiltered(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, h.client, http.MethodPost, "/api/filters/search?q=alpha", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result searchResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 2, result.Count)
	for _, q := range h.source.queries {
		assert.Nil(t, q)
	}
}

func TestTrackLookups(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, h.client, http.MethodGet, "/api/track?title=Alpha", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec model.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "Alpha", rec.Title())

	resp, _ = h.do(t, h.client, http.MethodGet, "/api/track?title=Zulu", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = h.do(t, h.client, http.MethodGet, "/api/track", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = h.do(t, h.client, http.MethodPost, "/api/song-detail", titleRequest{Title: "Alpha"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(body), `"date":"2024-03-01"`)

	_, body = h.do(t, h.client, http.MethodPost, "/api/get-link", titleRequest{Title: "Alpha"})
	assert.JSONEq(t, `{"link":"https://cdn.example.com/alpha.mp3"}`, string(body))
	resp, body = h.do(t, h.client, http.MethodPost, "/api/get-link", titleRequest{Title: "Zulu"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"link":null}`, string(body))
}

func TestProperties(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, h.client, http.MethodGet, "/api/properties", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"title":"ESMP"`)
	assert.Contains(t, string(body), `"property":"확정"`)
	assert.NotContains(t, string(body), `"property":"가이드비"`)
}

func TestDownload(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, h.client, http.MethodPost, "/api/download", downloadRequest{
		URL: "https://cdn.example.com/alpha.mp3", Filename: "Alpha", Password: "1234",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, h.fetcher.opened, "no fetch on a wrong passphrase")

	resp, body := h.do(t, h.client, http.MethodPost, "/api/download", downloadRequest{
		URL: "https://cdn.example.com/alpha.mp3", Filename: "첫 곡", Password: "0000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="%EC%B2%AB%20%EA%B3%A1.mp3"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "ID3audio", string(body))

	h.fetcher.err = errors.New("connection refused")
	resp, _ = h.do(t, h.client, http.MethodPost, "/api/download", downloadRequest{
		URL: "https://cdn.example.com/alpha.mp3", Filename: "Alpha", Password: "0000",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, h.client, http.MethodGet, "/api/tracks", nil)

	resp, body := h.do(t, h.client, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "esmp_sweep_pages_total")
}

func TestStateFeed(t *testing.T) {
	h := newHarness(t)

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first, second fetch.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, fetch.PhaseIdle, first.Phase)
	assert.Equal(t, fetch.PhaseIdle, second.Phase)

	h.do(t, h.client, http.MethodPost, "/api/tracks/next", nil)

	var update fetch.Snapshot
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, fetch.PhaseLoading, update.Phase)
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, fetch.PhaseReady, update.Phase)
	assert.True(t, update.HasMore)
	assert.Nil(t, update.Records)
}
