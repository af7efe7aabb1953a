package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ESMP/core/fetch"
	"ESMP/core/filter"
	"ESMP/core/library"
	"ESMP/core/notion"
	"ESMP/core/view"
	"ESMP/model"
)

// SongListHandler passes one page of the tracks database through.
func (h *APIHandler) SongListHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := h.cfg.PageSize
	if s := q.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "page_size must be a positive integer")
			return
		}
		pageSize = min(n, notion.MaxPageSize)
	}

	page, err := h.source.QueryPage(r.Context(), nil, q.Get("start_cursor"), pageSize)
	if err != nil {
		writeUpstreamError(w, "songlist", err)
		return
	}
	if page.Items == nil {
		page.Items = []model.Record{}
	}
	writeJSON(w, http.StatusOK, page)
}

type tracksResponse struct {
	Records   []model.Record `json:"records"`
	Count     int            `json:"count"`
	Total     int            `json:"total"`
	Empty     bool           `json:"empty"`
	FromCache bool           `json:"fromCache"`
}

func viewOptions(r *http.Request, dateProperty string) (view.Options, error) {
	q := r.URL.Query()
	key, err := view.ParseSortKey(q.Get("sort"))
	if err != nil {
		return view.Options{}, err
	}
	order, err := view.ParseOrder(q.Get("order"))
	if err != nil {
		return view.Options{}, err
	}
	return view.Options{
		Query:        q.Get("q"),
		Key:          key,
		Order:        order,
		DateProperty: dateProperty,
	}, nil
}

// TracksHandler returns the full catalogue, from cache when fresh, with the
// requested search and sort applied.
func (h *APIHandler) TracksHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := viewOptions(r, h.cfg.CompletionDateProperty)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.controller.FetchUnfiltered(r.Context())
	if errors.Is(err, fetch.ErrInFlight) {
		writeJSON(w, http.StatusAccepted, h.controller.Snapshot(fetch.TargetAll).Summary())
		return
	}
	if err != nil {
		writeUpstreamError(w, "tracks", err)
		return
	}

	shown := view.Apply(records, opts)
	writeJSON(w, http.StatusOK, tracksResponse{
		Records:   shown,
		Count:     len(shown),
		Total:     len(records),
		Empty:     len(records) == 0,
		FromCache: h.controller.Snapshot(fetch.TargetAll).FromCache,
	})
}

// NextPageHandler appends one page to the incrementally loaded list.
func (h *APIHandler) NextPageHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.LoadNextPage(r.Context())
	if err != nil {
		writeUpstreamError(w, "next page", err)
		return
	}
	if snap.Records == nil {
		snap.Records = []model.Record{}
	}
	writeJSON(w, http.StatusOK, snap)
}

// TracksStateHandler reports the shared list and the caller's own filtered
// search, without records.
func (h *APIHandler) TracksStateHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Session(w, r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"all":         h.controller.Snapshot(fetch.TargetAll).Summary(),
		"filtered":    h.controller.FilteredSnapshot(sess.ID).Summary(),
		"canLoadMore": h.controller.CanLoadMore(),
	})
}

// TrackHandler resolves a deep link to a single record.
func (h *APIHandler) TrackHandler(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	rec, err := h.library.Track(r.Context(), title)
	if err != nil {
		writeUpstreamError(w, "track", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SongDetailHandler returns the credit lines the player shows.
func (h *APIHandler) SongDetailHandler(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	detail, err := h.library.Detail(r.Context(), req.Title)
	if err != nil {
		writeUpstreamError(w, "song detail", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, detail)
}

// GetLinkHandler resolves a title to its playable URL, null when none.
func (h *APIHandler) GetLinkHandler(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	link, err := h.library.Link(r.Context(), req.Title)
	if err != nil {
		writeUpstreamError(w, "get link", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{"link": link})
}

// PropertiesHandler describes the database and the filterable fields.
func (h *APIHandler) PropertiesHandler(w http.ResponseWriter, r *http.Request) {
	schema, err := h.controller.Schema(r.Context())
	if err != nil {
		writeUpstreamError(w, "properties", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schema": schema,
		"fields": h.catalog().Filterable(),
	})
}

type matchRequest struct {
	Filter json.RawMessage `json:"filter"`
}

// MatchHandler runs a caller-supplied filter document against the tracks
// database and returns the first match as "property: value" lines.
func (h *APIHandler) MatchHandler(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Filter) == 0 || string(req.Filter) == "null" {
		writeError(w, http.StatusBadRequest, "filter is required")
		return
	}

	page, err := h.source.QueryPage(r.Context(), filter.Raw(req.Filter), "", 1)
	if err == nil && len(page.Items) == 0 {
		err = notion.ErrNotFound
	}
	if err != nil {
		writeUpstreamError(w, "match", err)
		return
	}
	writeJSON(w, http.StatusOK, library.PropertyLines(page.Items[0]))
}
