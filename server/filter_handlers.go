package server

import (
	"errors"
	"fmt"
	"net/http"

	"ESMP/core/fetch"
	"ESMP/core/filter"
	"ESMP/core/view"
	"ESMP/model"

	"github.com/gorilla/mux"
)

type filtersResponse struct {
	Filters []filter.Entry      `json:"filters"`
	Active  []filter.Descriptor `json:"active"`
	Query   *filter.Query       `json:"query"`
}

func (h *APIHandler) describeFilters(st *filter.State) filtersResponse {
	active := st.ActiveFilters(h.catalog())
	if active == nil {
		active = []filter.Descriptor{}
	}
	return filtersResponse{Filters: st.Entries(), Active: active, Query: st.Compile()}
}

// mutateFilters applies fn to the caller's filter state and answers with the
// resulting state.
func (h *APIHandler) mutateFilters(w http.ResponseWriter, r *http.Request, fn func(st *filter.State, cat *filter.Catalog) error) {
	sess := h.sessions.Session(w, r)
	var resp filtersResponse
	err := sess.Filters(func(st *filter.State) error {
		if err := fn(st, h.catalog()); err != nil {
			return err
		}
		resp = h.describeFilters(st)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireKind checks property against the catalog before a typed setter runs.
func requireKind(cat *filter.Catalog, property string, kind filter.Kind) error {
	f, ok := cat.Field(property)
	if !ok {
		return fmt.Errorf("%w: %q", filter.ErrUnknownField, property)
	}
	if f.Kind != kind {
		return fmt.Errorf("field %q is %s, not %s", property, f.Kind, kind)
	}
	return nil
}

// GetFiltersHandler returns the session's filter state and chips.
func (h *APIHandler) GetFiltersHandler(w http.ResponseWriter, r *http.Request) {
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error { return nil })
}

// ClearFiltersHandler resets every filter.
func (h *APIHandler) ClearFiltersHandler(w http.ResponseWriter, r *http.Request) {
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		st.Clear()
		return nil
	})
}

// ToggleFilterHandler toggles one multi-choice option.
func (h *APIHandler) ToggleFilterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Value == "" {
		writeError(w, http.StatusBadRequest, "property and value are required")
		return
	}
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		if err := requireKind(cat, req.Property, filter.KindMultiChoice); err != nil {
			return err
		}
		st.ToggleMultiChoice(req.Property, req.Value)
		return nil
	})
}

// TriStateFilterHandler sets a tri-state field.
func (h *APIHandler) TriStateFilterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string `json:"property"`
		State    string `json:"state"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		if err := requireKind(cat, req.Property, filter.KindTriState); err != nil {
			return err
		}
		return st.SetTriState(req.Property, filter.TriState(req.State))
	})
}

// SelectFilterHandler sets or clears a single-choice field.
func (h *APIHandler) SelectFilterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string  `json:"property"`
		Value    *string `json:"value"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		if err := requireKind(cat, req.Property, filter.KindSingleChoice); err != nil {
			return err
		}
		st.SetSingleChoice(req.Property, req.Value)
		return nil
	})
}

// DateFilterHandler sets a date range; omitted bounds are open.
func (h *APIHandler) DateFilterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string `json:"property"`
		Start    string `json:"start"`
		End      string `json:"end"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		if err := requireKind(cat, req.Property, filter.KindDateRange); err != nil {
			return err
		}
		return st.SetDateRange(req.Property, filter.DateRange{Start: req.Start, End: req.End})
	})
}

// SetFilterHandler applies a mutation whose shape the catalog decides.
func (h *APIHandler) SetFilterHandler(w http.ResponseWriter, r *http.Request) {
	var m filter.Mutation
	if err := decodeBody(w, r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		return st.Apply(cat, m)
	})
}

// RemoveFilterHandler removes one chip.
func (h *APIHandler) RemoveFilterHandler(w http.ResponseWriter, r *http.Request) {
	property := mux.Vars(r)["property"]
	value := r.URL.Query().Get("value")
	h.mutateFilters(w, r, func(st *filter.State, cat *filter.Catalog) error {
		st.Remove(property, value)
		return nil
	})
}

type searchResponse struct {
	Records []model.Record      `json:"records"`
	Count   int                 `json:"count"`
	Empty   bool                `json:"empty"`
	Active  []filter.Descriptor `json:"active"`
}

// SearchHandler compiles the session's filters and runs the query. With no
// active filter this is the full cached catalogue.
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := viewOptions(r, h.cfg.CompletionDateProperty)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.sessions.Session(w, r)
	var (
		query  *filter.Query
		active []filter.Descriptor
	)
	sess.Filters(func(st *filter.State) error {
		query = st.Compile()
		active = st.ActiveFilters(h.catalog())
		return nil
	})
	if active == nil {
		active = []filter.Descriptor{}
	}

	records, err := h.controller.FetchFiltered(r.Context(), sess.ID, query)
	if errors.Is(err, fetch.ErrInFlight) {
		writeJSON(w, http.StatusAccepted, h.controller.Snapshot(fetch.TargetAll).Summary())
		return
	}
	if err != nil {
		writeUpstreamError(w, "search", err)
		return
	}

	shown := view.Apply(records, opts)
	writeJSON(w, http.StatusOK, searchResponse{
		Records: shown,
		Count:   len(shown),
		Empty:   len(shown) == 0,
		Active:  active,
	})
}
