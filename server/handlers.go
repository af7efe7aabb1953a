package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ESMP/config"
	"ESMP/core/auth"
	"ESMP/core/fetch"
	"ESMP/core/filter"
	"ESMP/core/library"
	"ESMP/core/notion"
	"ESMP/logger"
	"ESMP/storage"
)

// APIHandler serves every API endpoint.
type APIHandler struct {
	cfg        *config.Config
	source     fetch.Source
	controller *fetch.Controller
	library    *library.Library
	catalog    func() *filter.Catalog
	sessions   *SessionStore
	fetcher    storage.Fetcher
	passphrase auth.Passphrase
}

// Services are the collaborators an APIHandler serves from.
type Services struct {
	Source     fetch.Source // tracks database, also behind the songlist passthrough
	Controller *fetch.Controller
	Library    *library.Library
	Catalog    func() *filter.Catalog
	Sessions   *SessionStore
	Fetcher    storage.Fetcher
}

// NewAPIHandler creates a handler. Without a catalog source the embedded
// default catalog is used.
func NewAPIHandler(cfg *config.Config, svc Services) *APIHandler {
	catalog := svc.Catalog
	if catalog == nil {
		def := filter.DefaultCatalog()
		catalog = func() *filter.Catalog { return def }
	}
	return &APIHandler{
		cfg:        cfg,
		source:     svc.Source,
		controller: svc.Controller,
		library:    svc.Library,
		catalog:    catalog,
		sessions:   svc.Sessions,
		fetcher:    svc.Fetcher,
		passphrase: auth.NewPassphrase(cfg.DownloadPassword),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// writeUpstreamError maps a lookup or fetch failure to a response. Not-found
// is a normal outcome and is not logged as an error.
func writeUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, notion.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No matching records found."})
	case errors.Is(err, library.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "title is required")
	case errors.Is(err, fetch.ErrInFlight):
		writeError(w, http.StatusConflict, "a request is already in flight")
	case errors.Is(err, fetch.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded by a newer request")
	case errors.Is(err, context.Canceled):
		logger.Debug("request cancelled", logger.String("op", op))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		logger.Error("upstream request failed",
			logger.String("op", op),
			logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "failed to reach the metadata service")
	}
}

type titleRequest struct {
	Title string `json:"title"`
}
