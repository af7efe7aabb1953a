package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ESMP/cache"
	"ESMP/config"
	"ESMP/core/fetch"
	"ESMP/core/filter"
	"ESMP/core/library"
	"ESMP/core/notion"
	"ESMP/logger"
	"ESMP/metrics"
	"ESMP/storage"

	"github.com/gorilla/mux"
)

// corsMiddleware lets the UI be served from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires every endpoint of h. The UI is served from webAppDir when
// it is not empty.
func NewRouter(h *APIHandler, webAppDir string) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// tracks
	router.HandleFunc("/api/songlist", h.SongListHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", h.TracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/next", h.NextPageHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/state", h.TracksStateHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/track", h.TrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/song-detail", h.SongDetailHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/get-link", h.GetLinkHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/properties", h.PropertiesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/records/match", h.MatchHandler).Methods(http.MethodPost)

	// filters
	router.HandleFunc("/api/filters", h.GetFiltersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/filters", h.ClearFiltersHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/filters/toggle", h.ToggleFilterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/filters/tristate", h.TriStateFilterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/filters/select", h.SelectFilterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/filters/date", h.DateFilterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/filters/set", h.SetFilterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/filters/search", h.SearchHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/filters/{property}", h.RemoveFilterHandler).Methods(http.MethodDelete)

	router.HandleFunc("/api/download", h.DownloadHandler).Methods(http.MethodPost)
	router.HandleFunc("/ws/state", h.StateFeedHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if webAppDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(webAppDir)))
	}
	return router
}

// Start wires the service from cfg and serves until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if cfg.NotionToken == "" || cfg.TracksDatabaseID == "" {
		return fmt.Errorf("NOTION_TOKEN and NOTION_TRACKS_DATABASE_ID must be set")
	}

	client := notion.NewClient(cfg.NotionAPIURL, cfg.NotionToken, cfg.NotionVersion, cfg.NotionTimeout)
	tracks := client.Database(cfg.TracksDatabaseID, notion.Descending(cfg.CompletionDateProperty))
	links := client.Database(cfg.LinksDatabaseID)
	if cfg.LinksDatabaseID == "" {
		logger.Warn("NOTION_LINKS_DATABASE_ID is not set, link lookups use the tracks database")
		links = client.Database(cfg.TracksDatabaseID)
	}

	store, err := cache.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	logger.Info("response cache ready",
		logger.String("backend", cfg.CacheBackend),
		logger.Duration("ttl", cfg.CacheTTL))

	var catalog func() *filter.Catalog
	if cfg.FieldCatalogPath != "" {
		watcher, err := filter.NewCatalogWatcher(cfg.FieldCatalogPath)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("field catalog watcher stopped", logger.ErrorField(err))
			}
		}()
		catalog = watcher.Current
	} else {
		def := filter.DefaultCatalog()
		catalog = func() *filter.Catalog { return def }
	}

	controller := fetch.NewController(tracks, store, cfg.PageSize)
	lib := library.New(tracks, links, catalog, library.Options{
		TitleProperty:     cfg.TrackTitleProperty,
		DateProperty:      cfg.CompletionDateProperty,
		LinkTitleProperty: cfg.LinkTitleProperty,
		LinkURLProperty:   cfg.LinkURLProperty,
	})

	var routes []storage.Route
	if cfg.MinioEndpoint != "" {
		bucket, err := storage.NewMinioStore(cfg)
		if err != nil {
			return err
		}
		if err := bucket.Check(ctx); err != nil {
			logger.Warn("MinIO bucket unavailable, downloads use plain HTTP", logger.ErrorField(err))
		} else {
			routes = append(routes, bucket)
		}
	}
	fetcher := storage.NewRouter(storage.NewHTTPFetcher(5*time.Minute), routes...)

	sessions := NewSessionStore(24 * time.Hour)
	sessions.OnExpire(controller.Forget)
	go sessions.Run(ctx, time.Hour)

	apiHandler := NewAPIHandler(cfg, Services{
		Source:     tracks,
		Controller: controller,
		Library:    lib,
		Catalog:    catalog,
		Sessions:   sessions,
		Fetcher:    fetcher,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(apiHandler, cfg.WebAppDir),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // downloads stream through
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		closer.Close()
	}
	logger.Info("server stopped")
	return nil
}
