// Package storage opens audio objects for the download passthrough, either
// over plain HTTP or straight from the MinIO bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when the object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object is an open remote object. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64 // -1 when unknown
	ContentType string
}

// Fetcher opens the object behind a URL.
type Fetcher interface {
	Open(ctx context.Context, rawURL string) (*Object, error)
}

// StatusError is a non-success response from an object URL.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage: fetching %s: status %d", e.URL, e.Status)
}

// HTTPFetcher downloads objects with a plain GET.
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher. The timeout bounds the whole transfer.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{httpClient: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Open(ctx context.Context, rawURL string) (*Object, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("storage: unsupported url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: fetching %s: %w", u.Host, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrObjectNotFound
		}
		return nil, &StatusError{URL: u.Host + u.Path, Status: resp.StatusCode}
	}
	return &Object{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Route is a fetcher that only serves some URLs.
type Route interface {
	Fetcher
	Handles(rawURL string) bool
}

// Router sends each URL to the first route that handles it, else to the
// fallback.
type Router struct {
	routes   []Route
	fallback Fetcher
}

// NewRouter creates a router. Nil routes are skipped.
func NewRouter(fallback Fetcher, routes ...Route) *Router {
	r := &Router{fallback: fallback}
	for _, route := range routes {
		if route != nil {
			r.routes = append(r.routes, route)
		}
	}
	return r
}

func (r *Router) Open(ctx context.Context, rawURL string) (*Object, error) {
	for _, route := range r.routes {
		if route.Handles(rawURL) {
			return route.Open(ctx, rawURL)
		}
	}
	return r.fallback.Open(ctx, rawURL)
}

// componentUnescaper restores what encodeURIComponent leaves alone but
// url.QueryEscape does not.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// AttachmentHeader is the Content-Disposition for saving an object as
// name.mp3. The name is percent-encoded the way browsers encode a URI
// component.
func AttachmentHeader(name string) string {
	escaped := componentUnescaper.Replace(url.QueryEscape(name))
	return `attachment; filename="` + escaped + `.mp3"`
}
