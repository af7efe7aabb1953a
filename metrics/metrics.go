// Package metrics exposes Prometheus collectors for upstream calls and the
// response cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequests counts metadata service calls by operation and outcome.
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esmp",
		Name:      "upstream_requests_total",
		Help:      "Requests sent to the metadata service.",
	}, []string{"op", "outcome"})

	// UpstreamLatency observes metadata service round trips.
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "esmp",
		Name:      "upstream_request_seconds",
		Help:      "Metadata service round-trip latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// CacheLookups counts cache reads by key and result (hit, miss, error).
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esmp",
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups.",
	}, []string{"key", "result"})

	// SweepPages counts pages appended by fetch target.
	SweepPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esmp",
		Name:      "sweep_pages_total",
		Help:      "Result pages accumulated.",
	}, []string{"target"})

	// Downloads counts download attempts by outcome.
	Downloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esmp",
		Name:      "downloads_total",
		Help:      "Download passthrough attempts.",
	}, []string{"outcome"})
)

// Registry holds the service collectors plus the Go runtime ones.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		UpstreamRequests,
		UpstreamLatency,
		CacheLookups,
		SweepPages,
		Downloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
