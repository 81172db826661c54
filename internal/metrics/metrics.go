// Package metrics exposes Prometheus counters for record intake and the
// HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_records_created_total",
			Help: "Records created, by kind and path (single, import, convert)",
		},
		[]string{"kind", "path"},
	)

	conflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_duplicate_conflicts_total",
			Help: "Writes rejected as duplicates",
		},
		[]string{"kind"},
	)

	importRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_import_rows_total",
			Help: "Imported CSV rows by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	importDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_import_duration_seconds",
			Help:    "Wall time of a full CSV import",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	conversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_lead_conversions_total",
			Help: "Lead conversion attempts by outcome",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func RecordCreated(kind, path string) {
	recordsCreated.WithLabelValues(kind, path).Inc()
}

func RecordConflict(kind string) {
	conflicts.WithLabelValues(kind).Inc()
}

func RecordImport(kind string, succeeded, failed int, took time.Duration) {
	importRows.WithLabelValues(kind, "success").Add(float64(succeeded))
	importRows.WithLabelValues(kind, "error").Add(float64(failed))
	importDuration.WithLabelValues(kind).Observe(took.Seconds())
}

// RecordConversion counts a conversion outcome: converted, noop, conflict,
// reconciled or error.
func RecordConversion(outcome string) {
	conversions.WithLabelValues(outcome).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency, labelled by the chi route
// pattern so that IDs in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
