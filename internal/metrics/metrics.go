// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadnote_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threadnote_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Notes
	NoteOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadnote_note_operations_total",
			Help: "Note operations by kind and outcome",
		},
		[]string{"operation", "outcome"}, // create/update/delete, ok/rejected/error
	)

	CycleRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threadnote_cycle_rejections_total",
			Help: "Writes rejected because their mentions would close a cycle",
		},
	)

	CascadeNotesDeleted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threadnote_cascade_notes_deleted",
			Help:    "Notes removed per cascade delete",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Search index
	SearchIndexTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threadnote_search_index_total",
			Help: "Search index jobs by outcome",
		},
		[]string{"outcome"}, // ok, failed, dropped, rejected
	)
)

// TrackNoteOperation counts a finished note operation.
func TrackNoteOperation(operation, outcome string) {
	NoteOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// TrackSearchIndex counts a search index job.
func TrackSearchIndex(outcome string) {
	SearchIndexTotal.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latencies labelled by chi route
// pattern, not raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
