package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pilot_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pilot_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"route"},
	)

	// RowsStaged counts staging rows written by the ingestion pipeline
	RowsStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilot_ingest_rows_staged_total",
			Help: "Total staging rows inserted by the ingestion pipeline",
		},
	)

	// RowsTransformed counts staging rows turned into canonical transactions
	RowsTransformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilot_ingest_rows_transformed_total",
			Help: "Total staging rows transformed into canonical transactions",
		},
	)

	// RowsSkipped counts staging rows dropped during normalization
	RowsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pilot_ingest_rows_skipped_total",
			Help: "Total staging rows that failed date or amount normalization",
		},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware collects Prometheus metrics per route
func MetricsMiddleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ActiveRequests.WithLabelValues(route).Inc()
		defer ActiveRequests.WithLabelValues(route).Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
