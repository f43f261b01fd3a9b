// Package metrics provides Prometheus metrics for the codespace server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codespace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	entryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespace_entry_mutations_total",
			Help: "File and folder mutations by operation and result",
		},
		[]string{"op", "kind", "result"},
	)

	uploadedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespace_uploaded_files_total",
			Help: "Files received through uploads by result",
		},
		[]string{"result"},
	)

	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespace_executions_total",
			Help: "Run, build and terminal executions by result",
		},
		[]string{"kind", "result"},
	)

	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codespace_execution_duration_seconds",
			Help:    "Execution wall time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMutation records a create or delete of a file or folder.
func RecordMutation(op, kind string, success bool) {
	entryMutationsTotal.WithLabelValues(op, kind, result(success)).Inc()
}

// RecordUpload records the outcome of one upload batch.
func RecordUpload(accepted, rejected int) {
	uploadedFilesTotal.WithLabelValues("accepted").Add(float64(accepted))
	uploadedFilesTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordExecution records a run, build or terminal execution. success is
// false when the program reported an error or could not be started.
func RecordExecution(kind string, duration time.Duration, success bool) {
	executionsTotal.WithLabelValues(kind, result(success)).Inc()
	executionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics labelled by the matched route pattern,
// so ids in paths do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
