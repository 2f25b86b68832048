package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/dewater/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dewater_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dewater_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Simulation metrics
	simulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dewater_simulations_total",
			Help: "Total number of water-table simulations",
		},
		[]string{"source", "status"},
	)

	simulationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dewater_simulation_duration_seconds",
			Help:    "Grid evaluation duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"source"},
	)

	cellsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dewater_cells_evaluated_total",
			Help: "Total number of grid cells evaluated",
		},
	)

	warningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dewater_warnings_total",
			Help: "Simulation warnings by code",
		},
		[]string{"code"},
	)

	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dewater_result_cache_lookups_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	// logger counters advance even when the log line is sampled away
	counters := map[string]struct {
		help  string
		value func() int64
	}{
		"dewater_log_errors_total":          {"Errors logged, before sampling", logger.TotalErrors.Load},
		"dewater_log_warnings_total":        {"Warnings logged, before sampling", logger.TotalWarnings.Load},
		"dewater_http_5xx_total":            {"Responses with a 5xx status", logger.Total5xxErrors.Load},
		"dewater_http_4xx_total":            {"Responses with a 4xx status", logger.Total4xxErrors.Load},
		"dewater_validation_failures_total": {"Rejected requests", logger.ValidationFailures.Load},
		"dewater_overdraw_warnings_total":   {"Results with overdrawn cells", logger.OverdrawWarnings.Load},
		"dewater_cache_errors_total":        {"Result cache backend failures", logger.CacheErrors.Load},
	}
	for name, c := range counters {
		value := c.value
		promauto.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: c.help}, func() float64 {
			return float64(value())
		})
	}
}

// Middleware records request counts and latency. Paths are labelled by
// route pattern so scenario IDs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordSimulation records one grid evaluation. source names the caller, such as "api" or "cli".
func RecordSimulation(source string, cells int, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	simulationsTotal.WithLabelValues(source, status).Inc()
	if err == nil {
		simulationDuration.WithLabelValues(source).Observe(duration.Seconds())
		cellsEvaluated.Add(float64(cells))
	}
}

// RecordWarning counts one simulation warning
func RecordWarning(code string) {
	warningsTotal.WithLabelValues(code).Inc()
}

// RecordCacheHit counts a result cache hit
func RecordCacheHit() {
	cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a result cache miss
func RecordCacheMiss() {
	cacheLookups.WithLabelValues("miss").Inc()
}
