package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/civiclens/civiclens-go/internal/model"
)

// Metrics holds all Prometheus collectors for the CivicLens backend.
var Metrics = struct {
	AdmissionDecisions *prometheus.CounterVec
	ClassifierResults  *prometheus.CounterVec
	PenaltiesApplied   *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	DBPoolActive       prometheus.GaugeFunc
	DBPoolIdle         prometheus.GaugeFunc
	RequestsInFlight   prometheus.Gauge
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	QueuePending       prometheus.Gauge
	QueueExhausted     prometheus.Gauge
	QueueProcessing    prometheus.Gauge
	QueueFailed        prometheus.Gauge
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool) {
	Metrics.AdmissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civiclens_admission_decisions_total",
			Help: "Admission chain decisions, by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	Metrics.ClassifierResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civiclens_classifier_results_total",
			Help: "Verification worker outcomes, by result.",
		},
		[]string{"result"},
	)

	Metrics.PenaltiesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civiclens_penalties_applied_total",
			Help: "Progressive penalties applied, by type.",
		},
		[]string{"type"},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civiclens_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "civiclens_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	Metrics.CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "civiclens_cache_hits_total",
			Help: "Total Redis cache hits.",
		},
	)

	Metrics.CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "civiclens_cache_misses_total",
			Help: "Total Redis cache misses.",
		},
	)

	Metrics.QueuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "civiclens_queue_pending",
			Help: "Pending submissions with retry budget remaining.",
		},
	)

	Metrics.QueueExhausted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "civiclens_queue_exhausted_pending",
			Help: "Pending submissions whose retry budget is exhausted.",
		},
	)

	Metrics.QueueProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "civiclens_queue_processing",
			Help: "Submissions currently claimed by the worker.",
		},
	)

	Metrics.QueueFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "civiclens_queue_failed",
			Help: "Submissions marked failed after exhausting retries.",
		},
	)

	// DB pool gauges — read live stats from pgxpool
	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "civiclens_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "civiclens_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.AdmissionDecisions,
		Metrics.ClassifierResults,
		Metrics.PenaltiesApplied,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
		Metrics.CacheHits,
		Metrics.CacheMisses,
		Metrics.QueuePending,
		Metrics.QueueExhausted,
		Metrics.QueueProcessing,
		Metrics.QueueFailed,
	)
}

// PublishQueueStats feeds the verification worker's periodic stats snapshot
// into the queue gauges.
func PublishQueueStats(stats *model.QueueStats) {
	if Metrics.QueuePending == nil {
		return
	}
	Metrics.QueuePending.Set(float64(stats.Pending))
	Metrics.QueueExhausted.Set(float64(stats.ExhaustedPending))
	Metrics.QueueProcessing.Set(float64(stats.Processing))
	Metrics.QueueFailed.Set(float64(stats.Failed))
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next() — Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	switch {
	case len(path) > 17 && path[:17] == "/api/submissions/":
		return "/api/submissions/:id"
	case len(path) > 13 && path[:13] == "/api/reports/":
		return "/api/reports/:id"
	case len(path) > 17 && path[:17] == "/api/admin/users/":
		return "/api/admin/users/:userId"
	case len(path) > 19 && path[:19] == "/api/admin/ip-bans/":
		return "/api/admin/ip-bans/:ipHash"
	default:
		return path
	}
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
