package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

// MetricsManager holds the Prometheus metrics of the catalog server and engine.
type MetricsManager struct {
	Registry             *prometheus.Registry
	ListingsCreatedTotal prometheus.Counter
	ListingUpdatesTotal  prometheus.Counter
	ListingDeletesTotal  prometheus.Counter
	APIErrorsTotal       *prometheus.CounterVec
	APILatency           *prometheus.HistogramVec
	MutationsTotal       *prometheus.CounterVec
	MutationLatency      *prometheus.HistogramVec
	FetchFailuresTotal   *prometheus.CounterVec
}

func NewMetricsManager(namespace string) *MetricsManager {
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		ListingsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_created_total",
			Help:      "Total number of listings created.",
		}),
		ListingUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_updates_total",
			Help:      "Total number of listings updated.",
		}),
		ListingDeletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_deletes_total",
			Help:      "Total number of listings deleted.",
		}),
		APIErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_errors_total",
			Help:      "Total number of API errors by route and status.",
		}, []string{"route", "status"}),
		APILatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_latency_seconds",
			Help:      "Latency of API requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_mutations_total",
			Help:      "Optimistic mutations settled by the engine, by kind and outcome.",
		}, []string{"kind", "status"}),
		MutationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_mutation_latency_seconds",
			Help:      "Time from issuing a mutation to its confirmation or failure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		FetchFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_fetch_failures_total",
			Help:      "Category loads served from stale data.",
		}, []string{"category"}),
	}

	registry.MustRegister(
		m.ListingsCreatedTotal,
		m.ListingUpdatesTotal,
		m.ListingDeletesTotal,
		m.APIErrorsTotal,
		m.APILatency,
		m.MutationsTotal,
		m.MutationLatency,
		m.FetchFailuresTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// MutationSettled implements catalog.MutationObserver.
func (m *MetricsManager) MutationSettled(kind catalog.MutationKind, status catalog.MutationStatus, took time.Duration) {
	m.MutationsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.MutationLatency.WithLabelValues(string(kind)).Observe(took.Seconds())
}

// FetchFailed implements catalog.MutationObserver.
func (m *MetricsManager) FetchFailed(category string) {
	m.FetchFailuresTotal.WithLabelValues(category).Inc()
}

func (m *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics on port until the server fails. An empty port
// disables it.
func StartMetricsServer(port string, appLogger *logger.Logger, m *MetricsManager) error {
	if port == "" {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	appLogger.Info("Prometheus metrics server starting", "port", port, "path", "/metrics")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
