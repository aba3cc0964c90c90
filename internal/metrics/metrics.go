package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tinies"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Generation metrics
	GenerationsTotal        *prometheus.CounterVec
	GenerationStageDuration *prometheus.HistogramVec

	// Translation metrics
	TranslationsTotal *prometheus.CounterVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec

	// Counter metrics
	Visits prometheus.Gauge

	// Scratch metrics
	ScratchFilesSwept prometheus.Counter

	// HTTP surface metrics
	RateLimitedTotal prometheus.Counter
	SessionsActive   prometheus.Gauge
	ProgressClients  prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of generation requests by final status",
			},
			[]string{"backend", "status"},
		),
		GenerationStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_stage_duration_seconds",
				Help:      "Duration of each generation stage in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),

		TranslationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translations_total",
				Help:      "Prompt normalizations by outcome",
			},
			[]string{"result"},
		),

		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Telegram relay attempts by status",
			},
			[]string{"status"},
		),

		Visits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "visits",
				Help:      "Last observed value of the persistent visit counter",
			},
		),

		ScratchFilesSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scratch_files_swept_total",
				Help:      "Orphaned scratch files removed by the sweeper",
			},
		),

		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Generation requests rejected by the rate limiter",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of live browser sessions",
			},
		),
		ProgressClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "progress_clients",
				Help:      "Connected progress websocket clients",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.GenerationsTotal,
		m.GenerationStageDuration,
		m.TranslationsTotal,
		m.NotificationsTotal,
		m.Visits,
		m.ScratchFilesSwept,
		m.RateLimitedTotal,
		m.SessionsActive,
		m.ProgressClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveStage records how long a generation stage took
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.GenerationStageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// RecordGeneration counts a finished generation request
func (m *Metrics) RecordGeneration(backend, status string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(backend, status).Inc()
}

// RecordTranslation counts a normalization outcome (translated, passthrough, failed)
func (m *Metrics) RecordTranslation(result string) {
	if m == nil {
		return
	}
	m.TranslationsTotal.WithLabelValues(result).Inc()
}

// RecordNotification counts a relay attempt (sent, failed, skipped)
func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
