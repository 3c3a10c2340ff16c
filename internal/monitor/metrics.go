package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds all Prometheus metrics for the wipe engine.
type Metrics struct {
	Registry *prometheus.Registry

	WipesTotal     *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec
	FallbacksTotal prometheus.Counter
	WipeErrors     *prometheus.CounterVec
	NonZeroRows    prometheus.Gauge
	WipeInFlight   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		WipesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nvmewipe",
				Name:      "wipes_total",
				Help:      "Total wipe runs by erase method and final status.",
			},
			[]string{"method", "status"},
		),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nvmewipe",
				Name:      "phase_duration_seconds",
				Help:      "Duration of workflow phases in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"phase"},
		),

		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "nvmewipe",
				Name:      "strategy_fallbacks_total",
				Help:      "Times the executor advanced to the fallback strategy.",
			},
		),

		WipeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nvmewipe",
				Name:      "errors_total",
				Help:      "Total workflow errors by type.",
			},
			[]string{"type"},
		),

		NonZeroRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nvmewipe",
				Name:      "verification_non_zero_rows",
				Help:      "Non-zero rows found in the last verification sample.",
			},
		),

		WipeInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "nvmewipe",
				Name:      "wipe_in_flight",
				Help:      "Whether a destructive erase is currently running.",
			},
		),
	}

	reg.MustRegister(
		m.WipesTotal,
		m.PhaseDuration,
		m.FallbacksTotal,
		m.WipeErrors,
		m.NonZeroRows,
		m.WipeInFlight,
	)

	return m
}

// ObservePhase records how long a workflow phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordWipe records a finished run.
func (m *Metrics) RecordWipe(method, status string) {
	m.WipesTotal.WithLabelValues(method, status).Inc()
}

// RecordError records a workflow error by type.
func (m *Metrics) RecordError(errType string) {
	m.WipeErrors.WithLabelValues(errType).Inc()
}

// Serve exposes the registry on addr so a long-running erase can be watched
// from outside. Listener failures are logged, never fatal.
func (m *Metrics) Serve(addr, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()

	log.Info().Str("addr", addr).Str("path", path).Msg("metrics listening")
	return srv
}
