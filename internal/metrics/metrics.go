// Package metrics exposes the engine's Prometheus collectors: command
// counts and error counts by wire error code, observer subscription gauge, and
// locator search duration.
package metrics

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/axengine/internal/model"
)

const defaultAddr = "127.0.0.1:9401"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	commandsTotal        *prometheus.CounterVec
	commandErrorsTotal   *prometheus.CounterVec
	locatorSearchSeconds *prometheus.HistogramVec
	observerSubscriptions prometheus.Gauge
	buildInfo            *prometheus.GaugeVec

	server   *http.Server
	registry *prometheus.Registry
	log      zerolog.Logger
}

// New creates and registers all collectors against a fresh registry.
func New(version string, log zerolog.Logger) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axengine_commands_total",
				Help: "Total dispatcher commands handled by type and outcome.",
			},
			[]string{"command", "status"},
		),
		commandErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axengine_command_errors_total",
				Help: "Dispatcher command failures by error code.",
			},
			[]string{"code"},
		),
		locatorSearchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axengine_locator_search_duration_seconds",
				Help:    "Locator resolution latency.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
			},
			[]string{"outcome"},
		),
		observerSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "axengine_observer_subscriptions",
				Help: "Current number of active notification subscriptions.",
			},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axengine_build_info",
				Help: "Engine build metadata.",
			},
			[]string{"version"},
		),
		registry: reg,
		log:      log.With().Str("component", "metrics").Logger(),
	}

	reg.MustRegister(
		m.commandsTotal,
		m.commandErrorsTotal,
		m.locatorSearchSeconds,
		m.observerSubscriptions,
		m.buildInfo,
	)
	m.buildInfo.WithLabelValues(version).Set(1)

	return m
}

// ObserveCommand implements dispatcher.Metrics.
func (m *Metrics) ObserveCommand(commandType model.CommandType, status string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(string(commandType), status).Inc()
}

// ObserveError implements dispatcher.Metrics.
func (m *Metrics) ObserveError(code string) {
	if m == nil {
		return
	}
	m.commandErrorsTotal.WithLabelValues(code).Inc()
}

// ObserveLocatorSearch records the wall-clock duration of one locator
// resolution, labeled by whether it found a match.
func (m *Metrics) ObserveLocatorSearch(d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.locatorSearchSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetObserverSubscriptions reports the observer center's current
// subscription count.
func (m *Metrics) SetObserverSubscriptions(n int) {
	if m == nil {
		return
	}
	m.observerSubscriptions.Set(float64(n))
}

// Start serves /metrics on addr. addr == "" or "disabled" is a no-op;
// addr == "default" uses defaultAddr.
func (m *Metrics) Start(addr string) error {
	if addr == "" || strings.EqualFold(addr, "disabled") {
		m.log.Info().Msg("metrics server disabled")
		return nil
	}
	if addr == "default" {
		addr = defaultAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped unexpectedly")
		}
	}()

	m.log.Info().Str("addr", addr).Msg("metrics server started")
	return nil
}

// Shutdown gracefully stops the metrics server, if running.
func (m *Metrics) Shutdown(ctx context.Context) {
	if m == nil || m.server == nil {
		return
	}
	_ = m.server.Shutdown(ctx)
}
