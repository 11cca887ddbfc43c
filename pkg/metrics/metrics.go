// Package metrics exposes Prometheus instrumentation for the kiosk.
//
// Collectors live on a private registry so tests and multiple kiosks in one
// process do not collide on the global default registry.
//
//	m := metrics.New()
//	ledger := checkin.NewLedger(store, checkin.WithHooks(m.LedgerHook()))
//	classifier := scanner.New(onCode, scanner.WithObserver(m.ScannerObserver()))
//	router.Handle("/metrics", m.Handler())
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/scanner"
)

const namespace = "kiosk"

// Outcome label values besides the checkin.Kind names.
const OutcomeCheckedIn = "checked_in"

type Metrics struct {
	registry *prometheus.Registry

	checkins  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	decisions *prometheus.CounterVec
}

// New registers the kiosk collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkin_total",
			Help:      "Check-in attempts by outcome and service.",
		}, []string{"outcome", "service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkin_duration_seconds",
			Help:      "Time from submitted code to final check-in outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "decisions_total",
			Help:      "Keystroke classifier decisions.",
		}, []string{"decision"}),
	}
	m.registry.MustRegister(
		m.checkins,
		m.duration,
		m.decisions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// LedgerHook counts check-in outcomes. Rejections carry no service label
// because the subscription may not exist.
func (m *Metrics) LedgerHook() checkin.Hook {
	return checkin.HookFuncs{
		CheckIn: func(_ context.Context, res checkin.Result, elapsed time.Duration) {
			m.checkins.WithLabelValues(OutcomeCheckedIn, string(res.Summary.Service)).Inc()
			m.duration.WithLabelValues(OutcomeCheckedIn).Observe(elapsed.Seconds())
		},
		Rejected: func(_ context.Context, _ string, kind checkin.Kind, elapsed time.Duration) {
			m.checkins.WithLabelValues(kind.String(), "").Inc()
			m.duration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
		},
	}
}

// ScannerObserver counts classifier decisions.
func (m *Metrics) ScannerObserver() scanner.Observer {
	return func(d scanner.Decision) {
		m.decisions.WithLabelValues(d.String()).Inc()
	}
}
