// Package metrics exposes Prometheus metrics for reviewd.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// EventsTotal counts handled edit events by classification.
	EventsTotal *prometheus.CounterVec

	// WarningsTotal counts early-edit warnings.
	WarningsTotal prometheus.Counter

	// PromptsTotal counts opened review windows.
	PromptsTotal prometheus.Counter

	// EvaluationsTotal counts evaluator calls by outcome.
	EvaluationsTotal *prometheus.CounterVec

	// OpenWindows tracks currently open review windows.
	OpenWindows prometheus.Gauge

	// MilestonesTotal counts scheduler ticks.
	MilestonesTotal prometheus.Counter
}

// New creates and registers the daemon metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_events_total",
			Help: "Edit events handled, by classification.",
		}, []string{"class"}),
		WarningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewd_warnings_total",
			Help: "Early-edit warnings emitted.",
		}),
		PromptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewd_prompts_total",
			Help: "Review windows opened.",
		}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewd_evaluations_total",
			Help: "Evaluator calls, by outcome.",
		}, []string{"outcome"}),
		OpenWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reviewd_open_windows",
			Help: "Review windows currently open.",
		}),
		MilestonesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewd_milestones_total",
			Help: "Session milestone ticks fired.",
		}),
	}

	registry.MustRegister(
		m.EventsTotal,
		m.WarningsTotal,
		m.PromptsTotal,
		m.EvaluationsTotal,
		m.OpenWindows,
		m.MilestonesTotal,
	)

	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a scrape endpoint at addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
