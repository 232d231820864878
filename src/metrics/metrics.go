// Package metrics exposes gridwatch state as Prometheus series.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// Analysis, per channel
	Stability = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "analysis",
		Name:      "stability_percent",
		Help:      "Stability score of the telemetry window",
	}, []string{"channel"})

	TrendPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "analysis",
		Name:      "trend_percent",
		Help:      "Display intensity of the memoised trend classification",
	}, []string{"channel"})

	Reading = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "telemetry",
		Name:      "reading",
		Help:      "Most recent reading in volts or hertz",
	}, []string{"channel"})

	Offset = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "control",
		Name:      "offset",
		Help:      "Manual offset applied to the channel",
	}, []string{"channel"})

	// Control
	AutoStabilize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "control",
		Name:      "auto_stabilize",
		Help:      "1 when auto-stabilization is enabled",
	})

	PerfectMode = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "control",
		Name:      "perfect_mode",
		Help:      "1 when perfect mode is active",
	})

	Destabilized = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridwatch",
		Subsystem: "control",
		Name:      "destabilized",
		Help:      "1 while a destabilization drill is in effect",
	})

	// Counters
	TelemetryEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridwatch",
		Subsystem: "telemetry",
		Name:      "events_total",
		Help:      "Telemetry readings accepted",
	})

	TelemetryRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridwatch",
		Subsystem: "telemetry",
		Name:      "rejected_total",
		Help:      "Telemetry payloads that failed to decode",
	})

	OperatorActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridwatch",
		Subsystem: "control",
		Name:      "operator_actions_total",
		Help:      "Operator actions applied, by kind",
	}, []string{"action"})

	CommandsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridwatch",
		Subsystem: "mqtt",
		Name:      "commands_published_total",
		Help:      "Outbound commands handed to the broker, by command",
	}, []string{"command"})
)

// Bool converts a flag to a gauge value
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Serve runs the /metrics endpoint until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Warn().Err(err).Msg("Failed to write health response")
		}
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("Metrics server shutdown error")
		}
	}()

	log.Info().Str("addr", addr).Msg("Metrics server started")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
