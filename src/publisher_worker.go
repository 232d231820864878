package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/metrics"
)

// PublisherConfig selects what the publisher renders
type PublisherConfig struct {
	SnapshotTopic string
	Discovery     bool
}

// recordMetrics mirrors a snapshot into the Prometheus gauges
func recordMetrics(s Snapshot) {
	for _, ch := range channels {
		view := s.View(ch)
		name := ch.String()
		metrics.Stability.WithLabelValues(name).Set(view.Stability)
		metrics.TrendPercent.WithLabelValues(name).Set(float64(view.TrendPercent))
		if s.HasReading {
			metrics.Reading.WithLabelValues(name).Set(view.Current)
		}
	}
	metrics.Offset.WithLabelValues(grid.Voltage.String()).Set(s.Control.VoltageOffset)
	metrics.Offset.WithLabelValues(grid.Frequency.String()).Set(s.Control.FrequencyOffset)
	metrics.AutoStabilize.Set(metrics.Bool(s.Control.AutoStabilize))
	metrics.PerfectMode.Set(metrics.Bool(s.Control.Mode == control.ModePerfect))
	metrics.Destabilized.Set(metrics.Bool(s.Control.Destabilized))
}

// publisherWorker renders snapshots to MQTT, Home Assistant and metrics
func publisherWorker(ctx context.Context, snapshotChan <-chan Snapshot, cfg PublisherConfig, sender *MQTTSender) {
	if cfg.Discovery {
		if err := sender.CreateStabilitySensors(); err != nil {
			log.Error().Err(err).Msg("Failed to create Home Assistant sensors")
		} else {
			log.Info().Msg("Home Assistant sensors created")
		}
	}

	var lastAdvisory string
	for {
		select {
		case snap := <-snapshotChan:
			recordMetrics(snap)

			if cfg.SnapshotTopic != "" {
				if err := sender.PublishJSON(cfg.SnapshotTopic, snap, false); err != nil {
					log.Error().Err(err).Msg("Failed to encode snapshot")
				}
			}

			// Sensor state needs data to mean anything
			if cfg.Discovery && snap.HasReading {
				if err := sender.PublishSensorState(snap); err != nil {
					log.Error().Err(err).Msg("Failed to publish sensor state")
				}
			}

			if snap.Advisory.Title != lastAdvisory {
				lastAdvisory = snap.Advisory.Title
				log.Info().
					Str("severity", snap.Advisory.Severity.String()).
					Str("health", snap.Health.String()).
					Msg("Advisory: " + snap.Advisory.Title)
			}

		case <-ctx.Done():
			return
		}
	}
}
