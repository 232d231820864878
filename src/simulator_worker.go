package main

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/simulator"
)

// SimulatorInterval is how often the demo feed emits a reading
const SimulatorInterval = time.Second

// feedTick generates one sample and encodes it for the telemetry topic.
// It reports false while the predictor is still filling.
func feedTick(sim *simulator.Simulator) ([]byte, bool) {
	r, ok := sim.Next()
	if !ok {
		return nil, false
	}
	payload, err := grid.EncodeReading(r)
	if err != nil {
		log.Error().Err(err).Msg("Simulator: failed to encode reading")
		return nil, false
	}
	return payload, true
}

// simulatorWorker runs the demo feed on its own MQTT connection: it applies
// commands published under the command prefix and emits telemetry
func simulatorWorker(
	ctx context.Context,
	conn MQTTConnConfig,
	telemetryTopic, commandPrefix string,
	sim *simulator.Simulator,
) {
	prefix := strings.TrimSuffix(commandPrefix, "/") + "/"
	opts := newClientOptions(conn, "feed")

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		token := client.Subscribe(prefix+"+", 1, func(client mqtt.Client, msg mqtt.Message) {
			name := strings.TrimPrefix(msg.Topic(), prefix)
			if err := grid.DispatchCommand(name, msg.Payload(), sim); err != nil {
				log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Simulator: ignoring command")
				return
			}
			log.Debug().Str("command", name).RawJSON("payload", msg.Payload()).Msg("Simulator: applied command")
		})
		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Msg("Simulator: failed to subscribe to commands")
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Msg("Simulator: failed to connect to MQTT broker")
		return
	}
	defer client.Disconnect(250)

	log.Info().Str("topic", telemetryTopic).Msg("Simulator started")

	ticker := time.NewTicker(SimulatorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			payload, ok := feedTick(sim)
			if !ok {
				continue
			}
			client.Publish(telemetryTopic, 0, false, payload)
			log.Debug().Str("scenario", sim.Scenario().String()).Msg("Simulator: reading published")

		case <-ctx.Done():
			log.Info().Msg("Simulator stopped")
			return
		}
	}
}
