package main

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/metrics"
)

// MQTTConnConfig holds the broker connection settings shared by every client
type MQTTConnConfig struct {
	BrokerURL string
	Username  string
	Password  string
	ClientID  string
}

// newClientOptions builds paho options with auto-reconnect. An empty client
// id gets a random one so several gridwatch instances can share a broker.
func newClientOptions(cfg MQTTConnConfig, role string) *mqtt.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gridwatch-" + role + "-" + uuid.NewString()[:8]
	} else if role != "" {
		clientID += "-" + role
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Str("client", clientID).Msg("MQTT connection lost")
	})
	return opts
}

// decodeTelemetry turns a telemetry payload into a reading, counting rejects
func decodeTelemetry(payload []byte, received time.Time) (grid.Reading, bool) {
	r, err := grid.DecodeReading(payload, received)
	if err != nil {
		metrics.TelemetryRejected.Inc()
		log.Warn().Err(err).Msg("Skipping malformed telemetry")
		return grid.Reading{}, false
	}
	metrics.TelemetryEvents.Inc()
	return r, true
}

// mqttWorker subscribes to the telemetry topic and forwards decoded readings.
// Each new connection is also handed to the sender worker.
func mqttWorker(
	ctx context.Context,
	conn MQTTConnConfig,
	telemetryTopic string,
	readingChan chan<- grid.Reading,
	clientChan chan<- publisher,
) {
	opts := newClientOptions(conn, "monitor")

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("broker", conn.BrokerURL).Msg("Connected to MQTT broker")

		// Send the new client to the sender worker
		select {
		case clientChan <- client:
			log.Debug().Msg("Sent new MQTT client to sender worker")
		case <-ctx.Done():
			return
		}

		token := client.Subscribe(telemetryTopic, 0, func(client mqtt.Client, msg mqtt.Message) {
			r, ok := decodeTelemetry(msg.Payload(), time.Now())
			if !ok {
				return
			}
			select {
			case readingChan <- r:
			case <-ctx.Done():
			}
		})

		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", telemetryTopic).Msg("Failed to subscribe")
		} else {
			log.Info().Str("topic", telemetryTopic).Msg("Subscribed to telemetry")
		}
	})

	client := mqtt.NewClient(opts)

	log.Info().Str("broker", conn.BrokerURL).Msg("Connecting to MQTT broker...")
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Msg("Failed to connect to MQTT broker")
		return
	}

	// Keep worker alive until context is done
	<-ctx.Done()

	if client.IsConnected() {
		client.Disconnect(250)
		log.Info().Msg("Disconnected from MQTT broker")
	}
}
