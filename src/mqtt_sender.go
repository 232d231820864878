package main

import (
	"context"
	"encoding/json"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/metrics"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages. It is the
// coordinator's outbound command channel to the feed.
type MQTTSender struct {
	ch            chan<- MQTTMessage
	commandPrefix string
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage, commandPrefix string) *MQTTSender {
	return &MQTTSender{ch: ch, commandPrefix: strings.TrimSuffix(commandPrefix, "/")}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

// CommandTopic returns the topic a command is published on
func (s *MQTTSender) CommandTopic(name string) string {
	return s.commandPrefix + "/" + name
}

func (s *MQTTSender) sendCommand(name string, command any) {
	payload, err := json.Marshal(command)
	if err != nil {
		log.Error().Err(err).Str("command", name).Msg("Failed to encode command")
		return
	}
	s.Send(MQTTMessage{
		Topic:   s.CommandTopic(name),
		Payload: payload,
		QoS:     1,
		Retain:  false,
	})
}

// ManualAdjustment sends a channel offset to the feed
func (s *MQTTSender) ManualAdjustment(channel grid.Channel, value float64, autoStabilize bool) {
	s.sendCommand(grid.CommandManualAdjustment, grid.ManualAdjustment{
		Type:          channel.String(),
		Value:         value,
		AutoStabilize: autoStabilize,
	})
}

// SetAutoStabilize toggles the feed's auto-stabilization
func (s *MQTTSender) SetAutoStabilize(enabled bool) {
	s.sendCommand(grid.CommandSetAutoStabilize, grid.SetAutoStabilize{Enabled: enabled})
}

// SetStabilizationMode switches the feed into or out of perfect mode
func (s *MQTTSender) SetStabilizationMode(perfect bool) {
	s.sendCommand(grid.CommandSetStabilizationMode, grid.SetStabilizationMode{PerfectMode: perfect})
}

// PublishJSON encodes v and publishes it at QoS 0
func (s *MQTTSender) PublishJSON(topic string, v any, retain bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Send(MQTTMessage{
		Topic:   topic,
		Payload: payload,
		QoS:     0,
		Retain:  retain,
	})
	return nil
}

// isDiscoveryTopic checks if a topic is an MQTT discovery config topic
func isDiscoveryTopic(topic string) bool {
	return strings.HasSuffix(topic, "/config")
}

// commandName returns the command a topic carries, or "" for other topics
func (s *MQTTSender) commandName(topic string) string {
	name, ok := strings.CutPrefix(topic, s.commandPrefix+"/")
	if !ok {
		return ""
	}
	return name
}

// publisher is the subset of mqtt.Client the sender worker needs
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// maxQueuedMessages bounds the backlog kept while the broker is unreachable
const maxQueuedMessages = 256

// worthQueueing reports whether a message should wait for a connection.
// Fire-and-forget updates are dropped instead.
func worthQueueing(msg MQTTMessage) bool {
	return msg.QoS > 0 || msg.Retain
}

// mqttSenderWorker handles outgoing MQTT messages. Commands and discovery
// are queued until a connected client arrives. In dry-run mode commands are logged and dropped;
// everything else, discovery included, still goes out.
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan publisher,
	sender *MQTTSender,
	dryRun bool,
) {
	log.Info().Bool("dry_run", dryRun).Msg("MQTT sender worker started")

	var client publisher
	var messageQueue []MQTTMessage

	publish := func(msg MQTTMessage) {
		token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", msg.Topic).Msg("Failed to publish")
			return
		}
		if name := sender.commandName(msg.Topic); name != "" {
			metrics.CommandsPublished.WithLabelValues(name).Inc()
		}
	}

	for {
		select {
		case newClient := <-clientChan:
			log.Debug().Msg("MQTT sender worker received new client")
			client = newClient

			// Process any queued messages now that we have a client
			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Info().Int("count", queuedCount).Msg("MQTT sender worker processed queued messages")
				}
			}

		case msg := <-outgoingChan:
			if dryRun && !isDiscoveryTopic(msg.Topic) && sender.commandName(msg.Topic) != "" {
				log.Info().Str("topic", msg.Topic).RawJSON("payload", msg.Payload).Msg("Dry run, dropping command")
				continue
			}

			if client != nil && client.IsConnected() {
				publish(msg)
				continue
			}

			// Only commands and retained discovery are replayed on reconnect
			if !worthQueueing(msg) {
				log.Debug().Str("topic", msg.Topic).Msg("MQTT sender worker not connected, dropping update")
				continue
			}
			if len(messageQueue) >= maxQueuedMessages {
				log.Warn().Str("topic", messageQueue[0].Topic).Msg("MQTT sender queue full, dropping oldest message")
				messageQueue = messageQueue[1:]
			}
			messageQueue = append(messageQueue, msg)
			log.Debug().Int("queued", len(messageQueue)).Msg("MQTT sender worker queued message")

		case <-ctx.Done():
			log.Info().Msg("MQTT sender worker stopped")
			return
		}
	}
}
