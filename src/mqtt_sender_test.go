package main

import (
	"context"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reader779/Microgrid/src/grid"
)

func drain(ch <-chan MQTTMessage) []MQTTMessage {
	var out []MQTTMessage
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestMQTTSender_CommandPayloads(t *testing.T) {
	ch := make(chan MQTTMessage, 10)
	s := NewMQTTSender(ch, "microgrid/command/")

	s.ManualAdjustment(grid.Frequency, -0.7, false)
	s.SetAutoStabilize(true)
	s.SetStabilizationMode(true)

	msgs := drain(ch)
	require.Len(t, msgs, 3)

	assert.Equal(t, "microgrid/command/manual_adjustment", msgs[0].Topic)
	assert.JSONEq(t, `{"type":"frequency","value":-0.7,"autoStabilize":false}`, string(msgs[0].Payload))
	assert.Equal(t, byte(1), msgs[0].QoS)

	assert.Equal(t, "microgrid/command/set_auto_stabilize", msgs[1].Topic)
	assert.JSONEq(t, `{"enabled":true}`, string(msgs[1].Payload))

	assert.Equal(t, "microgrid/command/set_stabilization_mode", msgs[2].Topic)
	assert.JSONEq(t, `{"perfectMode":true}`, string(msgs[2].Payload))
}

func TestMQTTSender_CommandsRoundTripThroughDispatch(t *testing.T) {
	ch := make(chan MQTTMessage, 10)
	s := NewMQTTSender(ch, "microgrid/command")
	s.ManualAdjustment(grid.Voltage, 12, true)

	msg := <-ch
	rec := &recordingCommander{}
	require.NoError(t, grid.DispatchCommand(s.commandName(msg.Topic), msg.Payload, rec))
	assert.Equal(t, 12.0, rec.offsets[grid.Voltage])
}

func TestMQTTSender_CommandName(t *testing.T) {
	s := NewMQTTSender(nil, "microgrid/command")
	assert.Equal(t, "set_auto_stabilize", s.commandName("microgrid/command/set_auto_stabilize"))
	assert.Equal(t, "", s.commandName("microgrid/snapshot"))
	assert.True(t, isDiscoveryTopic("homeassistant/sensor/microgrid_voltage_stability/config"))
	assert.False(t, isDiscoveryTopic("microgrid/snapshot"))
}

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *fakePublisher) IsConnected() bool { return true }

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, _ interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return fakeToken{}
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func startSender(t *testing.T, dryRun bool) (chan MQTTMessage, chan publisher, *MQTTSender) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	outgoing := make(chan MQTTMessage, 10)
	clients := make(chan publisher, 1)
	sender := NewMQTTSender(outgoing, "microgrid/command")
	go mqttSenderWorker(ctx, outgoing, clients, sender, dryRun)
	return outgoing, clients, sender
}

func TestMQTTSenderWorker_QueuesUntilConnected(t *testing.T) {
	outgoing, clients, sender := startSender(t, false)

	sender.SetAutoStabilize(true)
	require.NoError(t, sender.PublishJSON("homeassistant/sensor/microgrid_grid_efficiency/config", struct{}{}, true))
	require.NoError(t, sender.PublishJSON("microgrid/snapshot", map[string]int{"a": 1}, false))
	assert.Eventually(t, func() bool { return len(outgoing) == 0 }, time.Second, 5*time.Millisecond)

	pub := &fakePublisher{}
	clients <- pub

	assert.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		"microgrid/command/set_auto_stabilize",
		"homeassistant/sensor/microgrid_grid_efficiency/config",
	}, pub.published())

	require.NoError(t, sender.PublishJSON("microgrid/snapshot", map[string]int{"a": 2}, false))
	sender.SetStabilizationMode(false)
	assert.Eventually(t, func() bool { return len(pub.published()) == 4 }, time.Second, 5*time.Millisecond)
}

func TestMQTTSenderWorker_QueueIsBounded(t *testing.T) {
	outgoing, clients, sender := startSender(t, false)

	for i := 0; i < maxQueuedMessages+5; i++ {
		sender.SetAutoStabilize(i%2 == 0)
	}
	assert.Eventually(t, func() bool { return len(outgoing) == 0 }, time.Second, 5*time.Millisecond)

	pub := &fakePublisher{}
	clients <- pub
	assert.Eventually(t, func() bool { return len(pub.published()) == maxQueuedMessages }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(pub.published()) > maxQueuedMessages }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestWorthQueueing(t *testing.T) {
	assert.True(t, worthQueueing(MQTTMessage{QoS: 1}))
	assert.True(t, worthQueueing(MQTTMessage{QoS: 2, Retain: true}))
	assert.False(t, worthQueueing(MQTTMessage{QoS: 0}))
}

func TestMQTTSenderWorker_DryRunDropsCommands(t *testing.T) {
	_, clients, sender := startSender(t, true)
	pub := &fakePublisher{}
	clients <- pub

	sender.ManualAdjustment(grid.Voltage, 5, true)
	require.NoError(t, sender.PublishJSON("homeassistant/sensor/microgrid_grid_efficiency/config", struct{}{}, true))
	require.NoError(t, sender.PublishJSON("microgrid/snapshot", struct{}{}, false))

	assert.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)
	assert.NotContains(t, pub.published(), "microgrid/command/manual_adjustment")
}
