package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/metrics"
)

func TestRecordMetrics(t *testing.T) {
	recordMetrics(Snapshot{
		HasReading: true,
		Voltage:    ChannelView{Stability: 88, TrendPercent: 70, Current: 236},
		Frequency:  ChannelView{Stability: 95, TrendPercent: 90, Current: 50.1},
		Control:    control.State{AutoStabilize: true, Mode: control.ModePerfect, VoltageOffset: -3},
	})

	assert.Equal(t, 88.0, testutil.ToFloat64(metrics.Stability.WithLabelValues("voltage")))
	assert.Equal(t, 90.0, testutil.ToFloat64(metrics.TrendPercent.WithLabelValues("frequency")))
	assert.Equal(t, 236.0, testutil.ToFloat64(metrics.Reading.WithLabelValues("voltage")))
	assert.Equal(t, -3.0, testutil.ToFloat64(metrics.Offset.WithLabelValues("voltage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PerfectMode))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Destabilized))
}

func TestPublisherWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan MQTTMessage, 16)
	sender := NewMQTTSender(out, "microgrid/command")
	snapshots := make(chan Snapshot)
	go publisherWorker(ctx, snapshots, PublisherConfig{SnapshotTopic: "microgrid/snapshot", Discovery: true}, sender)

	snapshots <- Snapshot{HasReading: true, Voltage: ChannelView{Channel: "voltage", Stability: 97}}

	var topics []string
	var snapshotPayload []byte
	deadline := time.After(time.Second)
	for len(topics) < 6 {
		select {
		case msg := <-out:
			topics = append(topics, msg.Topic)
			if msg.Topic == "microgrid/snapshot" {
				snapshotPayload = msg.Payload
			}
		case <-deadline:
			require.FailNow(t, "missing messages", "got %v", topics)
		}
	}

	assert.Equal(t, "homeassistant/sensor/microgrid_voltage_stability/config", topics[0])
	assert.Equal(t, "microgrid/snapshot", topics[3])
	assert.Equal(t, haStateTopic, topics[4])
	assert.Equal(t, haAttrTopic, topics[5])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(snapshotPayload, &decoded))
	voltage := decoded["voltage"].(map[string]any)
	assert.Equal(t, 97.0, voltage["stability"])
	assert.Equal(t, "Insufficient data", voltage["trend"])
	assert.Equal(t, "monitoring", decoded["phase"])
}
