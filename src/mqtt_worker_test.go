package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientOptions_ClientID(t *testing.T) {
	opts := newClientOptions(MQTTConnConfig{BrokerURL: "tcp://localhost:1883"}, "monitor")
	assert.True(t, strings.HasPrefix(opts.ClientID, "gridwatch-monitor-"))
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)

	other := newClientOptions(MQTTConnConfig{BrokerURL: "tcp://localhost:1883"}, "monitor")
	assert.NotEqual(t, opts.ClientID, other.ClientID)

	fixed := newClientOptions(MQTTConnConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ops"}, "feed")
	assert.Equal(t, "ops-feed", fixed.ClientID)
}

func TestDecodeTelemetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r, ok := decodeTelemetry([]byte(`{"voltage":231,"frequency":50.02,"voltage_action":"No Action Needed"}`), now)
	require.True(t, ok)
	assert.Equal(t, 231.0, r.Voltage)
	assert.Equal(t, now, r.Timestamp)

	_, ok = decodeTelemetry([]byte(`unavailable`), now)
	assert.False(t, ok)
}
