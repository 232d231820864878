package main

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	haDeviceID     = "microgrid"
	haStateTopic   = "homeassistant/sensor/" + haDeviceID + "/state"
	haAttrTopic    = "homeassistant/sensor/" + haDeviceID + "/attributes"
	haExpireAfter  = 60 * 5 // 5 minutes without telemetry marks the sensors unavailable
	haManufacturer = "gridwatch"
)

type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type haEntityConfig struct {
	Name                string         `json:"name,omitempty"`
	DeviceClass         string         `json:"device_class,omitempty"`
	StateTopic          string         `json:"state_topic"`
	JsonAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	UnitOfMeasure       string         `json:"unit_of_measurement,omitempty"`
	ValueTemplate       string         `json:"value_template"`
	UniqueId            string         `json:"unique_id"`
	ExpireAfter         uint           `json:"expire_after,omitempty"`
	StateClass          string         `json:"state_class,omitempty"`
	DisplayPrecision    int            `json:"suggested_display_precision,omitempty"`
	Icon                string         `json:"icon,omitempty"`
	Device              haDeviceConfig `json:"device"`
}

// haSensor describes one discovered sensor
type haSensor struct {
	Name    string
	JSONKey string
	Icon    string
}

var haSensors = []haSensor{
	{Name: "Voltage Stability", JSONKey: "voltage_stability", Icon: "mdi:flash"},
	{Name: "Frequency Stability", JSONKey: "frequency_stability", Icon: "mdi:sine-wave"},
	{Name: "Grid Efficiency", JSONKey: "grid_efficiency", Icon: "mdi:transmission-tower"},
}

// haSensorState is published to haStateTopic for every snapshot
type haSensorState struct {
	VoltageStability   float64 `json:"voltage_stability"`
	FrequencyStability float64 `json:"frequency_stability"`
	GridEfficiency     float64 `json:"grid_efficiency"`
}

// haSensorAttributes carries the text fields shown on the sensor cards
type haSensorAttributes struct {
	Health         string `json:"health"`
	Phase          string `json:"phase"`
	Mode           string `json:"mode"`
	AutoStabilize  bool   `json:"auto_stabilize"`
	VoltageTrend   string `json:"voltage_trend"`
	FrequencyTrend string `json:"frequency_trend"`
	Advisory       string `json:"advisory"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// newHASensorState extracts the sensor values from a snapshot
func newHASensorState(s Snapshot) haSensorState {
	return haSensorState{
		VoltageStability:   round1(s.Voltage.Stability),
		FrequencyStability: round1(s.Frequency.Stability),
		GridEfficiency:     round1((s.Voltage.Stability + s.Frequency.Stability) / 2),
	}
}

func newHASensorAttributes(s Snapshot) haSensorAttributes {
	return haSensorAttributes{
		Health:         s.Health.String(),
		Phase:          s.Phase.String(),
		Mode:           s.Control.Mode.String(),
		AutoStabilize:  s.Control.AutoStabilize,
		VoltageTrend:   s.Voltage.Trend.String(),
		FrequencyTrend: s.Frequency.Trend.String(),
		Advisory:       s.Advisory.Title,
	}
}

// CreateStabilitySensors publishes Home Assistant discovery for the stability
// sensors of the Microgrid device
func (s *MQTTSender) CreateStabilitySensors() error {
	for _, sensor := range haSensors {
		config := haEntityConfig{
			Name:                sensor.Name,
			StateTopic:          haStateTopic,
			JsonAttributesTopic: haAttrTopic,
			UnitOfMeasure:       "%",
			ValueTemplate:       "{{ value_json." + sensor.JSONKey + " }}",
			UniqueId:            haDeviceID + "_" + sensor.JSONKey,
			ExpireAfter:         haExpireAfter,
			StateClass:          "measurement",
			DisplayPrecision:    1,
			Icon:                sensor.Icon,
			Device: haDeviceConfig{
				Identifiers:  []string{haDeviceID},
				Name:         "Microgrid",
				Manufacturer: haManufacturer,
				Model:        "230 V / 50 Hz",
			},
		}

		configTopic := "homeassistant/sensor/" + haDeviceID + "_" + sensor.JSONKey + "/config"

		payload, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("encode %s discovery: %w", sensor.Name, err)
		}

		s.Send(MQTTMessage{
			Topic:   configTopic,
			Payload: payload,
			QoS:     2,
			Retain:  true,
		})
	}
	return nil
}

// PublishSensorState publishes the sensor values and attributes for a snapshot
func (s *MQTTSender) PublishSensorState(snap Snapshot) error {
	if err := s.PublishJSON(haStateTopic, newHASensorState(snap), false); err != nil {
		return fmt.Errorf("encode sensor state: %w", err)
	}
	if err := s.PublishJSON(haAttrTopic, newHASensorAttributes(snap), false); err != nil {
		return fmt.Errorf("encode sensor attributes: %w", err)
	}
	return nil
}
