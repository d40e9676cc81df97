//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"testing"

	"rvbridge/internal/canlink"
	"rvbridge/internal/store"
)

func lightDevice() *store.Device {
	return &store.Device{
		Gateway:   "bedroom",
		Table:     0,
		Device:    7,
		Type:      uint8(canlink.DevDimmableLight),
		Function:  41,
		Name:      "Living Room Ceiling Light",
		Component: "light",
		Slug:      "living_room_ceiling_light",
	}
}

func TestDiscoveryLight(t *testing.T) {
	msgs := buildDiscovery(lightDevice(), "rvbridge", "homeassistant")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	wantTopic := "homeassistant/light/rvbridge_bedroom_0_7/light/config"
	if msgs[0].Topic != wantTopic {
		t.Errorf("topic = %q, want %q", msgs[0].Topic, wantTopic)
	}

	var payload haDiscovery
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Name != "Living Room Ceiling Light" {
		t.Errorf("name = %q", payload.Name)
	}
	if payload.UniqueID != "rvbridge_bedroom_0_7_light" {
		t.Errorf("unique_id = %q", payload.UniqueID)
	}
	if payload.StateTopic != "rvbridge/living_room_ceiling_light" {
		t.Errorf("state_topic = %q", payload.StateTopic)
	}
	if payload.CommandTopic != "rvbridge/living_room_ceiling_light/set" {
		t.Errorf("command_topic = %q", payload.CommandTopic)
	}
	if payload.AvailabilityTopic != "rvbridge/bridge/state" {
		t.Errorf("availability_topic = %q", payload.AvailabilityTopic)
	}
	if payload.Schema != "json" {
		t.Errorf("schema = %q, want json", payload.Schema)
	}
	if payload.BrightnessScale != 255 {
		t.Errorf("brightness_scale = %d, want 255", payload.BrightnessScale)
	}
	if len(payload.SupportedColorModes) != 1 || payload.SupportedColorModes[0] != "brightness" {
		t.Errorf("color modes = %v, want [brightness]", payload.SupportedColorModes)
	}
}

func TestDiscoveryRgbLight(t *testing.T) {
	dev := lightDevice()
	dev.Type = uint8(canlink.DevRgbLight)

	msgs := buildDiscovery(dev, "rvbridge", "homeassistant")
	var payload haDiscovery
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.SupportedColorModes) != 1 || payload.SupportedColorModes[0] != "rgb" {
		t.Errorf("color modes = %v, want [rgb]", payload.SupportedColorModes)
	}
}

func TestDiscoveryCoverHasNoPosition(t *testing.T) {
	dev := &store.Device{
		Gateway: "bedroom", Table: 0, Device: 4,
		Type:      uint8(canlink.DevHBridgeRelay),
		Name:      "Patio Awning",
		Component: "cover",
		Slug:      "patio_awning",
	}

	msgs := buildDiscovery(dev, "rvbridge", "homeassistant")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	var raw map[string]any
	if err := json.Unmarshal(msgs[0].Payload, &raw); err != nil {
		t.Fatal(err)
	}
	for _, forbidden := range []string{"position_topic", "set_position_topic", "position_template"} {
		if _, ok := raw[forbidden]; ok {
			t.Errorf("cover discovery carries %q; H-bridge covers have no position", forbidden)
		}
	}
	if raw["payload_stop"] != `{"command":"stop"}` {
		t.Errorf("payload_stop = %v", raw["payload_stop"])
	}
	if raw["state_opening"] != "opening" || raw["state_closing"] != "closing" || raw["state_stopped"] != "stopped" {
		t.Errorf("state words = %v/%v/%v", raw["state_opening"], raw["state_closing"], raw["state_stopped"])
	}
}

func TestDiscoverySensorSets(t *testing.T) {
	tests := []struct {
		name       string
		devType    canlink.DeviceType
		component  string
		wantTopics []string
	}{
		{
			name: "tank", devType: canlink.DevTankSensor, component: "sensor",
			wantTopics: []string{
				"homeassistant/sensor/rvbridge_bedroom_0_9/level/config",
				"homeassistant/binary_sensor/rvbridge_bedroom_0_9/alert/config",
			},
		},
		{
			name: "battery", devType: canlink.DevBatteryMon, component: "sensor",
			wantTopics: []string{
				"homeassistant/sensor/rvbridge_bedroom_0_9/charge/config",
				"homeassistant/sensor/rvbridge_bedroom_0_9/voltage/config",
			},
		},
		{
			name: "hvac reduced to telemetry", devType: canlink.DevHvac, component: "climate",
			wantTopics: []string{
				"homeassistant/sensor/rvbridge_bedroom_0_9/current_temperature/config",
				"homeassistant/sensor/rvbridge_bedroom_0_9/hvac_mode/config",
			},
		},
		{
			name: "generator", devType: canlink.DevGenerator, component: "sensor",
			wantTopics: []string{
				"homeassistant/sensor/rvbridge_bedroom_0_9/state/config",
				"homeassistant/sensor/rvbridge_bedroom_0_9/fault/config",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &store.Device{
				Gateway: "bedroom", Table: 0, Device: 9,
				Type:      uint8(tt.devType),
				Name:      "Thing",
				Component: tt.component,
				Slug:      "thing",
			}
			msgs := buildDiscovery(dev, "rvbridge", "homeassistant")
			topics := extractTopics(msgs)
			for _, want := range tt.wantTopics {
				if !topics[want] {
					t.Errorf("missing discovery topic %q (got %v)", want, topics)
				}
			}
			if len(msgs) != len(tt.wantTopics) {
				t.Errorf("got %d messages, want %d", len(msgs), len(tt.wantTopics))
			}
		})
	}
}

func TestDiscoveryTemperatureUnits(t *testing.T) {
	dev := &store.Device{
		Gateway: "bedroom", Table: 0, Device: 2,
		Type:      uint8(canlink.DevTemperature),
		Name:      "Outdoor Temperature",
		Component: "sensor",
		Slug:      "outdoor_temperature",
	}
	msgs := buildDiscovery(dev, "rvbridge", "homeassistant")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	var payload haDiscovery
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.UnitOfMeasurement != "°F" {
		t.Errorf("unit = %q, want °F: the control network reports Fahrenheit", payload.UnitOfMeasurement)
	}
	if payload.DeviceClass != "temperature" {
		t.Errorf("device_class = %q", payload.DeviceClass)
	}
}

func TestDiscoveryWithoutMetadata(t *testing.T) {
	dev := &store.Device{Gateway: "bedroom", Table: 0, Device: 1}
	if msgs := buildDiscovery(dev, "rvbridge", "homeassistant"); len(msgs) != 0 {
		t.Errorf("got %d messages for metadata-less device, want 0", len(msgs))
	}
}

func TestRemoveDiscovery(t *testing.T) {
	dev := lightDevice()
	msgs := buildRemoveDiscovery(dev, "homeassistant")
	if len(msgs) == 0 {
		t.Fatal("expected removal messages")
	}

	topics := extractTopics(msgs)
	if !topics["homeassistant/light/rvbridge_bedroom_0_7/light/config"] {
		t.Error("light removal missing")
	}
	for _, m := range msgs {
		if m.Payload != nil {
			t.Errorf("removal message should have nil payload, got %q for %s", m.Payload, m.Topic)
		}
		if m.Topic == "" {
			t.Error("removal message has empty topic")
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		component string
		payload   string
		want      []string // dispatch command names, in order
	}{
		{"switch on", "switch", `{"state":"ON"}`, []string{"state"}},
		{"switch off lowercase", "switch", `{"state":"off"}`, []string{"state"}},
		{"lock", "lock", `{"state":"LOCK"}`, []string{"state"}},
		{"brightness", "light", `{"brightness":128}`, []string{"brightness"}},
		{"brightness wins over state", "light", `{"state":"ON","brightness":200}`, []string{"brightness"}},
		{"cover open", "cover", `{"command":"open"}`, []string{"command"}},
		{"hvac", "climate", `{"mode":"cool","fan_mode":"low","high_setpoint":78}`, []string{"hvac"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, err := parseCommand(tt.component, []byte(tt.payload))
			if err != nil {
				t.Fatalf("parseCommand: %v", err)
			}
			if len(calls) != len(tt.want) {
				t.Fatalf("got %d dispatches, want %d", len(calls), len(tt.want))
			}
			for i, want := range tt.want {
				if calls[i].command != want {
					t.Errorf("dispatch %d = %q, want %q", i, calls[i].command, want)
				}
			}
		})
	}
}

func TestParseCommandValues(t *testing.T) {
	calls, err := parseCommand("light", []byte(`{"brightness":200}`))
	if err != nil {
		t.Fatal(err)
	}
	if calls[0].args.Brightness == nil || *calls[0].args.Brightness != 200 {
		t.Errorf("brightness arg = %v, want 200", calls[0].args.Brightness)
	}

	calls, err = parseCommand("switch", []byte(`{"state":"OFF"}`))
	if err != nil {
		t.Fatal(err)
	}
	if calls[0].args.State == nil || *calls[0].args.State {
		t.Errorf("state arg = %v, want false", calls[0].args.State)
	}

	calls, err = parseCommand("climate", []byte(`{"mode":"heat","low_setpoint":62}`))
	if err != nil {
		t.Fatal(err)
	}
	if calls[0].args.HvacMode != "heat" {
		t.Errorf("hvac mode = %q", calls[0].args.HvacMode)
	}
	if calls[0].args.LowTripF == nil || *calls[0].args.LowTripF != 62 {
		t.Errorf("low setpoint = %v, want 62", calls[0].args.LowTripF)
	}
}

func TestParseCommandRejects(t *testing.T) {
	tests := []struct {
		name      string
		component string
		payload   string
	}{
		{"malformed JSON", "switch", `{"state":`},
		{"empty object", "switch", `{}`},
		{"unknown state word", "switch", `{"state":"MAYBE"}`},
		{"climate without fields", "climate", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseCommand(tt.component, []byte(tt.payload)); err == nil {
				t.Fatal("parseCommand succeeded, want error")
			}
		})
	}
}

func TestMustJSON(t *testing.T) {
	result := mustJSON(map[string]string{"hello": "world"})
	var parsed map[string]string
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("mustJSON output not valid JSON: %v", err)
	}
	if parsed["hello"] != "world" {
		t.Errorf("parsed value = %q", parsed["hello"])
	}
}

func extractTopics(msgs []discoveryMsg) map[string]bool {
	topics := make(map[string]bool)
	for _, m := range msgs {
		topics[m.Topic] = true
	}
	return topics
}
