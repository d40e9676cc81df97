//go:build !no_mqtt

package mqtt

import (
	"fmt"

	"rvbridge/internal/canlink"
	"rvbridge/internal/store"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/light/rvbridge_bedroom_0_7/light/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers []string `json:"identifiers"`
	Model       string   `json:"model,omitempty"`
	Name        string   `json:"name"`
	ViaDevice   string   `json:"via_device,omitempty"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic,omitempty"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	ValueTemplate       string   `json:"value_template,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	PayloadOn           string   `json:"payload_on,omitempty"`
	PayloadOff          string   `json:"payload_off,omitempty"`
	PayloadOpen         string   `json:"payload_open,omitempty"`
	PayloadClose        string   `json:"payload_close,omitempty"`
	PayloadStop         string   `json:"payload_stop,omitempty"`
	PayloadLock         string   `json:"payload_lock,omitempty"`
	PayloadUnlock       string   `json:"payload_unlock,omitempty"`
	StateOpening        string   `json:"state_opening,omitempty"`
	StateClosing        string   `json:"state_closing,omitempty"`
	StateStopped        string   `json:"state_stopped,omitempty"`
	StateLocked         string   `json:"state_locked,omitempty"`
	StateUnlocked       string   `json:"state_unlocked,omitempty"`
	BrightnessScale     int      `json:"brightness_scale,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`
	Schema              string   `json:"schema,omitempty"`
	Device              haDevice `json:"device"`
}

// deviceIdentifier returns the unique identifier for the HA device registry.
func deviceIdentifier(dev *store.Device) string {
	return fmt.Sprintf("rvbridge_%s_%d_%d", dev.Gateway, dev.Table, dev.Device)
}

// buildDiscovery generates HA discovery messages for a device based on its
// resolved component. Devices without metadata produce nothing.
func buildDiscovery(dev *store.Device, prefix, discoveryPrefix string) []discoveryMsg {
	if dev.Slug == "" || dev.Component == "" {
		return nil
	}

	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + dev.Slug
	cmdTopic := stateTopic + "/set"
	nodeID := deviceIdentifier(dev)

	haDev := haDevice{
		Identifiers: []string{nodeID},
		Model:       canlink.DeviceType(dev.Type).String(),
		Name:        dev.Name,
		ViaDevice:   "rvbridge_" + dev.Gateway,
	}

	base := haDiscovery{
		Name:              dev.Name,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		Device:            haDev,
	}

	switch dev.Component {
	case "light":
		d := base
		d.UniqueID = nodeID + "_light"
		d.CommandTopic = cmdTopic
		d.Schema = "json"
		d.BrightnessScale = 255
		d.SupportedColorModes = []string{"brightness"}
		if canlink.DeviceType(dev.Type) == canlink.DevRgbLight {
			d.SupportedColorModes = []string{"rgb"}
		}
		return []discoveryMsg{{
			Topic:   fmt.Sprintf("%s/light/%s/light/config", discoveryPrefix, nodeID),
			Payload: mustJSON(d),
		}}

	case "switch":
		d := base
		d.UniqueID = nodeID + "_switch"
		d.CommandTopic = cmdTopic
		d.ValueTemplate = "{{ value_json.state }}"
		d.PayloadOn = `{"state":"ON"}`
		d.PayloadOff = `{"state":"OFF"}`
		return []discoveryMsg{{
			Topic:   fmt.Sprintf("%s/switch/%s/switch/config", discoveryPrefix, nodeID),
			Payload: mustJSON(d),
		}}

	case "cover":
		// H-bridge motors report no limit switches, so covers carry no
		// position, only open/close/stop and the reported drive state.
		d := base
		d.UniqueID = nodeID + "_cover"
		d.CommandTopic = cmdTopic
		d.ValueTemplate = "{{ value_json.state }}"
		d.PayloadOpen = `{"command":"open"}`
		d.PayloadClose = `{"command":"close"}`
		d.PayloadStop = `{"command":"stop"}`
		d.StateOpening = "opening"
		d.StateClosing = "closing"
		d.StateStopped = "stopped"
		return []discoveryMsg{{
			Topic:   fmt.Sprintf("%s/cover/%s/cover/config", discoveryPrefix, nodeID),
			Payload: mustJSON(d),
		}}

	case "lock":
		d := base
		d.UniqueID = nodeID + "_lock"
		d.CommandTopic = cmdTopic
		d.ValueTemplate = "{{ value_json.state }}"
		d.PayloadLock = `{"state":"LOCK"}`
		d.PayloadUnlock = `{"state":"UNLOCK"}`
		d.StateLocked = "LOCKED"
		d.StateUnlocked = "UNLOCKED"
		return []discoveryMsg{{
			Topic:   fmt.Sprintf("%s/lock/%s/lock/config", discoveryPrefix, nodeID),
			Payload: mustJSON(d),
		}}

	case "climate":
		// HVAC zones surface as telemetry sensors; commands still flow
		// through the zone's command topic.
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"current_temperature", "Temperature", "temperature", "°F", "measurement",
				"{{ value_json.current_temperature }}"),
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"hvac_mode", "Mode", "", "", "",
				"{{ value_json.hvac_mode }}"),
		}

	default:
		return buildSensorDiscovery(dev, discoveryPrefix, nodeID, stateTopic, avail, haDev)
	}
}

// buildSensorDiscovery maps read-only device types to their sensor set.
func buildSensorDiscovery(dev *store.Device, discoveryPrefix, nodeID, stateTopic, avail string, haDev haDevice) []discoveryMsg {
	switch canlink.DeviceType(dev.Type) {
	case canlink.DevTankSensor:
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"level", "Level", "", "%", "measurement",
				"{{ value_json.level }}"),
			buildBinarySensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"alert", "Alert", "problem",
				"{{ 'ON' if value_json.alert else 'OFF' }}"),
		}

	case canlink.DevTemperature:
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"temperature", "Temperature", "temperature", "°F", "measurement",
				"{{ value_json.temperature }}"),
		}

	case canlink.DevBatteryMon:
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"charge", "Charge", "battery", "%", "measurement",
				"{{ value_json.charge }}"),
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"voltage", "Voltage", "voltage", "V", "measurement",
				"{{ value_json.voltage }}"),
		}

	case canlink.DevHourMeter:
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"hours", "Hours", "", "h", "total_increasing",
				"{{ value_json.hours }}"),
		}

	case canlink.DevGenerator:
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"state", "State", "", "", "",
				"{{ value_json.state }}"),
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"fault", "Fault", "", "", "",
				"{{ value_json.fault }}"),
		}

	default:
		return []discoveryMsg{
			buildSensor(discoveryPrefix, nodeID, dev.Name, stateTopic, avail, haDev,
				"state", "State", "", "", "",
				"{{ value_json.state }}"),
		}
	}
}

func buildSensor(discoveryPrefix, nodeID, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, deviceClass, unit, stateClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		UnitOfMeasurement: unit,
		DeviceClass:       deviceClass,
		StateClass:        stateClass,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildBinarySensor(discoveryPrefix, nodeID, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, deviceClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("%s/binary_sensor/%s/%s/config", discoveryPrefix, nodeID, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		DeviceClass:       deviceClass,
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages to remove a device
// from HA. Every object a device of any component could have announced is
// cleared.
func buildRemoveDiscovery(dev *store.Device, discoveryPrefix string) []discoveryMsg {
	nodeID := deviceIdentifier(dev)

	components := []struct{ comp, obj string }{
		{"light", "light"},
		{"switch", "switch"},
		{"cover", "cover"},
		{"lock", "lock"},
		{"sensor", "current_temperature"},
		{"sensor", "hvac_mode"},
		{"sensor", "level"},
		{"sensor", "temperature"},
		{"sensor", "charge"},
		{"sensor", "voltage"},
		{"sensor", "hours"},
		{"sensor", "state"},
		{"sensor", "fault"},
		{"binary_sensor", "alert"},
	}

	var msgs []discoveryMsg
	for _, c := range components {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, c.comp, nodeID, c.obj),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
