package canlink

// Unsolicited event decoding. Event payloads are eventType(1) +
// deviceTableId(1) + repeating fixed-stride device records. Trailing bytes
// that do not fill a whole record are dropped, never fatal; the count of
// dropped bytes is reported so callers can log it.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// EventType is the first byte of every unsolicited event payload.
type EventType uint8

const (
	EventGatewayInformation      EventType = 0x01
	EventDeviceCommand           EventType = 0x02
	EventDeviceOnlineStatus      EventType = 0x03
	EventDeviceLockStatus        EventType = 0x04
	EventRelayLatchingStatus1    EventType = 0x05
	EventRelayLatchingStatus2    EventType = 0x06
	EventRvStatus                EventType = 0x07
	EventDimmableLightStatus     EventType = 0x08
	EventRgbLightStatus          EventType = 0x09
	EventGeneratorGenieStatus    EventType = 0x0A
	EventHvacStatus              EventType = 0x0B
	EventTankSensorStatus        EventType = 0x0C
	EventTankSensorStatusV2      EventType = 0x0D
	EventRelayHBridgeStatus1     EventType = 0x0E
	EventRelayHBridgeStatus2     EventType = 0x0F
	EventHourMeterStatus         EventType = 0x10
	EventLeveler1Status          EventType = 0x11
	EventLeveler2Status          EventType = 0x12
	EventLeveler3Status          EventType = 0x13
	EventLeveler4Status          EventType = 0x14
	EventDeviceSessionStatus     EventType = 0x15
	EventRealTimeClock           EventType = 0x16
	EventTemperatureSensorStatus EventType = 0x17
	EventBatteryMonitorStatus    EventType = 0x18
	EventDoorLockStatus          EventType = 0x19
)

func (t EventType) String() string {
	switch t {
	case EventGatewayInformation:
		return "GatewayInformation"
	case EventDeviceCommand:
		return "DeviceCommand"
	case EventDeviceOnlineStatus:
		return "DeviceOnlineStatus"
	case EventDeviceLockStatus:
		return "DeviceLockStatus"
	case EventRelayLatchingStatus1:
		return "RelayBasicLatchingStatusType1"
	case EventRelayLatchingStatus2:
		return "RelayBasicLatchingStatusType2"
	case EventRvStatus:
		return "RvStatus"
	case EventDimmableLightStatus:
		return "DimmableLightStatus"
	case EventRgbLightStatus:
		return "RgbLightStatus"
	case EventGeneratorGenieStatus:
		return "GeneratorGenieStatus"
	case EventHvacStatus:
		return "HvacStatus"
	case EventTankSensorStatus:
		return "TankSensorStatus"
	case EventTankSensorStatusV2:
		return "TankSensorStatusV2"
	case EventRelayHBridgeStatus1:
		return "RelayHBridgeMomentaryStatusType1"
	case EventRelayHBridgeStatus2:
		return "RelayHBridgeMomentaryStatusType2"
	case EventHourMeterStatus:
		return "HourMeterStatus"
	case EventLeveler1Status:
		return "Leveler1Status"
	case EventLeveler2Status:
		return "Leveler2Status"
	case EventLeveler3Status:
		return "Leveler3Status"
	case EventLeveler4Status:
		return "Leveler4Status"
	case EventDeviceSessionStatus:
		return "DeviceSessionStatus"
	case EventRealTimeClock:
		return "RealTimeClock"
	case EventTemperatureSensorStatus:
		return "TemperatureSensorStatus"
	case EventBatteryMonitorStatus:
		return "BatteryMonitorStatus"
	case EventDoorLockStatus:
		return "DoorLockStatus"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}

var (
	ErrEventTooShort   = errors.New("canlink: event payload too short")
	ErrUnknownEvent    = errors.New("canlink: unknown event type")
	ErrNotTableReply   = errors.New("canlink: not a device table response")
	ErrTableReplyShort = errors.New("canlink: device table response too short")
)

// DeviceKey addresses one device: which table it lives in and its id there.
type DeviceKey struct {
	Table  uint8
	Device uint8
}

// Key lets key-bearing records satisfy StatusRecord by embedding DeviceKey.
func (k DeviceKey) Key() DeviceKey { return k }

func (k DeviceKey) String() string {
	return fmt.Sprintf("%d/%d", k.Table, k.Device)
}

// StatusRecord is one decoded per-device status. It is a closed union: every
// variant lives in this package.
type StatusRecord interface {
	Key() DeviceKey
	statusRecord()
}

// RelayStatus reports a latching or basic relay contact.
type RelayStatus struct {
	DeviceKey
	Closed bool
}

// HBridgeState is the drive state of an H-bridge output pair.
type HBridgeState uint8

const (
	HBridgeIdle    HBridgeState = 0
	HBridgeForward HBridgeState = 1
	HBridgeReverse HBridgeState = 2
)

func (s HBridgeState) String() string {
	switch s {
	case HBridgeIdle:
		return "stopped"
	case HBridgeForward:
		return "opening"
	case HBridgeReverse:
		return "closing"
	default:
		return fmt.Sprintf("0x%02X", uint8(s))
	}
}

// HBridgeStatus reports a momentary H-bridge relay (slide, awning, jack).
type HBridgeStatus struct {
	DeviceKey
	State HBridgeState
}

// DimmableStatus reports a dimmable light.
type DimmableStatus struct {
	DeviceKey
	On         bool
	Brightness uint8
}

// RGBStatus reports an RGB light.
type RGBStatus struct {
	DeviceKey
	On         bool
	Brightness uint8
	R, G, B    uint8
}

// TankStatus reports a tank level in percent.
type TankStatus struct {
	DeviceKey
	Percent uint8
	Alert   bool
}

// HvacZoneStatus reports an HVAC zone. The packed byte mirrors the
// ActionHvac command layout.
type HvacZoneStatus struct {
	DeviceKey
	Mode         HvacMode
	Source       HvacHeatSource
	Fan          HvacFanMode
	LowTripF     uint8
	HighTripF    uint8
	CurrentTempF uint8
	Fault        uint8
}

// TemperatureStatus reports a temperature sensor. The wire byte is offset by
// +40 so sub-zero Fahrenheit readings fit in a byte.
type TemperatureStatus struct {
	DeviceKey
	TempF int
}

// BatteryStatus reports a battery monitor.
type BatteryStatus struct {
	DeviceKey
	Charge uint8 // state of charge, percent
	Volts  float64
}

// LockStatus reports a door lock bolt.
type LockStatus struct {
	DeviceKey
	Locked bool
}

// OnlineStatus reports whether a device is answering on the control network.
type OnlineStatus struct {
	DeviceKey
	Online bool
}

// LockoutStatus reports the per-device control lockout (child lock).
type LockoutStatus struct {
	DeviceKey
	Lockout bool
}

// HourMeterStatus reports an accumulated runtime counter.
type HourMeterStatus struct {
	DeviceKey
	Hours uint32
}

// GeneratorState is the run state of a generator controller.
type GeneratorState uint8

const (
	GenStopped  GeneratorState = 0
	GenStarting GeneratorState = 1
	GenRunning  GeneratorState = 2
)

func (s GeneratorState) String() string {
	switch s {
	case GenStopped:
		return "stopped"
	case GenStarting:
		return "starting"
	case GenRunning:
		return "running"
	default:
		return fmt.Sprintf("0x%02X", uint8(s))
	}
}

// GeneratorStatus reports a generator controller.
type GeneratorStatus struct {
	DeviceKey
	State GeneratorState
	Fault uint8
}

func (RelayStatus) statusRecord()       {}
func (HBridgeStatus) statusRecord()     {}
func (DimmableStatus) statusRecord()    {}
func (RGBStatus) statusRecord()         {}
func (TankStatus) statusRecord()        {}
func (HvacZoneStatus) statusRecord()    {}
func (TemperatureStatus) statusRecord() {}
func (BatteryStatus) statusRecord()     {}
func (LockStatus) statusRecord()        {}
func (OnlineStatus) statusRecord()      {}
func (LockoutStatus) statusRecord()     {}
func (HourMeterStatus) statusRecord()   {}
func (GeneratorStatus) statusRecord()   {}

// GatewayInfo is the gateway's version report. Not device-scoped.
type GatewayInfo struct {
	Protocol uint8
	Major    uint8
	Minor    uint8
	Patch    uint8
}

func (i GatewayInfo) String() string {
	return fmt.Sprintf("fw %d.%d.%d (protocol %d)", i.Major, i.Minor, i.Patch, i.Protocol)
}

// Event is one decoded unsolicited event.
type Event struct {
	Type    EventType
	Table   uint8
	Records []StatusRecord
	Info    *GatewayInfo // gateway information events only
	Clock   *time.Time   // real-time clock events only

	// Truncated counts trailing payload bytes that did not fill a whole
	// record and were dropped.
	Truncated int
}

// DecodeEvent parses an unsolicited event payload. Payloads carrying an
// unknown event type return ErrUnknownEvent; recognized types with no
// per-device layout decode to an empty record set.
func DecodeEvent(payload []byte) (*Event, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: need type and table bytes, got %d", ErrEventTooShort, len(payload))
	}

	ev := &Event{
		Type:  EventType(payload[0]),
		Table: payload[1],
	}
	table := ev.Table
	rest := payload[2:]

	switch ev.Type {
	case EventRelayLatchingStatus1, EventRelayLatchingStatus2:
		ev.Records, ev.Truncated = decodeRecords(rest, 2, func(r []byte) StatusRecord {
			return RelayStatus{DeviceKey{table, r[0]}, r[1]&0x01 != 0}
		})

	case EventRelayHBridgeStatus1, EventRelayHBridgeStatus2:
		ev.Records, ev.Truncated = decodeRecords(rest, 2, func(r []byte) StatusRecord {
			return HBridgeStatus{DeviceKey{table, r[0]}, HBridgeState(r[1])}
		})

	case EventDimmableLightStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 9, func(r []byte) StatusRecord {
			// r[1:9] is the status block: [0]=mode, [3]=brightness.
			return DimmableStatus{DeviceKey{table, r[0]}, r[1] > 0, r[4]}
		})

	case EventRgbLightStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 9, func(r []byte) StatusRecord {
			// Status block adds [4..6] = R,G,B after mode and brightness.
			return RGBStatus{DeviceKey{table, r[0]}, r[1] > 0, r[4], r[5], r[6], r[7]}
		})

	case EventTankSensorStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 3, func(r []byte) StatusRecord {
			return TankStatus{DeviceKey{table, r[0]}, clampPercent(r[1]), r[2]&0x01 != 0}
		})

	case EventTankSensorStatusV2:
		ev.Records, ev.Truncated = decodeRecords(rest, 4, func(r []byte) StatusRecord {
			// V2 reports level as steps of a variable resolution.
			var pct uint8
			if r[2] > 0 {
				pct = clampPercent(uint8(uint16(r[1]) * 100 / uint16(r[2])))
			}
			return TankStatus{DeviceKey{table, r[0]}, pct, r[3]&0x01 != 0}
		})

	case EventHvacStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 6, func(r []byte) StatusRecord {
			return HvacZoneStatus{
				DeviceKey:    DeviceKey{table, r[0]},
				Mode:         HvacMode(r[1] & 0x07),
				Source:       HvacHeatSource((r[1] >> 4) & 0x03),
				Fan:          HvacFanMode((r[1] >> 6) & 0x03),
				LowTripF:     r[2],
				HighTripF:    r[3],
				CurrentTempF: r[4],
				Fault:        r[5],
			}
		})

	case EventTemperatureSensorStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 2, func(r []byte) StatusRecord {
			return TemperatureStatus{DeviceKey{table, r[0]}, int(r[1]) - 40}
		})

	case EventBatteryMonitorStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 4, func(r []byte) StatusRecord {
			tenths := binary.LittleEndian.Uint16(r[2:4])
			return BatteryStatus{DeviceKey{table, r[0]}, clampPercent(r[1]), float64(tenths) / 10}
		})

	case EventDoorLockStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 2, func(r []byte) StatusRecord {
			return LockStatus{DeviceKey{table, r[0]}, r[1]&0x01 != 0}
		})

	case EventDeviceOnlineStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 2, func(r []byte) StatusRecord {
			return OnlineStatus{DeviceKey{table, r[0]}, r[1]&0x01 != 0}
		})

	case EventDeviceLockStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 2, func(r []byte) StatusRecord {
			return LockoutStatus{DeviceKey{table, r[0]}, r[1]&0x01 != 0}
		})

	case EventHourMeterStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 5, func(r []byte) StatusRecord {
			return HourMeterStatus{DeviceKey{table, r[0]}, binary.LittleEndian.Uint32(r[1:5])}
		})

	case EventGeneratorGenieStatus:
		ev.Records, ev.Truncated = decodeRecords(rest, 3, func(r []byte) StatusRecord {
			return GeneratorStatus{DeviceKey{table, r[0]}, GeneratorState(r[1]), r[2]}
		})

	case EventGatewayInformation:
		// protocolVersion(1) + fwMajor(1) + fwMinor(1) + fwPatch(1)
		if len(rest) >= 4 {
			ev.Info = &GatewayInfo{rest[0], rest[1], rest[2], rest[3]}
			ev.Truncated = len(rest) - 4
		} else {
			ev.Truncated = len(rest)
		}

	case EventRealTimeClock:
		// year(2, LE) + month(1) + day(1) + hour(1) + minute(1) + second(1)
		if len(rest) >= 7 {
			year := int(binary.LittleEndian.Uint16(rest[0:2]))
			t := time.Date(year, time.Month(rest[2]), int(rest[3]),
				int(rest[4]), int(rest[5]), int(rest[6]), 0, time.UTC)
			ev.Clock = &t
			ev.Truncated = len(rest) - 7
		} else {
			ev.Truncated = len(rest)
		}

	case EventRvStatus, EventDeviceCommand, EventDeviceSessionStatus,
		EventLeveler1Status, EventLeveler2Status, EventLeveler3Status, EventLeveler4Status:
		// Recognized but carries nothing we surface; callers log at debug.

	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownEvent, payload[0])
	}

	return ev, nil
}

// decodeRecords walks fixed-stride records, returning the parsed prefix and
// the count of leftover bytes that did not fill a whole record.
func decodeRecords(data []byte, stride int, build func(rec []byte) StatusRecord) ([]StatusRecord, int) {
	var records []StatusRecord
	pos := 0
	for pos+stride <= len(data) {
		records = append(records, build(data[pos:pos+stride]))
		pos += stride
	}
	return records, len(data) - pos
}

func clampPercent(v uint8) uint8 {
	if v > 100 {
		return 100
	}
	return v
}

// IsCommandResponse reports whether payload is a reply to a GetDevices or
// GetDevicesMetadata command rather than an unsolicited event: at least 3
// bytes, a valid little-endian command id at bytes 0..1, and one of the two
// responding command types at byte 2.
func IsCommandResponse(payload []byte) bool {
	if len(payload) < 3 {
		return false
	}
	id := binary.LittleEndian.Uint16(payload[0:2])
	if id < commandIDMin || id > commandIDMax {
		return false
	}
	return payload[2] == byte(CmdGetDevices) || payload[2] == byte(CmdGetDevicesMetadata)
}
