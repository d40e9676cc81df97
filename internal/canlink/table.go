package canlink

// Device table responses answer GetDevices / GetDevicesMetadata. Layout is
// commandId(2, LE) + commandType(1) + deviceTableId(1), then 5-byte records:
// deviceId(1) + deviceType(1) + functionCode(2, LE) + instance(1). Plain
// GetDevices replies carry zeroed function and instance fields.

import (
	"encoding/binary"
	"fmt"
)

// DeviceType is the gateway's device classification byte.
type DeviceType uint8

const (
	DevUnknown       DeviceType = 0x00
	DevDimmableLight DeviceType = 0x01
	DevRgbLight      DeviceType = 0x02
	DevRelay         DeviceType = 0x03
	DevLatchingRelay DeviceType = 0x04
	DevHBridgeRelay  DeviceType = 0x05
	DevTankSensor    DeviceType = 0x06
	DevHvac          DeviceType = 0x07
	DevTemperature   DeviceType = 0x08
	DevBatteryMon    DeviceType = 0x09
	DevDoorLock      DeviceType = 0x0A
	DevGenerator     DeviceType = 0x0B
	DevHourMeter     DeviceType = 0x0C
)

func (t DeviceType) String() string {
	switch t {
	case DevUnknown:
		return "unknown"
	case DevDimmableLight:
		return "dimmable light"
	case DevRgbLight:
		return "rgb light"
	case DevRelay:
		return "relay"
	case DevLatchingRelay:
		return "latching relay"
	case DevHBridgeRelay:
		return "h-bridge relay"
	case DevTankSensor:
		return "tank sensor"
	case DevHvac:
		return "hvac"
	case DevTemperature:
		return "temperature sensor"
	case DevBatteryMon:
		return "battery monitor"
	case DevDoorLock:
		return "door lock"
	case DevGenerator:
		return "generator"
	case DevHourMeter:
		return "hour meter"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}

// DeviceTableEntry is one device row from a table response.
type DeviceTableEntry struct {
	Key      DeviceKey
	Type     DeviceType
	Function uint16 // function name code, zero in plain GetDevices replies
	Instance uint8  // disambiguates duplicate functions, zero-based
}

// DeviceTableResponse is a decoded GetDevices or GetDevicesMetadata reply.
type DeviceTableResponse struct {
	CommandID uint16
	Kind      CommandType // CmdGetDevices or CmdGetDevicesMetadata
	Table     uint8
	Entries   []DeviceTableEntry

	// Truncated counts trailing bytes that did not fill a whole entry.
	Truncated int
}

const tableEntrySize = 5

// DecodeDeviceTableResponse parses a command response payload. Payloads that
// fail IsCommandResponse return ErrNotTableReply.
func DecodeDeviceTableResponse(payload []byte) (*DeviceTableResponse, error) {
	if !IsCommandResponse(payload) {
		return nil, ErrNotTableReply
	}
	if len(payload) < commandHeaderSize+1 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTableReplyShort, len(payload))
	}

	resp := &DeviceTableResponse{
		CommandID: binary.LittleEndian.Uint16(payload[0:2]),
		Kind:      CommandType(payload[2]),
		Table:     payload[3],
	}

	rest := payload[commandHeaderSize+1:]
	pos := 0
	for pos+tableEntrySize <= len(rest) {
		rec := rest[pos : pos+tableEntrySize]
		resp.Entries = append(resp.Entries, DeviceTableEntry{
			Key:      DeviceKey{resp.Table, rec[0]},
			Type:     DeviceType(rec[1]),
			Function: binary.LittleEndian.Uint16(rec[2:4]),
			Instance: rec[4],
		})
		pos += tableEntrySize
	}
	resp.Truncated = len(rest) - pos

	return resp, nil
}
