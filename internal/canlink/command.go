package canlink

// Command layer: every request is commandId(2, LE) + commandType(1) + typed
// fields. Responses to GetDevices/GetDevicesMetadata echo the same header,
// which is what IsCommandResponse keys on.

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// CommandType identifies the operation carried by a command frame.
type CommandType uint8

const (
	CmdGetDevices         CommandType = 0x01
	CmdGetDevicesMetadata CommandType = 0x02
	CmdActionSwitch       CommandType = 0x40
	CmdActionMovement     CommandType = 0x41
	CmdActionDimmable     CommandType = 0x43
	CmdActionHvac         CommandType = 0x45
)

func (t CommandType) String() string {
	switch t {
	case CmdGetDevices:
		return "GetDevices"
	case CmdGetDevicesMetadata:
		return "GetDevicesMetadata"
	case CmdActionSwitch:
		return "ActionSwitch"
	case CmdActionMovement:
		return "ActionMovement"
	case CmdActionDimmable:
		return "ActionDimmable"
	case CmdActionHvac:
		return "ActionHvac"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}

// Command ids 0x0000 and 0xFFFF are reserved and never assigned.
const (
	commandIDMin = 0x0001
	commandIDMax = 0xFFFE
)

// commandHeaderSize is commandId(2) + commandType(1).
const commandHeaderSize = 3

// maxSwitchDevices is the most device ids one ActionSwitch frame can carry.
const maxSwitchDevices = 255

// MovementCommand is the action byte of an ActionMovement command.
type MovementCommand uint8

const (
	MoveStop        MovementCommand = 0
	MoveForward     MovementCommand = 1
	MoveReverse     MovementCommand = 2
	MoveClearFault  MovementCommand = 3
	MoveHomeReset   MovementCommand = 4
	MoveAutoForward MovementCommand = 5
	MoveAutoReverse MovementCommand = 6
)

func (m MovementCommand) String() string {
	switch m {
	case MoveStop:
		return "Stop"
	case MoveForward:
		return "Forward"
	case MoveReverse:
		return "Reverse"
	case MoveClearFault:
		return "ClearFault"
	case MoveHomeReset:
		return "HomeReset"
	case MoveAutoForward:
		return "AutoForward"
	case MoveAutoReverse:
		return "AutoReverse"
	default:
		return fmt.Sprintf("0x%02X", uint8(m))
	}
}

// DimmableMode is the mode byte of an ActionDimmable command.
type DimmableMode uint8

const (
	DimmableOff     DimmableMode = 0x00
	DimmableOn      DimmableMode = 0x01
	DimmableRestore DimmableMode = 0x7F // return to the last on-level
)

// HvacMode occupies bits 0-2 of the packed HVAC command byte.
type HvacMode uint8

const (
	HvacOff  HvacMode = 0
	HvacCool HvacMode = 1
	HvacHeat HvacMode = 2
	HvacAuto HvacMode = 3
)

func (m HvacMode) String() string {
	switch m {
	case HvacOff:
		return "off"
	case HvacCool:
		return "cool"
	case HvacHeat:
		return "heat"
	case HvacAuto:
		return "auto"
	default:
		return fmt.Sprintf("0x%02X", uint8(m))
	}
}

// HvacHeatSource occupies bits 4-5 of the packed HVAC command byte.
type HvacHeatSource uint8

const (
	HeatSourceFurnace  HvacHeatSource = 0
	HeatSourceHeatPump HvacHeatSource = 1
	HeatSourceBoth     HvacHeatSource = 2
)

// HvacFanMode occupies bits 6-7 of the packed HVAC command byte.
type HvacFanMode uint8

const (
	FanAuto HvacFanMode = 0
	FanLow  HvacFanMode = 1
	FanHigh HvacFanMode = 2
)

func (f HvacFanMode) String() string {
	switch f {
	case FanAuto:
		return "auto"
	case FanLow:
		return "low"
	case FanHigh:
		return "high"
	default:
		return fmt.Sprintf("0x%02X", uint8(f))
	}
}

// IDSequence hands out command ids, wrapping within 1..0xFFFE. Safe for
// concurrent use.
type IDSequence struct {
	mu   sync.Mutex
	next uint16
}

// NewIDSequence starts a sequence at 1.
func NewIDSequence() *IDSequence {
	return &IDSequence{next: commandIDMin}
}

// Next returns the next command id. The reserved values 0x0000 and 0xFFFF
// are never returned.
func (s *IDSequence) Next() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	if s.next == commandIDMax {
		s.next = commandIDMin
	} else {
		s.next++
	}
	return id
}

func commandHeader(buf []byte, id uint16, typ CommandType) {
	binary.LittleEndian.PutUint16(buf[0:2], id)
	buf[2] = byte(typ)
}

// clampByte narrows v to a byte without wrapping.
func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// BuildGetDevices requests up to maxCount presence records from a device
// table starting at startDevice. Also serves as the session heartbeat.
func BuildGetDevices(id uint16, table, startDevice, maxCount uint8) []byte {
	buf := make([]byte, commandHeaderSize+3)
	commandHeader(buf, id, CmdGetDevices)
	buf[3] = table
	buf[4] = startDevice
	buf[5] = maxCount
	return buf
}

// BuildGetDevicesMetadata requests full metadata records (function code and
// instance) for a device table.
func BuildGetDevicesMetadata(id uint16, table, startDevice, maxCount uint8) []byte {
	buf := make([]byte, commandHeaderSize+3)
	commandHeader(buf, id, CmdGetDevicesMetadata)
	buf[3] = table
	buf[4] = startDevice
	buf[5] = maxCount
	return buf
}

// BuildActionSwitch sets one state for a batch of relay devices. The frame
// carries between 1 and 255 device ids; anything else is a programming
// error.
func BuildActionSwitch(id uint16, table uint8, on bool, devices []uint8) ([]byte, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("canlink: switch command needs at least one device id")
	}
	if len(devices) > maxSwitchDevices {
		return nil, fmt.Errorf("canlink: switch command carries at most %d device ids, got %d", maxSwitchDevices, len(devices))
	}
	var state uint8
	if on {
		state = 1
	}
	buf := make([]byte, commandHeaderSize+2+len(devices))
	commandHeader(buf, id, CmdActionSwitch)
	buf[3] = table
	buf[4] = state
	copy(buf[5:], devices)
	return buf, nil
}

// BuildActionMovement drives an H-bridge device.
func BuildActionMovement(id uint16, table, device uint8, cmd MovementCommand) []byte {
	buf := make([]byte, commandHeaderSize+3)
	commandHeader(buf, id, CmdActionMovement)
	buf[3] = table
	buf[4] = device
	buf[5] = byte(cmd)
	return buf
}

// BuildActionDimmable sets a dimmable or RGB light. Brightness outside 0-255
// clamps; the final byte is reserved and always zero.
func BuildActionDimmable(id uint16, table, device uint8, mode DimmableMode, brightness int) []byte {
	buf := make([]byte, commandHeaderSize+5)
	commandHeader(buf, id, CmdActionDimmable)
	buf[3] = table
	buf[4] = device
	buf[5] = byte(mode)
	buf[6] = clampByte(brightness)
	buf[7] = 0x00
	return buf
}

// BuildActionHvac sets an HVAC zone. Mode, heat source and fan mode pack
// into one byte; trip temperatures are whole degrees Fahrenheit, clamped.
func BuildActionHvac(id uint16, table, device uint8, mode HvacMode, source HvacHeatSource, fan HvacFanMode, lowTripF, highTripF int) []byte {
	packed := byte(mode)&0x07 | (byte(source)<<4)&0x30 | (byte(fan)<<6)&0xC0
	buf := make([]byte, commandHeaderSize+5)
	commandHeader(buf, id, CmdActionHvac)
	buf[3] = table
	buf[4] = device
	buf[5] = packed
	buf[6] = clampByte(lowTripF)
	buf[7] = clampByte(highTripF)
	return buf
}
