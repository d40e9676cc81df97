package controller

import (
	"fmt"

	"rvbridge/internal/canlink"
)

// Attribute is one named value derived from a status record. Values are
// JSON-friendly primitives so they pass straight through the bus to the
// publish boundary.
type Attribute struct {
	Name  string
	Value any
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// recordAttributes flattens one status record into named attributes.
func recordAttributes(rec canlink.StatusRecord) []Attribute {
	switch r := rec.(type) {
	case canlink.RelayStatus:
		return []Attribute{{"state", onOff(r.Closed)}}

	case canlink.HBridgeStatus:
		return []Attribute{{"state", r.State.String()}}

	case canlink.DimmableStatus:
		return []Attribute{
			{"state", onOff(r.On)},
			{"brightness", int(r.Brightness)},
		}

	case canlink.RGBStatus:
		return []Attribute{
			{"state", onOff(r.On)},
			{"brightness", int(r.Brightness)},
			{"rgb", []int{int(r.R), int(r.G), int(r.B)}},
		}

	case canlink.TankStatus:
		return []Attribute{
			{"level", int(r.Percent)},
			{"alert", r.Alert},
		}

	case canlink.HvacZoneStatus:
		return []Attribute{
			{"hvac_mode", r.Mode.String()},
			{"fan_mode", r.Fan.String()},
			{"current_temperature", int(r.CurrentTempF)},
			{"low_setpoint", int(r.LowTripF)},
			{"high_setpoint", int(r.HighTripF)},
			{"fault", int(r.Fault)},
		}

	case canlink.TemperatureStatus:
		return []Attribute{{"temperature", r.TempF}}

	case canlink.BatteryStatus:
		return []Attribute{
			{"charge", int(r.Charge)},
			{"voltage", r.Volts},
		}

	case canlink.LockStatus:
		if r.Locked {
			return []Attribute{{"state", "LOCKED"}}
		}
		return []Attribute{{"state", "UNLOCKED"}}

	case canlink.OnlineStatus:
		return []Attribute{{"online", r.Online}}

	case canlink.LockoutStatus:
		return []Attribute{{"child_lock", r.Lockout}}

	case canlink.HourMeterStatus:
		return []Attribute{{"hours", int(r.Hours)}}

	case canlink.GeneratorStatus:
		return []Attribute{
			{"state", r.State.String()},
			{"fault", int(r.Fault)},
		}

	default:
		return nil
	}
}

func parseMovement(s string) (canlink.MovementCommand, error) {
	switch s {
	case "open":
		return canlink.MoveForward, nil
	case "close":
		return canlink.MoveReverse, nil
	case "stop":
		return canlink.MoveStop, nil
	case "clear_fault":
		return canlink.MoveClearFault, nil
	default:
		return 0, fmt.Errorf("controller: unknown movement command %q", s)
	}
}

func parseHvacMode(s string) (canlink.HvacMode, error) {
	switch s {
	case "off", "":
		return canlink.HvacOff, nil
	case "cool":
		return canlink.HvacCool, nil
	case "heat":
		return canlink.HvacHeat, nil
	case "auto":
		return canlink.HvacAuto, nil
	default:
		return 0, fmt.Errorf("controller: unknown hvac mode %q", s)
	}
}

func parseFanMode(s string) (canlink.HvacFanMode, error) {
	switch s {
	case "auto", "":
		return canlink.FanAuto, nil
	case "low":
		return canlink.FanLow, nil
	case "high":
		return canlink.FanHigh, nil
	default:
		return 0, fmt.Errorf("controller: unknown fan mode %q", s)
	}
}

func parseHeatSource(s string) (canlink.HvacHeatSource, error) {
	switch s {
	case "furnace", "":
		return canlink.HeatSourceFurnace, nil
	case "heat_pump":
		return canlink.HeatSourceHeatPump, nil
	case "both":
		return canlink.HeatSourceBoth, nil
	default:
		return 0, fmt.Errorf("controller: unknown heat source %q", s)
	}
}
