//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"rvbridge/internal/controller"
)

// dispatchCall is one typed command derived from an inbound set payload.
type dispatchCall struct {
	command string
	args    controller.CommandArgs
}

// parseCommand translates a JSON set payload into controller dispatches.
// One payload may yield several dispatches (e.g. state plus brightness).
// Malformed JSON and payloads with no actionable field are errors.
func parseCommand(component string, payload []byte) ([]dispatchCall, error) {
	var body struct {
		State        *string `json:"state"`
		Brightness   *int    `json:"brightness"`
		Command      string  `json:"command"`
		Mode         string  `json:"mode"`
		FanMode      string  `json:"fan_mode"`
		HeatSource   string  `json:"heat_source"`
		LowSetpoint  *int    `json:"low_setpoint"`
		HighSetpoint *int    `json:"high_setpoint"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("mqtt: invalid command JSON: %w", err)
	}

	var out []dispatchCall

	if component == "climate" {
		if body.Mode == "" && body.LowSetpoint == nil && body.HighSetpoint == nil && body.FanMode == "" {
			return nil, fmt.Errorf("mqtt: climate command carries no hvac fields")
		}
		out = append(out, dispatchCall{"hvac", controller.CommandArgs{
			HvacMode:   body.Mode,
			FanMode:    body.FanMode,
			HeatSource: body.HeatSource,
			LowTripF:   body.LowSetpoint,
			HighTripF:  body.HighSetpoint,
		}})
		return out, nil
	}

	if body.Command != "" {
		out = append(out, dispatchCall{"command", controller.CommandArgs{Command: body.Command}})
	}

	// Brightness implies on; send it instead of a separate state command so
	// one tap on an HA slider is one frame on the wire.
	if body.Brightness != nil {
		out = append(out, dispatchCall{"brightness", controller.CommandArgs{Brightness: body.Brightness}})
	} else if body.State != nil {
		on, err := parseStateWord(*body.State)
		if err != nil {
			return nil, err
		}
		out = append(out, dispatchCall{"state", controller.CommandArgs{State: &on}})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("mqtt: command carries no actionable field")
	}
	return out, nil
}

func parseStateWord(s string) (bool, error) {
	switch strings.ToUpper(s) {
	case "ON", "LOCK", "LOCKED", "TRUE", "1":
		return true, nil
	case "OFF", "UNLOCK", "UNLOCKED", "FALSE", "0":
		return false, nil
	default:
		return false, fmt.Errorf("mqtt: unknown state word %q", s)
	}
}
