// Package registry maps gateway device types to home-automation surfaces and
// function codes to human-readable names.
package registry

import (
	"fmt"
	"strings"

	"rvbridge/internal/canlink"
)

// Component is the home-automation surface a device maps onto.
type Component string

const (
	ComponentLight   Component = "light"
	ComponentSwitch  Component = "switch"
	ComponentCover   Component = "cover"
	ComponentSensor  Component = "sensor"
	ComponentClimate Component = "climate"
	ComponentLock    Component = "lock"
)

// Classify returns the control surface for a gateway device type. H-bridge
// devices become covers without position support: the motors report no limit
// switches, so nothing above this layer may synthesize a position.
func Classify(t canlink.DeviceType) Component {
	switch t {
	case canlink.DevDimmableLight, canlink.DevRgbLight:
		return ComponentLight
	case canlink.DevRelay, canlink.DevLatchingRelay:
		return ComponentSwitch
	case canlink.DevHBridgeRelay:
		return ComponentCover
	case canlink.DevHvac:
		return ComponentClimate
	case canlink.DevDoorLock:
		return ComponentLock
	default:
		// Tanks, temperature, battery, hour meters, generators, and anything
		// unrecognized surface read-only.
		return ComponentSensor
	}
}

// FriendlyName resolves a function code and instance to a display name.
// Placeholder entries substitute the instance into the base name; plain
// entries with a nonzero instance get it appended. Unknown codes fall back to
// a generic label instead of failing.
func FriendlyName(function uint16, instance uint8) string {
	base, ok := functionNames[function]
	if !ok {
		name := fmt.Sprintf("Unknown Device %d", function)
		if instance > 0 {
			name = fmt.Sprintf("%s %d", name, instance)
		}
		return name
	}
	if strings.Contains(base, "%d") {
		return fmt.Sprintf(base, instance)
	}
	if instance > 0 {
		return fmt.Sprintf("%s %d", base, instance)
	}
	return base
}

// TopicSlug derives a stable identifier from a display name: lowercase, every
// run of characters outside [a-z0-9] collapsed to one underscore, no leading
// or trailing underscores. Idempotent.
func TopicSlug(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pending := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
