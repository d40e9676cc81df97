package store

import "time"

// Device is one discovered control-network device behind a gateway. A device
// is addressed by gateway name plus its table and device ids; the ids are
// stable across sessions, so persisted metadata survives reconnects and lets
// entities reappear with the same identity after a restart.
type Device struct {
	Gateway   string `json:"gateway"`
	Table     uint8  `json:"table"`
	Device    uint8  `json:"device"`
	Type      uint8  `json:"type"`
	Function  uint16 `json:"function,omitempty"`
	Instance  uint8  `json:"instance,omitempty"`
	Name      string `json:"name,omitempty"`
	Component string `json:"component,omitempty"`
	Slug      string `json:"slug,omitempty"`

	Online    bool      `json:"online"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Attributes holds the last published state per attribute name, so a
	// restart can republish retained values without waiting for traffic.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// StorageKey is the device's unique key within the store.
func (d *Device) StorageKey() string {
	return DeviceKey(d.Gateway, d.Table, d.Device)
}

// Gateway holds persisted per-gateway facts that outlive a session.
type Gateway struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Protocol uint8  `json:"protocol,omitempty"`
	Firmware string `json:"firmware,omitempty"`

	LastActive time.Time `json:"last_active,omitempty"`
}
