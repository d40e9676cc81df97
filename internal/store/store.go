// Package store persists device and gateway metadata between runs.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// DeviceKey builds the canonical store key for a device.
func DeviceKey(gateway string, table, device uint8) string {
	return fmt.Sprintf("%s/%d/%d", gateway, table, device)
}

// Store defines the persistence interface.
type Store interface {
	// Device operations
	SaveDevice(dev *Device) error
	GetDevice(key string) (*Device, error)
	DeleteDevice(key string) error
	ListDevices() ([]*Device, error)

	// UpdateDevice atomically reads, modifies, and saves a device in a single
	// transaction. Returns ErrNotFound if the device does not exist.
	UpdateDevice(key string, fn func(dev *Device) error) error

	// Gateway facts
	SaveGateway(gw *Gateway) error
	GetGateway(name string) (*Gateway, error)
	ListGateways() ([]*Gateway, error)

	// Close the store
	Close() error
}
