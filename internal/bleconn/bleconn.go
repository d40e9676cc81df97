// Package bleconn implements gateway.Transport on a go-ble central. It owns
// scanning-free connects by address, GATT profile discovery, and the mapping
// from protocol roles to vendor characteristics.
package bleconn

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-ble/ble"

	"rvbridge/internal/gateway"
)

// Vendor GATT profile spoken by the gateways. One primary service carries
// every characteristic the protocol needs.
const (
	gatewayServiceUUID = "0000d100-9ac4-4e32-b2a1-3e5f7c8d90e1"
	seedUUID           = "0000d101-9ac4-4e32-b2a1-3e5f7c8d90e1"
	keyUUID            = "0000d102-9ac4-4e32-b2a1-3e5f7c8d90e1"
	unlockStatusUUID   = "0000d103-9ac4-4e32-b2a1-3e5f7c8d90e1"
	dataWriteUUID      = "0000d104-9ac4-4e32-b2a1-3e5f7c8d90e1"
	dataReadUUID       = "0000d105-9ac4-4e32-b2a1-3e5f7c8d90e1"
	authStatusUUID     = "0000d106-9ac4-4e32-b2a1-3e5f7c8d90e1"
)

var roleUUIDs = map[gateway.Role]string{
	gateway.RoleSeed:         seedUUID,
	gateway.RoleKey:          keyUUID,
	gateway.RoleUnlockStatus: unlockStatusUUID,
	gateway.RoleDataWrite:    dataWriteUUID,
	gateway.RoleDataRead:     dataReadUUID,
	gateway.RoleAuthStatus:   authStatusUUID,
}

// Transport drives one gateway connection over the platform BLE stack.
// Connect resolves the full role map before returning, so the state machine
// never sees a partially usable connection.
type Transport struct {
	logger *slog.Logger

	mu     sync.Mutex
	device ble.Device
	client ble.Client
	chars  map[gateway.Role]*ble.Characteristic
}

// New creates a transport. The platform BLE device opens lazily on the
// first Connect.
func New(logger *slog.Logger) *Transport {
	return &Transport{
		logger: logger.With("component", "ble"),
	}
}

// Connect dials the gateway by address and discovers the vendor profile.
// Link failures that indicate a lost bond map to gateway.ErrStaleBond.
func (t *Transport) Connect(ctx context.Context, address string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.device == nil {
		device, err := newDevice()
		if err != nil {
			return fmt.Errorf("bleconn: open adapter: %w", err)
		}
		t.device = device
	}

	client, err := t.device.Dial(ctx, ble.NewAddr(strings.ToLower(address)))
	if err != nil {
		if isBondError(err) {
			return gateway.ErrStaleBond
		}
		return fmt.Errorf("bleconn: dial %s: %w", address, err)
	}

	chars, err := discoverRoles(client)
	if err != nil {
		client.CancelConnection()
		if isBondError(err) {
			return gateway.ErrStaleBond
		}
		return err
	}

	t.client = client
	t.chars = chars
	t.logger.Debug("profile resolved", "address", address, "characteristics", len(chars))
	return nil
}

// discoverRoles walks the GATT profile and binds every protocol role to its
// characteristic. A missing characteristic fails the connect.
func discoverRoles(client ble.Client) (map[gateway.Role]*ble.Characteristic, error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, fmt.Errorf("bleconn: discover profile: %w", err)
	}

	var found []*ble.Characteristic
	for _, svc := range profile.Services {
		if !bytes.Equal(svc.UUID, ble.MustParse(gatewayServiceUUID)) {
			continue
		}
		found = svc.Characteristics
		break
	}
	if found == nil {
		return nil, fmt.Errorf("bleconn: gateway service %s not found", gatewayServiceUUID)
	}

	chars := make(map[gateway.Role]*ble.Characteristic, len(roleUUIDs))
	for role, uuid := range roleUUIDs {
		want := ble.MustParse(uuid)
		for _, c := range found {
			if bytes.Equal(c.UUID, want) {
				chars[role] = c
				break
			}
		}
		if _, ok := chars[role]; !ok {
			return nil, fmt.Errorf("bleconn: characteristic for role %s (%s) not found", role, uuid)
		}
	}
	return chars, nil
}

func (t *Transport) characteristic(role gateway.Role) (ble.Client, *ble.Characteristic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, nil, fmt.Errorf("bleconn: not connected")
	}
	c, ok := t.chars[role]
	if !ok {
		return nil, nil, fmt.Errorf("bleconn: no characteristic for role %s", role)
	}
	return t.client, c, nil
}

// ReadCharacteristic reads one value. The GATT operation itself has no
// cancellation hook, so the context bounds only the wait.
func (t *Transport) ReadCharacteristic(ctx context.Context, role gateway.Role) ([]byte, error) {
	client, char, err := t.characteristic(role)
	if err != nil {
		return nil, err
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := client.ReadCharacteristic(char)
		ch <- result{data, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("bleconn: read %s: %w", role, r.err)
		}
		return r.data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("bleconn: read %s: %w", role, ctx.Err())
	}
}

// WriteCharacteristic writes one value, with or without a GATT response.
func (t *Transport) WriteCharacteristic(ctx context.Context, role gateway.Role, data []byte, withResponse bool) error {
	client, char, err := t.characteristic(role)
	if err != nil {
		return err
	}

	ch := make(chan error, 1)
	go func() {
		ch <- client.WriteCharacteristic(char, data, !withResponse)
	}()

	select {
	case err := <-ch:
		if err != nil {
			return fmt.Errorf("bleconn: write %s: %w", role, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bleconn: write %s: %w", role, ctx.Err())
	}
}

// Subscribe registers a notification handler for a role. The callback runs
// on the BLE stack's delivery goroutine.
func (t *Transport) Subscribe(role gateway.Role, fn func(data []byte)) error {
	client, char, err := t.characteristic(role)
	if err != nil {
		return err
	}
	if err := client.Subscribe(char, false, fn); err != nil {
		return fmt.Errorf("bleconn: subscribe %s: %w", role, err)
	}
	return nil
}

// Disconnect drops the connection. Safe to call when already disconnected.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.chars = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.ClearSubscriptions(); err != nil {
		t.logger.Debug("clear subscriptions", "err", err)
	}
	return client.CancelConnection()
}

// bondFailureMarkers are HCI error fragments that mean the peer discarded
// the pairing keys while this side still holds a bond. Reconnecting cannot
// fix that; only re-pairing can.
var bondFailureMarkers = []string{
	"authentication failure",
	"pin or key missing",
	"insufficient authentication",
	"insufficient encryption",
	"encryption failed",
}

func isBondError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range bondFailureMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
