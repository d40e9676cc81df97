package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies a gateway characteristic by its function in the protocol.
// The transport owns the mapping from roles to platform characteristic
// handles; the state machine only ever speaks in roles.
type Role int

const (
	// RoleSeed carries the 4-byte authentication challenge (read/notify).
	RoleSeed Role = iota
	// RoleKey accepts the 4-byte derived unlock key (write).
	RoleKey
	// RoleUnlockStatus reports whether the session is unlocked (read/notify).
	RoleUnlockStatus
	// RoleDataWrite accepts framed command bytes (write without response).
	RoleDataWrite
	// RoleDataRead delivers framed event bytes (notify).
	RoleDataRead
	// RoleAuthStatus notifies authentication state changes (notify).
	RoleAuthStatus
)

func (r Role) String() string {
	switch r {
	case RoleSeed:
		return "seed"
	case RoleKey:
		return "key"
	case RoleUnlockStatus:
		return "unlock_status"
	case RoleDataWrite:
		return "data_write"
	case RoleDataRead:
		return "data_read"
	case RoleAuthStatus:
		return "auth_status"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ErrStaleBond marks a connect attempt that failed at the link layer while
// the local platform still considers the peer paired. The remote side has
// forgotten the pairing keys; retrying cannot succeed and the gateway must be
// re-paired out of band.
var ErrStaleBond = errors.New("gateway: stale bond, peer requires re-pairing")

// Transport is the BLE boundary the state machine drives. Connect resolves
// services and characteristics before returning, so a successful Connect
// means every Role is usable. Implementations must tolerate Disconnect being
// called more than once.
type Transport interface {
	Connect(ctx context.Context, address string) error
	ReadCharacteristic(ctx context.Context, role Role) ([]byte, error)
	WriteCharacteristic(ctx context.Context, role Role, data []byte, withResponse bool) error
	Subscribe(role Role, fn func(data []byte)) error
	Disconnect() error
}
