package bleconn

import (
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

const bleTimeout = 20 * time.Second

func newDevice() (ble.Device, error) {
	return linux.NewDevice(ble.OptDialerTimeout(bleTimeout), ble.OptListenerTimeout(bleTimeout))
}
