// Package controller is the orchestration hub: it owns one gateway client
// per configured gateway, turns decoded protocol traffic into bus events,
// keeps the device table in sync with the store, and routes inbound commands
// back to the owning gateway.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"rvbridge/internal/canlink"
	"rvbridge/internal/gateway"
	"rvbridge/internal/registry"
	"rvbridge/internal/store"
)

// CommandSender is the slice of the gateway client the controller drives.
type CommandSender interface {
	Name() string
	SendCommand(ctx context.Context, payload []byte) error
	IDs() *canlink.IDSequence
	Status() gateway.Status
}

// CommandArgs carries the typed arguments of one inbound command. Pointer
// fields distinguish "absent" from zero values.
type CommandArgs struct {
	State      *bool
	Brightness *int
	Command    string
	HvacMode   string
	FanMode    string
	HeatSource string
	LowTripF   *int
	HighTripF  *int
}

// Controller wires gateways, registry, store, and the event bus together.
type Controller struct {
	logger *slog.Logger
	bus    *EventBus
	store  store.Store
	now    func() time.Time

	mu            sync.Mutex
	gateways      map[string]CommandSender
	health        map[string]GatewayHealth
	devices       map[string]*store.Device
	slugs         map[string]string // slug -> device storage key
	metaRequested map[string]bool   // "<gateway>/<table>" metadata sweeps sent
}

// New creates a controller. Gateways attach via AddGateway; persisted state
// loads via Seed.
func New(logger *slog.Logger, bus *EventBus, st store.Store) *Controller {
	return &Controller{
		logger:        logger.With("component", "controller"),
		bus:           bus,
		store:         st,
		now:           time.Now,
		gateways:      make(map[string]CommandSender),
		health:        make(map[string]GatewayHealth),
		devices:       make(map[string]*store.Device),
		slugs:         make(map[string]string),
		metaRequested: make(map[string]bool),
	}
}

// Bus returns the controller's event bus.
func (c *Controller) Bus() *EventBus { return c.bus }

// AddGateway registers a gateway client for command routing.
func (c *Controller) AddGateway(s CommandSender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gateways[s.Name()] = s
}

// Handlers builds the gateway callback set bound to one gateway name. Safe
// to call before the client exists; the closures only capture the name.
func (c *Controller) Handlers(gatewayName string) gateway.Handlers {
	return gateway.Handlers{
		Event:        func(ev *canlink.Event) { c.HandleEvent(gatewayName, ev) },
		DeviceTable:  func(r *canlink.DeviceTableResponse) { c.HandleDeviceTable(gatewayName, r) },
		StatusChange: func(s gateway.Status) { c.HandleGatewayStatus(gatewayName, s) },
	}
}

// Seed loads persisted devices and re-announces every one that already has
// resolved metadata, so entities reappear after a restart without waiting
// for gateway traffic.
func (c *Controller) Seed() error {
	devices, err := c.store.ListDevices()
	if err != nil {
		return fmt.Errorf("seed devices: %w", err)
	}

	var emits []Event
	c.mu.Lock()
	for _, dev := range devices {
		key := dev.StorageKey()
		c.devices[key] = dev
		if dev.Slug != "" {
			c.slugs[dev.Slug] = key
			emits = append(emits, Event{EventDeviceDiscovered, discoveredFrom(dev)})
			emits = append(emits, attributeEvents(dev)...)
		}
	}
	count := len(c.devices)
	c.mu.Unlock()

	for _, ev := range emits {
		c.bus.Emit(ev)
	}
	c.logger.Info("seeded from store", "devices", count)
	return nil
}

// HandleEvent converts one decoded event into attribute updates.
func (c *Controller) HandleEvent(gatewayName string, ev *canlink.Event) {
	if ev.Info != nil {
		c.recordGatewayInfo(gatewayName, *ev.Info)
	}

	var emits []Event
	c.mu.Lock()
	for _, rec := range ev.Records {
		key := store.DeviceKey(gatewayName, rec.Key().Table, rec.Key().Device)
		dev := c.devices[key]
		if dev == nil {
			// Status before the table announced the device: cache silently,
			// announce once metadata resolves.
			dev = &store.Device{
				Gateway:    gatewayName,
				Table:      rec.Key().Table,
				Device:     rec.Key().Device,
				FirstSeen:  c.now(),
				Attributes: make(map[string]any),
			}
			c.devices[key] = dev
		}
		dev.LastSeen = c.now()
		if on, ok := rec.(canlink.OnlineStatus); ok {
			dev.Online = on.Online
		}

		changed := false
		for _, attr := range recordAttributes(rec) {
			if dev.Attributes == nil {
				dev.Attributes = make(map[string]any)
			}
			if reflect.DeepEqual(dev.Attributes[attr.Name], attr.Value) {
				continue
			}
			dev.Attributes[attr.Name] = attr.Value
			changed = true
			if dev.Slug != "" {
				emits = append(emits, Event{EventStatusUpdate, StatusUpdate{
					Gateway:   gatewayName,
					Key:       rec.Key(),
					Slug:      dev.Slug,
					Attribute: attr.Name,
					Value:     attr.Value,
				}})
			}
		}
		if changed {
			c.persistLocked(dev)
		}
	}
	c.mu.Unlock()

	for _, e := range emits {
		c.bus.Emit(e)
	}
}

// HandleDeviceTable folds a GetDevices / GetDevicesMetadata reply into the
// device map. New presence-only devices trigger one metadata sweep per
// table; a refreshed-but-unchanged entry emits nothing.
func (c *Controller) HandleDeviceTable(gatewayName string, resp *canlink.DeviceTableResponse) {
	var emits []Event
	needMeta := false

	c.mu.Lock()
	for _, entry := range resp.Entries {
		key := store.DeviceKey(gatewayName, entry.Key.Table, entry.Key.Device)
		dev := c.devices[key]
		if dev == nil {
			dev = &store.Device{
				Gateway:    gatewayName,
				Table:      entry.Key.Table,
				Device:     entry.Key.Device,
				FirstSeen:  c.now(),
				Online:     true,
				Attributes: make(map[string]any),
			}
			c.devices[key] = dev
		}
		dev.LastSeen = c.now()
		dev.Online = true

		hasMeta := resp.Kind == canlink.CmdGetDevicesMetadata || entry.Function != 0
		if !hasMeta {
			if dev.Slug == "" {
				needMeta = true
				c.persistLocked(dev)
			}
			continue
		}

		if dev.Slug != "" &&
			dev.Type == uint8(entry.Type) &&
			dev.Function == entry.Function &&
			dev.Instance == entry.Instance {
			continue // unchanged
		}

		dev.Type = uint8(entry.Type)
		dev.Function = entry.Function
		dev.Instance = entry.Instance
		dev.Name = registry.FriendlyName(entry.Function, entry.Instance)
		dev.Component = string(registry.Classify(entry.Type))
		dev.Slug = c.claimSlugLocked(registry.TopicSlug(dev.Name), key)
		c.persistLocked(dev)

		emits = append(emits, Event{EventDeviceDiscovered, discoveredFrom(dev)})
		emits = append(emits, attributeEvents(dev)...)
	}
	tableKey := fmt.Sprintf("%s/%d", gatewayName, resp.Table)
	requestMeta := needMeta && !c.metaRequested[tableKey]
	if requestMeta {
		c.metaRequested[tableKey] = true
	}
	sender := c.gateways[gatewayName]
	c.mu.Unlock()

	for _, e := range emits {
		c.bus.Emit(e)
	}

	if requestMeta && sender != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cmd := canlink.BuildGetDevicesMetadata(sender.IDs().Next(), resp.Table, 0, 0xFF)
		if err := sender.SendCommand(ctx, cmd); err != nil {
			c.logger.Warn("metadata request failed", "gateway", gatewayName, "table", resp.Table, "err", err)
			c.mu.Lock()
			delete(c.metaRequested, tableKey) // retry on the next sweep
			c.mu.Unlock()
		}
	}
}

// HandleGatewayStatus folds a client state transition into the health map.
func (c *Controller) HandleGatewayStatus(gatewayName string, st gateway.Status) {
	h := GatewayHealth{
		Gateway:       gatewayName,
		State:         st.State.String(),
		Connected:     st.Connected,
		Authenticated: st.Authenticated,
		DataHealthy:   st.DataHealthy,
	}
	if st.Info != nil {
		h.Firmware = fmt.Sprintf("%d.%d.%d", st.Info.Major, st.Info.Minor, st.Info.Patch)
	}

	c.mu.Lock()
	if prev, ok := c.health[gatewayName]; ok && prev == h {
		c.mu.Unlock()
		return
	}
	if h.Firmware == "" {
		h.Firmware = c.health[gatewayName].Firmware
	}
	c.health[gatewayName] = h
	c.mu.Unlock()

	c.bus.Emit(Event{EventGatewayHealth, h})

	if st.State == gateway.StateActive {
		if err := c.store.SaveGateway(&store.Gateway{
			Name:       gatewayName,
			LastActive: c.now(),
			Firmware:   h.Firmware,
		}); err != nil {
			c.logger.Warn("persist gateway failed", "gateway", gatewayName, "err", err)
		}
	}
}

// Dispatch routes one inbound command to the owning gateway. Unknown
// gateways, devices, and command names are errors, never panics.
func (c *Controller) Dispatch(ctx context.Context, gatewayName string, key canlink.DeviceKey, command string, args CommandArgs) error {
	c.mu.Lock()
	sender := c.gateways[gatewayName]
	dev := c.devices[store.DeviceKey(gatewayName, key.Table, key.Device)]
	c.mu.Unlock()

	if sender == nil {
		return fmt.Errorf("controller: unknown gateway %q", gatewayName)
	}
	if dev == nil {
		return fmt.Errorf("controller: unknown device %s on gateway %q", key, gatewayName)
	}

	payload, err := c.encodeCommand(sender, dev, key, command, args)
	if err != nil {
		return err
	}
	return sender.SendCommand(ctx, payload)
}

func (c *Controller) encodeCommand(sender CommandSender, dev *store.Device, key canlink.DeviceKey, command string, args CommandArgs) ([]byte, error) {
	typ := canlink.DeviceType(dev.Type)
	switch command {
	case "state":
		if args.State == nil {
			return nil, fmt.Errorf("controller: state command needs a state argument")
		}
		switch typ {
		case canlink.DevDimmableLight, canlink.DevRgbLight:
			mode := canlink.DimmableOff
			if *args.State {
				// Restore returns to the last on-level instead of full bright.
				mode = canlink.DimmableRestore
			}
			return canlink.BuildActionDimmable(sender.IDs().Next(), key.Table, key.Device, mode, 0), nil
		default:
			return canlink.BuildActionSwitch(sender.IDs().Next(), key.Table, *args.State, []uint8{key.Device})
		}

	case "brightness":
		if args.Brightness == nil {
			return nil, fmt.Errorf("controller: brightness command needs a brightness argument")
		}
		return canlink.BuildActionDimmable(sender.IDs().Next(), key.Table, key.Device, canlink.DimmableOn, *args.Brightness), nil

	case "command":
		move, err := parseMovement(args.Command)
		if err != nil {
			return nil, err
		}
		return canlink.BuildActionMovement(sender.IDs().Next(), key.Table, key.Device, move), nil

	case "hvac":
		mode, err := parseHvacMode(args.HvacMode)
		if err != nil {
			return nil, err
		}
		fan, err := parseFanMode(args.FanMode)
		if err != nil {
			return nil, err
		}
		source, err := parseHeatSource(args.HeatSource)
		if err != nil {
			return nil, err
		}
		low, high := hvacTrips(dev, args)
		return canlink.BuildActionHvac(sender.IDs().Next(), key.Table, key.Device, mode, source, fan, low, high), nil

	default:
		return nil, fmt.Errorf("controller: unknown command %q", command)
	}
}

// hvacTrips merges explicit trip arguments with the device's last reported
// setpoints so a mode-only command does not zero the thermostat.
func hvacTrips(dev *store.Device, args CommandArgs) (int, int) {
	low, high := 60, 80
	if v, ok := dev.Attributes["low_setpoint"]; ok {
		if n, ok := asInt(v); ok {
			low = n
		}
	}
	if v, ok := dev.Attributes["high_setpoint"]; ok {
		if n, ok := asInt(v); ok {
			high = n
		}
	}
	if args.LowTripF != nil {
		low = *args.LowTripF
	}
	if args.HighTripF != nil {
		high = *args.HighTripF
	}
	return low, high
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// PluginStatus returns a per-gateway health snapshot, sorted by name.
func (c *Controller) PluginStatus() []GatewayHealth {
	c.mu.Lock()
	out := make([]GatewayHealth, 0, len(c.health))
	for _, h := range c.health {
		out = append(out, h)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Gateway < out[j].Gateway })
	return out
}

// Devices returns copies of every known device, sorted by storage key.
func (c *Controller) Devices() []*store.Device {
	c.mu.Lock()
	out := make([]*store.Device, 0, len(c.devices))
	for _, d := range c.devices {
		cp := *d
		cp.Attributes = make(map[string]any, len(d.Attributes))
		for k, v := range d.Attributes {
			cp.Attributes[k] = v
		}
		out = append(out, &cp)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StorageKey() < out[j].StorageKey() })
	return out
}

func (c *Controller) recordGatewayInfo(gatewayName string, info canlink.GatewayInfo) {
	fw := fmt.Sprintf("%d.%d.%d", info.Major, info.Minor, info.Patch)

	c.mu.Lock()
	h := c.health[gatewayName]
	changed := h.Firmware != fw
	h.Gateway = gatewayName
	h.Firmware = fw
	c.health[gatewayName] = h
	c.mu.Unlock()

	if !changed {
		return
	}
	c.bus.Emit(Event{EventGatewayHealth, h})
	if err := c.store.SaveGateway(&store.Gateway{
		Name:       gatewayName,
		Protocol:   info.Protocol,
		Firmware:   fw,
		LastActive: c.now(),
	}); err != nil {
		c.logger.Warn("persist gateway failed", "gateway", gatewayName, "err", err)
	}
}

// claimSlugLocked reserves a unique topic slug for a device key, suffixing
// duplicates. A key that already holds its slug keeps it.
func (c *Controller) claimSlugLocked(slug, key string) string {
	if slug == "" {
		slug = "device"
	}
	candidate := slug
	for n := 2; ; n++ {
		owner, taken := c.slugs[candidate]
		if !taken || owner == key {
			c.slugs[candidate] = key
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", slug, n)
	}
}

func (c *Controller) persistLocked(dev *store.Device) {
	if err := c.store.SaveDevice(dev); err != nil {
		c.logger.Warn("persist device failed", "device", dev.StorageKey(), "err", err)
	}
}

func discoveredFrom(dev *store.Device) DeviceDiscovered {
	return DeviceDiscovered{
		Gateway:   dev.Gateway,
		Key:       canlink.DeviceKey{Table: dev.Table, Device: dev.Device},
		Type:      canlink.DeviceType(dev.Type),
		Function:  dev.Function,
		Instance:  dev.Instance,
		Name:      dev.Name,
		Component: registry.Component(dev.Component),
		Slug:      dev.Slug,
	}
}

// attributeEvents replays a device's cached attributes as status updates,
// used right after discovery so subscribers start from known state.
func attributeEvents(dev *store.Device) []Event {
	if dev.Slug == "" || len(dev.Attributes) == 0 {
		return nil
	}
	names := make([]string, 0, len(dev.Attributes))
	for name := range dev.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Event, 0, len(names))
	for _, name := range names {
		out = append(out, Event{EventStatusUpdate, StatusUpdate{
			Gateway:   dev.Gateway,
			Key:       canlink.DeviceKey{Table: dev.Table, Device: dev.Device},
			Slug:      dev.Slug,
			Attribute: name,
			Value:     dev.Attributes[name],
		}})
	}
	return out
}
