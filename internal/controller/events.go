package controller

import (
	"log/slog"
	"sync"

	"rvbridge/internal/canlink"
	"rvbridge/internal/registry"
)

// Event types
const (
	EventStatusUpdate     = "status_update"
	EventDeviceDiscovered = "device_discovered"
	EventGatewayHealth    = "gateway_health"
)

// StatusUpdate is one attribute change on one device.
type StatusUpdate struct {
	Gateway   string             `json:"gateway"`
	Key       canlink.DeviceKey  `json:"key"`
	Slug      string             `json:"slug"`
	Attribute string             `json:"attribute"`
	Value     any                `json:"value"`
}

// DeviceDiscovered announces a device with resolved metadata.
type DeviceDiscovered struct {
	Gateway   string             `json:"gateway"`
	Key       canlink.DeviceKey  `json:"key"`
	Type      canlink.DeviceType `json:"type"`
	Function  uint16             `json:"function"`
	Instance  uint8              `json:"instance"`
	Name      string             `json:"name"`
	Component registry.Component `json:"component"`
	Slug      string             `json:"slug"`
}

// GatewayHealth is a per-gateway liveness snapshot.
type GatewayHealth struct {
	Gateway       string `json:"gateway"`
	State         string `json:"state"`
	Connected     bool   `json:"connected"`
	Authenticated bool   `json:"authenticated"`
	DataHealthy   bool   `json:"data_healthy"`
	Firmware      string `json:"firmware,omitempty"`
}

// Event represents a controller event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus provides pub/sub for controller events. The core publishes into
// it regardless of subscribers; the MQTT bridge is just one listener.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger,
	}
}

// On registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[uint64]EventHandler)
	}
	eb.handlers[eventType][id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.handlers[eventType], id)
	}
}

// OnAll registers a handler that receives all events.
// Returns an unsubscribe function.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.allHandlers[id] = handler
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		delete(eb.allHandlers, id)
	}
}

// Emit sends an event to all matching handlers.
// Handlers are called synchronously; a panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allHandlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
