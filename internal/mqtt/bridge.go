//go:build !no_mqtt

// Package mqtt publishes bridge state to an MQTT broker with Home Assistant
// autodiscovery and feeds inbound set commands back into the controller.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"rvbridge/internal/canlink"
	"rvbridge/internal/controller"
	"rvbridge/internal/store"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker          string
	Username        string
	Password        string
	ClientID        string
	TopicPrefix     string
	DiscoveryPrefix string
	Discovery       bool
}

// deviceRef is the dispatch target behind one topic slug.
type deviceRef struct {
	gateway   string
	key       canlink.DeviceKey
	component string
}

// Bridge connects the controller to MQTT with HA autodiscovery.
type Bridge struct {
	client pahomqtt.Client
	ctrl   *controller.Controller
	cfg    Config
	logger *slog.Logger
	unsub  func()

	// Per-device state accumulator and slug routing table.
	mu         sync.Mutex
	states     map[string]map[string]any // slug -> attribute map
	refs       map[string]deviceRef      // slug -> dispatch target
	subscribed map[string]bool           // slugs with live command subscriptions
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(ctrl *controller.Controller, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		ctrl:       ctrl,
		cfg:        cfg,
		logger:     logger.With("component", "mqtt"),
		states:     make(map[string]map[string]any),
		refs:       make(map[string]deviceRef),
		subscribed: make(map[string]bool),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishAllDiscovery()
			b.resubscribeCommands()
			b.publishGatewayHealth()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start subscribes to controller events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.ctrl.Bus().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.cfg.TopicPrefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event controller.Event) {
	switch event.Type {
	case controller.EventStatusUpdate:
		if u, ok := event.Data.(controller.StatusUpdate); ok {
			b.updateAndPublishState(u.Slug, u.Attribute, u.Value)
		}
	case controller.EventDeviceDiscovered:
		if d, ok := event.Data.(controller.DeviceDiscovered); ok {
			b.handleDiscovered(d)
		}
	case controller.EventGatewayHealth:
		if h, ok := event.Data.(controller.GatewayHealth); ok {
			topic := b.cfg.TopicPrefix + "/bridge/gateways/" + h.Gateway
			b.publish(topic, mustJSON(h), true)
		}
	}
}

func (b *Bridge) handleDiscovered(d controller.DeviceDiscovered) {
	b.mu.Lock()
	b.refs[d.Slug] = deviceRef{
		gateway:   d.Gateway,
		key:       d.Key,
		component: string(d.Component),
	}
	b.mu.Unlock()

	if b.cfg.Discovery {
		for _, msg := range buildDiscovery(deviceFromDiscovered(d), b.cfg.TopicPrefix, b.cfg.DiscoveryPrefix) {
			b.publish(msg.Topic, msg.Payload, true)
		}
		b.logger.Info("published HA discovery", "device", d.Key.String(), "name", d.Name)
	}
	b.subscribeCommands(d.Slug)
}

func (b *Bridge) updateAndPublishState(slug, attr string, value any) {
	b.mu.Lock()
	state, ok := b.states[slug]
	if !ok {
		state = make(map[string]any)
		b.states[slug] = state
	}
	state[attr] = value
	state["last_seen"] = time.Now().Format(time.RFC3339)
	payload := mustJSON(state)
	b.mu.Unlock()

	b.publish(b.cfg.TopicPrefix+"/"+slug, payload, true)
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.cfg.TopicPrefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishGatewayHealth() {
	for _, h := range b.ctrl.PluginStatus() {
		topic := b.cfg.TopicPrefix + "/bridge/gateways/" + h.Gateway
		b.publish(topic, mustJSON(h), true)
	}
}

func (b *Bridge) publishAllDiscovery() {
	for _, dev := range b.ctrl.Devices() {
		if dev.Slug == "" {
			continue
		}
		b.mu.Lock()
		b.refs[dev.Slug] = deviceRef{
			gateway:   dev.Gateway,
			key:       canlink.DeviceKey{Table: dev.Table, Device: dev.Device},
			component: dev.Component,
		}
		b.mu.Unlock()
		if b.cfg.Discovery {
			for _, msg := range buildDiscovery(dev, b.cfg.TopicPrefix, b.cfg.DiscoveryPrefix) {
				b.publish(msg.Topic, msg.Payload, true)
			}
		}
	}
}

// resubscribeCommands re-issues every command subscription after a broker
// reconnect; paho drops subscriptions on clean sessions.
func (b *Bridge) resubscribeCommands() {
	b.mu.Lock()
	slugs := make([]string, 0, len(b.refs))
	for slug := range b.refs {
		slugs = append(slugs, slug)
		delete(b.subscribed, slug)
	}
	b.mu.Unlock()
	for _, slug := range slugs {
		b.subscribeCommands(slug)
	}
}

func (b *Bridge) subscribeCommands(slug string) {
	b.mu.Lock()
	if b.subscribed[slug] {
		b.mu.Unlock()
		return
	}
	b.subscribed[slug] = true
	b.mu.Unlock()

	topic := b.cfg.TopicPrefix + "/" + slug + "/set"
	b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleCommand(slug, msg.Payload())
	})
}

func (b *Bridge) handleCommand(slug string, payload []byte) {
	b.mu.Lock()
	ref, ok := b.refs[slug]
	b.mu.Unlock()
	if !ok {
		b.logger.Warn("command for unknown device", "slug", slug)
		return
	}

	calls, err := parseCommand(ref.component, payload)
	if err != nil {
		b.logger.Warn("command rejected", "slug", slug, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, call := range calls {
		if err := b.ctrl.Dispatch(ctx, ref.gateway, ref.key, call.command, call.args); err != nil {
			b.logger.Warn("command dispatch failed",
				"slug", slug, "command", call.command, "err", err)
		}
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func deviceFromDiscovered(d controller.DeviceDiscovered) *store.Device {
	return &store.Device{
		Gateway:   d.Gateway,
		Table:     d.Key.Table,
		Device:    d.Key.Device,
		Type:      uint8(d.Type),
		Function:  d.Function,
		Instance:  d.Instance,
		Name:      d.Name,
		Component: string(d.Component),
		Slug:      d.Slug,
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
