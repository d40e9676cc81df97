package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"rvbridge/internal/bleconn"
	"rvbridge/internal/controller"
	"rvbridge/internal/gateway"
	"rvbridge/internal/store"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type GatewayConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Cypher  string `yaml:"cypher"` // per-unit auth constant, e.g. "0x8100080D"
	PIN     string `yaml:"pin"`

	HeartbeatInterval string `yaml:"heartbeat_interval"`
	StalenessWindow   string `yaml:"staleness_window"`
}

type Config struct {
	Gateways []GatewayConfig `yaml:"gateways"`
	MQTT     struct {
		Enabled         bool   `yaml:"enabled"`
		Broker          string `yaml:"broker"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		ClientID        string `yaml:"client_id"`
		TopicPrefix     string `yaml:"topic_prefix"`
		DiscoveryPrefix string `yaml:"discovery_prefix"`
		Discovery       bool   `yaml:"discovery"`
	} `yaml:"mqtt"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) validate() error {
	if len(c.Gateways) == 0 {
		return fmt.Errorf("at least one gateway is required")
	}
	seen := make(map[string]bool)
	for i, gw := range c.Gateways {
		if gw.Name == "" {
			return fmt.Errorf("gateways[%d].name is required", i)
		}
		if seen[gw.Name] {
			return fmt.Errorf("duplicate gateway name %q", gw.Name)
		}
		seen[gw.Name] = true
		if gw.Address == "" {
			return fmt.Errorf("gateway %q: address is required", gw.Name)
		}
		if _, err := parseCypher(gw.Cypher); err != nil {
			return fmt.Errorf("gateway %q: %w", gw.Name, err)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Create configured logger.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("rvbridge starting", "version", version)

	// Open store
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Create controller and replay the persisted device registry so MQTT
	// discovery is available before the first gateway comes up.
	events := controller.NewEventBus(logger)
	ctrl := controller.New(logger, events, db)

	// Start MQTT bridge (no-op when built with no_mqtt tag). It subscribes
	// to the event bus before Seed so it sees the replayed discovery.
	mqtt := initMQTT(ctrl, cfg, logger)

	if err := ctrl.Seed(); err != nil {
		logger.Error("seed device registry", "err", err)
		os.Exit(1)
	}

	// Bring up one BLE client per configured gateway.
	clients := make([]*gateway.Client, 0, len(cfg.Gateways))
	for _, gc := range cfg.Gateways {
		gwCfg, err := gatewayConfig(gc)
		if err != nil {
			logger.Error("gateway config", "gateway", gc.Name, "err", err)
			os.Exit(1)
		}
		transport := bleconn.New(logger.With("gateway", gc.Name))
		client := gateway.New(gwCfg, transport, ctrl.Handlers(gc.Name), logger)
		ctrl.AddGateway(client)
		client.Start()
		clients = append(clients, client)
		logger.Info("gateway starting", "gateway", gc.Name, "address", gc.Address)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	for _, client := range clients {
		client.Close()
	}
	mqtt.Stop()

	logger.Info("goodbye")
}

func gatewayConfig(gc GatewayConfig) (gateway.Config, error) {
	cypher, err := parseCypher(gc.Cypher)
	if err != nil {
		return gateway.Config{}, err
	}
	cfg := gateway.Config{
		Name:       gc.Name,
		Address:    gc.Address,
		Cypher:     cypher,
		PairingPIN: gc.PIN,
	}
	if gc.HeartbeatInterval != "" {
		d, err := time.ParseDuration(gc.HeartbeatInterval)
		if err != nil {
			return gateway.Config{}, fmt.Errorf("heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if gc.StalenessWindow != "" {
		d, err := time.ParseDuration(gc.StalenessWindow)
		if err != nil {
			return gateway.Config{}, fmt.Errorf("staleness_window: %w", err)
		}
		cfg.StalenessWindow = d
	}
	return cfg, nil
}

// parseCypher accepts decimal or 0x-prefixed hex, matching how the constant
// is printed on the unit's sticker.
func parseCypher(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("cypher is required")
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid cypher %q: %w", s, err)
	}
	return uint32(v), nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "rvbridge.db"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "rvbridge"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "rvbridge"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
