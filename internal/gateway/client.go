// Package gateway maintains one authenticated session per BLE gateway: the
// unlock handshake, notification decoding, heartbeat, staleness tracking,
// and reconnect policy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rvbridge/internal/canlink"
)

// State is the connection lifecycle position. Every state can fall back to
// Disconnected; StaleBond is terminal until the operator re-pairs.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateServicesReady
	StateSeedRequested
	StateKeyWritten
	StateAuthenticated
	StateSubscribed
	StateActive
	StateStaleBond
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateServicesReady:
		return "services_ready"
	case StateSeedRequested:
		return "seed_requested"
	case StateKeyWritten:
		return "key_written"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	case StateStaleBond:
		return "stale_bond"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is an immutable health snapshot of one gateway session.
type Status struct {
	State         State
	Connected     bool
	Authenticated bool
	DataHealthy   bool
	LastEvent     time.Time
	Info          *canlink.GatewayInfo
}

// Config describes one gateway. Cypher is the static unlock secret; the
// pairing PIN is carried for the platform pairing dialog only and never
// touches the protocol.
type Config struct {
	Name       string
	Address    string
	Cypher     uint32
	PairingPIN string

	// HeartbeatInterval must stay well under the gateway's ~17 s idle
	// disconnect window. The peer drops the link on silence.
	HeartbeatInterval time.Duration
	// StalenessWindow bounds how long Active may go without a decoded
	// status event before DataHealthy flips false.
	StalenessWindow time.Duration
	// StepTimeout bounds each individual handshake step.
	StepTimeout time.Duration
	// HandshakeAttempts bounds full handshake retries per connection.
	HandshakeAttempts int
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration
}

const (
	defaultHeartbeatInterval = 8 * time.Second
	defaultStepTimeout       = 5 * time.Second
	defaultHandshakeAttempts = 3
	defaultReconnectMin      = time.Second
	defaultReconnectMax      = 60 * time.Second

	// unlockedByte is the UNLOCK_STATUS value after a correct key write.
	unlockedByte = 0x01

	// notifyDepth bounds the raw notification backlog. Chunks beyond it are
	// dropped so the transport's delivery thread never blocks.
	notifyDepth = 32

	// heartbeatSweepCount asks for every device in the table so the reply
	// doubles as a presence refresh.
	heartbeatSweepCount = 0xFF
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = defaultHeartbeatInterval
	}
	if out.StalenessWindow <= 0 {
		out.StalenessWindow = 3 * out.HeartbeatInterval
	}
	if out.StepTimeout <= 0 {
		out.StepTimeout = defaultStepTimeout
	}
	if out.HandshakeAttempts <= 0 {
		out.HandshakeAttempts = defaultHandshakeAttempts
	}
	if out.ReconnectMin <= 0 {
		out.ReconnectMin = defaultReconnectMin
	}
	if out.ReconnectMax < out.ReconnectMin {
		out.ReconnectMax = defaultReconnectMax
	}
	return out
}

// Handlers receive decoded traffic and state transitions. All callbacks run
// on the client's decode goroutine and must not block for long.
type Handlers struct {
	Event        func(*canlink.Event)
	DeviceTable  func(*canlink.DeviceTableResponse)
	StatusChange func(Status)
}

// Client owns one gateway connection end to end.
type Client struct {
	cfg       Config
	transport Transport
	handlers  Handlers
	logger    *slog.Logger
	ids       *canlink.IDSequence
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	lastEvent time.Time
	info      *canlink.GatewayInfo

	// writeMu serializes writes: the transport tolerates exactly one
	// in-flight write request.
	writeMu sync.Mutex

	notifyCh    chan []byte
	sessionFail chan error

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a client for one gateway. Call Start to begin connecting.
func New(cfg Config, transport Transport, handlers Handlers, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:         cfg.withDefaults(),
		transport:   transport,
		handlers:    handlers,
		logger:      logger.With("component", "gateway", "gateway", cfg.Name),
		ids:         canlink.NewIDSequence(),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		notifyCh:    make(chan []byte, notifyDepth),
		sessionFail: make(chan error, 1),
	}
}

// Name returns the configured gateway name.
func (c *Client) Name() string { return c.cfg.Name }

// IDs returns the command id sequence shared by every sender on this
// connection.
func (c *Client) IDs() *canlink.IDSequence { return c.ids }

// Start launches the connect/reconnect loop and the decode pump.
func (c *Client) Start() {
	c.wg.Add(2)
	go c.run()
	go c.pump()
}

// Close tears the session down: cancels the handshake, heartbeat, and
// reconnect backoff, releases the transport, and waits for both goroutines.
// Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if err := c.transport.Disconnect(); err != nil {
			c.logger.Debug("disconnect on close", "err", err)
		}
	})
	c.wg.Wait()
}

// Status returns the current health snapshot. DataHealthy derives from the
// clock, not from callbacks: an Active session that has decoded no status
// event within the staleness window reports unhealthy even though the
// transport never signalled a disconnect.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:     c.state,
		LastEvent: c.lastEvent,
		Info:      c.info,
	}
	st.Connected = c.state >= StateConnected && c.state <= StateActive
	st.Authenticated = c.state >= StateAuthenticated && c.state <= StateActive
	st.DataHealthy = c.state == StateActive &&
		!c.lastEvent.IsZero() &&
		c.now().Sub(c.lastEvent) <= c.cfg.StalenessWindow
	return st
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendCommand frames payload and writes it to the gateway. Writes are
// serialized; callers bound the wait with ctx.
func (c *Client) SendCommand(ctx context.Context, payload []byte) error {
	if st := c.State(); st < StateAuthenticated || st > StateActive {
		return fmt.Errorf("gateway %s: not authenticated (state %s)", c.cfg.Name, st)
	}
	frame, err := canlink.EncodeFrame(payload)
	if err != nil {
		return err
	}
	// Leading delimiter resynchronizes the gateway's parser mid-stream.
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, canlink.FrameDelimiter)
	buf = append(buf, frame...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.WriteCharacteristic(ctx, RoleDataWrite, buf, false)
}

// --- connect / reconnect loop ---

func (c *Client) run() {
	defer c.wg.Done()

	backoff := c.cfg.ReconnectMin
	for {
		reachedActive, err := c.session()
		if derr := c.transport.Disconnect(); derr != nil {
			c.logger.Debug("disconnect after session", "err", derr)
		}

		if c.ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if errors.Is(err, ErrStaleBond) {
			// The remote forgot the pairing keys. Retrying reconnects into
			// the same failure; surface it and stop.
			c.logger.Error("stale bond: gateway must be re-paired before reconnecting",
				"pairing_pin", c.cfg.PairingPIN)
			c.setState(StateStaleBond)
			return
		}
		c.setState(StateDisconnected)
		if err != nil {
			c.logger.Warn("session ended", "err", err)
		}

		if reachedActive {
			backoff = c.cfg.ReconnectMin
		}
		select {
		case <-time.After(backoff):
		case <-c.ctx.Done():
			return
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// session runs one connection from dial to teardown. It reports whether the
// session reached Active (resets the reconnect backoff) and why it ended.
func (c *Client) session() (bool, error) {
	drainFail(c.sessionFail)

	err := c.step(func(sc context.Context) error {
		return c.transport.Connect(sc, c.cfg.Address)
	})
	if err != nil {
		return false, fmt.Errorf("connect %s: %w", c.cfg.Address, err)
	}
	c.setState(StateConnected)
	// The transport resolves services and characteristics inside Connect.
	c.setState(StateServicesReady)

	var hsErr error
	for attempt := 1; attempt <= c.cfg.HandshakeAttempts; attempt++ {
		if hsErr = c.handshake(); hsErr == nil {
			break
		}
		if c.ctx.Err() != nil {
			return false, hsErr
		}
		c.logger.Warn("handshake attempt failed", "attempt", attempt, "err", hsErr)
	}
	if hsErr != nil {
		return false, fmt.Errorf("handshake exhausted %d attempts: %w", c.cfg.HandshakeAttempts, hsErr)
	}

	if err := c.transport.Subscribe(RoleDataRead, c.onNotify); err != nil {
		return false, fmt.Errorf("subscribe data: %w", err)
	}
	if err := c.transport.Subscribe(RoleAuthStatus, c.onAuthStatus); err != nil {
		return false, fmt.Errorf("subscribe auth status: %w", err)
	}
	c.setState(StateSubscribed)
	c.setState(StateActive)
	c.logger.Info("session active", "address", c.cfg.Address)

	return true, c.heartbeatLoop()
}

// handshake performs the challenge/response unlock: read seed, derive key,
// write key, confirm unlock. One failed step fails the whole handshake — the
// client never lingers half-authenticated.
func (c *Client) handshake() error {
	c.setState(StateSeedRequested)
	var seedRaw []byte
	err := c.step(func(sc context.Context) error {
		var e error
		seedRaw, e = c.transport.ReadCharacteristic(sc, RoleSeed)
		return e
	})
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	seed, err := canlink.UnpackSeed(seedRaw)
	if err != nil {
		return err
	}

	key := canlink.DeriveKey(c.cfg.Cypher, seed)
	c.logger.Debug("answering challenge", "seed", fmt.Sprintf("0x%08X", seed))
	err = c.step(func(sc context.Context) error {
		return c.transport.WriteCharacteristic(sc, RoleKey, canlink.PackKey(key), true)
	})
	if err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	c.setState(StateKeyWritten)

	var unlock []byte
	err = c.step(func(sc context.Context) error {
		var e error
		unlock, e = c.transport.ReadCharacteristic(sc, RoleUnlockStatus)
		return e
	})
	if err != nil {
		return fmt.Errorf("read unlock status: %w", err)
	}
	if len(unlock) == 0 || unlock[0] != unlockedByte {
		return fmt.Errorf("gateway refused key: unlock status % X", unlock)
	}
	c.setState(StateAuthenticated)
	return nil
}

// step bounds one blocking handshake operation with the per-step timeout.
func (c *Client) step(fn func(context.Context) error) error {
	sc, cancel := context.WithTimeout(c.ctx, c.cfg.StepTimeout)
	defer cancel()
	return fn(sc)
}

// heartbeatLoop keeps the link alive until the session fails or the client
// closes. A tick that fires after the state already left Active is a no-op.
func (c *Client) heartbeatLoop() error {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.State() != StateActive {
				return nil
			}
			if err := c.sendHeartbeat(); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		case err := <-c.sessionFail:
			return err
		case <-c.ctx.Done():
			return nil
		}
	}
}

// sendHeartbeat issues a cheap GetDevices sweep. Its only job is traffic:
// the gateway drops idle links after roughly 17 seconds.
func (c *Client) sendHeartbeat() error {
	sc, cancel := context.WithTimeout(c.ctx, c.cfg.StepTimeout)
	defer cancel()
	return c.SendCommand(sc, canlink.BuildGetDevices(c.ids.Next(), 0, 0, heartbeatSweepCount))
}

// --- notification path ---

// onNotify runs on the transport's delivery goroutine; it must return
// immediately. Chunks land in a bounded channel for the decode pump.
func (c *Client) onNotify(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	select {
	case c.notifyCh <- chunk:
	default:
		c.logger.Warn("notification dropped: decode backlog full", "len", len(data))
	}
}

// onAuthStatus watches for the gateway revoking the session mid-flight.
func (c *Client) onAuthStatus(data []byte) {
	if len(data) > 0 && data[0] == unlockedByte {
		return
	}
	c.logger.Warn("gateway revoked authentication", "status", fmt.Sprintf("% X", data))
	select {
	case c.sessionFail <- errors.New("gateway revoked authentication"):
	default:
	}
}

func (c *Client) pump() {
	defer c.wg.Done()
	var deframer canlink.Deframer
	for {
		select {
		case chunk := <-c.notifyCh:
			frames, err := deframer.Push(chunk)
			if err != nil {
				c.logger.Warn("notification stream desynced", "err", err)
			}
			for _, body := range frames {
				c.handleFrame(body)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// handleFrame decodes one deframed body. Integrity failures and unknown
// protocol elements are dropped here with a log line; they never terminate
// the session.
func (c *Client) handleFrame(body []byte) {
	payload, err := canlink.DecodeFrame(body)
	if err != nil {
		c.logger.Warn("frame dropped", "err", err, "frame", fmt.Sprintf("%X", body))
		return
	}

	if canlink.IsCommandResponse(payload) {
		resp, err := canlink.DecodeDeviceTableResponse(payload)
		if err != nil {
			c.logger.Warn("command response dropped", "err", err, "payload", fmt.Sprintf("%X", payload))
			return
		}
		if resp.Truncated > 0 {
			c.logger.Warn("device table response truncated", "bytes", resp.Truncated)
		}
		if c.handlers.DeviceTable != nil {
			c.handlers.DeviceTable(resp)
		}
		return
	}

	ev, err := canlink.DecodeEvent(payload)
	if err != nil {
		if errors.Is(err, canlink.ErrUnknownEvent) {
			c.logger.Debug("unknown event ignored", "payload", fmt.Sprintf("%X", payload))
		} else {
			c.logger.Warn("event dropped", "err", err, "payload", fmt.Sprintf("%X", payload))
		}
		return
	}
	if ev.Truncated > 0 {
		c.logger.Warn("event truncated", "type", ev.Type.String(), "bytes", ev.Truncated)
	}

	c.mu.Lock()
	c.lastEvent = c.now()
	if ev.Info != nil {
		c.info = ev.Info
	}
	c.mu.Unlock()

	if c.handlers.Event != nil {
		c.handlers.Event(ev)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("state transition", "state", s.String())
	if c.handlers.StatusChange != nil {
		c.handlers.StatusChange(c.Status())
	}
}

func drainFail(ch chan error) {
	select {
	case <-ch:
	default:
	}
}
