package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rvbridge/internal/canlink"
)

const (
	testCypher uint32 = 0x8100080D
	testSeed   uint32 = 0x12345678
)

var testSeedRaw = []byte{0x78, 0x56, 0x34, 0x12}

type fakeWrite struct {
	role Role
	data []byte
}

// fakeTransport scripts the BLE side of a session: fixed seed, configurable
// unlock answers, recorded writes, and manual notification injection.
type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	connects   int
	seedReads  int
	unlock     []byte
	writes     []fakeWrite
	subs       map[Role]func([]byte)
	writeCh    chan fakeWrite
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		unlock:  []byte{0x01},
		subs:    make(map[Role]func([]byte)),
		writeCh: make(chan fakeWrite, 64),
	}
}

func (f *fakeTransport) Connect(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) ReadCharacteristic(ctx context.Context, role Role) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch role {
	case RoleSeed:
		f.seedReads++
		return append([]byte(nil), testSeedRaw...), nil
	case RoleUnlockStatus:
		return append([]byte(nil), f.unlock...), nil
	default:
		return nil, nil
	}
}

func (f *fakeTransport) WriteCharacteristic(ctx context.Context, role Role, data []byte, withResponse bool) error {
	w := fakeWrite{role, append([]byte(nil), data...)}
	f.mu.Lock()
	f.writes = append(f.writes, w)
	f.mu.Unlock()
	select {
	case f.writeCh <- w:
	default:
	}
	return nil
}

func (f *fakeTransport) Subscribe(role Role, fn func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[role] = fn
	return nil
}

func (f *fakeTransport) Disconnect() error { return nil }

func (f *fakeTransport) notify(t *testing.T, role Role, data []byte) {
	t.Helper()
	f.mu.Lock()
	fn := f.subs[role]
	f.mu.Unlock()
	if fn == nil {
		t.Fatalf("no subscriber on role %v", role)
	}
	fn(data)
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) seedReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seedReads
}

func (f *fakeTransport) writesTo(role Role) []fakeWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeWrite
	for _, w := range f.writes {
		if w.role == role {
			out = append(out, w)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quietConfig() Config {
	return Config{
		Name:    "bedroom",
		Address: "AA:BB:CC:DD:EE:FF",
		Cypher:  testCypher,
		// Keep timers out of the way unless a test opts in.
		HeartbeatInterval: time.Hour,
		ReconnectMin:      time.Hour,
		ReconnectMax:      time.Hour,
	}
}

type testHarness struct {
	client   *Client
	statusCh chan Status
	eventCh  chan *canlink.Event
	tableCh  chan *canlink.DeviceTableResponse
}

func newHarness(t *testing.T, ft *fakeTransport, cfg Config) *testHarness {
	t.Helper()
	h := &testHarness{
		statusCh: make(chan Status, 64),
		eventCh:  make(chan *canlink.Event, 16),
		tableCh:  make(chan *canlink.DeviceTableResponse, 16),
	}
	handlers := Handlers{
		Event:        func(ev *canlink.Event) { h.eventCh <- ev },
		DeviceTable:  func(r *canlink.DeviceTableResponse) { h.tableCh <- r },
		StatusChange: func(s Status) { h.statusCh <- s },
	}
	h.client = New(cfg, ft, handlers, testLogger())
	t.Cleanup(h.client.Close)
	return h
}

func (h *testHarness) waitState(t *testing.T, want State) Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.statusCh:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v (current %v)", want, h.client.State())
		}
	}
}

func mustFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	frame, err := canlink.EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return frame
}

func TestHandshakeReachesActive(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	h.client.Start()

	st := h.waitState(t, StateActive)
	if !st.Connected || !st.Authenticated {
		t.Errorf("active status = %+v, want connected and authenticated", st)
	}

	keyWrites := ft.writesTo(RoleKey)
	if len(keyWrites) != 1 {
		t.Fatalf("got %d key writes, want 1", len(keyWrites))
	}
	wantKey := canlink.PackKey(canlink.DeriveKey(testCypher, testSeed))
	if !bytes.Equal(keyWrites[0].data, wantKey) {
		t.Errorf("key write = % X, want % X", keyWrites[0].data, wantKey)
	}

	ft.mu.Lock()
	_, dataSub := ft.subs[RoleDataRead]
	_, authSub := ft.subs[RoleAuthStatus]
	ft.mu.Unlock()
	if !dataSub || !authSub {
		t.Errorf("subscriptions: data=%v auth=%v, want both", dataSub, authSub)
	}
}

func TestHandshakeRetriesAreBounded(t *testing.T) {
	ft := newFakeTransport()
	ft.unlock = []byte{0x00} // gateway never accepts the key

	cfg := quietConfig()
	cfg.HandshakeAttempts = 2
	h := newHarness(t, ft, cfg)
	h.client.Start()

	h.waitState(t, StateKeyWritten)
	h.waitState(t, StateDisconnected)

	if got := ft.seedReadCount(); got != 2 {
		t.Errorf("seed read %d times, want exactly %d handshake attempts", got, 2)
	}
	if got := ft.connectCount(); got != 1 {
		t.Errorf("connected %d times, want 1 (backoff pending)", got)
	}
}

func TestStaleBondIsTerminal(t *testing.T) {
	ft := newFakeTransport()
	ft.connectErr = ErrStaleBond

	cfg := quietConfig()
	cfg.ReconnectMin = time.Millisecond
	cfg.ReconnectMax = time.Millisecond
	h := newHarness(t, ft, cfg)
	h.client.Start()

	st := h.waitState(t, StateStaleBond)
	if st.Connected || st.Authenticated {
		t.Errorf("stale bond status = %+v, want neither connected nor authenticated", st)
	}

	// With a millisecond backoff any retry would land well inside this
	// window. None may happen: the bond is stale until the user re-pairs.
	time.Sleep(50 * time.Millisecond)
	if got := ft.connectCount(); got != 1 {
		t.Errorf("connected %d times after stale bond, want 1", got)
	}
}

func TestDataHealthyFlipsOnSilence(t *testing.T) {
	ft := newFakeTransport()
	cfg := quietConfig()
	cfg.StalenessWindow = 24 * time.Second
	h := newHarness(t, ft, cfg)

	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	h.client.now = clk.Now
	h.client.Start()
	h.waitState(t, StateActive)

	if h.client.Status().DataHealthy {
		t.Fatal("DataHealthy before any event, want false")
	}

	payload := []byte{byte(canlink.EventRelayLatchingStatus1), 0x00, 0x01, 0x01}
	ft.notify(t, RoleDataRead, mustFrame(t, payload))
	<-h.eventCh

	if !h.client.Status().DataHealthy {
		t.Fatal("DataHealthy after fresh event, want true")
	}

	clk.Advance(23 * time.Second)
	if !h.client.Status().DataHealthy {
		t.Error("DataHealthy inside the staleness window, want true")
	}

	clk.Advance(2 * time.Second)
	st := h.client.Status()
	if st.DataHealthy {
		t.Error("DataHealthy past the staleness window, want false")
	}
	if st.State != StateActive {
		t.Errorf("state = %v, want still active: staleness is a health flag, not a disconnect", st.State)
	}
}

func TestNotificationDispatch(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	h.client.Start()
	h.waitState(t, StateActive)

	// Device table response: id 1, GetDevicesMetadata, table 0, one relay
	// with function code 41.
	tablePayload := []byte{0x01, 0x00, 0x02, 0x00, 0x01, 0x03, 0x29, 0x00, 0x00}
	ft.notify(t, RoleDataRead, mustFrame(t, tablePayload))

	select {
	case resp := <-h.tableCh:
		if len(resp.Entries) != 1 || resp.Entries[0].Function != 41 {
			t.Errorf("table response = %+v, want one entry with function 41", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device table handler never fired")
	}

	// A corrupt frame and an unknown event type are both dropped silently.
	corrupt := mustFrame(t, []byte{byte(canlink.EventRelayLatchingStatus1), 0x00, 0x01, 0x01})
	corrupt[1] ^= 0x10
	ft.notify(t, RoleDataRead, corrupt)
	ft.notify(t, RoleDataRead, mustFrame(t, []byte{0x7E, 0x00, 0x01}))

	// A real event after the garbage proves the pump survived it.
	ft.notify(t, RoleDataRead, mustFrame(t, []byte{byte(canlink.EventTemperatureSensorStatus), 0x00, 0x02, 0x6A}))

	select {
	case ev := <-h.eventCh:
		if ev.Type != canlink.EventTemperatureSensorStatus {
			t.Errorf("event type = %v, want temperature status", ev.Type)
		}
		if temp := ev.Records[0].(canlink.TemperatureStatus); temp.TempF != 66 {
			t.Errorf("TempF = %d, want 66", temp.TempF)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event handler never fired after dropped frames")
	}

	select {
	case ev := <-h.eventCh:
		t.Errorf("unexpected extra event %+v: corrupt or unknown frames leaked through", ev)
	default:
	}
}

func TestGatewayInfoCaptured(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	h.client.Start()
	h.waitState(t, StateActive)

	ft.notify(t, RoleDataRead, mustFrame(t, []byte{byte(canlink.EventGatewayInformation), 0x00, 0x02, 0x01, 0x04, 0x09}))
	<-h.eventCh

	info := h.client.Status().Info
	if info == nil {
		t.Fatal("Status().Info is nil after gateway information event")
	}
	if got := info.String(); got != "fw 1.4.9 (protocol 2)" {
		t.Errorf("info = %q, want %q", got, "fw 1.4.9 (protocol 2)")
	}
}

func TestHeartbeatTraffic(t *testing.T) {
	ft := newFakeTransport()
	cfg := quietConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	h := newHarness(t, ft, cfg)
	h.client.Start()
	h.waitState(t, StateActive)

	var hb fakeWrite
	deadline := time.After(2 * time.Second)
	for hb.data == nil {
		select {
		case w := <-ft.writeCh:
			if w.role == RoleDataWrite {
				hb = w
			}
		case <-deadline:
			t.Fatal("no heartbeat write observed")
		}
	}

	if hb.data[0] != canlink.FrameDelimiter {
		t.Errorf("write starts with 0x%02X, want leading delimiter", hb.data[0])
	}
	payload, err := canlink.DecodeFrame(hb.data[1:])
	if err != nil {
		t.Fatalf("heartbeat frame does not decode: %v", err)
	}
	if payload[2] != byte(canlink.CmdGetDevices) {
		t.Errorf("heartbeat command type = 0x%02X, want GetDevices", payload[2])
	}
}

func TestSendCommandFramesPayload(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	h.client.Start()
	h.waitState(t, StateActive)

	cmd, err := canlink.BuildActionSwitch(h.client.IDs().Next(), 0x02, true, []uint8{0x05})
	if err != nil {
		t.Fatalf("BuildActionSwitch: %v", err)
	}
	if err := h.client.SendCommand(context.Background(), cmd); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	writes := ft.writesTo(RoleDataWrite)
	if len(writes) == 0 {
		t.Fatal("no data write recorded")
	}
	last := writes[len(writes)-1].data
	if last[0] != canlink.FrameDelimiter {
		t.Errorf("write starts with 0x%02X, want leading delimiter", last[0])
	}
	payload, err := canlink.DecodeFrame(last[1:])
	if err != nil {
		t.Fatalf("sent frame does not decode: %v", err)
	}
	if !bytes.Equal(payload, cmd) {
		t.Errorf("decoded payload = % X, want % X", payload, cmd)
	}
}

func TestSendCommandRejectsUnauthenticated(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	// Not started: state is Disconnected.
	cmd := canlink.BuildGetDevices(1, 0, 0, 0xFF)
	if err := h.client.SendCommand(context.Background(), cmd); err == nil {
		t.Fatal("SendCommand before authentication succeeded, want error")
	}
	if len(ft.writesTo(RoleDataWrite)) != 0 {
		t.Error("unauthenticated SendCommand reached the transport")
	}
}

func TestAuthRevocationEndsSession(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	h.client.Start()
	h.waitState(t, StateActive)

	ft.notify(t, RoleAuthStatus, []byte{0x00})
	h.waitState(t, StateDisconnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	h := newHarness(t, ft, quietConfig())
	h.client.Start()
	h.waitState(t, StateActive)

	h.client.Close()
	h.client.Close()

	if got := h.client.State(); got != StateDisconnected {
		t.Errorf("state after close = %v, want disconnected", got)
	}
}
