package orchestrator

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/longregen/alicia-edge/internal/adapters/retry"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/ports"
	"github.com/longregen/alicia-edge/internal/protocol"
)

type sentBinary struct {
	data []byte
	kind domain.FragmentKind
}

// fakeTransport records every call. Tests drive the connection through
// connectNow and dropNow.
type fakeTransport struct {
	mu          sync.Mutex
	callbacks   ports.TransportCallbacks
	connected   bool
	connects    []ports.ConnectInfo
	disconnects int
	heartbeat   time.Duration
	texts       [][]byte
	binaries    []sentBinary
}

func (f *fakeTransport) Connect(info ports.ConnectInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return domain.ErrAlreadyConnected
	}
	f.connects = append(f.connects, info)
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SetHeartbeat(interval time.Duration) {
	f.mu.Lock()
	f.heartbeat = interval
	f.mu.Unlock()
}

func (f *fakeTransport) SendText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return domain.ErrNotConnected
	}
	f.texts = append(f.texts, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) SendBinary(data []byte, kind domain.FragmentKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return domain.ErrNotConnected
	}
	f.binaries = append(f.binaries, sentBinary{data: append([]byte(nil), data...), kind: kind})
	return nil
}

func (f *fakeTransport) connectNow() {
	f.mu.Lock()
	f.connected = true
	cb := f.callbacks
	f.mu.Unlock()
	cb.OnConnected()
}

func (f *fakeTransport) dropNow(err error) {
	f.mu.Lock()
	f.connected = false
	cb := f.callbacks
	f.mu.Unlock()
	cb.OnDisconnected(err)
}

func (f *fakeTransport) receive(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f.mu.Lock()
	cb := f.callbacks
	f.mu.Unlock()
	cb.OnText(data)
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connects)
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type sentEvent struct {
	Header  protocol.Header `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

func (f *fakeTransport) events(t *testing.T) []sentEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]sentEvent, 0, len(f.texts))
	for _, text := range f.texts {
		var ev sentEvent
		require.NoError(t, json.Unmarshal(text, &ev))
		events = append(events, ev)
	}
	return events
}

func (f *fakeTransport) eventNames(t *testing.T) []string {
	var names []string
	for _, ev := range f.events(t) {
		names = append(names, ev.Header.Namespace+"."+ev.Header.Name)
	}
	return names
}

func (f *fakeTransport) sentBinaries() []sentBinary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentBinary(nil), f.binaries...)
}

type fakeVendor struct {
	bizType, bizGroup, bizSecret string
	mac                          string
	uuid, token                  string
	volume                       int
	muted                        bool
}

func (v *fakeVendor) BizType() string             { return v.bizType }
func (v *fakeVendor) BizGroup() string            { return v.bizGroup }
func (v *fakeVendor) BizSecret() string           { return v.bizSecret }
func (v *fakeVendor) CACert() []byte              { return nil }
func (v *fakeVendor) MACAddr() string             { return v.mac }
func (v *fakeVendor) UUID() string                { return v.uuid }
func (v *fakeVendor) AccessToken() string         { return v.token }
func (v *fakeVendor) SpeakerVolume() int          { return v.volume }
func (v *fakeVendor) SpeakerMuted() bool          { return v.muted }
func (v *fakeVendor) SetSpeakerVolume(n int) bool { v.volume = n; return true }
func (v *fakeVendor) SetSpeakerMuted(m bool) bool { v.muted = m; return true }

type fixedIDs struct{}

func (fixedIDs) GenerateMessageID() string { return "em_test" }
func (fixedIDs) GenerateDialogID() string  { return "ed_test" }

type statusRecorder struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (r *statusRecorder) OnStatus(status domain.Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, status)
	r.mu.Unlock()
}

func (r *statusRecorder) all() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Status(nil), r.statuses...)
}

func (r *statusRecorder) has(status domain.Status) bool {
	for _, s := range r.all() {
		if s == status {
			return true
		}
	}
	return false
}

type commandRecorder struct {
	mu       sync.Mutex
	commands []*protocol.Command
}

func (r *commandRecorder) OnCommand(cmd *protocol.Command) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
}

func (r *commandRecorder) all() []*protocol.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*protocol.Command(nil), r.commands...)
}

const (
	testUUID  = "0a1b2c3d-0000-4000-8000-00000000beef"
	testToken = "feedface-1111-2222-3333-444455556666"
)

func testConfig() Config {
	return Config{
		GatewayURL:         "ws://gateway.test/websocket",
		Heartbeat:          20 * time.Second,
		Reconnect:          retry.ReconnectPolicy{Interval: time.Second, MaxAttempts: 5},
		MicrophoneWatchdog: time.Second,
	}
}

type harness struct {
	svc       *Service
	transport *fakeTransport
	statuses  *statusRecorder
	commands  *commandRecorder
}

func newHarness(t *testing.T, cfg Config, vendor *fakeVendor) *harness {
	t.Helper()
	ft := &fakeTransport{}
	factory := func(cb ports.TransportCallbacks) ports.Transport {
		ft.callbacks = cb
		return ft
	}
	svc, err := New(cfg, vendor, fixedIDs{}, factory)
	require.NoError(t, err)

	h := &harness{svc: svc, transport: ft, statuses: &statusRecorder{}, commands: &commandRecorder{}}
	_, err = svc.AddStatusListener(h.statuses)
	require.NoError(t, err)
	_, err = svc.AddCommandListener(h.commands)
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return h
}

// online reports the network up and completes the gateway handshake.
func (h *harness) online(t *testing.T) {
	t.Helper()
	h.svc.OnNetworkConnected()
	require.Eventually(t, func() bool { return h.transport.connectCount() > 0 }, time.Second, 5*time.Millisecond)
	h.transport.connectNow()
}

// active brings a device with stored credentials online and waits for the
// state sync.
func (h *harness) active(t *testing.T) {
	t.Helper()
	h.online(t)
	h.waitEvents(t, 1)
	require.True(t, h.svc.IsActive())
}

func (h *harness) waitEvents(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.transport.events(t)) >= n },
		time.Second, 5*time.Millisecond, "expected %d events", n)
}

func authorizedVendor() *fakeVendor {
	return &fakeVendor{mac: "AA:BB:CC:DD:EE:01", uuid: testUUID, token: testToken, volume: 50}
}

func guestVendor() *fakeVendor {
	return &fakeVendor{mac: "aa:bb:cc:dd:ee:01", volume: 50}
}
