package application

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/longregen/alicia-edge/internal/adapters/player"
	"github.com/longregen/alicia-edge/internal/adapters/retry"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/orchestrator"
	"github.com/longregen/alicia-edge/internal/playback"
	"github.com/longregen/alicia-edge/internal/ports"
	"github.com/longregen/alicia-edge/internal/protocol"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond

	testUUID  = "0a1b2c3d-0000-4000-8000-00000000beef"
	testToken = "feedface-1111-2222-3333-444455556666"
)

func testPrompts() Prompts {
	return Prompts{
		Wakeup:       "file:///prompts/wakeup.mp3",
		Record:       "file:///prompts/record.mp3",
		NetworkLost:  "file:///prompts/network_lost.mp3",
		ServerLost:   "file:///prompts/server_lost.mp3",
		Unauthorized: "file:///prompts/unauthorized.mp3",
		NotActivated: "file:///prompts/not_activated.mp3",
	}
}

// fakeTransport is connected by the test through connectNow.
type fakeTransport struct {
	mu        sync.Mutex
	callbacks ports.TransportCallbacks
	connected bool
	connects  int
	texts     [][]byte
}

func (f *fakeTransport) Connect(ports.ConnectInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return domain.ErrAlreadyConnected
	}
	f.connects++
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SetHeartbeat(time.Duration) {}

func (f *fakeTransport) SendText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return domain.ErrNotConnected
	}
	f.texts = append(f.texts, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) SendBinary([]byte, domain.FragmentKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return domain.ErrNotConnected
	}
	return nil
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) cb() ports.TransportCallbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks
}

func (f *fakeTransport) connectNow() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.cb().OnConnected()
}

func (f *fakeTransport) dropNow(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.cb().OnDisconnected(err)
}

func (f *fakeTransport) receive(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f.cb().OnText(data)
}

func (f *fakeTransport) eventNames(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.texts))
	for _, text := range f.texts {
		var ev struct {
			Header protocol.Header `json:"header"`
		}
		require.NoError(t, json.Unmarshal(text, &ev))
		names = append(names, ev.Header.Namespace+"."+ev.Header.Name)
	}
	return names
}

type fakeVendor struct {
	mu          sync.Mutex
	mac         string
	uuid, token string
	volume      int
	muted       bool
}

func (v *fakeVendor) BizType() string   { return "" }
func (v *fakeVendor) BizGroup() string  { return "" }
func (v *fakeVendor) BizSecret() string { return "" }
func (v *fakeVendor) CACert() []byte    { return nil }
func (v *fakeVendor) MACAddr() string   { return v.mac }
func (v *fakeVendor) UUID() string      { return v.uuid }
func (v *fakeVendor) AccessToken() string {
	return v.token
}

func (v *fakeVendor) SpeakerVolume() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *fakeVendor) SpeakerMuted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.muted
}

func (v *fakeVendor) SetSpeakerVolume(n int) bool {
	if n < 0 || n > 100 {
		return false
	}
	v.mu.Lock()
	v.volume = n
	v.mu.Unlock()
	return true
}

func (v *fakeVendor) SetSpeakerMuted(m bool) bool {
	v.mu.Lock()
	v.muted = m
	v.mu.Unlock()
	return true
}

type memoryCreds struct {
	mu     sync.Mutex
	saved  []domain.Credentials
	clears int
}

func (m *memoryCreds) Load() (domain.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return domain.Credentials{}, domain.ErrNotFound
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memoryCreds) Save(c domain.Credentials) error {
	m.mu.Lock()
	m.saved = append(m.saved, c)
	m.mu.Unlock()
	return nil
}

func (m *memoryCreds) Clear() error {
	m.mu.Lock()
	m.saved = nil
	m.clears++
	m.mu.Unlock()
	return nil
}

func (m *memoryCreds) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *memoryCreds) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// recordingEngine runs the simulated engine and remembers every data source
// and TTS byte count handed to it.
type recordingEngine struct {
	engine *player.Engine

	mu      sync.Mutex
	sources []string
	written int
}

func (e *recordingEngine) Create(stream models.Stream) (ports.Player, error) {
	p, err := e.engine.Create(stream)
	if err != nil {
		return nil, err
	}
	return &recordingPlayer{Player: p, engine: e}, nil
}

func (e *recordingEngine) played(url string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.sources {
		if s == url {
			return true
		}
	}
	return false
}

func (e *recordingEngine) bytesWritten() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

type recordingPlayer struct {
	ports.Player
	engine *recordingEngine
}

func (p *recordingPlayer) SetDataSource(url string) error {
	p.engine.mu.Lock()
	p.engine.sources = append(p.engine.sources, url)
	p.engine.mu.Unlock()
	return p.Player.SetDataSource(url)
}

func (p *recordingPlayer) Write(data []byte, final bool) error {
	p.engine.mu.Lock()
	p.engine.written += len(data)
	p.engine.mu.Unlock()
	return p.Player.Write(data, final)
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

func (r *commandRecorder) has(d protocol.Domain, name protocol.CommandName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commands {
		if c.Is(d, name) {
			return true
		}
	}
	return false
}

type harness struct {
	assistant *Assistant
	transport *fakeTransport
	vendor    *fakeVendor
	creds     *memoryCreds
	engine    *recordingEngine
	commands  *commandRecorder
}

func fastPlayer() player.Config {
	return player.Config{
		PromptDuration: 30 * time.Millisecond,
		MusicDuration:  150 * time.Millisecond,
		NearlyLead:     50 * time.Millisecond,
		TTSByteRate:    1000,
	}
}

func newHarness(t *testing.T, vendor *fakeVendor) *harness {
	t.Helper()
	return newHarnessWith(t, vendor, fastPlayer())
}

func newHarnessWith(t *testing.T, vendor *fakeVendor, playerConfig player.Config) *harness {
	t.Helper()

	ft := &fakeTransport{}
	factory := func(cb ports.TransportCallbacks) ports.Transport {
		ft.callbacks = cb
		return ft
	}
	session, err := orchestrator.New(orchestrator.Config{
		GatewayURL:         "ws://gateway.test/websocket",
		Heartbeat:          20 * time.Second,
		Reconnect:          retry.ReconnectPolicy{Interval: time.Second, MaxAttempts: 5},
		MicrophoneWatchdog: time.Second,
	}, vendor, fixedIDs{}, factory)
	require.NoError(t, err)

	engine := &recordingEngine{engine: player.NewEngine(playerConfig)}
	arbiter, err := playback.New(engine, playback.Config{
		TTSFrameTimeout: time.Second,
		ResumeGrace:     20 * time.Millisecond,
	})
	require.NoError(t, err)

	creds := &memoryCreds{}
	cfg := DefaultConfig()
	cfg.Prompts = testPrompts()
	a, err := New(cfg, session, arbiter, vendor, creds)
	require.NoError(t, err)

	h := &harness{assistant: a, transport: ft, vendor: vendor, creds: creds, engine: engine, commands: &commandRecorder{}}
	_, err = session.AddCommandListener(h.commands)
	require.NoError(t, err)

	require.NoError(t, a.Start())
	t.Cleanup(a.Close)
	return h
}

// online reports the network up and completes the gateway handshake.
func (h *harness) online(t *testing.T) {
	t.Helper()
	h.assistant.NetworkConnected()
	require.Eventually(t, func() bool { return h.transport.connectCount() > 0 }, waitFor, tick)
	h.transport.connectNow()
}

// active brings an activated device online and waits for the state sync.
func (h *harness) active(t *testing.T) {
	t.Helper()
	h.online(t)
	require.Eventually(t, h.assistant.IsActive, waitFor, tick)
	require.Eventually(t, func() bool { return !h.assistant.Status().GatewayDisconnected }, waitFor, tick)
}

func (h *harness) hasEvent(t *testing.T, name string) bool {
	for _, n := range h.transport.eventNames(t) {
		if n == name {
			return true
		}
	}
	return false
}

type fixedIDs struct{}

func (fixedIDs) GenerateMessageID() string { return "em_test" }
func (fixedIDs) GenerateDialogID() string  { return "ed_test" }

func activatedVendor() *fakeVendor {
	return &fakeVendor{mac: "aa:bb:cc:dd:ee:01", uuid: testUUID, token: testToken, volume: 50}
}

func guestVendor() *fakeVendor {
	return &fakeVendor{mac: "aa:bb:cc:dd:ee:01", volume: 50}
}
