// Package orchestrator keeps the device session with the cloud gateway: it
// connects and reconnects the websocket, activates the account, streams the
// microphone and reports speaker and player changes as protocol events.
//
// Producers (network, microphone, speaker, player and user input) call the
// On* methods from any goroutine. They only update session flags and post to
// the service looper; every event is sent from the looper goroutine, in order.
package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/alicia-edge/internal/adapters/retry"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/looper"
	"github.com/longregen/alicia-edge/internal/ports"
	"github.com/longregen/alicia-edge/internal/protocol"
	"github.com/longregen/alicia-edge/pkg/otel"
)

// Looper message tags. Tags below whatSpeakerChanged are never deferred.
const (
	whatWSConnected = iota
	whatWSDisconnected
	whatAuthorized
	whatUnauthorized
	whatMicStarted
	whatMicStreaming
	whatMicStopped
	whatSpeakerChanged
	whatPlayerChanged
)

const (
	whatConnect = 10 + iota
	whatDisconnect
	whatCheckConnection
	whatCheckMicrophone
)

const (
	whatTextRecognize = 100 + iota
	whatQueryUserInfo
)

// Config contains the session timing and the gateway endpoint.
type Config struct {
	// GatewayURL is the ws or wss endpoint before biz signing
	GatewayURL string
	// Heartbeat is the idle time before the transport pings the gateway
	Heartbeat time.Duration
	// Reconnect paces connection checks and bounds the attempts
	Reconnect retry.ReconnectPolicy
	// MicrophoneWatchdog is how long a wakeup may wait for the first audio chunk
	MicrophoneWatchdog time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		GatewayURL:         "wss://gateway.alicia.local/websocket",
		Heartbeat:          20 * time.Second,
		Reconnect:          retry.DefaultReconnectPolicy(),
		MicrophoneWatchdog: 10 * time.Second,
	}
}

// Service is the interaction orchestrator.
type Service struct {
	config    Config
	builder   *protocol.Builder
	transport ports.Transport
	looper    *looper.Looper
	tracer    trace.Tracer
	listeners registry

	biz    protocol.Biz
	caCert []byte
	mac    string

	mu                 sync.Mutex
	started            bool
	networkConnected   bool
	websocketConnected bool
	authorized         bool
	micWakeup          bool
	micStarted         bool
	speakerMuted       bool
	playerStarted      bool
	stateSynced        bool
	reconnectCount     int
	creds              domain.Credentials
	speaker            protocol.SpeakerContext
	player             protocol.PlayerContext
	playerCache        protocol.PlayerContext
	speech             protocol.SpeechContext
	pending            pendingQueue
}

// New validates the vendor identity and builds a stopped service.
//
// The MAC address is required. Stored credentials are used only when both
// are well formed; otherwise the device activates as a guest on connect.
func New(config Config, vendor ports.Vendor, ids protocol.IDGenerator, newTransport ports.TransportFactory) (*Service, error) {
	if vendor == nil || ids == nil || newTransport == nil {
		return nil, fmt.Errorf("init orchestrator: %w", domain.ErrNilAdapter)
	}

	biz := protocol.Biz{Type: vendor.BizType(), Group: vendor.BizGroup(), Secret: vendor.BizSecret()}
	if biz.IsDefault() {
		slog.Warn("orchestrator: biz identity incomplete, using default biz")
		biz = protocol.Biz{}
	}

	mac, err := domain.NormalizeMAC(vendor.MACAddr())
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	s := &Service{
		config:  config,
		builder: protocol.NewBuilder(biz, ids),
		tracer:  otel.Tracer("alicia-edge/orchestrator"),
		biz:     biz,
		caCert:  vendor.CACert(),
		mac:     mac,
		speaker: protocol.SpeakerContext{Volume: vendor.SpeakerVolume(), Muted: vendor.SpeakerMuted()},
		speech:  protocol.SpeechContext{WakeupWord: protocol.DefaultWakeupWord},
	}
	s.speakerMuted = s.speaker.Muted

	uuid, token := vendor.UUID(), vendor.AccessToken()
	if uuid != "" || token != "" {
		creds := domain.Credentials{UUID: uuid, AccessToken: token}
		if creds.Valid() {
			s.creds = creds
			s.authorized = true
		} else {
			slog.Error("orchestrator: stored credentials are malformed, activating as guest",
				"error", domain.ErrInvalidCredential)
		}
	}

	s.looper = looper.New("orchestrator", looper.WithDefaultHandler(s.handleMessage))
	s.transport = newTransport(transportEvents{s})
	return s, nil
}

// Start launches the service looper. If the network is already up, a
// gateway connection is started right away.
func (s *Service) Start() error {
	out := s.newOutbox()
	defer out.deliver()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		if err := s.looper.Start(); err != nil {
			return fmt.Errorf("start orchestrator: %w", err)
		}
		s.started = true
	}
	if s.networkConnected && !s.websocketConnected {
		s.reconnectCount = 0
		s.clearAll(out)
		s.post(whatConnect)
	}
	slog.Info("orchestrator: started", "network_connected", s.networkConnected)
	return nil
}

// Stop disconnects from the gateway, drops every queued event and stops the
// looper. Account credentials and the network and mute state are kept.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	// Handlers take mu, so the looper is joined without holding it.
	s.looper.Stop()
	if err := s.transport.Disconnect(); err != nil {
		slog.Warn("orchestrator: disconnect on stop failed", "error", err)
	}

	out := s.newOutbox()
	s.mu.Lock()
	s.websocketConnected = false
	s.clearAll(out)
	s.micWakeup = false
	s.micStarted = false
	s.playerStarted = false
	s.stateSynced = false
	s.reconnectCount = 0
	s.mu.Unlock()
	out.deliver()

	slog.Info("orchestrator: stopped")
}

// IsActive reports whether the gateway is connected and the account authorized.
func (s *Service) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.websocketConnected && s.authorized
}

// Session is a point in time view of the session flags.
type Session struct {
	Started            bool `json:"started"`
	NetworkConnected   bool `json:"network_connected"`
	WebsocketConnected bool `json:"websocket_connected"`
	Authorized         bool `json:"authorized"`
	MicrophoneWakeup   bool `json:"microphone_wakeup"`
	MicrophoneStarted  bool `json:"microphone_started"`
	SpeakerMuted       bool `json:"speaker_muted"`
	PlayerStarted      bool `json:"player_started"`
	StateSynced        bool `json:"state_synced"`
	ReconnectCount     int  `json:"reconnect_count"`
	PendingEvents      int  `json:"pending_events"`
	QueuedMessages     int  `json:"queued_messages"`
}

// Session returns the current session flags.
func (s *Service) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		Started:            s.started,
		NetworkConnected:   s.networkConnected,
		WebsocketConnected: s.websocketConnected,
		Authorized:         s.authorized,
		MicrophoneWakeup:   s.micWakeup,
		MicrophoneStarted:  s.micStarted,
		SpeakerMuted:       s.speakerMuted,
		PlayerStarted:      s.playerStarted,
		StateSynced:        s.stateSynced,
		ReconnectCount:     s.reconnectCount,
		PendingEvents:      s.pending.len(),
		QueuedMessages:     s.looper.Len(),
	}
}

// Dump logs the looper queue.
func (s *Service) Dump() {
	s.looper.Dump()
}

func (s *Service) newOutbox() *outbox {
	return &outbox{reg: &s.listeners}
}

// locked runs fn under the state lock and delivers its notifications after.
func (s *Service) locked(fn func(out *outbox)) {
	out := s.newOutbox()
	s.mu.Lock()
	fn(out)
	s.mu.Unlock()
	out.deliver()
}

func (s *Service) message(what, arg1, arg2 int, data any) *looper.Message {
	return looper.NewWithArgs(what, arg1, arg2).WithData(data).WithOwner(s)
}

func (s *Service) post(what int) {
	s.postMessage(s.message(what, 0, 0, nil), 0)
}

func (s *Service) postDelayed(what int, delay time.Duration) {
	s.postMessage(s.message(what, 0, 0, nil), delay)
}

func (s *Service) postMessage(m *looper.Message, delay time.Duration) {
	if err := s.looper.PostDelayed(m, delay); err != nil {
		slog.Warn("orchestrator: post failed", "what", m.What, "error", err)
	}
}

// postOrDefer posts m, or parks it in the pending queue when deferred.
func (s *Service) postOrDefer(m *looper.Message, deferred bool) {
	if deferred {
		if !s.pending.add(m) {
			s.looper.Discard(m)
		}
		return
	}
	s.postMessage(m, 0)
}

// flushPending releases deferred events onto the looper in arrival order.
// Callers hold mu.
func (s *Service) flushPending() {
	for _, m := range s.pending.drain() {
		s.postMessage(m, 0)
	}
}

// clearAll drops deferred and queued events. An open microphone is asked to
// stop; a wakeup that never started streaming is simply forgotten. Callers
// hold mu.
func (s *Service) clearAll(out *outbox) {
	for _, m := range s.pending.drain() {
		s.looper.Discard(m)
	}
	s.looper.Clear()

	if s.micWakeup {
		if s.micStarted {
			out.command(expectSpeechStop())
		} else {
			s.micWakeup = false
		}
	}
}

// usable reports whether events may be sent. Callers hold mu.
func (s *Service) usable() bool {
	return s.websocketConnected && s.authorized
}

func expectSpeechStart() *protocol.Command {
	return &protocol.Command{Domain: protocol.DomainMicrophone, Name: protocol.CommandExpectSpeechStart, Payload: []byte("{}")}
}

func expectSpeechStop() *protocol.Command {
	return &protocol.Command{Domain: protocol.DomainMicrophone, Name: protocol.CommandExpectSpeechStop, Payload: []byte("{}")}
}
