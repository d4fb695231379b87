// Package application wires the interaction orchestrator to the playback
// arbiter and owns the device level reactions: local prompts for lost
// connectivity, speaker volume and mute, and credential persistence.
package application

import (
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/orchestrator"
	"github.com/longregen/alicia-edge/internal/playback"
	"github.com/longregen/alicia-edge/internal/ports"
	"github.com/longregen/alicia-edge/pkg/otel"
)

// Prompts are the local audio sources played on device events.
type Prompts struct {
	Wakeup       string
	Record       string
	NetworkLost  string
	ServerLost   string
	Unauthorized string
	NotActivated string
}

// Config contains the assistant settings.
type Config struct {
	Prompts Prompts
	// The stored volume is clamped into [BootVolumeMin, BootVolumeMax] on start
	BootVolumeMin int
	BootVolumeMax int
}

func DefaultConfig() Config {
	return Config{BootVolumeMin: 20, BootVolumeMax: 70}
}

// Assistant runs a session and its playback as one device.
type Assistant struct {
	config  Config
	session *orchestrator.Service
	arbiter *playback.Arbiter
	vendor  ports.Vendor
	creds   ports.CredentialStore
	tracer  trace.Tracer

	// lifecycle serializes Start and Stop and guards the handles. Listener
	// callbacks never take it.
	lifecycle   sync.Mutex
	handles     []orchestrator.ListenerHandle
	stateHandle playback.ListenerHandle

	mu                  sync.Mutex
	started             bool
	networkDisconnected bool
	gatewayDisconnected bool
	unauthorized        bool
	musicCompleted      bool
}

func New(config Config, session *orchestrator.Service, arbiter *playback.Arbiter, vendor ports.Vendor, creds ports.CredentialStore) (*Assistant, error) {
	if session == nil || arbiter == nil || vendor == nil || creds == nil {
		return nil, fmt.Errorf("init assistant: %w", domain.ErrNilAdapter)
	}
	if config.BootVolumeMin > config.BootVolumeMax {
		return nil, fmt.Errorf("init assistant: boot volume range %d..%d: %w",
			config.BootVolumeMin, config.BootVolumeMax, domain.ErrInvalidInput)
	}
	return &Assistant{
		config:  config,
		session: session,
		arbiter: arbiter,
		vendor:  vendor,
		creds:   creds,
		tracer:  otel.Tracer("alicia-edge/assistant"),
		// nothing is reachable until the first connect succeeds
		networkDisconnected: true,
		gatewayDisconnected: true,
	}, nil
}

// Start applies the boot volume and mute state, then starts playback and the
// session. A failed start leaves both stopped.
func (a *Assistant) Start() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.isStarted() {
		return nil
	}

	if err := a.arbiter.Start(); err != nil {
		return fmt.Errorf("start assistant: %w", err)
	}
	if err := a.register(); err != nil {
		a.unregister()
		a.arbiter.Stop()
		return fmt.Errorf("start assistant: %w", err)
	}

	a.applyBootVolume()
	muted := a.vendor.SpeakerMuted()
	a.session.OnSpeakerMutedChanged(muted)
	if err := a.arbiter.SpeakerMuted(muted); err != nil {
		slog.Warn("assistant: failed to seed speaker mute", "error", err)
	}

	if err := a.session.Start(); err != nil {
		a.unregister()
		a.arbiter.Stop()
		return fmt.Errorf("start assistant: %w", err)
	}

	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	slog.Info("assistant: started", "volume", a.vendor.SpeakerVolume(), "muted", muted)
	return nil
}

// Stop detaches the listeners and stops the session, then playback.
func (a *Assistant) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if !a.isStarted() {
		return
	}

	a.unregister()
	a.mu.Lock()
	a.started = false
	a.networkDisconnected = true
	a.gatewayDisconnected = true
	a.unauthorized = false
	a.musicCompleted = false
	a.mu.Unlock()

	a.session.Stop()
	a.arbiter.Stop()
	slog.Info("assistant: stopped")
}

// Close stops the assistant and releases the players.
func (a *Assistant) Close() {
	a.Stop()
	a.arbiter.Close()
}

// IsActive reports whether the session can take user input.
func (a *Assistant) IsActive() bool {
	return a.isStarted() && a.session.IsActive()
}

func (a *Assistant) isStarted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Status is a point in time view of the device.
type Status struct {
	Started             bool                 `json:"started"`
	Active              bool                 `json:"active"`
	NetworkDisconnected bool                 `json:"network_disconnected"`
	GatewayDisconnected bool                 `json:"gateway_disconnected"`
	Unauthorized        bool                 `json:"unauthorized"`
	Volume              int                  `json:"volume"`
	Muted               bool                 `json:"muted"`
	Session             orchestrator.Session `json:"session"`
	Playback            playback.Snapshot    `json:"playback"`
}

func (a *Assistant) Status() Status {
	a.mu.Lock()
	st := Status{
		Started:             a.started,
		NetworkDisconnected: a.networkDisconnected,
		GatewayDisconnected: a.gatewayDisconnected,
		Unauthorized:        a.unauthorized,
	}
	a.mu.Unlock()

	st.Active = st.Started && a.session.IsActive()
	st.Volume = a.vendor.SpeakerVolume()
	st.Muted = a.vendor.SpeakerMuted()
	st.Session = a.session.Session()
	st.Playback = a.arbiter.Snapshot()
	return st
}

// Dump logs the session queue.
func (a *Assistant) Dump() {
	a.session.Dump()
}

// register attaches the bridge listeners. Callers hold lifecycle.
func (a *Assistant) register() error {
	h, err := a.session.AddCommandListener(orchestrator.CommandListenerFunc(a.onCommand))
	if err != nil {
		return err
	}
	a.handles = append(a.handles, h)

	if h, err = a.session.AddTTSListener(orchestrator.TTSListenerFunc(a.onTTS)); err != nil {
		return err
	}
	a.handles = append(a.handles, h)

	if h, err = a.session.AddStatusListener(orchestrator.StatusListenerFunc(a.onStatus)); err != nil {
		return err
	}
	a.handles = append(a.handles, h)

	sh, err := a.arbiter.AddStateListener(playback.StateListenerFunc(a.onPlaybackState))
	if err != nil {
		return err
	}
	a.stateHandle = sh
	return nil
}

// unregister is safe on a partial registration. Callers hold lifecycle.
func (a *Assistant) unregister() {
	for _, h := range a.handles {
		a.session.RemoveListener(h)
	}
	a.handles = nil
	if a.stateHandle != 0 {
		a.arbiter.RemoveStateListener(a.stateHandle)
		a.stateHandle = 0
	}
}

func (a *Assistant) applyBootVolume() {
	volume := a.vendor.SpeakerVolume()
	clamped := min(max(volume, a.config.BootVolumeMin), a.config.BootVolumeMax)
	if clamped != volume {
		slog.Info("assistant: clamping boot volume", "stored", volume, "volume", clamped)
	}
	if !a.vendor.SetSpeakerVolume(clamped) {
		slog.Warn("assistant: speaker refused boot volume", "volume", clamped)
		clamped = a.vendor.SpeakerVolume()
	}
	a.session.OnSpeakerVolumeChanged(clamped)
}
