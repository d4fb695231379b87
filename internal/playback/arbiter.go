// Package playback arbitrates the three device players: synthesized speech,
// prompts and music.
//
// Commands and state inputs may be called from any goroutine; they are posted
// to the arbiter looper and applied there in order. At most one of the TTS
// player, the prompt player and a started music player renders at a time.
// Play-once content (speech and prompts) suspends music, which resumes once
// nothing interrupts it any more.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/looper"
	"github.com/longregen/alicia-edge/internal/ports"
)

// Looper message tags.
const (
	whatTTSHeader = iota
	whatTTSFrame
	whatPrompt
	whatMusic
	whatWakeupPrompt
	whatPause
	whatResume
	whatStop
	whatStopPlayOnce
	whatResumeFromSuspend
	whatCheckTTSTimeout
)

const (
	whatGatewayChanged = 100 + iota
	whatMicrophoneChanged
	whatSpeakerChanged
	whatPlayerChanged
)

// Config holds the arbiter timing.
type Config struct {
	// TTSFrameTimeout abandons a speech stream when no frame arrives in time
	TTSFrameTimeout time.Duration
	// ResumeGrace delays resuming music after the microphone closes or an
	// expect-speech prompt ends, leaving room for a follow-up utterance
	ResumeGrace time.Duration
}

// DefaultConfig returns the default arbiter timing.
func DefaultConfig() Config {
	return Config{
		TTSFrameTimeout: 10 * time.Second,
		ResumeGrace:     5 * time.Second,
	}
}

// Arbiter is the playback arbiter.
type Arbiter struct {
	config    Config
	looper    *looper.Looper
	writer    *ttsWriter
	listeners listeners
	running   atomic.Bool

	mu                  sync.Mutex
	started             bool
	tts                 *player
	prompt              *player
	music               *player
	queue               playQueue
	gatewayDisconnected bool
	micStarted          bool
	speakerMuted        bool
	ttsFrameStarted     bool
	commandPause        bool
	musicPausing        bool
	musicResuming       bool
	ttsID               int
}

// New creates the three players and a stopped arbiter.
func New(engine ports.PlayerEngine, config Config) (*Arbiter, error) {
	if engine == nil {
		return nil, fmt.Errorf("init playback: %w", domain.ErrNilAdapter)
	}

	a := &Arbiter{config: config}
	var created []*player
	for _, kind := range []models.Stream{models.StreamTTS, models.StreamPrompt, models.StreamMusic} {
		p, err := a.newPlayer(engine, kind)
		if err != nil {
			for _, c := range created {
				c.engine.Destroy()
			}
			return nil, fmt.Errorf("init playback: %w", err)
		}
		created = append(created, p)
	}
	a.tts, a.prompt, a.music = created[0], created[1], created[2]

	a.writer = newTTSWriter(a.tts.engine)
	a.looper = looper.New("playback", looper.WithDefaultHandler(a.handleMessage))
	return a, nil
}

func (a *Arbiter) newPlayer(engine ports.PlayerEngine, kind models.Stream) (*player, error) {
	handle, err := engine.Create(kind)
	if err != nil {
		return nil, fmt.Errorf("create %s player: %w", kind, err)
	}
	if handle == nil {
		return nil, fmt.Errorf("create %s player: %w", kind, domain.ErrNilAdapter)
	}
	err = handle.RegisterStateListener(func(_ models.Stream, state models.PlayerState) {
		// Engines may report late, after Stop reset the players.
		if !a.running.Load() {
			return
		}
		a.post(whatPlayerChanged, int(kind), int(state), nil)
	})
	if err != nil {
		handle.Destroy()
		return nil, fmt.Errorf("register %s player listener: %w", kind, err)
	}
	return &player{engine: handle, kind: kind, stream: kind}, nil
}

// Start launches the arbiter looper and the TTS writer.
func (a *Arbiter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if err := a.looper.Start(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	a.writer.start()
	a.started = true
	a.running.Store(true)
	slog.Info("playback: started")
	return nil
}

// IsActive reports whether the arbiter is running.
func (a *Arbiter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Stop resets every busy player, drops queued content and frames and stops
// the looper and the TTS writer. The gateway, microphone and speaker inputs
// are kept.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	a.running.Store(false)
	a.mu.Unlock()

	a.looper.Stop()
	a.writer.stop()

	a.mu.Lock()
	for _, p := range []*player{a.tts, a.prompt, a.music} {
		if p.busy() {
			a.reset(p)
			p.state = models.PlayerStateIdle
			p.active = false
			p.started = false
		}
	}
	a.queue.purge(purgeAll)
	a.writer.clear()
	a.looper.Clear()
	a.ttsFrameStarted = false
	a.commandPause = false
	a.musicPausing = false
	a.musicResuming = false
	a.mu.Unlock()

	slog.Info("playback: stopped")
}

// Close stops the arbiter and destroys the players.
func (a *Arbiter) Close() {
	a.Stop()
	for _, p := range []*player{a.tts, a.prompt, a.music} {
		p.engine.Destroy()
	}
}

// IsPlaying reports whether stream is rendering: the TTS and prompt players
// while active, music once started.
func (a *Arbiter) IsPlaying(stream models.Stream) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch stream {
	case models.StreamTTS:
		return a.tts.active
	case models.StreamPrompt:
		return a.prompt.active
	case models.StreamPromptWakeup:
		return a.prompt.active && a.prompt.stream == models.StreamPromptWakeup
	case models.StreamMusic:
		return a.music.started
	default:
		return false
	}
}

// NewTTSHeader announces a speech stream. Its frames follow through NewTTSFrame.
func (a *Arbiter) NewTTSHeader(expectSpeech bool) error {
	return a.post(whatTTSHeader, boolArg(expectSpeech), 0, nil)
}

// NewTTSFrame queues one chunk of the current speech stream. The final chunk
// ends the stream.
func (a *Arbiter) NewTTSFrame(data []byte, final bool) error {
	frame := append([]byte(nil), data...)
	return a.post(whatTTSFrame, len(frame), boolArg(final), frame)
}

// NewPrompt queues a play-once prompt.
func (a *Arbiter) NewPrompt(url string) error {
	return a.postURL(whatPrompt, url)
}

// NewMusic replaces the music source.
func (a *Arbiter) NewMusic(url string) error {
	return a.postURL(whatMusic, url)
}

// NewWakeupPrompt interrupts speech and prompts and plays url ahead of any
// other queued prompt.
func (a *Arbiter) NewWakeupPrompt(url string) error {
	return a.postURL(whatWakeupPrompt, url)
}

// Pause pauses music until Resume.
func (a *Arbiter) Pause() error {
	return a.post(whatPause, 0, 0, nil)
}

// Resume lifts an explicit pause.
func (a *Arbiter) Resume() error {
	return a.post(whatResume, 0, 0, nil)
}

// StopAll stops music and speech and any prompt other than a wakeup prompt,
// then empties the queue.
func (a *Arbiter) StopAll() error {
	return a.post(whatStop, 0, 0, nil)
}

// StopPlayOnce stops speech and prompts, except a wakeup prompt, and empties
// the queue.
func (a *Arbiter) StopPlayOnce() error {
	return a.post(whatStopPlayOnce, 0, 0, nil)
}

// GatewayConnected reports the gateway connection state.
func (a *Arbiter) GatewayConnected(connected bool) error {
	return a.post(whatGatewayChanged, boolArg(connected), 0, nil)
}

// MicrophoneActive reports whether the microphone is recording.
func (a *Arbiter) MicrophoneActive(active bool) error {
	return a.post(whatMicrophoneChanged, boolArg(active), 0, nil)
}

// SpeakerMuted reports the speaker mute state.
func (a *Arbiter) SpeakerMuted(muted bool) error {
	return a.post(whatSpeakerChanged, boolArg(muted), 0, nil)
}

// PlayerView is a point in time view of one player.
type PlayerView struct {
	Stream  string `json:"stream"`
	State   string `json:"state"`
	Active  bool   `json:"active"`
	Started bool   `json:"started"`
}

// Snapshot is a point in time view of the arbiter.
type Snapshot struct {
	Started             bool         `json:"started"`
	GatewayDisconnected bool         `json:"gateway_disconnected"`
	MicrophoneStarted   bool         `json:"microphone_started"`
	SpeakerMuted        bool         `json:"speaker_muted"`
	CommandPause        bool         `json:"command_pause"`
	Players             []PlayerView `json:"players"`
	Queue               []string     `json:"queue"`
}

// Snapshot returns the current arbiter state.
func (a *Arbiter) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Started:             a.started,
		GatewayDisconnected: a.gatewayDisconnected,
		MicrophoneStarted:   a.micStarted,
		SpeakerMuted:        a.speakerMuted,
		CommandPause:        a.commandPause,
		Queue:               make([]string, 0, a.queue.len()),
	}
	for _, p := range []*player{a.tts, a.prompt, a.music} {
		snap.Players = append(snap.Players, p.view())
	}
	for _, e := range a.queue.entries {
		snap.Queue = append(snap.Queue, e.stream.String())
	}
	return snap
}

func (a *Arbiter) postURL(what int, url string) error {
	if url == "" {
		return fmt.Errorf("post what=%d: empty url: %w", what, domain.ErrInvalidInput)
	}
	return a.post(what, 0, 0, url)
}

func (a *Arbiter) post(what, arg1, arg2 int, data any) error {
	return a.postDelayed(looper.NewWithArgs(what, arg1, arg2).WithData(data).WithOwner(a), 0)
}

func (a *Arbiter) postDelayed(m *looper.Message, delay time.Duration) error {
	if err := a.looper.PostDelayed(m, delay); err != nil {
		slog.Warn("playback: post failed", "what", m.What, "error", err)
		return err
	}
	return nil
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
