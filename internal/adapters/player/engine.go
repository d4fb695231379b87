// Package player is a simulated ports.PlayerEngine. It decodes nothing: each
// player logs what it is asked to render and reports the state changes a real
// engine would, paced by the configured durations. TTS length follows the
// bytes written at a fixed byte rate.
package player

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/ports"
)

// Config contains the simulated render timing.
type Config struct {
	PromptDuration time.Duration
	MusicDuration  time.Duration
	// NearlyLead is how long before the end NearlyCompleted is reported. Zero disables it.
	NearlyLead time.Duration
	// TTSByteRate converts written TTS bytes into play time
	TTSByteRate int
}

func DefaultConfig() Config {
	return Config{
		PromptDuration: 2 * time.Second,
		MusicDuration:  3 * time.Minute,
		NearlyLead:     5 * time.Second,
		TTSByteRate:    32000,
	}
}

// FailScheme marks a data source the simulated engine fails to open.
const FailScheme = "fail://"

// Engine creates simulated players.
type Engine struct {
	config Config
}

func NewEngine(config Config) *Engine {
	if config.TTSByteRate <= 0 {
		config.TTSByteRate = DefaultConfig().TTSByteRate
	}
	return &Engine{config: config}
}

func (e *Engine) Create(stream models.Stream) (ports.Player, error) {
	switch stream {
	case models.StreamTTS, models.StreamPrompt, models.StreamMusic:
	default:
		return nil, fmt.Errorf("create player for %s: %w", stream, domain.ErrInvalidInput)
	}
	return &Player{config: e.config, stream: stream, state: models.PlayerStateIdle}, nil
}

// Player renders one stream in simulated time.
type Player struct {
	config Config
	stream models.Stream

	mu        sync.Mutex
	listener  ports.PlayerStateListener
	state     models.PlayerState
	source    string
	written   int
	final     bool
	elapsed   time.Duration
	startedAt time.Time
	running   bool
	nearly    bool
	timer     *time.Timer
	gen       uint64
}

func (p *Player) RegisterStateListener(listener ports.PlayerStateListener) error {
	if listener == nil {
		return fmt.Errorf("register listener: %w", domain.ErrNilAdapter)
	}
	p.mu.Lock()
	p.listener = listener
	p.mu.Unlock()
	return nil
}

func (p *Player) SetDataSource(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != models.PlayerStateIdle {
		return p.wrongState("set data source")
	}
	if url == "" && p.stream != models.StreamTTS {
		return fmt.Errorf("%s player: set data source: %w", p.stream, domain.ErrInvalidInput)
	}
	p.source = url
	slog.Info("player: data source set", "player", p.stream, "url", url)
	return nil
}

func (p *Player) PrepareAsync() error {
	p.mu.Lock()
	if p.state != models.PlayerStateIdle {
		p.mu.Unlock()
		return p.wrongState("prepare")
	}
	p.written, p.final = 0, false
	p.elapsed, p.running, p.nearly = 0, false, false
	p.state = models.PlayerStatePrepared
	if strings.HasPrefix(p.source, FailScheme) {
		p.state = models.PlayerStateError
	}
	state := p.state
	l := p.listener
	p.mu.Unlock()

	if state == models.PlayerStateError {
		slog.Error("player: cannot open source", "player", p.stream, "url", p.source)
	}
	p.emit(l, state)
	return nil
}

func (p *Player) Write(data []byte, final bool) error {
	p.mu.Lock()
	if p.stream != models.StreamTTS {
		p.mu.Unlock()
		return fmt.Errorf("%s player: write: %w", p.stream, domain.ErrInvalidInput)
	}
	if p.state == models.PlayerStateIdle || p.state.Terminal() {
		p.mu.Unlock()
		return p.wrongState("write")
	}
	if p.running {
		// time spent starved is not play time
		p.elapsed = p.positionLocked()
		p.startedAt = time.Now()
	}
	p.written += len(data)
	p.final = p.final || final
	if p.running {
		p.scheduleLocked()
	}
	p.mu.Unlock()
	return nil
}

func (p *Player) Start() error {
	p.mu.Lock()
	if p.state != models.PlayerStatePrepared {
		p.mu.Unlock()
		return p.wrongState("start")
	}
	p.state = models.PlayerStateStarted
	p.runLocked()
	l := p.listener
	p.mu.Unlock()

	slog.Info("player: rendering", "player", p.stream, "url", p.source)
	p.emit(l, models.PlayerStateStarted)
	return nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	if err := p.checkLocked("pause", models.PlayerStatePaused); err != nil {
		p.mu.Unlock()
		return err
	}
	p.haltLocked()
	p.state = models.PlayerStatePaused
	l := p.listener
	p.mu.Unlock()

	p.emit(l, models.PlayerStatePaused)
	return nil
}

func (p *Player) Resume() error {
	p.mu.Lock()
	if err := p.checkLocked("resume", models.PlayerStateResumed); err != nil {
		p.mu.Unlock()
		return err
	}
	p.state = models.PlayerStateResumed
	p.runLocked()
	l := p.listener
	p.mu.Unlock()

	p.emit(l, models.PlayerStateResumed)
	return nil
}

func (p *Player) Seek(positionMs int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == models.PlayerStateIdle || p.state.Terminal() {
		return p.wrongState("seek")
	}
	pos := time.Duration(positionMs) * time.Millisecond
	if pos < 0 || pos > p.durationLocked() {
		return fmt.Errorf("%s player: seek to %dms: %w", p.stream, positionMs, domain.ErrInvalidInput)
	}
	p.elapsed = pos
	p.nearly = false
	if p.running {
		p.startedAt = time.Now()
		p.scheduleLocked()
	}
	return nil
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if err := p.checkLocked("stop", models.PlayerStateStopped); err != nil {
		p.mu.Unlock()
		return err
	}
	p.haltLocked()
	p.state = models.PlayerStateStopped
	l := p.listener
	p.mu.Unlock()

	p.emit(l, models.PlayerStateStopped)
	return nil
}

func (p *Player) Reset() error {
	p.mu.Lock()
	p.haltLocked()
	p.state = models.PlayerStateIdle
	p.source = ""
	p.elapsed = 0
	l := p.listener
	p.mu.Unlock()

	p.emit(l, models.PlayerStateIdle)
	return nil
}

func (p *Player) Position() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.positionLocked() / time.Millisecond), nil
}

func (p *Player) Duration() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.durationLocked() / time.Millisecond), nil
}

func (p *Player) Destroy() {
	p.mu.Lock()
	p.haltLocked()
	p.listener = nil
	p.mu.Unlock()
}

func (p *Player) emit(l ports.PlayerStateListener, state models.PlayerState) {
	if l != nil {
		l(p.stream, state)
	}
}

func (p *Player) wrongState(op string) error {
	return fmt.Errorf("%s player: %s in state %s: %w", p.stream, op, p.state, domain.ErrInvalidInput)
}

// checkLocked rejects operations the engine state machine does not allow.
func (p *Player) checkLocked(op string, to models.PlayerState) error {
	if p.state == to {
		return p.wrongState(op)
	}
	if err := models.ValidatePlayerTransition(p.state, to); err != nil {
		return fmt.Errorf("%s player: %s: %w", p.stream, op, err)
	}
	return nil
}

func (p *Player) durationLocked() time.Duration {
	switch p.stream {
	case models.StreamTTS:
		return time.Duration(p.written) * time.Second / time.Duration(p.config.TTSByteRate)
	case models.StreamMusic:
		return p.config.MusicDuration
	default:
		return p.config.PromptDuration
	}
}

func (p *Player) positionLocked() time.Duration {
	pos := p.elapsed
	if p.running {
		pos += time.Since(p.startedAt)
	}
	if d := p.durationLocked(); pos > d {
		pos = d
	}
	return pos
}

func (p *Player) runLocked() {
	p.running = true
	p.startedAt = time.Now()
	p.scheduleLocked()
}

func (p *Player) haltLocked() {
	if p.running {
		p.elapsed += time.Since(p.startedAt)
		p.running = false
	}
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// scheduleLocked arms the timer for the next report: NearlyCompleted, then
// Completed. A TTS player that ran out of data before the final frame waits
// for the next Write to reschedule it.
func (p *Player) scheduleLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	remaining := p.durationLocked() - p.positionLocked()
	if p.stream == models.StreamTTS && !p.final {
		if remaining <= 0 {
			return
		}
		p.timer = p.afterLocked(remaining, p.gen, p.tick)
		return
	}

	lead := p.config.NearlyLead
	if !p.nearly && lead > 0 && remaining > lead {
		p.timer = p.afterLocked(remaining-lead, p.gen, p.nearlyDone)
		return
	}
	p.timer = p.afterLocked(remaining, p.gen, p.complete)
}

func (p *Player) afterLocked(d time.Duration, gen uint64, fn func(gen uint64)) *time.Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, func() { fn(gen) })
}

// tick re-evaluates a TTS player that caught up with the written data.
func (p *Player) tick(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || !p.running {
		return
	}
	slog.Debug("player: tts underrun", "player", p.stream, "written", p.written)
	p.scheduleLocked()
}

func (p *Player) nearlyDone(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		return
	}
	p.nearly = true
	p.scheduleLocked()
	l := p.listener
	p.mu.Unlock()

	p.emit(l, models.PlayerStateNearlyCompleted)
}

func (p *Player) complete(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		return
	}
	p.haltLocked()
	p.state = models.PlayerStateCompleted
	l := p.listener
	source := p.source
	p.mu.Unlock()

	slog.Info("player: completed", "player", p.stream, "url", source)
	p.emit(l, models.PlayerStateCompleted)
}
