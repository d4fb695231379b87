package playback

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/looper"
	"github.com/longregen/alicia-edge/internal/ports"
)

// fakeEngine records every player call as "stream:op" and answers the way a
// well behaved engine would: prepare reports Prepared, start Started, pause
// Paused, resume Resumed and reset Idle. Tests report completion themselves.
type fakeEngine struct {
	mu        sync.Mutex
	calls     []string
	writes    []ttsWrite
	players   map[models.Stream]*fakePlayer
	destroyed int
	failOn    models.Stream

	// holdWrites, when set, parks each TTS write until it is closed
	holdWrites   chan struct{}
	writeEntered chan struct{}
}

type ttsWrite struct {
	data  string
	final bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{players: make(map[models.Stream]*fakePlayer), failOn: -1}
}

func (e *fakeEngine) Create(stream models.Stream) (ports.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stream == e.failOn {
		return nil, errors.New("no audio device")
	}
	p := &fakePlayer{engine: e, stream: stream}
	e.players[stream] = p
	return p, nil
}

func (e *fakeEngine) record(stream models.Stream, op string) {
	e.mu.Lock()
	e.calls = append(e.calls, stream.String()+":"+op)
	e.mu.Unlock()
}

func (e *fakeEngine) callsFor(stream models.Stream) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix := stream.String() + ":"
	var out []string
	for _, c := range e.calls {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}

func (e *fakeEngine) called(stream models.Stream, op string) bool {
	for _, c := range e.callsFor(stream) {
		if c == op {
			return true
		}
	}
	return false
}

func (e *fakeEngine) count(stream models.Stream, op string) int {
	n := 0
	for _, c := range e.callsFor(stream) {
		if c == op {
			n++
		}
	}
	return n
}

func (e *fakeEngine) ttsWrites() []ttsWrite {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ttsWrite(nil), e.writes...)
}

// report delivers an engine state change for stream.
func (e *fakeEngine) report(stream models.Stream, state models.PlayerState) {
	e.mu.Lock()
	p := e.players[stream]
	e.mu.Unlock()
	p.notify(state)
}

type fakePlayer struct {
	engine   *fakeEngine
	stream   models.Stream
	mu       sync.Mutex
	listener ports.PlayerStateListener
}

func (p *fakePlayer) notify(state models.PlayerState) {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()
	if l != nil {
		l(p.stream, state)
	}
}

func (p *fakePlayer) RegisterStateListener(l ports.PlayerStateListener) error {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) SetDataSource(url string) error {
	p.engine.record(p.stream, fmt.Sprintf("source(%s)", url))
	return nil
}

func (p *fakePlayer) PrepareAsync() error {
	p.engine.record(p.stream, "prepare")
	p.notify(models.PlayerStatePrepared)
	return nil
}

func (p *fakePlayer) Write(data []byte, final bool) error {
	p.engine.mu.Lock()
	hold, entered := p.engine.holdWrites, p.engine.writeEntered
	p.engine.mu.Unlock()
	if hold != nil {
		entered <- struct{}{}
		<-hold
	}

	p.engine.mu.Lock()
	p.engine.writes = append(p.engine.writes, ttsWrite{data: string(data), final: final})
	p.engine.mu.Unlock()
	return nil
}

func (p *fakePlayer) Start() error {
	p.engine.record(p.stream, "start")
	p.notify(models.PlayerStateStarted)
	return nil
}

func (p *fakePlayer) Pause() error {
	p.engine.record(p.stream, "pause")
	p.notify(models.PlayerStatePaused)
	return nil
}

func (p *fakePlayer) Resume() error {
	p.engine.record(p.stream, "resume")
	p.notify(models.PlayerStateResumed)
	return nil
}

func (p *fakePlayer) Seek(int) error { return nil }

func (p *fakePlayer) Stop() error {
	p.engine.record(p.stream, "stop")
	p.notify(models.PlayerStateStopped)
	return nil
}

func (p *fakePlayer) Reset() error {
	p.engine.record(p.stream, "reset")
	p.notify(models.PlayerStateIdle)
	return nil
}

func (p *fakePlayer) Position() (int, error) { return 0, nil }
func (p *fakePlayer) Duration() (int, error) { return 0, nil }

func (p *fakePlayer) Destroy() {
	p.engine.mu.Lock()
	p.engine.destroyed++
	p.engine.mu.Unlock()
}

type stateEvent struct {
	stream       models.Stream
	state        models.PlayerState
	expectSpeech bool
}

type stateRecorder struct {
	mu     sync.Mutex
	events []stateEvent
}

func (r *stateRecorder) OnPlaybackState(stream models.Stream, state models.PlayerState, expectSpeech bool) {
	r.mu.Lock()
	r.events = append(r.events, stateEvent{stream, state, expectSpeech})
	r.mu.Unlock()
}

func (r *stateRecorder) statesFor(stream models.Stream) []models.PlayerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PlayerState
	for _, e := range r.events {
		if e.stream == stream {
			out = append(out, e.state)
		}
	}
	return out
}

func (r *stateRecorder) saw(stream models.Stream, state models.PlayerState) bool {
	for _, s := range r.statesFor(stream) {
		if s == state {
			return true
		}
	}
	return false
}

func (r *stateRecorder) find(stream models.Stream, state models.PlayerState) (stateEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.stream == stream && e.state == state {
			return e, true
		}
	}
	return stateEvent{}, false
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	arbiter *Arbiter
	engine  *fakeEngine
	states  *stateRecorder
}

func testConfig() Config {
	return Config{TTSFrameTimeout: time.Second, ResumeGrace: 100 * time.Millisecond}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	engine := newFakeEngine()
	a, err := New(engine, cfg)
	require.NoError(t, err)

	f := &fixture{arbiter: a, engine: engine, states: &stateRecorder{}}
	_, err = a.AddStateListener(f.states)
	require.NoError(t, err)
	require.NoError(t, a.Start())
	t.Cleanup(a.Stop)
	return f
}

// settle lets every chain of engine reports run to its end. Each round
// waits for a barrier message, and with it for everything posted before it.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	for range 8 {
		done := make(chan struct{})
		barrier := looper.NewMessage(-1).WithHandler(func(*looper.Message) { close(done) })
		require.NoError(t, f.arbiter.looper.Post(barrier))
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("arbiter looper did not drain")
		}
	}
}

// playMusic starts music and waits until it renders.
func (f *fixture) playMusic(t *testing.T, url string) {
	t.Helper()
	require.NoError(t, f.arbiter.NewMusic(url))
	require.Eventually(t, func() bool { return f.arbiter.IsPlaying(models.StreamMusic) }, waitFor, tick)
}
