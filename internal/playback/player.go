package playback

import (
	"log/slog"

	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/ports"
)

// player tracks one engine player.
type player struct {
	engine ports.Player
	// kind is the engine stream; stream is what currently plays on it, which
	// differs for a wakeup prompt on the prompt player.
	kind         models.Stream
	stream       models.Stream
	state        models.PlayerState
	id           int
	expectSpeech bool
	// active from set source until the engine reports idle
	active bool
	// started while the engine is rendering at our request
	started bool
}

// busy reports whether the player holds a source, even one still preparing.
func (p *player) busy() bool {
	return p.state != models.PlayerStateIdle || p.active
}

func (p *player) view() PlayerView {
	return PlayerView{Stream: p.stream.String(), State: p.state.String(), Active: p.active, Started: p.started}
}

func (p *player) logFailure(op string, err error) {
	if err != nil {
		slog.Error("playback: player call failed", "player", p.kind, "op", op, "error", err)
	}
}

// The actions below run on the looper goroutine with mu held. Each one is a
// no-op unless the player is in a state that accepts it.

func (a *Arbiter) setSource(p *player, url string) {
	if p.state != models.PlayerStateIdle {
		return
	}
	slog.Info("playback: set data source", "player", p.kind, "url", url)
	p.logFailure("set_data_source", p.engine.SetDataSource(url))
	p.active = true
	p.started = false
}

func (a *Arbiter) prepare(p *player) {
	if p.state != models.PlayerStateIdle {
		return
	}
	slog.Info("playback: prepare", "player", p.kind)
	p.logFailure("prepare", p.engine.PrepareAsync())
	if p.kind == models.StreamTTS {
		a.writer.openEpoch(p.id)
	}
}

// start starts a prepared player or resumes a paused one. Music already
// resumed is re-reported so an explicit resume is always acknowledged.
func (a *Arbiter) start(p *player, out *outbox) {
	switch p.state {
	case models.PlayerStatePrepared:
		slog.Info("playback: start", "player", p.kind)
		p.logFailure("start", p.engine.Start())
		p.started = true
	case models.PlayerStatePaused:
		slog.Info("playback: resume", "player", p.kind)
		p.logFailure("resume", p.engine.Resume())
		p.started = true
		if p.kind == models.StreamMusic {
			a.musicResuming = true
		}
	case models.PlayerStateResumed:
		if p.kind == models.StreamMusic {
			out.state(models.StreamMusic, models.PlayerStateResumed, false)
		}
	}
}

// resumeFromSuspend restarts music after an interruption without reporting it.
func (a *Arbiter) resumeFromSuspend(p *player) {
	switch p.state {
	case models.PlayerStatePrepared:
		slog.Info("playback: start", "player", p.kind)
		p.logFailure("start", p.engine.Start())
		p.started = true
	case models.PlayerStatePaused:
		slog.Info("playback: resume from suspend", "player", p.kind)
		p.logFailure("resume", p.engine.Resume())
		p.started = true
	}
}

// pause pauses at the user's request. Music already paused is re-reported.
func (a *Arbiter) pause(p *player, out *outbox) {
	switch p.state {
	case models.PlayerStateStarted, models.PlayerStateResumed:
		slog.Info("playback: pause", "player", p.kind)
		p.logFailure("pause", p.engine.Pause())
		if p.kind == models.StreamMusic {
			a.musicPausing = true
		}
	case models.PlayerStatePaused:
		if p.kind == models.StreamMusic {
			out.state(models.StreamMusic, models.PlayerStatePaused, false)
		}
	}
}

// suspend pauses for an interruption. The resulting Paused is not reported.
func (a *Arbiter) suspend(p *player) {
	switch p.state {
	case models.PlayerStateStarted, models.PlayerStateResumed:
		slog.Info("playback: suspend", "player", p.kind)
		p.logFailure("suspend", p.engine.Pause())
	}
}

// reset returns the player to idle. A TTS reset also drops the unwritten
// frames of its stream.
func (a *Arbiter) reset(p *player) {
	if !p.busy() {
		return
	}
	slog.Info("playback: reset", "player", p.kind)
	if p.kind == models.StreamTTS {
		a.writer.closeEpoch()
	}
	p.logFailure("reset", p.engine.Reset())
}
