package playback

import (
	"log/slog"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/looper"
)

// handleMessage runs on the looper goroutine. After every message the next
// queued entry is started if its player is free.
func (a *Arbiter) handleMessage(m *looper.Message) {
	out := &outbox{}
	a.mu.Lock()
	a.dispatch(m, out)
	a.prepareNext()
	if m.What != whatTTSFrame {
		a.audit()
	}
	a.mu.Unlock()
	out.deliver(&a.listeners)
}

func (a *Arbiter) dispatch(m *looper.Message, out *outbox) {
	switch m.What {
	case whatTTSHeader:
		if a.speakerMuted {
			slog.Warn("playback: speaker muted, discarding tts")
			return
		}
		if !a.ttsFrameStarted {
			a.suspend(a.music)
			a.queue.add(entry{stream: models.StreamTTS, id: a.ttsID, expectSpeech: m.Arg1 != 0})
			a.ttsFrameStarted = true
		}
		a.armTTSTimeout()

	case whatTTSFrame:
		final := m.Arg2 != 0
		if a.speakerMuted {
			slog.Warn("playback: speaker muted, discarding tts frame")
			a.closeTTSStream()
			a.looper.RemoveSelfByTag(a, whatCheckTTSTimeout)
			return
		}
		if a.ttsFrameStarted {
			data, _ := m.Data.([]byte)
			a.writer.push(ttsFrame{id: a.ttsID, data: data, final: final})
			a.looper.RemoveSelfByTag(a, whatCheckTTSTimeout)
			if final {
				a.closeTTSStream()
			} else {
				a.armTTSTimeout()
			}
		}

	case whatCheckTTSTimeout:
		slog.Error("playback: tts frame timeout", "id", a.ttsID)
		metrics.TTSTimeouts.Inc()
		if a.tts.busy() && a.tts.id == a.ttsID {
			a.reset(a.tts)
		} else {
			a.queue.removeTTS(a.ttsID)
			a.writer.drop(a.ttsID)
		}
		a.closeTTSStream()

	case whatPrompt:
		url, _ := m.Data.(string)
		if a.speakerMuted {
			slog.Warn("playback: speaker muted, discarding prompt", "url", url)
			return
		}
		a.suspend(a.music)
		a.queue.add(entry{stream: models.StreamPrompt, url: url})

	case whatMusic:
		url, _ := m.Data.(string)
		if a.speakerMuted {
			slog.Warn("playback: speaker muted, discarding music", "url", url)
			return
		}
		a.reset(a.music)
		a.queue.removeIf(func(e entry) bool { return e.stream == models.StreamMusic })
		a.queue.add(entry{stream: models.StreamMusic, url: url})

	case whatWakeupPrompt:
		url, _ := m.Data.(string)
		if a.speakerMuted {
			slog.Warn("playback: speaker muted, discarding wakeup prompt", "url", url)
			return
		}
		a.suspend(a.music)
		a.reset(a.tts)
		a.reset(a.prompt)
		a.purge(purgePlayOnce)
		a.queue.add(entry{stream: models.StreamPromptWakeup, url: url})

	case whatPause:
		a.looper.RemoveSelfByTag(a, whatResumeFromSuspend)
		a.commandPause = true
		a.pause(a.music, out)

	case whatResume:
		a.commandPause = false
		if a.needResumeMusic() {
			a.start(a.music, out)
		}

	case whatResumeFromSuspend:
		if a.needResumeMusic() {
			a.resumeFromSuspend(a.music)
		}

	case whatStop:
		a.reset(a.music)
		a.reset(a.tts)
		a.resetPrompt()
		a.purge(purgeAll)

	case whatStopPlayOnce:
		a.reset(a.tts)
		a.resetPrompt()
		a.purge(purgeAll)

	case whatGatewayChanged:
		if m.Arg1 != 0 {
			a.gatewayDisconnected = false
			if a.needResumeMusic() {
				a.resumeFromSuspend(a.music)
			}
			return
		}
		a.gatewayDisconnected = true
		a.suspend(a.music)
		a.reset(a.tts)
		a.purge(purgeTTS)

	case whatMicrophoneChanged:
		if m.Arg1 != 0 {
			if a.micStarted {
				return
			}
			a.micStarted = true
			a.suspend(a.music)
			a.reset(a.tts)
			a.resetPrompt()
			a.purge(purgePlayOnce)
			return
		}
		a.micStarted = false
		if a.needResumeMusic() {
			a.resumeMusicLater()
		}

	case whatSpeakerChanged:
		if m.Arg1 != 0 {
			a.speakerMuted = true
			a.suspend(a.music)
			a.reset(a.tts)
			a.reset(a.prompt)
			a.purge(purgeAllPlayOnce)
			return
		}
		a.speakerMuted = false
		if a.needResumeMusic() {
			a.resumeFromSuspend(a.music)
		}

	case whatPlayerChanged:
		a.handleStateChanged(models.Stream(m.Arg1), models.PlayerState(m.Arg2), out)

	default:
		slog.Error("playback: unknown message", "what", m.What)
	}
}

// handleStateChanged applies an engine report and forwards it to the
// listeners under the stream actually playing.
func (a *Arbiter) handleStateChanged(kind models.Stream, state models.PlayerState, out *outbox) {
	var p *player
	switch kind {
	case models.StreamTTS:
		p = a.tts
	case models.StreamPrompt:
		p = a.prompt
	case models.StreamMusic:
		p = a.music
	default:
		slog.Error("playback: state change for unknown player", "stream", kind, "state", state)
		return
	}
	slog.Info("playback: player state changed", "player", kind, "state", state)
	metrics.PlayerStateChanges.WithLabelValues(kind.String(), state.String()).Inc()

	stream, expectSpeech := p.stream, p.expectSpeech
	if kind == models.StreamMusic && state == models.PlayerStateStarted && p.state >= models.PlayerStateStarted {
		state = models.PlayerStateResumed
	}
	if err := models.ValidatePlayerTransition(p.state, state); err != nil {
		slog.Warn("playback: unexpected engine report", "player", kind, "error", err)
	}
	if state != models.PlayerStateNearlyCompleted {
		p.state = state
	}

	notify := true
	switch state {
	case models.PlayerStateIdle:
		p.active = false
		p.started = false
		if a.needResumeMusic() {
			if stream == models.StreamPromptWakeup || expectSpeech {
				a.resumeMusicLater()
			} else {
				a.resumeFromSuspend(a.music)
			}
		}

	case models.PlayerStatePrepared:
		if kind == models.StreamMusic {
			if a.needResumeMusic() {
				a.start(a.music, out)
			}
		} else if !a.speakerMuted {
			a.start(p, out)
		}

	case models.PlayerStateStarted, models.PlayerStateResumed:
		if kind == models.StreamMusic {
			if !a.needResumeMusic() {
				a.suspend(a.music)
			}
			if !a.musicResuming && state == models.PlayerStateResumed {
				notify = false
			}
			a.musicResuming = false
		}

	case models.PlayerStatePaused:
		p.started = false
		if kind == models.StreamMusic {
			if !a.musicPausing {
				notify = false
			}
			a.musicPausing = false
		}

	case models.PlayerStateCompleted, models.PlayerStateStopped, models.PlayerStateError:
		a.reset(p)
	}

	if notify {
		out.state(stream, state, expectSpeech)
	}
}

// prepareNext hands the head of the queue to its player once no other
// content renders.
func (a *Arbiter) prepareNext() {
	if a.speakerMuted || a.tts.active || a.prompt.active || a.music.started {
		return
	}
	e, ok := a.queue.front()
	if !ok {
		return
	}
	if a.micStarted && e.stream != models.StreamPromptWakeup {
		return
	}
	if a.gatewayDisconnected && (e.stream == models.StreamMusic || e.stream == models.StreamTTS) {
		return
	}

	switch e.stream {
	case models.StreamTTS:
		a.tts.id = e.id
		a.tts.stream = e.stream
		a.tts.expectSpeech = e.expectSpeech
		a.setSource(a.tts, "")
		a.prepare(a.tts)
	case models.StreamPrompt, models.StreamPromptWakeup:
		a.prompt.stream = e.stream
		a.prompt.expectSpeech = e.expectSpeech
		a.setSource(a.prompt, e.url)
		a.prepare(a.prompt)
	case models.StreamMusic:
		if a.music.active {
			return
		}
		a.commandPause = false
		a.musicPausing = false
		a.musicResuming = false
		a.music.stream = e.stream
		a.music.expectSpeech = e.expectSpeech
		a.setSource(a.music, e.url)
		a.prepare(a.music)
	}
	a.queue.pop()
}

// needResumeMusic reports whether nothing holds music back.
func (a *Arbiter) needResumeMusic() bool {
	playOnce := a.queue.playOncePending() || a.tts.active || a.prompt.active
	return !playOnce && !a.commandPause && !a.gatewayDisconnected && !a.micStarted && !a.speakerMuted
}

// resumeMusicLater resumes music after the grace window, leaving room for
// the user to speak first.
func (a *Arbiter) resumeMusicLater() {
	a.looper.RemoveSelfByTag(a, whatResumeFromSuspend)
	m := looper.NewMessage(whatResumeFromSuspend).WithOwner(a)
	_ = a.postDelayed(m, a.config.ResumeGrace)
}

func (a *Arbiter) armTTSTimeout() {
	a.looper.RemoveSelfByTag(a, whatCheckTTSTimeout)
	m := looper.NewMessage(whatCheckTTSTimeout).WithOwner(a)
	_ = a.postDelayed(m, a.config.TTSFrameTimeout)
}

// closeTTSStream ends the speech stream being received.
func (a *Arbiter) closeTTSStream() {
	if a.ttsFrameStarted {
		a.ttsID++
		a.ttsFrameStarted = false
	}
}

// resetPrompt resets the prompt player unless it plays a wakeup prompt.
func (a *Arbiter) resetPrompt() {
	if a.prompt.stream != models.StreamPromptWakeup {
		a.reset(a.prompt)
	}
}

// purge drops queued content and every unwritten speech frame.
func (a *Arbiter) purge(mode purgeMode) {
	a.queue.purge(mode)
	a.writer.clear()
}

// audit logs the arbiter state and flags more than one renderer at a time.
func (a *Arbiter) audit() {
	if a.queue.len() > 0 {
		streams := make([]string, 0, a.queue.len())
		for _, e := range a.queue.entries {
			streams = append(streams, e.stream.String())
		}
		slog.Debug("playback: queue", "entries", streams)
	}
	slog.Debug("playback: state",
		"gateway_disconnected", a.gatewayDisconnected,
		"microphone_started", a.micStarted,
		"speaker_muted", a.speakerMuted,
		"command_pause", a.commandPause,
		"tts", a.tts.state, "prompt", a.prompt.state, "music", a.music.state)

	rendering := 0
	for _, on := range []bool{a.tts.active, a.prompt.active, a.music.started} {
		if on {
			rendering++
		}
	}
	if rendering > 1 {
		metrics.RendererViolations.Inc()
		slog.Error("playback: multiple players rendering",
			"tts_active", a.tts.active, "prompt_active", a.prompt.active, "music_started", a.music.started)
	}
}
