package orchestrator

import (
	"log/slog"

	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/protocol"
)

// OnNetworkConnected starts a fresh gateway connection. Repeated calls are ignored.
func (s *Service) OnNetworkConnected() {
	slog.Info("orchestrator: network connected")
	s.locked(func(out *outbox) {
		s.reconnectCount = 0
		if s.networkConnected {
			return
		}
		s.networkConnected = true
		s.clearAll(out)
		s.post(whatConnect)
		out.status(domain.StatusNetworkConnected)
	})
}

// OnNetworkDisconnected drops the gateway connection. Repeated calls are ignored.
func (s *Service) OnNetworkDisconnected() {
	slog.Info("orchestrator: network disconnected")
	s.locked(func(out *outbox) {
		if !s.networkConnected {
			return
		}
		s.networkConnected = false
		s.clearAll(out)
		s.post(whatDisconnect)
		out.status(domain.StatusNetworkDisconnected)
	})
}

// OnMicrophoneWakeup opens a listening window. The wakeup is refused while
// the session is not usable, a window is already open or the speaker is
// muted. If no audio arrives before the watchdog fires, the window closes.
func (s *Service) OnMicrophoneWakeup(word string, doa int, confidence float64) {
	slog.Info("orchestrator: microphone wakeup", "word", word, "doa", doa, "confidence", confidence)
	s.locked(func(out *outbox) {
		s.speech.Doa = doa
		s.speech.Confidence = confidence
		if word != "" {
			s.speech.WakeupWord = word
		}

		switch {
		case !s.usable():
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring wakeup")
			return
		case s.micWakeup:
			slog.Error("orchestrator: microphone already awake, ignoring wakeup")
			return
		case s.speakerMuted:
			slog.Error("orchestrator: speaker muted, ignoring wakeup")
			return
		}

		s.micWakeup = true
		s.postDelayed(whatCheckMicrophone, s.config.MicrophoneWatchdog)
		out.status(domain.StatusMicrophoneWakeup)
	})
}

// OnMicrophoneStreaming forwards one chunk of recorded audio. The first chunk
// after a wakeup starts the upload; the final chunk closes the window and
// releases the deferred events.
func (s *Service) OnMicrophoneStreaming(format domain.AudioFormat, buf []byte, final bool) {
	s.locked(func(out *outbox) {
		if !s.micWakeup {
			slog.Error("orchestrator: microphone not awake, ignoring audio")
			return
		}

		if !s.micStarted {
			s.micStarted = true
			s.speech.Format = format
			out.status(domain.StatusMicrophoneStarted)
			s.looper.RemoveSelfByTag(s, whatCheckMicrophone)
			s.post(whatMicStarted)
		}

		finalArg := 0
		if final {
			finalArg = 1
		}
		chunk := append([]byte(nil), buf...)
		s.postMessage(s.message(whatMicStreaming, len(chunk), finalArg, chunk), 0)

		if final {
			s.micWakeup = false
			s.micStarted = false
			s.post(whatMicStopped)
			out.status(domain.StatusMicrophoneStopped)
			s.flushPending()
		}
	})
}

// OnExpectSpeech reopens the microphone after a prompt that asked a question.
func (s *Service) OnExpectSpeech() {
	slog.Info("orchestrator: expect speech")
	s.locked(func(out *outbox) {
		if !s.usable() {
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring expect speech")
			return
		}
		if !s.micStarted && !s.speakerMuted {
			s.micWakeup = true
			out.command(expectSpeechStart())
		}
	})
}

// OnMicrophoneSilence asks the recorder to stop.
func (s *Service) OnMicrophoneSilence() {
	slog.Info("orchestrator: microphone silence")
	s.listeners.notifyCommand(expectSpeechStop())
}

// OnSpeakerVolumeChanged reports a volume change. Unchanged values are ignored.
func (s *Service) OnSpeakerVolumeChanged(volume int) {
	slog.Info("orchestrator: speaker volume changed", "volume", volume)
	s.locked(func(out *outbox) {
		if s.speaker.Volume == volume {
			return
		}
		s.speaker.Volume = volume
		if !s.usable() {
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring volume change")
			return
		}
		m := s.message(whatSpeakerChanged, int(protocol.SpeakerVolumeChanged), 0, nil)
		s.postOrDefer(m, s.micWakeup || s.speakerMuted)
	})
}

// OnSpeakerMutedChanged records the mute state and reports it. Unmuting
// releases the events deferred while muted.
func (s *Service) OnSpeakerMutedChanged(muted bool) {
	slog.Info("orchestrator: speaker mute changed", "muted", muted)
	s.locked(func(out *outbox) {
		if s.speaker.Muted == muted {
			return
		}
		s.speakerMuted = muted
		s.speaker.Muted = muted
		if muted {
			out.status(domain.StatusSpeakerMuted)
		} else {
			out.status(domain.StatusSpeakerUnmuted)
		}

		if s.usable() {
			m := s.message(whatSpeakerChanged, int(protocol.SpeakerMutedChanged), 0, nil)
			s.postOrDefer(m, s.micWakeup)
		} else {
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring mute change")
		}

		// Unmuting closes the deferral window unless the microphone holds it open.
		if !muted && !s.micWakeup {
			s.flushPending()
		}
	})
}

func (s *Service) OnPlayerStarted() {
	s.playerChanged(protocol.PlayerStarted, func() {
		s.playerStarted = true
		s.promotePlayerContext()
	})
}

func (s *Service) OnPlayerPaused() {
	s.playerChanged(protocol.PlayerPaused, nil)
}

func (s *Service) OnPlayerResumed() {
	s.playerChanged(protocol.PlayerResumed, nil)
}

func (s *Service) OnPlayerNearlyFinished() {
	s.playerChanged(protocol.PlayerNearlyFinished, nil)
}

func (s *Service) OnPlayerFinished() {
	s.playerChanged(protocol.PlayerFinished, func() { s.playerStarted = false })
}

func (s *Service) OnPlayerStopped() {
	s.playerChanged(protocol.PlayerStopped, func() { s.playerStarted = false })
}

// OnPlayerFailed reports a music failure. A failure before playback started
// belongs to the item last requested, so its context is promoted first.
func (s *Service) OnPlayerFailed() {
	s.playerChanged(protocol.PlayerFailed, func() {
		if !s.playerStarted {
			s.promotePlayerContext()
		} else {
			s.playerStarted = false
		}
	})
}

// playerChanged applies update and queues the playback event.
func (s *Service) playerChanged(reason protocol.PlayerSyncReason, update func()) {
	slog.Info("orchestrator: player changed", "reason", reason)
	s.locked(func(out *outbox) {
		if update != nil {
			update()
		}
		if !s.usable() {
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring player change", "reason", reason)
			return
		}
		m := s.message(whatPlayerChanged, int(reason), 0, nil)
		s.postOrDefer(m, s.micWakeup || s.speakerMuted)
	})
}

// promotePlayerContext makes the last requested item the current one.
// Callers hold mu.
func (s *Service) promotePlayerContext() {
	if s.playerCache.Empty() {
		return
	}
	s.player = s.playerCache
	s.playerCache = protocol.PlayerContext{}
}

// OnQueryUserInfo asks the gateway for the account profile.
func (s *Service) OnQueryUserInfo() {
	slog.Info("orchestrator: query user info")
	s.locked(func(out *outbox) {
		if !s.usable() {
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring user info query")
			return
		}
		s.postOrDefer(s.message(whatQueryUserInfo, 0, 0, nil), s.micWakeup || s.speakerMuted)
	})
}

// OnTextRecognize submits typed input in place of speech.
func (s *Service) OnTextRecognize(text string) {
	slog.Info("orchestrator: text recognize", "text", text)
	s.locked(func(out *outbox) {
		if !s.usable() {
			slog.Error("orchestrator: gateway disconnected or unauthorized, ignoring text")
			return
		}
		s.postOrDefer(s.message(whatTextRecognize, 0, 0, text), s.micWakeup || s.speakerMuted)
	})
}
