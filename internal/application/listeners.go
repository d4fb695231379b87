package application

import (
	"log/slog"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/domain/models"
	"github.com/longregen/alicia-edge/internal/protocol"
)

func (a *Assistant) onCommand(cmd *protocol.Command) {
	var err error
	switch {
	case cmd.Is(protocol.DomainSpeaker, protocol.CommandSpeak):
		var p protocol.SpeakPayload
		if err = cmd.Decode(&p); err == nil {
			err = a.arbiter.NewTTSHeader(p.ExpectSpeech)
		}

	case cmd.Is(protocol.DomainAudio, protocol.CommandPlay):
		var p protocol.AudioPayload
		if err = cmd.Decode(&p); err == nil {
			err = a.arbiter.NewMusic(p.AudioURL)
		}

	case cmd.Is(protocol.DomainAudio, protocol.CommandPlayOnce):
		var p protocol.AudioPayload
		if err = cmd.Decode(&p); err == nil {
			err = a.arbiter.NewPrompt(p.AudioURL)
		}

	case cmd.Is(protocol.DomainSystemControl, protocol.CommandPause):
		err = a.arbiter.Pause()

	case cmd.Is(protocol.DomainSystemControl, protocol.CommandResume):
		err = a.arbiter.Resume()

	case cmd.Is(protocol.DomainSystemControl, protocol.CommandExit),
		cmd.Is(protocol.DomainSystemControl, protocol.CommandStandby):
		err = a.arbiter.StopAll()

	case cmd.Is(protocol.DomainSystemControl, protocol.CommandVolume):
		var p protocol.VolumePayload
		if err = cmd.Decode(&p); err == nil && p.VolumeValue != nil {
			a.setVolume(*p.VolumeValue)
		}

	case cmd.Is(protocol.DomainAccount, protocol.CommandGuestDeviceActivateResp),
		cmd.Is(protocol.DomainAccount, protocol.CommandMemberDeviceActivateResp):
		a.saveCredentials(cmd)

	default:
		slog.Debug("assistant: command ignored", "domain", cmd.Domain, "command", cmd.Name)
	}

	if err != nil {
		slog.Warn("assistant: command not applied", "domain", cmd.Domain, "command", cmd.Name, "error", err)
	}
}

func (a *Assistant) onTTS(data []byte, final bool) {
	if err := a.arbiter.NewTTSFrame(data, final); err != nil {
		slog.Warn("assistant: tts frame dropped", "bytes", len(data), "error", err)
	}
}

func (a *Assistant) onStatus(status domain.Status) {
	var err error
	switch status {
	case domain.StatusNetworkConnected:
		a.mu.Lock()
		a.networkDisconnected = false
		a.mu.Unlock()

	case domain.StatusNetworkDisconnected:
		a.mu.Lock()
		first := !a.networkDisconnected
		a.networkDisconnected = true
		a.mu.Unlock()
		if first {
			a.connectivityPrompt("network_lost", a.config.Prompts.NetworkLost)
		}

	case domain.StatusGatewayConnected:
		a.mu.Lock()
		a.gatewayDisconnected = false
		a.mu.Unlock()
		err = a.arbiter.GatewayConnected(true)

	case domain.StatusGatewayDisconnected:
		a.mu.Lock()
		announce := !a.gatewayDisconnected && !a.networkDisconnected && !a.unauthorized
		a.gatewayDisconnected = true
		a.mu.Unlock()
		if announce {
			a.connectivityPrompt("server_lost", a.config.Prompts.ServerLost)
		}
		err = a.arbiter.GatewayConnected(false)

	case domain.StatusAuthorized:
		a.mu.Lock()
		a.unauthorized = false
		a.mu.Unlock()

	case domain.StatusUnauthorized:
		a.mu.Lock()
		first := !a.unauthorized
		a.unauthorized = true
		a.mu.Unlock()
		if first {
			a.connectivityPrompt("unauthorized", a.config.Prompts.Unauthorized)
		}
		a.clearCredentials()

	case domain.StatusSpeakerMuted:
		err = a.arbiter.SpeakerMuted(true)

	case domain.StatusSpeakerUnmuted:
		err = a.arbiter.SpeakerMuted(false)

	case domain.StatusMicrophoneWakeup:
		a.playWakeupPrompt("wakeup", a.config.Prompts.Wakeup)

	case domain.StatusMicrophoneStarted:
		err = a.arbiter.MicrophoneActive(true)

	case domain.StatusMicrophoneStopped:
		err = a.arbiter.MicrophoneActive(false)
	}

	if err != nil {
		slog.Warn("assistant: status not applied", "status", status, "error", err)
	}
}

// onPlaybackState reports music progress to the session and chains the
// listening prompts.
func (a *Assistant) onPlaybackState(stream models.Stream, state models.PlayerState, expectSpeech bool) {
	if stream == models.StreamMusic {
		a.onMusicState(state)
		return
	}
	if state != models.PlayerStateIdle {
		return
	}

	if stream == models.StreamPromptWakeup {
		a.session.OnExpectSpeech()
		return
	}
	if expectSpeech {
		a.playWakeupPrompt("record", a.config.Prompts.Record)
	}
}

func (a *Assistant) onMusicState(state models.PlayerState) {
	switch state {
	case models.PlayerStateStarted:
		a.session.OnPlayerStarted()
	case models.PlayerStatePaused:
		a.session.OnPlayerPaused()
	case models.PlayerStateResumed:
		a.session.OnPlayerResumed()
	case models.PlayerStateNearlyCompleted:
		a.session.OnPlayerNearlyFinished()
	case models.PlayerStateCompleted:
		a.setMusicCompleted(true)
		a.session.OnPlayerFinished()
	case models.PlayerStateError:
		a.setMusicCompleted(true)
		a.session.OnPlayerFailed()
	case models.PlayerStateIdle:
		if !a.setMusicCompleted(false) {
			a.session.OnPlayerStopped()
		}
	}
}

// setMusicCompleted stores v and returns the previous value.
func (a *Assistant) setMusicCompleted(v bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.musicCompleted
	a.musicCompleted = v
	return prev
}

// connectivityPrompt drops pending speech and prompts before announcing a
// connectivity problem.
func (a *Assistant) connectivityPrompt(name, url string) {
	if err := a.arbiter.StopPlayOnce(); err != nil {
		slog.Warn("assistant: failed to clear play-once content", "error", err)
	}
	a.playPrompt(name, url)
}

func (a *Assistant) playPrompt(name, url string) {
	metrics.PromptsPlayed.WithLabelValues(name).Inc()
	if err := a.arbiter.NewPrompt(url); err != nil {
		slog.Warn("assistant: prompt not played", "prompt", name, "url", url, "error", err)
	}
}

func (a *Assistant) playWakeupPrompt(name, url string) {
	metrics.PromptsPlayed.WithLabelValues(name).Inc()
	if err := a.arbiter.NewWakeupPrompt(url); err != nil {
		slog.Warn("assistant: wakeup prompt not played", "prompt", name, "url", url, "error", err)
	}
}

// saveCredentials persists the credentials of an activation response. The
// session has already rewritten the payload to the credentials, or to {}
// when they were unusable.
func (a *Assistant) saveCredentials(cmd *protocol.Command) {
	var creds domain.Credentials
	if err := cmd.Decode(&creds); err != nil || !creds.Valid() {
		return
	}
	if err := a.creds.Save(creds); err != nil {
		metrics.CredentialWrites.WithLabelValues("save", "error").Inc()
		slog.Error("assistant: failed to persist credentials", "error", err)
		return
	}
	metrics.CredentialWrites.WithLabelValues("save", "ok").Inc()
}

func (a *Assistant) clearCredentials() {
	if err := a.creds.Clear(); err != nil {
		metrics.CredentialWrites.WithLabelValues("clear", "error").Inc()
		slog.Error("assistant: failed to clear credentials", "error", err)
		return
	}
	metrics.CredentialWrites.WithLabelValues("clear", "ok").Inc()
}
