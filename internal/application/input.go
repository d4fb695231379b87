package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/longregen/alicia-edge/internal/domain"
)

// NetworkConnected reports that the device joined a network.
func (a *Assistant) NetworkConnected() {
	a.session.OnNetworkConnected()
}

// NetworkDisconnected reports that the device lost its network.
func (a *Assistant) NetworkDisconnected() {
	a.session.OnNetworkDisconnected()
}

// Wakeup opens a listening window for a detected wakeup word. While the
// gateway cannot be reached the matching prompt is played instead and
// domain.ErrNotActive is returned.
func (a *Assistant) Wakeup(word string, doa int, confidence float64) error {
	_, span := a.tracer.Start(context.Background(), "assistant.wakeup")
	defer span.End()
	span.SetAttributes(
		attribute.String("wakeup.word", word),
		attribute.Float64("wakeup.confidence", confidence),
	)

	if err := a.usable(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("wakeup: %w", err)
	}
	a.session.OnMicrophoneWakeup(word, doa, confidence)
	return nil
}

// TextRecognize sends typed input as if it had been spoken.
func (a *Assistant) TextRecognize(text string) error {
	_, span := a.tracer.Start(context.Background(), "assistant.text")
	defer span.End()
	span.SetAttributes(attribute.Int("text.length", len(text)))

	if strings.TrimSpace(text) == "" {
		span.SetStatus(codes.Error, "empty text")
		return fmt.Errorf("text recognize: %w", domain.ErrInvalidInput)
	}
	if err := a.usable(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("text recognize: %w", err)
	}
	a.session.OnTextRecognize(text)
	return nil
}

// MicrophoneStreaming forwards a chunk of captured audio.
func (a *Assistant) MicrophoneStreaming(format domain.AudioFormat, buf []byte, final bool) {
	a.session.OnMicrophoneStreaming(format, buf, final)
}

// MicrophoneSilence reports the end of speech.
func (a *Assistant) MicrophoneSilence() {
	a.session.OnMicrophoneSilence()
}

// SetVolume changes the speaker volume and reports it to the gateway.
func (a *Assistant) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("set volume %d: %w", volume, domain.ErrInvalidInput)
	}
	if !a.setVolume(volume) {
		return fmt.Errorf("set volume %d: speaker refused the value", volume)
	}
	return nil
}

func (a *Assistant) setVolume(volume int) bool {
	if !a.vendor.SetSpeakerVolume(volume) {
		slog.Warn("assistant: speaker refused volume", "volume", volume)
		return false
	}
	a.session.OnSpeakerVolumeChanged(volume)
	return true
}

// SetMuted mutes or unmutes the speaker. Playback follows through the
// session's mute status.
func (a *Assistant) SetMuted(muted bool) error {
	if !a.vendor.SetSpeakerMuted(muted) {
		return fmt.Errorf("set muted %t: speaker refused the value", muted)
	}
	a.session.OnSpeakerMutedChanged(muted)
	return nil
}

// PlayPrompt queues a local prompt.
func (a *Assistant) PlayPrompt(url string) error {
	if url == "" {
		return fmt.Errorf("play prompt: %w", domain.ErrInvalidInput)
	}
	return a.arbiter.NewPrompt(url)
}

// QueryUserInfo asks the gateway for the account details.
func (a *Assistant) QueryUserInfo() {
	a.session.OnQueryUserInfo()
}

// usable plays the prompt matching the first connectivity problem and
// returns domain.ErrNotActive, or nil when the session can take input.
func (a *Assistant) usable() error {
	a.mu.Lock()
	started := a.started
	network, unauthorized, gateway := a.networkDisconnected, a.unauthorized, a.gatewayDisconnected
	a.mu.Unlock()

	switch {
	case !started:
		return domain.ErrNotActive
	case network:
		a.connectivityPrompt("network_lost", a.config.Prompts.NetworkLost)
	case unauthorized:
		a.connectivityPrompt("unauthorized", a.config.Prompts.Unauthorized)
	case gateway:
		a.connectivityPrompt("server_lost", a.config.Prompts.ServerLost)
	case !a.session.IsActive():
		// connected, activation still in flight
		a.connectivityPrompt("not_activated", a.config.Prompts.NotActivated)
	default:
		return nil
	}
	return domain.ErrNotActive
}
