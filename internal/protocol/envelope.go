package protocol

import (
	"encoding/json"

	"github.com/longregen/alicia-edge/internal/domain"
)

// Event namespaces.
const (
	NamespaceAccount    = "Account"
	NamespaceMicrophone = "Microphone"
	NamespaceSpeaker    = "Speaker"
	NamespaceText       = "Text"
	NamespaceAudio      = "Audio"
	NamespaceSystem     = "System"
)

// Event names.
const (
	EventGuestDeviceActivate    = "GuestDeviceActivate"
	EventUserInfo               = "UserInfo"
	EventActive                 = "Active"
	EventListenStarted          = "ListenStarted"
	EventVolumeChanged          = "VolumeChanged"
	EventMuteChanged            = "MuteChanged"
	EventRecognize              = "Recognize"
	EventPlaybackStarted        = "PlaybackStarted"
	EventPlaybackPaused         = "PlaybackPaused"
	EventPlaybackResumed        = "PlaybackResumed"
	EventPlaybackNearlyFinished = "PlaybackNearlyFinished"
	EventPlaybackFinished       = "PlaybackFinished"
	EventPlaybackStopped        = "PlaybackStopped"
	EventPlaybackFailed         = "PlaybackFailed"
	EventSynchronizeState       = "SynchronizeState"
)

var playbackEvents = map[PlayerSyncReason]string{
	PlayerStarted:        EventPlaybackStarted,
	PlayerPaused:         EventPlaybackPaused,
	PlayerResumed:        EventPlaybackResumed,
	PlayerNearlyFinished: EventPlaybackNearlyFinished,
	PlayerFinished:       EventPlaybackFinished,
	PlayerStopped:        EventPlaybackStopped,
	PlayerFailed:         EventPlaybackFailed,
}

// Header carries routing and identity for an outbound event.
type Header struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	MessageID   string `json:"messageId"`
	UUID        string `json:"uuid,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	BizType     string `json:"bizType,omitempty"`
	BizGroup    string `json:"bizGroup,omitempty"`
}

// Event is an outbound message to the gateway.
type Event struct {
	Header  Header         `json:"header"`
	Payload any            `json:"payload"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Common meta keys
const (
	MetaKeyTraceID = "messaging.trace_id"
	MetaKeySpanID  = "messaging.span_id"
)

func (e *Event) WithMeta(key string, value any) *Event {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// WithTracing adds OpenTelemetry tracing fields
func (e *Event) WithTracing(traceID, spanID string) *Event {
	return e.WithMeta(MetaKeyTraceID, traceID).WithMeta(MetaKeySpanID, spanID)
}

// Marshal encodes the event as a JSON text frame.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Biz identifies the product line a device belongs to. An empty Biz means
// the gateway's default product line.
type Biz struct {
	Type   string
	Group  string
	Secret string
}

// IsDefault reports whether any part of the biz identity is missing.
func (b Biz) IsDefault() bool {
	return b.Type == "" || b.Group == "" || b.Secret == ""
}

// IDGenerator supplies message and dialog ids.
type IDGenerator interface {
	GenerateMessageID() string
	GenerateDialogID() string
}

// Builder creates outbound events stamped with the device biz identity.
type Builder struct {
	biz Biz
	ids IDGenerator
}

func NewBuilder(biz Biz, ids IDGenerator) *Builder {
	if biz.IsDefault() {
		biz = Biz{}
	}
	return &Builder{biz: biz, ids: ids}
}

func (b *Builder) event(namespace, name string, creds domain.Credentials, payload any) *Event {
	if payload == nil {
		payload = struct{}{}
	}
	return &Event{
		Header: Header{
			Namespace:   namespace,
			Name:        name,
			MessageID:   b.ids.GenerateMessageID(),
			UUID:        creds.UUID,
			AccessToken: creds.AccessToken,
			BizType:     b.biz.Type,
			BizGroup:    b.biz.Group,
		},
		Payload: payload,
	}
}

// GuestDeviceActivate asks the gateway for guest credentials.
func (b *Builder) GuestDeviceActivate(mac string) *Event {
	payload := map[string]string{"mac": mac}
	if b.biz.Secret != "" {
		payload["bizSecret"] = b.biz.Secret
	}
	return b.event(NamespaceAccount, EventGuestDeviceActivate, domain.Credentials{}, payload)
}

func (b *Builder) QueryUserInfo(creds domain.Credentials) *Event {
	return b.event(NamespaceAccount, EventUserInfo, creds, nil)
}

type stateSyncPayload struct {
	Reason  StateSyncReason `json:"reason"`
	Speaker *SpeakerContext `json:"speaker,omitempty"`
	Player  *PlayerContext  `json:"player,omitempty"`
}

// StateSync reports the full device state after authorization. Either
// context may be nil.
func (b *Builder) StateSync(creds domain.Credentials, reason StateSyncReason, speaker *SpeakerContext, player *PlayerContext) *Event {
	if player.Empty() {
		player = nil
	}
	return b.event(NamespaceSystem, EventSynchronizeState, creds, stateSyncPayload{
		Reason:  reason,
		Speaker: speaker,
		Player:  player,
	})
}

func (b *Builder) SpeakerSync(creds domain.Credentials, reason SpeakerSyncReason, speaker SpeakerContext) *Event {
	name := EventVolumeChanged
	if reason == SpeakerMutedChanged {
		name = EventMuteChanged
	}
	return b.event(NamespaceSpeaker, name, creds, speaker)
}

func (b *Builder) PlayerSync(creds domain.Credentials, reason PlayerSyncReason, player PlayerContext) *Event {
	name, ok := playbackEvents[reason]
	if !ok {
		name = EventPlaybackFailed
	}
	return b.event(NamespaceAudio, name, creds, player)
}

func (b *Builder) TextRecognize(creds domain.Credentials, text string) *Event {
	return b.event(NamespaceText, EventRecognize, creds, map[string]string{"inputText": text})
}

func (b *Builder) MicrophoneActive(creds domain.Credentials, reason MicrophoneActiveReason) *Event {
	return b.event(NamespaceMicrophone, EventActive, creds, map[string]MicrophoneActiveReason{"reason": reason})
}

type listenStartedPayload struct {
	DialogID string `json:"dialogId"`
	Format   string `json:"format"`
	SpeechContext
}

func (b *Builder) ListenStarted(creds domain.Credentials, speech SpeechContext) *Event {
	return b.event(NamespaceMicrophone, EventListenStarted, creds, listenStartedPayload{
		DialogID:      b.ids.GenerateDialogID(),
		Format:        speech.Format.String(),
		SpeechContext: speech,
	})
}

// MicrophoneBinaryHeader is the first fragment of a microphone stream.
func MicrophoneBinaryHeader(format domain.AudioFormat) []byte {
	header, _ := json.Marshal(struct {
		Stream  string `json:"stream"`
		Format  string `json:"format"`
		Version int    `json:"version"`
	}{"microphone", format.String(), 1})
	return header
}
