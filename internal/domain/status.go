package domain

// Status is a connectivity or device state change reported to status listeners.
type Status int

const (
	StatusNetworkDisconnected Status = iota
	StatusNetworkConnected
	StatusGatewayDisconnected
	StatusGatewayConnected
	StatusUnauthorized
	StatusAuthorized
	StatusSpeakerUnmuted
	StatusSpeakerMuted
	StatusMicrophoneWakeup
	StatusMicrophoneStarted
	StatusMicrophoneStopped
)

var statusNames = map[Status]string{
	StatusNetworkDisconnected: "network_disconnected",
	StatusNetworkConnected:    "network_connected",
	StatusGatewayDisconnected: "gateway_disconnected",
	StatusGatewayConnected:    "gateway_connected",
	StatusUnauthorized:        "unauthorized",
	StatusAuthorized:          "authorized",
	StatusSpeakerUnmuted:      "speaker_unmuted",
	StatusSpeakerMuted:        "speaker_muted",
	StatusMicrophoneWakeup:    "microphone_wakeup",
	StatusMicrophoneStarted:   "microphone_started",
	StatusMicrophoneStopped:   "microphone_stopped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// AudioFormat is the encoding of microphone audio streamed to the gateway.
type AudioFormat int

const (
	AudioFormatWAV AudioFormat = iota
	AudioFormatSpeexOgg
)

func (f AudioFormat) String() string {
	switch f {
	case AudioFormatWAV:
		return "WAV"
	case AudioFormatSpeexOgg:
		return "SPEEXOGG"
	default:
		return "unknown"
	}
}
