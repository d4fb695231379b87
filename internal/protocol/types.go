// Package protocol defines the gateway wire format: inbound command
// envelopes, outbound events and the microphone stream header.
package protocol

// Domain is the commandDomain of an inbound command.
type Domain string

const (
	DomainAccount          Domain = "Account"
	DomainSystem           Domain = "System"
	DomainMicrophone       Domain = "Microphone"
	DomainSpeaker          Domain = "Speaker"
	DomainText             Domain = "Text"
	DomainAudio            Domain = "Audio"
	DomainSystemControl    Domain = "System.Control"
	DomainDotMatrixDisplay Domain = "DotMatrixDisplay"
	DomainNetwork          Domain = "Network"
	DomainLight            Domain = "Light"
	DomainData             Domain = "Data"
	DomainAlarm            Domain = "Alarm"
)

// CommandName is the commandName of an inbound command.
type CommandName string

const (
	// Account
	CommandGuestDeviceActivateResp  CommandName = "GuestDeviceActivateResp"
	CommandMemberDeviceActivateResp CommandName = "MemberDeviceActivateResp"
	CommandUserInfoResp             CommandName = "UserInfoResp"

	// Microphone
	CommandStopListen        CommandName = "StopListen"
	CommandExpectSpeechStart CommandName = "ExpectSpeechStart"
	CommandExpectSpeechStop  CommandName = "ExpectSpeechStop"

	// Speaker
	CommandSpeak        CommandName = "Speak"
	CommandSetVolume    CommandName = "SetVolume"
	CommandAdjustVolume CommandName = "AdjustVolume"
	CommandSetMute      CommandName = "SetMute"

	// Text
	CommandListenResult CommandName = "ListenResult"

	// Audio
	CommandPlay       CommandName = "Play"
	CommandPlayOnce   CommandName = "PlayOnce"
	CommandClearQueue CommandName = "ClearQueue"

	CommandRender        CommandName = "Render"
	CommandAdjust        CommandName = "Adjust"
	CommandDataSync      CommandName = "DataSync"
	CommandSet           CommandName = "Set"
	CommandNetworkConfig CommandName = "NetworkConfig"

	// System
	CommandSetting        CommandName = "Setting"
	CommandThrowException CommandName = "ThrowException"
	CommandSuccess        CommandName = "Success"

	// System.Control
	CommandPause   CommandName = "Pause"
	CommandResume  CommandName = "Resume"
	CommandExit    CommandName = "Exit"
	CommandStandby CommandName = "Standby"
	CommandVolume  CommandName = "Volume"
)

// knownCommands lists the commands each domain may carry.
var knownCommands = map[Domain][]CommandName{
	DomainAccount:          {CommandGuestDeviceActivateResp, CommandMemberDeviceActivateResp, CommandUserInfoResp},
	DomainMicrophone:       {CommandStopListen, CommandExpectSpeechStart, CommandExpectSpeechStop},
	DomainSpeaker:          {CommandSpeak, CommandSetVolume, CommandAdjustVolume, CommandSetMute},
	DomainText:             {CommandListenResult},
	DomainAudio:            {CommandPlay, CommandPlayOnce, CommandClearQueue},
	DomainDotMatrixDisplay: {CommandRender},
	DomainLight:            {CommandAdjust},
	DomainData:             {CommandDataSync},
	DomainAlarm:            {CommandSet},
	DomainNetwork:          {CommandNetworkConfig},
	DomainSystem:           {CommandSetting, CommandThrowException, CommandSuccess},
	DomainSystemControl:    {CommandPause, CommandResume, CommandExit, CommandStandby, CommandVolume},
}

// Known reports whether the domain and command form a recognized pair.
func Known(domain Domain, command CommandName) bool {
	for _, c := range knownCommands[domain] {
		if c == command {
			return true
		}
	}
	return false
}

// ErrorCode is the errorCode carried by System/ThrowException.
type ErrorCode int

const (
	ErrorGeneral                ErrorCode = -1
	ErrorBadRequest             ErrorCode = 400
	ErrorUnauthorized           ErrorCode = 401
	ErrorForbidden              ErrorCode = 403
	ErrorNotFound               ErrorCode = 404
	ErrorThrottling             ErrorCode = 429
	ErrorInternalServerError    ErrorCode = 500
	ErrorServiceUnavailable     ErrorCode = 503
	ErrorGatewayTimeout         ErrorCode = 504
	ErrorAsrRecognize           ErrorCode = 600
	ErrorNluExecute             ErrorCode = 601
	ErrorTtsSynthesize          ErrorCode = 602
	ErrorAuthCodeNotValid       ErrorCode = 603
	ErrorNluNotUnderstandSpeech ErrorCode = 604
	ErrorSuccess                ErrorCode = 100000
)

// StateSyncReason explains why a SynchronizeState event is sent.
type StateSyncReason string

const (
	StateSyncStart     StateSyncReason = "START"
	StateSyncReconnect StateSyncReason = "RECONNECT"
)

// SpeakerSyncReason selects the speaker event.
type SpeakerSyncReason int

const (
	SpeakerVolumeChanged SpeakerSyncReason = iota
	SpeakerMutedChanged
)

// PlayerSyncReason selects the playback event.
type PlayerSyncReason int

const (
	PlayerStarted PlayerSyncReason = iota
	PlayerPaused
	PlayerResumed
	PlayerNearlyFinished
	PlayerFinished
	PlayerStopped
	PlayerFailed
)

var playerSyncNames = map[PlayerSyncReason]string{
	PlayerStarted:        "started",
	PlayerPaused:         "paused",
	PlayerResumed:        "resumed",
	PlayerNearlyFinished: "nearly_finished",
	PlayerFinished:       "finished",
	PlayerStopped:        "stopped",
	PlayerFailed:         "failed",
}

func (r PlayerSyncReason) String() string {
	if name, ok := playerSyncNames[r]; ok {
		return name
	}
	return "unknown"
}

// MicrophoneActiveReason says who opened the microphone.
type MicrophoneActiveReason string

const (
	MicrophoneActiveUser   MicrophoneActiveReason = "USER"
	MicrophoneActiveServer MicrophoneActiveReason = "SERVER"
)
