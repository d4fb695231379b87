package protocol

import "github.com/longregen/alicia-edge/internal/domain"

// PlayerContext describes the music item the gateway last asked to play.
// It is cached from Audio/Play and echoed back in player and state syncs.
type PlayerContext struct {
	Source      string `json:"source,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	AudioAnchor string `json:"audioAnchor,omitempty"`
	AudioExt    string `json:"audioExt,omitempty"`
	AudioID     string `json:"audioId,omitempty"`
	AudioName   string `json:"audioName,omitempty"`
	AudioType   string `json:"audioType,omitempty"`
	AudioAlbum  string `json:"audioAlbum,omitempty"`
	AudioSource string `json:"audioSource,omitempty"`
	Progress    int    `json:"progress"`
	AudioLength int    `json:"audioLength"`
}

// Empty reports whether no Audio/Play has been seen yet.
func (c *PlayerContext) Empty() bool {
	return c == nil || (c.AudioURL == "" && c.AudioID == "")
}

// SpeakerContext is the local speaker state.
type SpeakerContext struct {
	Volume int  `json:"volume"`
	Muted  bool `json:"muted"`
}

// DefaultWakeupWord is used when the keyword engine reports none.
const DefaultWakeupWord = "tian mao jing ling"

// SpeechContext describes the utterance that opened the microphone.
type SpeechContext struct {
	Format     domain.AudioFormat `json:"-"`
	WakeupWord string             `json:"wakeupWord"`
	Doa        int                `json:"doa"`
	Confidence float64            `json:"confidence"`
}
