package models

import "fmt"

// Stream identifies the logical audio source a player renders.
type Stream int

const (
	StreamTTS Stream = iota
	StreamPrompt
	StreamMusic
	// StreamPromptWakeup is a prompt with wakeup priority. It shares the prompt
	// player but outranks ordinary play-once content.
	StreamPromptWakeup
)

func (s Stream) String() string {
	switch s {
	case StreamTTS:
		return "tts"
	case StreamPrompt:
		return "prompt"
	case StreamMusic:
		return "music"
	case StreamPromptWakeup:
		return "prompt_wakeup"
	default:
		return "unknown"
	}
}

// PlayOnce reports whether the stream is interrupting content that suspends music.
func (s Stream) PlayOnce() bool {
	return s != StreamMusic
}

// PlayerState is the lifecycle state of a player engine.
type PlayerState int

// States are ordered: comparisons such as state < PlayerStateCompleted are meaningful.
const (
	PlayerStateIdle PlayerState = iota
	PlayerStatePrepared
	PlayerStateStarted
	PlayerStatePaused
	PlayerStateResumed
	PlayerStateNearlyCompleted
	PlayerStateCompleted
	PlayerStateStopped
	PlayerStateError
)

var playerStateNames = [...]string{
	"idle",
	"prepared",
	"started",
	"paused",
	"resumed",
	"nearly_completed",
	"completed",
	"stopped",
	"error",
}

func (s PlayerState) String() string {
	if s < 0 || int(s) >= len(playerStateNames) {
		return "unknown"
	}
	return playerStateNames[s]
}

// Terminal reports whether the player must be reset before reuse.
func (s PlayerState) Terminal() bool {
	return s == PlayerStateCompleted || s == PlayerStateStopped || s == PlayerStateError
}

// PlayerTransition represents a state transition
type PlayerTransition struct {
	From PlayerState
	To   PlayerState
}

// validPlayerTransitions defines what a player engine may report. Reset to
// idle and failure are accepted from any state.
var validPlayerTransitions = map[PlayerTransition]bool{
	{PlayerStateIdle, PlayerStatePrepared}: true,

	{PlayerStatePrepared, PlayerStateStarted}: true,
	{PlayerStatePrepared, PlayerStateStopped}: true,

	{PlayerStateStarted, PlayerStatePaused}:          true,
	{PlayerStateStarted, PlayerStateNearlyCompleted}: true,
	{PlayerStateStarted, PlayerStateCompleted}:       true,
	{PlayerStateStarted, PlayerStateStopped}:         true,

	{PlayerStatePaused, PlayerStateResumed}: true,
	{PlayerStatePaused, PlayerStateStarted}: true,
	{PlayerStatePaused, PlayerStateStopped}: true,

	{PlayerStateResumed, PlayerStatePaused}:          true,
	{PlayerStateResumed, PlayerStateNearlyCompleted}: true,
	{PlayerStateResumed, PlayerStateCompleted}:       true,
	{PlayerStateResumed, PlayerStateStopped}:         true,

	{PlayerStateNearlyCompleted, PlayerStateCompleted}: true,
	{PlayerStateNearlyCompleted, PlayerStatePaused}:    true,
	{PlayerStateNearlyCompleted, PlayerStateStopped}:   true,
}

// ValidatePlayerTransition checks if a state transition is valid and returns an error if not
func ValidatePlayerTransition(from, to PlayerState) error {
	if from == to || to == PlayerStateIdle || to == PlayerStateError {
		return nil
	}
	if !validPlayerTransitions[PlayerTransition{From: from, To: to}] {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// IsValidPlayerTransition checks if a transition between two states is valid
func IsValidPlayerTransition(from, to PlayerState) bool {
	return ValidatePlayerTransition(from, to) == nil
}

// InvalidTransitionError represents an error for invalid state transitions
type InvalidTransitionError struct {
	From PlayerState
	To   PlayerState
}

func (e *InvalidTransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("cannot transition from %s to %s: player must be reset first", e.From, e.To)
	}
	return fmt.Sprintf("invalid player state transition from '%s' to '%s'", e.From, e.To)
}
