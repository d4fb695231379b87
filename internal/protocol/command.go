package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Command is an inbound gateway directive.
type Command struct {
	Domain  Domain          `json:"commandDomain"`
	Name    CommandName     `json:"commandName"`
	Payload json.RawMessage `json:"payload"`
}

// ParseCommand decodes a text frame. The payload may be a JSON object or a
// JSON string holding one; either way Payload ends up as the object.
// Pairs outside the known tables return ErrUnknownCommand along with the
// decoded command so callers can log it.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if cmd.Domain == "" || cmd.Name == "" || len(cmd.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing commandDomain, commandName or payload", ErrMalformedCommand)
	}

	var nested string
	if err := json.Unmarshal(cmd.Payload, &nested); err == nil {
		if !json.Valid([]byte(nested)) {
			return nil, fmt.Errorf("%w: payload string is not JSON", ErrMalformedCommand)
		}
		cmd.Payload = json.RawMessage(nested)
	}

	if !Known(cmd.Domain, cmd.Name) {
		return &cmd, fmt.Errorf("%w: %s/%s", ErrUnknownCommand, cmd.Domain, cmd.Name)
	}
	return &cmd, nil
}

// Decode unmarshals the payload into v.
func (c *Command) Decode(v any) error {
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return fmt.Errorf("decode %s/%s payload: %w", c.Domain, c.Name, err)
	}
	return nil
}

// Is reports whether the command is the given pair.
func (c *Command) Is(domain Domain, name CommandName) bool {
	return c.Domain == domain && c.Name == name
}

// ActivateResponse is the payload of the activation responses. Data is nil
// when the gateway sent none.
type ActivateResponse struct {
	Data *ActivateData `json:"data"`
}

type ActivateData struct {
	UUID        string `json:"uuid"`
	AccessToken string `json:"accessToken"`
}

// ExceptionPayload is the payload of System/ThrowException.
type ExceptionPayload struct {
	ErrorCode    *ErrorCode `json:"errorCode"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// SpeakPayload is the payload of Speaker/Speak.
type SpeakPayload struct {
	ExpectSpeech bool `json:"expectSpeech"`
}

// AudioPayload is the payload of Audio/Play and Audio/PlayOnce.
type AudioPayload struct {
	PlayerContext
}

// VolumePayload is the payload of System.Control/Volume.
type VolumePayload struct {
	VolumeValue *int `json:"volumeValue"`
}
