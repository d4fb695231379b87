package domain

import "errors"

// Common domain errors
var (
	// Looper errors
	ErrLooperStopped      = errors.New("looper is stopped")
	ErrTimeoutBeforeDelay = errors.New("message timeout does not exceed its delay")
	ErrNilMessage         = errors.New("message is nil")

	// Transport errors
	ErrNotConnected     = errors.New("websocket not connected")
	ErrAlreadyConnected = errors.New("websocket already connected or connecting")
	ErrQueueFull        = errors.New("command queue is full")
	ErrInvalidURL       = errors.New("invalid websocket url")

	// Runtime errors
	ErrNotActive  = errors.New("component is not active")
	ErrNilAdapter = errors.New("adapter is nil")

	// Device identity errors
	ErrInvalidMAC        = errors.New("invalid mac address")
	ErrInvalidCredential = errors.New("invalid credential")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
