package stt

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCorruptAudio means the engine could not decode the audio it was given.
	ErrCorruptAudio = errors.New("audio could not be decoded")

	// ErrUnavailable means the engine could not be reached or refused work.
	ErrUnavailable = errors.New("recognition backend unavailable")

	// ErrBadResponse means the engine answered with something unparseable.
	ErrBadResponse = errors.New("malformed backend response")
)

// EngineError describes a failed engine call.
type EngineError struct {
	Provider   string
	StatusCode int // upstream HTTP status, 0 when none was received
	Message    string
	Retryable  bool
	Cause      error
}

func (e *EngineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s recognition error [%d]: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s recognition error: %s", e.Provider, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// statusError classifies an upstream HTTP failure.
func statusError(provider string, status int, message string) *EngineError {
	e := &EngineError{Provider: provider, StatusCode: status, Message: message}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Cause = ErrCorruptAudio
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		e.Cause = ErrUnavailable
		e.Retryable = true
	default:
		e.Cause = ErrUnavailable
	}
	return e
}

// transportError wraps a failure that happened before any response arrived.
func transportError(provider string, err error) *EngineError {
	return &EngineError{
		Provider:  provider,
		Message:   "request failed",
		Retryable: true,
		Cause:     errors.Join(ErrUnavailable, err),
	}
}

// audioError wraps a local audio check that failed before calling upstream.
func audioError(provider string, err error) *EngineError {
	return &EngineError{
		Provider: provider,
		Message:  err.Error(),
		Cause:    errors.Join(ErrCorruptAudio, err),
	}
}
