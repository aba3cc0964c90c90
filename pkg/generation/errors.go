package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned when the prompt has no visible characters
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrBusy is returned when the session already has a generation in flight
	ErrBusy = errors.New("a generation is already running for this session")
)

// InvocationError wraps a failure of the remote image endpoint
type InvocationError struct {
	Backend string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("image generation failed (%s): %v", e.Backend, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// PresentationError is returned when the materialized file cannot be read
// back for display
type PresentationError struct {
	Path string
	Err  error
}

func (e *PresentationError) Error() string {
	return fmt.Sprintf("failed to present %s: %v", e.Path, e.Err)
}

func (e *PresentationError) Unwrap() error {
	return e.Err
}

// NotificationError wraps a failed relay of the result
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to send notification: %v", e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
