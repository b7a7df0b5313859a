package dispatch

import "errors"

var (
	// ErrPublishFailed is returned when a command could not be handed to the bus.
	ErrPublishFailed = errors.New("dispatch: publish failed")

	// ErrInvalidCommand is returned for a command missing a required field.
	ErrInvalidCommand = errors.New("dispatch: invalid command")
)
