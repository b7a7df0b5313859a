package ingest

import "errors"

var (
	// ErrMalformedPayload is returned when a device message cannot be parsed.
	// The message is dropped and no state changes.
	ErrMalformedPayload = errors.New("ingest: malformed payload")

	// ErrQueueFull is returned when a message arrives faster than it can be
	// applied. The message is dropped.
	ErrQueueFull = errors.New("ingest: queue full")

	// ErrNotRunning is returned when a message is enqueued before Start or
	// after Stop.
	ErrNotRunning = errors.New("ingest: not running")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("ingest: already started")
)
