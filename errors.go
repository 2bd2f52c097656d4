package bus

import "errors"

var (
	// ErrNoEnvelopes signals that a queue has no actionable envelopes.
	ErrNoEnvelopes = errors.New("bus has no actionable envelopes")
	// ErrUnknownMessageType is returned when a message type is not registered.
	ErrUnknownMessageType = errors.New("bus message type is not registered")
	// ErrDuplicateMessageType is returned when a message type is registered twice.
	ErrDuplicateMessageType = errors.New("bus message type is already registered")
	// ErrNegativeDelay is returned when a delayed broadcast uses a negative delay.
	ErrNegativeDelay = errors.New("bus broadcast delay must be non-negative")
	// ErrInvalidID is returned when parsing an envelope ID fails.
	ErrInvalidID = errors.New("bus envelope id is invalid")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("bus handler panic")
	// ErrProcessorRunning is returned when Run is called on a running processor.
	ErrProcessorRunning = errors.New("bus processor is already running")
)
