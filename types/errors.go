package types

import "errors"

// Sentinel errors for the slotindex library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Admission decisions are never errors: they are ActionTaken values.
// Slot and channel indices outside the configured arena are programming errors and
// cause a panic wrapping ErrSlotOutOfRange or ErrChannelOutOfRange.

// Configuration errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidBackpressurePolicy is returned for an unset or unknown backpressure policy.
	ErrInvalidBackpressurePolicy = errors.New("invalid backpressure policy")

	// ErrDuplicateChannel is returned when two channels in a roster share a name.
	ErrDuplicateChannel = errors.New("duplicate channel name")
)

// Index contract violations (used as panic values).
var (
	// ErrSlotOutOfRange indicates a slot index outside the configured arena.
	ErrSlotOutOfRange = errors.New("slot index out of range")

	// ErrChannelOutOfRange indicates a channel index outside the roster.
	ErrChannelOutOfRange = errors.New("channel index out of range")
)

// Relay errors - Public API errors returned by the Relay component.
var (
	// ErrChannelSourceRequired is returned when the channel source is nil.
	ErrChannelSourceRequired = errors.New("channel source is required")

	// ErrAlreadyStarted is returned when Start is called on an already running relay.
	ErrAlreadyStarted = errors.New("relay already started")

	// ErrNotStarted is returned when operations require a started relay.
	ErrNotStarted = errors.New("relay not started")

	// ErrUnknownChannel is returned when a channel name is not in the roster.
	ErrUnknownChannel = errors.New("unknown channel")
)

// Transport errors.
var (
	// ErrMalformedMessage is returned when a transport message cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrPublishFailed is returned when publishing to NATS fails.
	ErrPublishFailed = errors.New("failed to publish")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")
)
