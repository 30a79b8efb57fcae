package slotindex

import "github.com/arloliu/slotindex/types"

// Sentinel errors re-exported from the types package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrInvalidBackpressurePolicy is returned for an unset or unknown backpressure policy.
	ErrInvalidBackpressurePolicy = types.ErrInvalidBackpressurePolicy

	// ErrDuplicateChannel is returned when two channels share a name.
	ErrDuplicateChannel = types.ErrDuplicateChannel

	// ErrSlotOutOfRange is the panic value for a slot outside the arena.
	ErrSlotOutOfRange = types.ErrSlotOutOfRange

	// ErrChannelOutOfRange is the panic value for a channel outside the roster.
	ErrChannelOutOfRange = types.ErrChannelOutOfRange

	// ErrChannelSourceRequired is returned when the channel source is nil.
	ErrChannelSourceRequired = types.ErrChannelSourceRequired

	// ErrAlreadyStarted is returned when Start is called on an already running relay.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when operations require a started relay.
	ErrNotStarted = types.ErrNotStarted

	// ErrUnknownChannel is returned when a channel name is not in the roster.
	ErrUnknownChannel = types.ErrUnknownChannel
)
