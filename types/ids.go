package types

import (
	"math"
	"strconv"
)

// TimesliceID identifies a unit of work flowing through the pipeline.
//
// Identifiers are totally ordered and monotonically increasing per producer.
type TimesliceID uint64

// InvalidTimeslice marks the absence of a timeslice.
const InvalidTimeslice TimesliceID = math.MaxUint64

// IsValid reports whether the identifier is not InvalidTimeslice.
func (t TimesliceID) IsValid() bool {
	return t != InvalidTimeslice
}

// String returns the decimal representation, or "invalid".
func (t TimesliceID) String() string {
	if t == InvalidTimeslice {
		return "invalid"
	}

	return strconv.FormatUint(uint64(t), 10)
}

// SlotIndex is a position in the fixed slot arena of an index.
type SlotIndex int

// InvalidSlot is returned when no slot was granted.
const InvalidSlot SlotIndex = -1

// IsValid reports whether the slot index refers to an arena position.
func (s SlotIndex) IsValid() bool {
	return s >= 0
}

// ChannelIndex is a position in the channel roster of an index.
type ChannelIndex int

// InvalidChannel marks the absence of a limiting channel.
const InvalidChannel ChannelIndex = -1

// IsValid reports whether the channel index refers to a roster position.
func (c ChannelIndex) IsValid() bool {
	return c >= 0
}

// Lane is a fixed subset of the slot arena, selected by TimesliceID modulo the lane count.
type Lane int

// LaneOf returns the lane a timeslice belongs to.
//
// Parameters:
//   - ts: Timeslice identifier
//   - maxLanes: Number of lanes (must be > 0)
//
// Returns:
//   - Lane: ts mod maxLanes
func LaneOf(ts TimesliceID, maxLanes int) Lane {
	return Lane(uint64(ts) % uint64(maxLanes)) //nolint:gosec // maxLanes is validated positive at construction
}
