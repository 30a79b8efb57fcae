package slotindex

import "github.com/arloliu/slotindex/types"

// Re-export types from the types package.
//
// Internal packages depend on `types` rather than on the root package, which keeps
// the import graph acyclic while users still write slotindex.TimesliceID, slotindex.Hooks, etc.
type (
	TimesliceID        = types.TimesliceID
	SlotIndex          = types.SlotIndex
	ChannelIndex       = types.ChannelIndex
	Lane               = types.Lane
	ActionTaken        = types.ActionTaken
	Admission          = types.Admission
	BackpressurePolicy = types.BackpressurePolicy
	ChannelKind        = types.ChannelKind
	ChannelInfo        = types.ChannelInfo
	OldestInputInfo    = types.OldestInputInfo
	OldestOutputInfo   = types.OldestOutputInfo
	State              = types.State
)

// Re-export interfaces from the types package for convenience.
type (
	ChannelSource    = types.ChannelSource
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export identifier sentinels.
const (
	InvalidTimeslice = types.InvalidTimeslice
	InvalidSlot      = types.InvalidSlot
	InvalidChannel   = types.InvalidChannel
)

// Re-export admission outcomes.
const (
	ActionReplaceUnused   = types.ActionReplaceUnused
	ActionReplaceObsolete = types.ActionReplaceObsolete
	ActionDropInvalid     = types.ActionDropInvalid
	ActionDropObsolete    = types.ActionDropObsolete
	ActionWait            = types.ActionWait
)

// Re-export backpressure policies.
const (
	BackpressureUnset       = types.BackpressureUnset
	BackpressureDropAncient = types.BackpressureDropAncient
	BackpressureDropRecent  = types.BackpressureDropRecent
	BackpressureWait        = types.BackpressureWait
)

// Re-export channel kinds.
const (
	ChannelKindData      = types.ChannelKindData
	ChannelKindAuxiliary = types.ChannelKindAuxiliary
)

// Re-export State constants from the types package.
const (
	StateInit           = types.StateInit
	StateWaitingForData = types.StateWaitingForData
	StateRunning        = types.StateRunning
	StateShutdown       = types.StateShutdown
)
