package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChannelKind distinguishes real data channels from auxiliary ones.
//
// Only data channels participate in watermark aggregation and in the liveness check.
type ChannelKind int

const (
	// ChannelKindData is a real data-bearing input channel.
	ChannelKindData ChannelKind = iota

	// ChannelKindAuxiliary is a control or bookkeeping channel.
	ChannelKindAuxiliary
)

// String returns the string representation of the channel kind.
func (k ChannelKind) String() string {
	switch k {
	case ChannelKindData:
		return "data"
	case ChannelKindAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// ParseChannelKind parses "data" or "auxiliary" ("aux" is accepted too).
func ParseChannelKind(s string) (ChannelKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "data":
		return ChannelKindData, nil
	case "aux", "auxiliary":
		return ChannelKindAuxiliary, nil
	default:
		return ChannelKindData, fmt.Errorf("%w: unknown channel kind %q", ErrInvalidConfig, s)
	}
}

// MarshalYAML encodes the kind by name.
func (k ChannelKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// UnmarshalYAML decodes a kind name.
func (k *ChannelKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("channel kind: %w", err)
	}

	parsed, err := ParseChannelKind(s)
	if err != nil {
		return err
	}
	*k = parsed

	return nil
}

// ChannelInfo tracks one input source.
type ChannelInfo struct {
	// Name identifies the channel for diagnostics and transport routing.
	Name string `json:"name" yaml:"name"`

	// Kind tells whether the channel carries real data.
	Kind ChannelKind `json:"kind" yaml:"kind"`

	// OldestForChannel is the oldest timeslice the channel may still deliver.
	// Monotonic non-decreasing by contract.
	OldestForChannel TimesliceID `json:"oldestForChannel" yaml:"-"`
}

// IsData reports whether the channel is a real data channel.
func (c ChannelInfo) IsData() bool {
	return c.Kind == ChannelKindData
}

// OldestInputInfo is the oldest timeslice any data channel may still deliver.
type OldestInputInfo struct {
	// Timeslice is the fence value.
	Timeslice TimesliceID `json:"timeslice"`

	// Channel is the channel limiting the fence.
	Channel ChannelIndex `json:"channel"`
}

// OldestOutputInfo is the oldest timeslice the pipeline may still produce output for.
//
// Exactly one of Channel and Slot identifies what limits the fence; the other is invalid.
type OldestOutputInfo struct {
	// Timeslice is the fence value.
	Timeslice TimesliceID `json:"timeslice"`

	// Channel is the limiting channel, or InvalidChannel when a slot limits the fence.
	Channel ChannelIndex `json:"channel"`

	// Slot is the limiting slot, or InvalidSlot when a channel limits the fence.
	Slot SlotIndex `json:"slot"`
}

// LimitedBySlot reports whether an in-flight slot, rather than a channel, limits the fence.
func (o OldestOutputInfo) LimitedBySlot() bool {
	return o.Slot.IsValid()
}
