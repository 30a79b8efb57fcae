// Package hooks provides default observer implementations.
package hooks

import (
	"context"

	"github.com/arloliu/slotindex/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(types.TimesliceID, types.Admission)                       = (*NopHooks)(nil).OnAdmission
	_ func(types.ChannelIndex, types.OldestInputInfo)                = (*NopHooks)(nil).OnWatermark
	_ func(types.ChannelIndex, types.TimesliceID, types.TimesliceID) = (*NopHooks)(nil).OnWatermarkRegression
	_ func(string, types.TimesliceID, types.TimesliceID)             = (*NopHooks)(nil).OnFenceRegression
	_ func(types.OldestOutputInfo)                                   = (*NopHooks)(nil).OnOutputFence
	_ func(types.SlotIndex, types.TimesliceID)                       = (*NopHooks)(nil).OnSlotInvalidated
	_ func(context.Context, types.State, types.State) error          = (*NopHooks)(nil).OnStateChanged
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with every callback set to a no-op
func NewNop() types.Hooks {
	h := &NopHooks{}

	return types.Hooks{
		OnAdmission:           h.OnAdmission,
		OnWatermark:           h.OnWatermark,
		OnWatermarkRegression: h.OnWatermarkRegression,
		OnFenceRegression:     h.OnFenceRegression,
		OnOutputFence:         h.OnOutputFence,
		OnSlotInvalidated:     h.OnSlotInvalidated,
		OnStateChanged:        h.OnStateChanged,
	}
}

// Fill returns a copy of h with every nil callback replaced by a no-op.
//
// Parameters:
//   - h: Caller-provided hooks (may be nil)
//
// Returns:
//   - types.Hooks: Hooks safe to call without nil checks
func Fill(h *types.Hooks) types.Hooks {
	nop := NewNop()
	if h == nil {
		return nop
	}

	out := *h
	if out.OnAdmission == nil {
		out.OnAdmission = nop.OnAdmission
	}
	if out.OnWatermark == nil {
		out.OnWatermark = nop.OnWatermark
	}
	if out.OnWatermarkRegression == nil {
		out.OnWatermarkRegression = nop.OnWatermarkRegression
	}
	if out.OnFenceRegression == nil {
		out.OnFenceRegression = nop.OnFenceRegression
	}
	if out.OnOutputFence == nil {
		out.OnOutputFence = nop.OnOutputFence
	}
	if out.OnSlotInvalidated == nil {
		out.OnSlotInvalidated = nop.OnSlotInvalidated
	}
	if out.OnStateChanged == nil {
		out.OnStateChanged = nop.OnStateChanged
	}

	return out
}

// OnAdmission is a no-op implementation.
func (h *NopHooks) OnAdmission(_ types.TimesliceID, _ types.Admission) {}

// OnWatermark is a no-op implementation.
func (h *NopHooks) OnWatermark(_ types.ChannelIndex, _ types.OldestInputInfo) {}

// OnWatermarkRegression is a no-op implementation.
func (h *NopHooks) OnWatermarkRegression(_ types.ChannelIndex, _, _ types.TimesliceID) {}

// OnFenceRegression is a no-op implementation.
func (h *NopHooks) OnFenceRegression(_ string, _, _ types.TimesliceID) {}

// OnOutputFence is a no-op implementation.
func (h *NopHooks) OnOutputFence(_ types.OldestOutputInfo) {}

// OnSlotInvalidated is a no-op implementation.
func (h *NopHooks) OnSlotInvalidated(_ types.SlotIndex, _ types.TimesliceID) {}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.State) error {
	return nil
}
