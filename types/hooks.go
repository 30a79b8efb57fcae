package types

import "context"

// Hooks defines observer callbacks for index decisions and relay lifecycle events.
//
// All hooks are optional. Decision hooks (everything except OnStateChanged) are invoked
// synchronously by the index while the caller holds the scheduling lock, so they must
// return quickly and must not call back into the index. OnStateChanged is invoked by the
// Relay in a background goroutine with the relay's lifecycle context.
//
// Hooks never influence a decision; they observe the same outcome values the caller gets.
//
// Example:
//
//	hooks := &slotindex.Hooks{
//	    OnWatermarkRegression: func(ch slotindex.ChannelIndex, reported, stored slotindex.TimesliceID) {
//	        regressions.WithLabelValues(strconv.Itoa(int(ch))).Inc()
//	    },
//	}
type Hooks struct {
	// OnAdmission is called after every admission attempt with its outcome.
	OnAdmission func(ts TimesliceID, admission Admission)

	// OnWatermark is called after a channel watermark was accepted and the input fence recomputed.
	OnWatermark func(channel ChannelIndex, oldest OldestInputInfo)

	// OnWatermarkRegression is called when a channel reports a watermark below its stored one.
	// The report is not applied.
	OnWatermarkRegression func(channel ChannelIndex, reported, stored TimesliceID)

	// OnFenceRegression is called when a recomputed fence would decrease.
	// kind is "input" or "output"; the previous fence is kept.
	OnFenceRegression func(kind string, previous, computed TimesliceID)

	// OnOutputFence is called after the output fence was recomputed.
	OnOutputFence func(oldest OldestOutputInfo)

	// OnSlotInvalidated is called when a stale slot is invalidated by validation.
	OnSlotInvalidated func(slot SlotIndex, ts TimesliceID)

	// OnStateChanged is called when the relay transitions state.
	OnStateChanged func(ctx context.Context, from, to State) error
}
