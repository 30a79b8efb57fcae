// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/slotindex/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	idx, err := slotindex.NewIndex(cfg, channels, slotindex.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// IndexMetrics implementation

// RecordAdmission discards the admission outcome.
func (n *NopMetrics) RecordAdmission(_ /* action */ types.ActionTaken) {}

// RecordWatermarkRegression discards the regression event.
func (n *NopMetrics) RecordWatermarkRegression(_ /* channel */ string) {}

// RecordFenceRegression discards the regression event.
func (n *NopMetrics) RecordFenceRegression(_ /* kind */ string) {}

// RecordOldestPossibleInput discards the input fence.
func (n *NopMetrics) RecordOldestPossibleInput(_ /* ts */ types.TimesliceID) {}

// RecordOldestPossibleOutput discards the output fence.
func (n *NopMetrics) RecordOldestPossibleOutput(_ /* ts */ types.TimesliceID) {}

// RecordSlotInvalidated discards the invalidation event.
func (n *NopMetrics) RecordSlotInvalidated() {}

// RecordOccupiedSlots discards the occupancy gauge.
func (n *NopMetrics) RecordOccupiedSlots(_ /* count */ int) {}

// RelayMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State, _ /* duration */ float64) {
}

// RecordWaitRetry discards the retry event.
func (n *NopMetrics) RecordWaitRetry() {}

// RecordWaitDuration discards the parked duration.
func (n *NopMetrics) RecordWaitDuration(_ /* seconds */ float64) {}

// RecordFenceSubscriberDropped discards the dropped-update event.
func (n *NopMetrics) RecordFenceSubscriberDropped() {}
