package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Index methods are called on the scheduling path; relay methods may be called
// from several goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	IndexMetrics
	RelayMetrics
}

// IndexMetrics defines metrics for timeslice index decisions.
type IndexMetrics interface {
	// RecordAdmission records the outcome of an admission attempt.
	RecordAdmission(action ActionTaken)

	// RecordWatermarkRegression records a rejected channel watermark regression.
	//
	// Parameters:
	//   - channel: Name of the offending channel
	RecordWatermarkRegression(channel string)

	// RecordFenceRegression records a fence that would have decreased.
	//
	// Parameters:
	//   - kind: "input" or "output"
	RecordFenceRegression(kind string)

	// RecordOldestPossibleInput sets the current input fence (gauge metric).
	RecordOldestPossibleInput(ts TimesliceID)

	// RecordOldestPossibleOutput sets the current output fence (gauge metric).
	RecordOldestPossibleOutput(ts TimesliceID)

	// RecordSlotInvalidated records a slot invalidated because its content went stale.
	RecordSlotInvalidated()

	// RecordOccupiedSlots sets the current number of occupied slots (gauge metric).
	RecordOccupiedSlots(count int)
}

// RelayMetrics defines metrics for the driver loop around the index.
type RelayMetrics interface {
	// RecordStateTransition records a relay state transition event.
	RecordStateTransition(from, to State, duration float64)

	// RecordWaitRetry records a parked admission being re-driven.
	RecordWaitRetry()

	// RecordWaitDuration records how long an admission stayed parked, in seconds.
	RecordWaitDuration(seconds float64)

	// RecordFenceSubscriberDropped records a fence update skipped for a slow subscriber.
	RecordFenceSubscriberDropped()
}
