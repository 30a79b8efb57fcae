// Package types provides core type definitions and interfaces for the slotindex library.
//
// This package contains shared types that are used across multiple packages in the
// slotindex library. By keeping these types in a separate package, we avoid import cycles
// between the main slotindex package and its internal implementations.
//
// Key types:
//   - TimesliceID, SlotIndex, ChannelIndex, Lane: strongly typed identifiers
//   - ActionTaken, Admission: admission decisions returned by the index
//   - BackpressurePolicy: slot contention rule chosen at configuration time
//   - ChannelInfo: per-input-source watermark record
//   - OldestInputInfo, OldestOutputInfo: pipeline fences
//   - Logger: Structured logging interface
//   - Hooks: Decision observer callbacks
//   - MetricsCollector: Metrics recording interface
package types
