// Package testutil provides shared helpers for slotindex integration tests.
//
// It contains assertion helpers for fence and slot invariants and helpers that wait
// for one or more relays to reach a lifecycle state.
//
// Note: For NATS server setup, use the github.com/arloliu/slotindex/testing package.
// This package is specifically for integration test scenarios and helper utilities.
package testutil
