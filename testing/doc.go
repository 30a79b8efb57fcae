// Package testing provides test utilities for the slotindex library.
//
// Key utilities:
//   - StartEmbeddedNATS: in-process NATS server with JetStream for transport tests
//   - CreateJetStreamKV: KV bucket creation on an embedded server
//   - NewTestLogger: types.Logger writing to the test log
//   - NewRecordingLogger: types.Logger that also keeps entries for assertions
//
// Example usage:
//
//	import (
//	    "testing"
//	    slottest "github.com/arloliu/slotindex/testing"
//	)
//
//	func TestMyAdapter(t *testing.T) {
//	    _, nc := slottest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
