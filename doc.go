// Package slotindex maps a stream of timeslices onto a fixed arena of processing slots
// and tracks how far the pipeline has progressed.
//
// A timeslice is the unit of work of a data processing pipeline. Each one is placed into
// a slot of its lane (timeslice mod MaxLanes), so that timeslices of the same lane are
// processed in order by the same slots. When all slots of a lane are busy, the
// backpressure policy decides whether the newcomer evicts the oldest occupant, is dropped,
// or waits.
//
// Input channels report watermarks: the oldest timeslice they may still deliver. From
// them the index derives two fences:
//   - OldestPossibleInput: the minimum over data channels
//   - OldestPossibleOutput: the minimum of the input fence and every in-flight slot
//
// Both fences never move backwards.
//
// # Quick Start
//
// Driving an index through a Relay:
//
//	import (
//	    "github.com/arloliu/slotindex"
//	    "github.com/arloliu/slotindex/source"
//	)
//
//	cfg := slotindex.DefaultConfig()
//	cfg.MaxLanes = 4
//	cfg.SlotsPerLane = 2
//	cfg.Backpressure = slotindex.BackpressureWait
//
//	src := source.NewStatic([]slotindex.ChannelInfo{{Name: "tpc"}, {Name: "its"}})
//	relay, err := slotindex.NewRelay(&cfg, src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := relay.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer relay.Stop(context.Background())
//
//	adm, err := relay.Submit(ctx, slotindex.Arrival{Timeslice: 42, Channel: 0})
//	// ... process the slot, then
//	relay.Complete(ctx, adm.Slot)
//
// # Architecture
//
// The Index is a pure, single-threaded decision structure: no method blocks, and every
// decision (including "wait") is a returned value. The Relay serializes access to it,
// parks waiting arrivals, invalidates stale slots on watermark reports and fans output
// fence advances out to subscribers.
//
// Relays progress through a state machine:
//
//	INIT → WAITING_FOR_DATA → RUNNING → SHUTDOWN
//
// The transport/natsbus package feeds a Relay from NATS subjects and mirrors the output
// fence into a JetStream KV bucket; the tracing package turns index decisions into
// OpenTelemetry span events.
package slotindex
