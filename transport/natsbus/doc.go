// Package natsbus connects a Relay to NATS.
//
// Every input channel publishes on its own subject, "<prefix>.<channel>". A message is
// either an arrival (header Slot-Kind: data) carrying a payload for a timeslice, or a
// watermark (Slot-Kind: watermark) announcing the oldest timeslice the channel may still
// deliver. The timeslice travels in the Timeslice-Id header as a decimal number.
//
// The package provides:
//   - Publisher: the producer side, used by channels and simulations
//   - Subscriber: feeds every channel subject into a Sink, usually a *slotindex.Relay
//   - FencePublisher: mirrors the Relay's output fence into a JetStream KV key
//
// Payloads are opaque; an arrival's payload is stored as a string variable at
// PayloadVariable of the slot's variable context.
package natsbus
