// Package fence fans output fence updates out to subscribers.
package fence

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/slotindex/types"
)

// DefaultBufferSize is the per-subscriber channel capacity used when none is configured.
const DefaultBufferSize = 8

// Broadcaster delivers output fence updates to any number of subscribers without blocking
// the publisher.
//
// A subscriber that falls behind misses intermediate updates; since fences only move
// forward, the next delivered value supersedes everything it missed.
type Broadcaster struct {
	subscribers *xsync.Map[uint64, *subscriber]
	nextID      atomic.Uint64
	bufferSize  int
	metrics     types.RelayMetrics

	mu      sync.RWMutex
	last    types.OldestOutputInfo
	hasLast bool
	closed  bool
}

// NewBroadcaster creates a broadcaster.
//
// Parameters:
//   - bufferSize: Per-subscriber channel capacity (DefaultBufferSize when <= 0)
//   - metrics: Receives dropped-update events; must not be nil
//
// Returns:
//   - *Broadcaster: Ready-to-use broadcaster
func NewBroadcaster(bufferSize int, metrics types.RelayMetrics) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Broadcaster{
		subscribers: xsync.NewMap[uint64, *subscriber](),
		bufferSize:  bufferSize,
		metrics:     metrics,
	}
}

// Subscribe returns a channel receiving fence updates and an unsubscribe function.
//
// The most recent fence, if any, is delivered immediately. The channel is closed by the
// unsubscribe function or by Close. Subscribing to a closed broadcaster returns a closed channel.
//
// Example:
//
//	ch, cancel := b.Subscribe()
//	defer cancel()
//	for info := range ch {
//	    release(info.Timeslice)
//	}
func (b *Broadcaster) Subscribe() (<-chan types.OldestOutputInfo, func()) {
	sub := &subscriber{ch: make(chan types.OldestOutputInfo, b.bufferSize)}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		sub.close()
		return sub.ch, func() {}
	}

	id := b.nextID.Add(1)
	b.subscribers.Store(id, sub)
	if b.hasLast {
		sub.trySend(b.last, b.metrics)
	}

	return sub.ch, func() { b.remove(id) }
}

// Publish records info as the latest fence and delivers it to every subscriber.
func (b *Broadcaster) Publish(info types.OldestOutputInfo) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.last = info
	b.hasLast = true
	b.mu.Unlock()

	b.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		sub.trySend(info, b.metrics)
		return true
	})
}

// Last returns the most recently published fence.
func (b *Broadcaster) Last() (types.OldestOutputInfo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.last, b.hasLast
}

// Forget drops the remembered fence so new subscribers start empty.
func (b *Broadcaster) Forget() {
	b.mu.Lock()
	b.last = types.OldestOutputInfo{}
	b.hasLast = false
	b.mu.Unlock()
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	return b.subscribers.Size()
}

// Close closes every subscriber channel. Later Publish calls are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.subscribers.Range(func(id uint64, _ *subscriber) bool {
		b.remove(id)
		return true
	})
}

func (b *Broadcaster) remove(id uint64) {
	if sub, ok := b.subscribers.LoadAndDelete(id); ok {
		sub.close()
	}
}

type subscriber struct {
	ch     chan types.OldestOutputInfo
	mu     sync.Mutex
	closed bool
}

// trySend delivers info without blocking; a full channel drops the update.
func (s *subscriber) trySend(info types.OldestOutputInfo, metrics types.RelayMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- info:
	default:
		metrics.RecordFenceSubscriberDropped()
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
