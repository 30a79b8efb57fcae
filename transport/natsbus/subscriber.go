package natsbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/slotindex"
	"github.com/arloliu/slotindex/internal/natsutil"
	"github.com/arloliu/slotindex/types"
	"github.com/arloliu/slotindex/variables"
)

// Sink receives decoded channel traffic. *slotindex.Relay satisfies it.
type Sink interface {
	// TrySubmit makes one admission attempt without parking.
	TrySubmit(ctx context.Context, a slotindex.Arrival) (types.Admission, error)
	// Submit admits an arrival, parking while the index answers ActionWait.
	Submit(ctx context.Context, a slotindex.Arrival) (types.Admission, error)
	ReportWatermark(ctx context.Context, channel types.ChannelIndex, ts types.TimesliceID) (types.OldestOutputInfo, error)
	ChannelByName(name string) (types.ChannelIndex, error)
}

var _ Sink = (*slotindex.Relay)(nil)

// ErrSubscriberStarted is returned by Start when the subscriber is already running.
var ErrSubscriberStarted = errors.New("subscriber already started")

// Subscriber feeds every channel subject under a prefix into a Sink.
//
// Arrivals and watermarks are applied in delivery order on the NATS callback goroutine.
// Only an arrival answered with ActionWait moves to its own goroutine to park, so it never
// holds back the watermark that would free its slot.
//
// Malformed messages (unknown channel, bad headers) are counted and logged; they never
// stop the subscriber.
type Subscriber struct {
	conn   *nats.Conn
	prefix string
	sink   Sink
	opts   options

	mu     sync.Mutex
	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	received  atomic.Uint64
	malformed atomic.Uint64
}

// NewSubscriber creates a subscriber for subjects under prefix.
//
// Example:
//
//	sub := natsbus.NewSubscriber(nc, cfg.Transport.SubjectPrefix, relay,
//	    natsbus.WithLogger(logger))
//	if err := sub.Start(ctx); err != nil {
//	    return err
//	}
//	defer sub.Stop()
func NewSubscriber(conn *nats.Conn, prefix string, sink Sink, opts ...Option) *Subscriber {
	return &Subscriber{
		conn:   conn,
		prefix: prefix,
		sink:   sink,
		opts:   applyOptions(opts),
	}
}

// Start subscribes to every channel subject.
//
// ctx bounds the lifetime of in-flight submissions; Stop cancels it as well.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return ErrSubscriberStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	sub, err := s.conn.Subscribe(natsutil.WildcardSubject(s.prefix), s.handle)
	if err != nil {
		s.cancel()
		return err
	}
	s.sub = sub

	s.opts.logger.Info("subscriber started", "subject", sub.Subject)

	return nil
}

// Stop unsubscribes and waits for in-flight submissions to return.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub == nil {
		return
	}

	if err := sub.Unsubscribe(); err != nil {
		s.opts.logger.Warn("unsubscribe failed", "error", err)
	}
	s.cancel()
	s.wg.Wait()

	s.opts.logger.Info("subscriber stopped",
		"received", s.received.Load(),
		"malformed", s.malformed.Load(),
	)
}

// Received returns the number of messages delivered to the subscriber.
func (s *Subscriber) Received() uint64 {
	return s.received.Load()
}

// Malformed returns the number of messages that could not be routed.
func (s *Subscriber) Malformed() uint64 {
	return s.malformed.Load()
}

func (s *Subscriber) handle(msg *nats.Msg) {
	if s.ctx.Err() != nil {
		return
	}
	s.received.Add(1)

	name, ok := natsutil.ChannelFromSubject(s.prefix, msg.Subject)
	if !ok {
		s.reject(msg, "subject names no channel", nil)
		return
	}
	channel, err := s.sink.ChannelByName(name)
	if err != nil {
		s.reject(msg, "unknown channel", err)
		return
	}
	kind, ts, err := decode(msg)
	if err != nil {
		s.reject(msg, "malformed headers", err)
		return
	}

	if kind == KindWatermark {
		if _, err := s.sink.ReportWatermark(s.ctx, channel, ts); err != nil {
			s.opts.logger.Warn("watermark rejected", "channel", name, "timeslice", ts, "error", err)
		}

		return
	}

	vars := variables.NewForTimeslice(ts)
	if len(msg.Data) > 0 {
		vars.Put(PayloadVariable, variables.String(string(msg.Data)))
		vars.Commit()
	}

	arrival := slotindex.Arrival{Timeslice: ts, Channel: channel, Context: vars}
	adm, err := s.sink.TrySubmit(s.ctx, arrival)
	if err == nil && adm.Action == types.ActionWait {
		s.wg.Go(func() {
			adm, err := s.sink.Submit(s.ctx, arrival)
			s.report(name, ts, adm, err)
		})

		return
	}
	s.report(name, ts, adm, err)
}

func (s *Subscriber) report(name string, ts types.TimesliceID, adm types.Admission, err error) {
	if err != nil {
		s.opts.logger.Debug("arrival not submitted", "channel", name, "timeslice", ts, "error", err)
	}
	s.opts.onResult(Result{Channel: name, Timeslice: ts, Admission: adm, Err: err})
}

func (s *Subscriber) reject(msg *nats.Msg, reason string, err error) {
	s.malformed.Add(1)
	s.opts.logger.Warn("dropping message", "subject", msg.Subject, "reason", reason, "error", err)
}
