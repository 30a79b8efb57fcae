package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/slotindex"
	"github.com/arloliu/slotindex/source"
	"github.com/arloliu/slotindex/tracing"
	"github.com/arloliu/slotindex/transport/natsbus"
	"github.com/arloliu/slotindex/types"
	"github.com/arloliu/slotindex/variables"
)

const (
	transportDirect = "direct"
	transportNATS   = "nats"
)

type simOptions struct {
	Duration   time.Duration
	Interval   time.Duration
	Channels   int
	MaxLatency time.Duration
	Transport  string
}

func defaultSimOptions() simOptions {
	return simOptions{
		Duration:   5 * time.Second,
		Interval:   time.Millisecond,
		Channels:   2,
		MaxLatency: 20 * time.Millisecond,
		Transport:  transportDirect,
	}
}

type simDeps struct {
	logger   types.Logger
	metrics  types.MetricsCollector
	observer *tracing.Observer
}

type summary struct {
	RunID       string
	Transport   string
	Produced    int
	Outcomes    map[types.ActionTaken]int
	Errors      int
	Released    int
	Invalidated int
	Input       types.OldestInputInfo
	Output      types.OldestOutputInfo
}

// simulation produces timeslices round-robin over the data channels. Every admitted
// slot is processed by its own worker, published, then released.
type simulation struct {
	relay *slotindex.Relay
	opts  simOptions
	deps  simDeps

	mu       sync.Mutex
	outcomes map[types.ActionTaken]int
	errors   int

	released    atomic.Int64
	invalidated atomic.Int64
	workers     sync.WaitGroup
}

func runSimulation(ctx context.Context, cfg *slotindex.Config, opts simOptions, deps simDeps) (*summary, error) {
	if opts.Transport != transportDirect && opts.Transport != transportNATS {
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}
	if len(cfg.Channels) == 0 {
		for i := range max(opts.Channels, 1) {
			cfg.Channels = append(cfg.Channels, slotindex.ChannelConfig{Name: fmt.Sprintf("ch-%d", i)})
		}
	}

	runID := uuid.NewString()
	sim := &simulation{opts: opts, deps: deps, outcomes: make(map[types.ActionTaken]int)}

	counting := &types.Hooks{
		OnSlotInvalidated: func(types.SlotIndex, types.TimesliceID) { sim.invalidated.Add(1) },
	}
	hooks := counting
	if deps.observer != nil {
		hooks = deps.observer.Hooks(counting)
	}

	relayOpts := []slotindex.Option{slotindex.WithHooks(hooks)}
	if deps.logger != nil {
		relayOpts = append(relayOpts, slotindex.WithLogger(deps.logger))
	}
	if deps.metrics != nil {
		relayOpts = append(relayOpts, slotindex.WithMetrics(deps.metrics))
	}

	relay, err := slotindex.NewRelay(cfg, source.FromConfig(cfg), relayOpts...)
	if err != nil {
		return nil, err
	}
	if err := relay.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = relay.Stop(context.Background()) }()
	sim.relay = relay

	if deps.logger != nil {
		deps.logger.Info("simulation started", "run", runID, "transport", opts.Transport, "duration", opts.Duration)
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var produced int
	switch opts.Transport {
	case transportNATS:
		produced, err = sim.runNATS(runCtx, ctx, cfg)
	default:
		produced, err = sim.runDirect(runCtx)
	}
	if err != nil {
		return nil, err
	}
	sim.workers.Wait()

	in, err := relay.OldestPossibleInput()
	if err != nil {
		return nil, err
	}
	out, err := relay.OldestPossibleOutput()
	if err != nil {
		return nil, err
	}

	sim.mu.Lock()
	defer sim.mu.Unlock()

	return &summary{
		RunID:       runID,
		Transport:   opts.Transport,
		Produced:    produced,
		Outcomes:    sim.outcomes,
		Errors:      sim.errors,
		Released:    int(sim.released.Load()),
		Invalidated: int(sim.invalidated.Load()),
		Input:       in,
		Output:      out,
	}, nil
}

type feeder interface {
	arrival(ctx context.Context, channel string, index types.ChannelIndex, ts types.TimesliceID) error
	watermark(ctx context.Context, channel string, index types.ChannelIndex, ts types.TimesliceID) error
}

// produce emits timeslices 1, 2, 3... until ctx ends. After each one every data channel
// promises not to deliver anything older than the next timeslice.
func (s *simulation) produce(ctx context.Context, f feeder) (int, error) {
	roster, err := s.relay.Channels()
	if err != nil {
		return 0, err
	}
	var data []types.ChannelIndex
	for i, ch := range roster {
		if ch.IsData() {
			data = append(data, types.ChannelIndex(i))
		}
	}
	if len(data) == 0 {
		return 0, errors.New("no data channel to produce on")
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	produced := 0
	for ts := types.TimesliceID(1); ; ts++ {
		select {
		case <-ctx.Done():
			return produced, nil
		case <-ticker.C:
		}

		ch := data[int(ts)%len(data)]
		if err := f.arrival(ctx, roster[ch].Name, ch, ts); err != nil {
			return produced, err
		}
		produced++

		for _, wm := range data {
			if err := f.watermark(ctx, roster[wm].Name, wm, ts+1); err != nil {
				return produced, err
			}
		}
	}
}

func (s *simulation) record(ts types.TimesliceID, adm types.Admission, err error) {
	s.mu.Lock()
	if err != nil {
		s.errors++
	} else {
		s.outcomes[adm.Action]++
	}
	s.mu.Unlock()

	if err != nil || !adm.Admitted() {
		return
	}

	s.workers.Go(func() {
		if s.opts.MaxLatency > 0 {
			time.Sleep(rand.N(s.opts.MaxLatency))
		}
		ctx := context.Background()
		if _, err := s.relay.Publish(ctx, adm.Slot); err != nil {
			return
		}
		if ok, _, err := s.relay.Release(ctx, adm.Slot, ts); err == nil && ok {
			s.released.Add(1)
		}
	})
}

// directFeeder calls the relay in-process.
type directFeeder struct {
	sim       *simulation
	submitted sync.WaitGroup
}

func (s *simulation) runDirect(ctx context.Context) (int, error) {
	f := &directFeeder{sim: s}
	produced, err := s.produce(ctx, f)
	f.submitted.Wait()

	return produced, err
}

func (f *directFeeder) arrival(ctx context.Context, _ string, index types.ChannelIndex, ts types.TimesliceID) error {
	f.submitted.Go(func() {
		adm, err := f.sim.relay.Submit(ctx, slotindex.Arrival{
			Timeslice: ts,
			Channel:   index,
			Context:   variables.NewForTimeslice(ts),
		})
		f.sim.record(ts, adm, err)
	})

	return nil
}

func (f *directFeeder) watermark(ctx context.Context, _ string, index types.ChannelIndex, ts types.TimesliceID) error {
	_, err := f.sim.relay.ReportWatermark(ctx, index, ts)

	return err
}

// natsFeeder publishes on channel subjects of an embedded NATS server.
type natsFeeder struct {
	pub *natsbus.Publisher
}

func (f *natsFeeder) arrival(ctx context.Context, channel string, _ types.ChannelIndex, ts types.TimesliceID) error {
	return f.pub.PublishArrival(ctx, channel, ts, fmt.Appendf(nil, "payload-%d", ts))
}

func (f *natsFeeder) watermark(ctx context.Context, channel string, _ types.ChannelIndex, ts types.TimesliceID) error {
	return f.pub.PublishWatermark(ctx, channel, ts)
}

func (s *simulation) runNATS(runCtx, ctx context.Context, cfg *slotindex.Config) (int, error) {
	ns, nc, err := startEmbeddedNATS()
	if err != nil {
		return 0, err
	}
	defer func() {
		nc.Close()
		ns.Shutdown()
	}()

	js, err := jetstream.New(nc)
	if err != nil {
		return 0, fmt.Errorf("jetstream: %w", err)
	}

	var busOpts []natsbus.Option
	if s.deps.logger != nil {
		busOpts = append(busOpts, natsbus.WithLogger(s.deps.logger))
	}

	fp, err := natsbus.NewFencePublisher(ctx, js, cfg.Fences, busOpts...)
	if err != nil {
		return 0, err
	}
	fences, unsubscribe := s.relay.SubscribeFences()
	defer unsubscribe()
	fenceCtx, stopFences := context.WithCancel(ctx)
	defer stopFences()
	go func() { _ = fp.Run(fenceCtx, fences) }()

	sub := natsbus.NewSubscriber(nc, cfg.Transport.SubjectPrefix, s.relay, append(busOpts,
		natsbus.WithResultHandler(func(r natsbus.Result) { s.record(r.Timeslice, r.Admission, r.Err) }),
	)...)
	if err := sub.Start(runCtx); err != nil {
		return 0, err
	}

	pub := natsbus.NewPublisher(nc, cfg.Transport.SubjectPrefix)
	produced, err := s.produce(runCtx, &natsFeeder{pub: pub})

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if flushErr := pub.Flush(flushCtx); flushErr != nil && err == nil {
		err = flushErr
	}
	sub.Stop()

	if latest, latestErr := fp.Latest(flushCtx); latestErr == nil && s.deps.logger != nil {
		s.deps.logger.Info("fence mirrored in KV", "timeslice", latest.Timeslice)
	}

	return produced, err
}
