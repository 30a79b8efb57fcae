package slotindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/slotindex/internal/backoff"
	"github.com/arloliu/slotindex/internal/fence"
	"github.com/arloliu/slotindex/variables"
)

// Arrival is a unit of work handed to the Relay by the transport layer.
type Arrival struct {
	// Timeslice selects the lane of the arrival.
	Timeslice TimesliceID

	// Channel is the channel the arrival came from, or InvalidChannel when unknown.
	Channel ChannelIndex

	// Context holds the variables to commit into the slot. When nil, a context holding
	// only Timeslice is used.
	Context *variables.Context
}

// Relay drives an Index from many goroutines.
//
// The Index itself assumes a single scheduling context; Relay provides it by holding a
// mutex for the duration of every index call. On top of the bare index it adds:
//   - a lifecycle (Start, Stop, State, WaitState) in which the roster is discovered
//   - parking for ActionWait: Submit retries when a slot frees or after a jittered delay
//   - lazy invalidation of stale slots on every watermark report
//   - fan-out of output fence advances to subscribers
//
// Lifecycle:
//   - Create with NewRelay()
//   - Call Start() to list channels and build the index
//   - Feed arrivals and watermarks with Submit() and ReportWatermark()
//   - Call Complete() when the work in a slot finished
//   - Call Stop() for graceful shutdown
type Relay struct {
	cfg    Config
	source ChannelSource

	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
	opts    []Option

	// Scheduling: guards index and freed
	sched sync.Mutex
	index *Index
	freed chan struct{} // closed and replaced whenever a slot frees up

	fences *fence.Broadcaster

	// State management
	state      atomic.Int32 // State
	stateSince atomic.Int64 // unix nanos of the last transition

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewRelay creates a Relay with the provided configuration.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults (modified in place)
//   - src: Channel source listing the roster at Start
//   - opts: Optional logger, metrics and hooks; they are shared with the index
//
// Returns:
//   - *Relay: Initialized relay in StateInit
//   - error: ErrInvalidConfig or ErrChannelSourceRequired
//
// Example:
//
//	cfg := slotindex.DefaultConfig()
//	cfg.MaxLanes = 4
//	relay, err := slotindex.NewRelay(&cfg, source.NewStatic(channels))
func NewRelay(cfg *Config, src ChannelSource, opts ...Option) (*Relay, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if src == nil {
		return nil, ErrChannelSourceRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := applyOptions(opts)
	cfg.ValidateWithWarnings(o.logger)

	r := &Relay{
		cfg:     *cfg,
		source:  src,
		hooks:   o.hooks,
		metrics: o.metrics,
		logger:  o.logger,
		opts:    []Option{WithLogger(o.logger), WithMetrics(o.metrics), WithHooks(o.hooks)},
		freed:   make(chan struct{}),
		fences:  fence.NewBroadcaster(cfg.FenceBufferSize, o.metrics),
	}
	r.state.Store(int32(StateInit))
	r.stateSince.Store(time.Now().UnixNano())

	return r, nil
}

// Start lists the channel roster and builds the index.
//
// The relay enters StateWaitingForData, or StateRunning right away when the roster has no
// data channel.
//
// Parameters:
//   - ctx: Context for the channel source call
//
// Returns:
//   - error: ErrAlreadyStarted, a channel source error, or an index construction error
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return ErrAlreadyStarted
	}

	channels, err := r.source.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	idx, err := NewIndex(r.cfg.IndexConfig(), channels, r.opts...)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	r.sched.Lock()
	r.index = idx
	r.sched.Unlock()

	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.logger.Info("relay started",
		"maxLanes", r.cfg.MaxLanes,
		"slots", idx.Size(),
		"backpressure", r.cfg.Backpressure,
		"channels", len(channels),
	)

	r.transitionState(StateInit, StateWaitingForData)
	if idx.DidReceiveData() {
		r.transitionState(StateWaitingForData, StateRunning)
	}

	return nil
}

// Stop shuts the relay down.
//
// Parked Submit calls return ErrNotStarted, fence subscriptions are closed. Stop waits for
// in-flight state hooks until ctx ends.
//
// Returns:
//   - error: ErrNotStarted when not running, ctx.Err() on timeout
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.ctx == nil {
		r.mu.Unlock()
		return ErrNotStarted
	}
	current := r.State()
	if current == StateShutdown {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.transitionState(current, StateShutdown)
	r.cancel()
	r.mu.Unlock()

	r.sched.Lock()
	r.signalFreedLocked()
	r.sched.Unlock()

	r.fences.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("relay stopped")
		return nil
	case <-ctx.Done():
		r.logger.Error("shutdown timeout exceeded, state hooks may still be running")
		return ctx.Err()
	}
}

// State returns the current relay state.
func (r *Relay) State() State {
	return State(r.state.Load())
}

// WaitState waits for the relay to reach the expected state within the timeout period.
//
// The returned channel receives exactly one value, nil on success or
// context.DeadlineExceeded on timeout, and is then closed.
//
// Example:
//
//	if err := <-relay.WaitState(slotindex.StateRunning, time.Second); err != nil {
//	    return fmt.Errorf("no data arrived: %w", err)
//	}
func (r *Relay) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if r.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if r.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// Submit admits an arrival.
//
// An admitted slot is in flight: it holds the output fence back and is exempt from stale
// invalidation until Publish or Complete.
//
// When the index answers ActionWait and Wait.Enabled is set, the call parks and retries
// each time a slot frees up or the jittered backoff delay elapses, until the arrival is
// admitted or dropped, Wait.MaxAttempts retries are exhausted (the ActionWait admission is
// returned), or ctx ends.
//
// Parameters:
//   - ctx: Bounds the time spent parked
//   - a: The arrival
//
// Returns:
//   - Admission: The final decision
//   - error: ErrNotStarted, ErrUnknownChannel for a channel outside the roster, or ctx.Err()
func (r *Relay) Submit(ctx context.Context, a Arrival) (Admission, error) {
	idx, lifetime, vars, err := r.prepare(a)
	if err != nil {
		return Admission{Action: ActionDropInvalid, Slot: InvalidSlot}, err
	}

	var (
		seq      *backoff.Sequence
		parked   time.Time
		attempts int
	)
	for {
		if lifetime.Err() != nil {
			return Admission{Action: ActionWait, Slot: InvalidSlot}, ErrNotStarted
		}

		adm, freed := r.admitOnce(idx, vars, a.Timeslice)
		if adm.Action != ActionWait || !r.cfg.Wait.Enabled {
			r.finishWait(parked)
			return adm, nil
		}
		if r.cfg.Wait.MaxAttempts > 0 && attempts >= r.cfg.Wait.MaxAttempts {
			r.finishWait(parked)
			r.logger.Debug("giving up on parked arrival",
				"timeslice", a.Timeslice,
				"channel", a.Channel,
				"attempts", attempts,
			)

			return adm, nil
		}

		if seq == nil {
			seq = backoff.NewSequence(backoff.Policy{
				Base:       r.cfg.Wait.BaseDelay,
				Max:        r.cfg.Wait.MaxDelay,
				Multiplier: r.cfg.Wait.Multiplier,
			}, r.cfg.Wait.Seed)
			parked = time.Now()
		}
		attempts++

		timer := time.NewTimer(seq.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			r.finishWait(parked)
			return adm, ctx.Err()
		case <-lifetime.Done():
			timer.Stop()
			return adm, ErrNotStarted
		case <-freed:
		case <-timer.C:
		}
		timer.Stop()
		r.metrics.RecordWaitRetry()
	}
}

// TrySubmit makes a single admission attempt and never parks.
//
// An ActionWait answer is returned as is, whatever Wait.Enabled says. Transports use it to
// apply arrivals in delivery order and hand only waiting arrivals over to Submit.
//
// Returns:
//   - Admission: The decision
//   - error: ErrNotStarted, or ErrUnknownChannel for a channel outside the roster
func (r *Relay) TrySubmit(_ context.Context, a Arrival) (Admission, error) {
	idx, _, vars, err := r.prepare(a)
	if err != nil {
		return Admission{Action: ActionDropInvalid, Slot: InvalidSlot}, err
	}

	adm, _ := r.admitOnce(idx, vars, a.Timeslice)

	return adm, nil
}

func (r *Relay) prepare(a Arrival) (*Index, context.Context, *variables.Context, error) {
	idx, lifetime, err := r.running()
	if err != nil {
		return nil, nil, nil, err
	}
	if a.Channel != InvalidChannel && (a.Channel < 0 || int(a.Channel) >= len(idx.channels)) {
		return nil, nil, nil, fmt.Errorf("%w: channel index %d", ErrUnknownChannel, a.Channel)
	}

	vars := a.Context
	if vars == nil {
		vars = variables.NewForTimeslice(a.Timeslice)
	}

	return idx, lifetime, vars, nil
}

// admitOnce runs one admission under the scheduler lock and returns the freed-slot signal
// current at that moment.
func (r *Relay) admitOnce(idx *Index, vars *variables.Context, ts TimesliceID) (Admission, <-chan struct{}) {
	r.sched.Lock()
	defer r.sched.Unlock()

	freed := r.freed
	adm := idx.Admit(vars, ts)
	if adm.Admitted() {
		idx.MarkDirty(adm.Slot, true)
		r.refreshFenceLocked(idx)
	}

	return adm, freed
}

// ReportWatermark records a channel watermark.
//
// Stale slots are invalidated lazily: every occupied slot is validated against the new
// input fence, then the output fence is recomputed and published to subscribers when it
// advanced. The relay enters StateRunning once any data channel reported data.
//
// Returns:
//   - OldestOutputInfo: Output fence after the report
//   - error: ErrNotStarted, or ErrUnknownChannel for a channel outside the roster
func (r *Relay) ReportWatermark(_ context.Context, channel ChannelIndex, ts TimesliceID) (OldestOutputInfo, error) {
	idx, _, err := r.running()
	if err != nil {
		return OldestOutputInfo{}, err
	}
	if channel < 0 || int(channel) >= len(idx.channels) {
		return OldestOutputInfo{}, fmt.Errorf("%w: channel index %d", ErrUnknownChannel, channel)
	}

	r.sched.Lock()
	idx.ReportChannelWatermark(ts, channel)
	invalidated := 0
	for s := range idx.Size() {
		slot := SlotIndex(s)
		if idx.IsValid(slot) && !idx.ValidateSlot(slot, ts) {
			invalidated++
		}
	}
	out := r.refreshFenceLocked(idx)
	if invalidated > 0 {
		r.signalFreedLocked()
	}
	live := idx.DidReceiveData()
	r.sched.Unlock()

	if live && r.State() == StateWaitingForData {
		r.transitionState(StateWaitingForData, StateRunning)
	}

	return out, nil
}

// Complete releases a slot whose work finished and wakes parked arrivals.
//
// Returns:
//   - OldestOutputInfo: Output fence after the release
//   - error: ErrNotStarted, or an error wrapping ErrSlotOutOfRange
func (r *Relay) Complete(_ context.Context, slot SlotIndex) (OldestOutputInfo, error) {
	_, out, err := r.release(slot, InvalidTimeslice)

	return out, err
}

// Release is Complete guarded by the slot's content: the slot is released only while it
// still holds ts. Workers use it when their slot may have been evicted in the meantime.
//
// Returns:
//   - bool: Whether the slot was released
//   - OldestOutputInfo: Output fence after the call
//   - error: ErrNotStarted, or an error wrapping ErrSlotOutOfRange
func (r *Relay) Release(_ context.Context, slot SlotIndex, ts TimesliceID) (bool, OldestOutputInfo, error) {
	return r.release(slot, ts)
}

func (r *Relay) release(slot SlotIndex, ts TimesliceID) (bool, OldestOutputInfo, error) {
	idx, _, err := r.running()
	if err != nil {
		return false, OldestOutputInfo{}, err
	}
	if slot < 0 || int(slot) >= idx.Size() {
		return false, OldestOutputInfo{}, fmt.Errorf("%w: slot %d", ErrSlotOutOfRange, slot)
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	if ts != InvalidTimeslice && idx.TimesliceForSlot(slot) != ts {
		return false, idx.OldestPossibleOutput(), nil
	}

	idx.MarkInvalid(slot)
	out := r.refreshFenceLocked(idx)
	r.signalFreedLocked()

	return true, out, nil
}

// Publish copies the slot's variables into its published snapshot.
//
// The slot stops being in flight: once the input fence passes its timeslice, the next
// watermark report invalidates it.
//
// Returns:
//   - bool: Whether the published values changed
//   - error: ErrNotStarted, or an error wrapping ErrSlotOutOfRange
func (r *Relay) Publish(_ context.Context, slot SlotIndex) (bool, error) {
	idx, _, err := r.running()
	if err != nil {
		return false, err
	}
	if slot < 0 || int(slot) >= idx.Size() {
		return false, fmt.Errorf("%w: slot %d", ErrSlotOutOfRange, slot)
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	return idx.PublishSlot(slot), nil
}

// Variables returns a copy of the slot's variable context.
func (r *Relay) Variables(slot SlotIndex) (*variables.Context, error) {
	idx, _, err := r.running()
	if err != nil {
		return nil, err
	}
	if slot < 0 || int(slot) >= idx.Size() {
		return nil, fmt.Errorf("%w: slot %d", ErrSlotOutOfRange, slot)
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	return idx.Variables(slot), nil
}

// Reset returns watermarks and fences to the zero baseline for a pipeline restart.
//
// In-flight slots are kept. A running relay goes back to StateWaitingForData unless the
// roster has no data channel.
func (r *Relay) Reset(_ context.Context) error {
	idx, _, err := r.running()
	if err != nil {
		return err
	}

	r.sched.Lock()
	idx.Reset()
	r.fences.Forget()
	live := idx.DidReceiveData()
	r.sched.Unlock()

	if !live && r.State() == StateRunning {
		r.transitionState(StateRunning, StateWaitingForData)
	}

	return nil
}

// SubscribeFences returns a channel of output fence advances and an unsubscribe function.
//
// The latest fence, if any, is delivered first. A slow subscriber misses intermediate
// values but always sees a later one. The channel is closed by Stop.
func (r *Relay) SubscribeFences() (<-chan OldestOutputInfo, func()) {
	return r.fences.Subscribe()
}

// OldestPossibleInput returns the current input fence.
func (r *Relay) OldestPossibleInput() (OldestInputInfo, error) {
	idx, _, err := r.running()
	if err != nil {
		return OldestInputInfo{}, err
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	return idx.OldestPossibleInput(), nil
}

// OldestPossibleOutput returns the current output fence.
func (r *Relay) OldestPossibleOutput() (OldestOutputInfo, error) {
	idx, _, err := r.running()
	if err != nil {
		return OldestOutputInfo{}, err
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	return idx.OldestPossibleOutput(), nil
}

// ChannelByName resolves a channel name of the roster.
//
// Returns:
//   - ChannelIndex: Channel index
//   - error: ErrNotStarted, or ErrUnknownChannel
func (r *Relay) ChannelByName(name string) (ChannelIndex, error) {
	idx, _, err := r.running()
	if err != nil {
		return InvalidChannel, err
	}

	// The name table is immutable after Start.
	ch, ok := idx.ChannelByName(name)
	if !ok {
		return InvalidChannel, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}

	return ch, nil
}

// Channels returns the roster with current watermarks.
func (r *Relay) Channels() ([]ChannelInfo, error) {
	idx, _, err := r.running()
	if err != nil {
		return nil, err
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	return idx.Channels(), nil
}

// OccupiedSlots returns the number of slots holding a timeslice.
func (r *Relay) OccupiedSlots() (int, error) {
	idx, _, err := r.running()
	if err != nil {
		return 0, err
	}

	r.sched.Lock()
	defer r.sched.Unlock()

	return idx.OccupiedSlots(), nil
}

// running returns the index and lifecycle context of a started, not stopped relay.
func (r *Relay) running() (*Index, context.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ctx == nil || r.ctx.Err() != nil {
		return nil, nil, ErrNotStarted
	}

	return r.index, r.ctx, nil
}

// refreshFenceLocked recomputes the output fence and publishes it when it moved.
// Callers hold r.sched.
func (r *Relay) refreshFenceLocked(idx *Index) OldestOutputInfo {
	out := idx.UpdateOldestPossibleOutput()
	if last, ok := r.fences.Last(); !ok || last != out {
		r.fences.Publish(out)
	}

	return out
}

// signalFreedLocked wakes every parked Submit. Callers hold r.sched.
func (r *Relay) signalFreedLocked() {
	close(r.freed)
	r.freed = make(chan struct{})
}

func (r *Relay) finishWait(parked time.Time) {
	if parked.IsZero() {
		return
	}
	r.metrics.RecordWaitDuration(time.Since(parked).Seconds())
}

// transitionState moves from -> to when the transition is valid and the relay is still in from.
func (r *Relay) transitionState(from, to State) {
	if !isValidTransition(from, to) {
		r.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return
	}
	if !r.state.CompareAndSwap(int32(from), int32(to)) { //nolint:gosec // State values are controlled enum
		return
	}

	now := time.Now()
	since := time.Unix(0, r.stateSince.Swap(now.UnixNano()))

	r.logger.Info("state transition", "from", from.String(), "to", to.String())

	ctx := r.ctx
	r.wg.Go(func() {
		if err := r.hooks.OnStateChanged(ctx, from, to); err != nil {
			r.logger.Error("state change hook error", "from", from, "to", to, "error", err)
		}
	})

	r.metrics.RecordStateTransition(from, to, now.Sub(since).Seconds())
}

var validTransitions = map[State][]State{
	StateInit:           {StateWaitingForData, StateShutdown},
	StateWaitingForData: {StateRunning, StateShutdown},
	StateRunning:        {StateWaitingForData, StateShutdown},
	StateShutdown:       {}, // terminal
}

func isValidTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}
