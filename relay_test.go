package slotindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/slotindex/variables"
)

func TestNewRelay(t *testing.T) {
	src := rosterSource{channels: dataChannels("tpc")}

	t.Run("nil config", func(t *testing.T) {
		_, err := NewRelay(nil, src)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil source", func(t *testing.T) {
		cfg := TestConfig()
		_, err := NewRelay(&cfg, nil)
		require.ErrorIs(t, err, ErrChannelSourceRequired)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := TestConfig()
		cfg.MaxLanes = -1
		_, err := NewRelay(&cfg, src)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("fills defaults", func(t *testing.T) {
		cfg := Config{}
		relay, err := NewRelay(&cfg, src)
		require.NoError(t, err)
		require.Equal(t, StateInit, relay.State())
		require.Equal(t, 1, cfg.MaxLanes)
		require.Equal(t, BackpressureDropAncient, cfg.Backpressure)
	})
}

func TestRelay_Lifecycle(t *testing.T) {
	t.Run("start waits for data", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc", "its"))
		require.Equal(t, StateWaitingForData, relay.State())

		_, err := relay.ReportWatermark(context.Background(), 1, 5)
		require.NoError(t, err)
		require.NoError(t, <-relay.WaitState(StateRunning, time.Second))
	})

	t.Run("roster without data channels runs immediately", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), []ChannelInfo{{Name: "dcs", Kind: ChannelKindAuxiliary}})
		require.Equal(t, StateRunning, relay.State())
	})

	t.Run("start twice", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))
		require.ErrorIs(t, relay.Start(context.Background()), ErrAlreadyStarted)
	})

	t.Run("source failure keeps relay startable", func(t *testing.T) {
		boom := errors.New("discovery down")
		cfg := TestConfig()
		relay, err := NewRelay(&cfg, rosterSource{err: boom})
		require.NoError(t, err)

		err = relay.Start(context.Background())
		require.ErrorIs(t, err, boom)
		require.Equal(t, StateInit, relay.State())

		relay.source = rosterSource{channels: dataChannels("tpc")}
		require.NoError(t, relay.Start(context.Background()))
		require.NoError(t, relay.Stop(context.Background()))
	})

	t.Run("duplicate channel in roster", func(t *testing.T) {
		cfg := TestConfig()
		relay, err := NewRelay(&cfg, rosterSource{channels: dataChannels("tpc", "tpc")})
		require.NoError(t, err)
		require.ErrorIs(t, relay.Start(context.Background()), ErrDuplicateChannel)
	})

	t.Run("stop", func(t *testing.T) {
		cfg := TestConfig()
		relay, err := NewRelay(&cfg, rosterSource{channels: dataChannels("tpc")})
		require.NoError(t, err)
		require.ErrorIs(t, relay.Stop(context.Background()), ErrNotStarted)

		require.NoError(t, relay.Start(context.Background()))
		require.NoError(t, relay.Stop(context.Background()))
		require.Equal(t, StateShutdown, relay.State())
		require.ErrorIs(t, relay.Stop(context.Background()), ErrNotStarted)

		_, err = relay.Submit(context.Background(), Arrival{Timeslice: 1, Channel: InvalidChannel})
		require.ErrorIs(t, err, ErrNotStarted)
		_, err = relay.ReportWatermark(context.Background(), 0, 1)
		require.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("operations before start", func(t *testing.T) {
		cfg := TestConfig()
		relay, err := NewRelay(&cfg, rosterSource{channels: dataChannels("tpc")})
		require.NoError(t, err)

		_, err = relay.Submit(context.Background(), Arrival{Timeslice: 1, Channel: InvalidChannel})
		require.ErrorIs(t, err, ErrNotStarted)
		_, err = relay.Complete(context.Background(), 0)
		require.ErrorIs(t, err, ErrNotStarted)
		_, err = relay.Publish(context.Background(), 0)
		require.ErrorIs(t, err, ErrNotStarted)
		require.ErrorIs(t, relay.Reset(context.Background()), ErrNotStarted)
		_, err = relay.OldestPossibleOutput()
		require.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("state hooks and metrics", func(t *testing.T) {
		rh := &recordingHooks{}
		rm := newRecordingMetrics()
		cfg := TestConfig()
		relay, err := NewRelay(&cfg, rosterSource{channels: dataChannels("tpc")},
			WithHooks(rh.hooks()), WithMetrics(rm))
		require.NoError(t, err)

		require.NoError(t, relay.Start(context.Background()))
		_, err = relay.ReportWatermark(context.Background(), 0, 3)
		require.NoError(t, err)
		require.NoError(t, relay.Stop(context.Background()))

		require.ElementsMatch(t, []State{StateWaitingForData, StateRunning, StateShutdown}, rh.stateHistory())

		rm.mu.Lock()
		defer rm.mu.Unlock()
		require.Equal(t, []State{StateWaitingForData, StateRunning, StateShutdown}, rm.transitions)
	})
}

func TestRelay_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("admits into the lane", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		adm, err := relay.Submit(ctx, Arrival{Timeslice: 6, Channel: 0})
		require.NoError(t, err)
		require.Equal(t, ActionReplaceUnused, adm.Action)
		require.Equal(t, SlotIndex(2), adm.Slot)

		occupied, err := relay.OccupiedSlots()
		require.NoError(t, err)
		require.Equal(t, 1, occupied)
	})

	t.Run("uses the provided context", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		vars := variables.NewForTimeslice(9)
		vars.Put(1, variables.String("payload"))
		vars.Commit()

		adm, err := relay.Submit(ctx, Arrival{Timeslice: 9, Channel: 0, Context: vars})
		require.NoError(t, err)
		require.True(t, adm.Admitted())

		stored, err := relay.Variables(adm.Slot)
		require.NoError(t, err)
		payload, ok := stored.Get(1).AsString()
		require.True(t, ok)
		require.Equal(t, "payload", payload)

		vars.Put(1, variables.String("changed by caller"))
		vars.Commit()
		stored, err = relay.Variables(adm.Slot)
		require.NoError(t, err)
		payload, _ = stored.Get(1).AsString()
		require.Equal(t, "payload", payload, "index keeps its own copy")

		published, err := relay.Publish(ctx, adm.Slot)
		require.NoError(t, err)
		require.True(t, published)

		published, err = relay.Publish(ctx, adm.Slot)
		require.NoError(t, err)
		require.False(t, published, "unchanged slot republished")
	})

	t.Run("unknown channel", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		_, err := relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 3})
		require.ErrorIs(t, err, ErrUnknownChannel)
	})

	t.Run("context for another timeslice", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		adm, err := relay.Submit(ctx, Arrival{Timeslice: 10, Channel: 0, Context: variables.NewForTimeslice(5)})
		require.NoError(t, err)
		require.Equal(t, ActionDropInvalid, adm.Action)

		occupied, err := relay.OccupiedSlots()
		require.NoError(t, err)
		require.Zero(t, occupied)
	})

	t.Run("wait disabled returns the wait decision", func(t *testing.T) {
		cfg := TestConfig()
		cfg.MaxLanes, cfg.SlotsPerLane = 1, 1
		cfg.Backpressure = BackpressureWait
		cfg.Wait.Enabled = false
		relay := newStartedRelay(t, cfg, dataChannels("tpc"))

		_, err := relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 0})
		require.NoError(t, err)

		adm, err := relay.Submit(ctx, Arrival{Timeslice: 2, Channel: 0})
		require.NoError(t, err)
		require.Equal(t, ActionWait, adm.Action)
		require.Equal(t, InvalidSlot, adm.Slot)
	})

	t.Run("parked arrival admitted after completion", func(t *testing.T) {
		cfg := TestConfig()
		cfg.MaxLanes, cfg.SlotsPerLane = 1, 1
		cfg.Backpressure = BackpressureWait
		rm := newRecordingMetrics()
		relay := newStartedRelay(t, cfg, dataChannels("tpc"), WithMetrics(rm))

		first, err := relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 0})
		require.NoError(t, err)
		require.Equal(t, ActionReplaceUnused, first.Action)

		result := make(chan Admission, 1)
		go func() {
			adm, err := relay.Submit(ctx, Arrival{Timeslice: 2, Channel: 0})
			assert.NoError(t, err)
			result <- adm
		}()

		require.Eventually(t, func() bool { return rm.waitRetryCount() > 0 }, time.Second, time.Millisecond)

		_, err = relay.Complete(ctx, first.Slot)
		require.NoError(t, err)

		select {
		case adm := <-result:
			require.Equal(t, ActionReplaceUnused, adm.Action)
			require.Equal(t, SlotIndex(0), adm.Slot)
		case <-time.After(time.Second):
			t.Fatal("parked arrival was not re-driven")
		}
	})

	t.Run("parked arrival gives up after max attempts", func(t *testing.T) {
		cfg := TestConfig()
		cfg.MaxLanes, cfg.SlotsPerLane = 1, 1
		cfg.Backpressure = BackpressureWait
		cfg.Wait.MaxAttempts = 3
		rm := newRecordingMetrics()
		relay := newStartedRelay(t, cfg, dataChannels("tpc"), WithMetrics(rm))

		_, err := relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 0})
		require.NoError(t, err)

		adm, err := relay.Submit(ctx, Arrival{Timeslice: 2, Channel: 0})
		require.NoError(t, err)
		require.Equal(t, ActionWait, adm.Action)
		require.Equal(t, 3, rm.waitRetryCount())
		require.Equal(t, 4, rm.admissionCount(ActionWait))
	})

	t.Run("parked arrival honors context", func(t *testing.T) {
		cfg := TestConfig()
		cfg.MaxLanes, cfg.SlotsPerLane = 1, 1
		cfg.Backpressure = BackpressureWait
		relay := newStartedRelay(t, cfg, dataChannels("tpc"))

		_, err := relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 0})
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		adm, err := relay.Submit(waitCtx, Arrival{Timeslice: 2, Channel: 0})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, ActionWait, adm.Action)
	})

	t.Run("stop releases parked arrivals", func(t *testing.T) {
		cfg := TestConfig()
		cfg.MaxLanes, cfg.SlotsPerLane = 1, 1
		cfg.Backpressure = BackpressureWait
		rm := newRecordingMetrics()
		relay, err := NewRelay(&cfg, rosterSource{channels: dataChannels("tpc")}, WithMetrics(rm))
		require.NoError(t, err)
		require.NoError(t, relay.Start(ctx))

		_, err = relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 0})
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := relay.Submit(ctx, Arrival{Timeslice: 2, Channel: 0})
			done <- err
		}()
		require.Eventually(t, func() bool { return rm.waitRetryCount() > 0 }, time.Second, time.Millisecond)

		require.NoError(t, relay.Stop(ctx))

		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrNotStarted)
		case <-time.After(time.Second):
			t.Fatal("parked arrival survived Stop")
		}
	})
}

func TestRelay_TrySubmit(t *testing.T) {
	ctx := context.Background()

	cfg := TestConfig()
	cfg.Backpressure = BackpressureWait
	relay := newStartedRelay(t, cfg, dataChannels("tpc"))
	require.True(t, cfg.Wait.Enabled)

	for _, ts := range []TimesliceID{0, 4} {
		adm, err := relay.TrySubmit(ctx, Arrival{Timeslice: ts, Channel: 0})
		require.NoError(t, err)
		require.Equal(t, ActionReplaceUnused, adm.Action)
	}

	t.Run("full lane answers wait without parking", func(t *testing.T) {
		start := time.Now()
		adm, err := relay.TrySubmit(ctx, Arrival{Timeslice: 8, Channel: 0})
		require.NoError(t, err)
		require.Equal(t, ActionWait, adm.Action)
		require.Equal(t, InvalidSlot, adm.Slot)
		require.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, err := relay.TrySubmit(ctx, Arrival{Timeslice: 1, Channel: 7})
		require.ErrorIs(t, err, ErrUnknownChannel)
	})

	t.Run("stopped relay", func(t *testing.T) {
		stopped := newStartedRelay(t, TestConfig(), dataChannels("tpc"))
		require.NoError(t, stopped.Stop(ctx))

		_, err := stopped.TrySubmit(ctx, Arrival{Timeslice: 1, Channel: 0})
		require.ErrorIs(t, err, ErrNotStarted)
	})
}

func TestRelay_ReportWatermark(t *testing.T) {
	ctx := context.Background()

	t.Run("published slots go stale behind the input fence", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))
		fences, unsubscribe := relay.SubscribeFences()
		defer unsubscribe()

		adm, err := relay.Submit(ctx, Arrival{Timeslice: 3, Channel: 0})
		require.NoError(t, err)
		require.True(t, adm.Admitted())
		require.Equal(t, OldestOutputInfo{Timeslice: 0, Channel: InvalidChannel, Slot: InvalidSlot}, <-fences)

		out, err := relay.ReportWatermark(ctx, 0, 2)
		require.NoError(t, err)
		require.Equal(t, OldestOutputInfo{Timeslice: 2, Channel: 0, Slot: InvalidSlot}, out)
		require.Equal(t, out, <-fences)

		// In flight: the slot survives and limits the output fence.
		out, err = relay.ReportWatermark(ctx, 0, 10)
		require.NoError(t, err)
		require.Equal(t, OldestOutputInfo{Timeslice: 3, Channel: InvalidChannel, Slot: adm.Slot}, out)
		require.Equal(t, out, <-fences)

		published, err := relay.Publish(ctx, adm.Slot)
		require.NoError(t, err)
		require.True(t, published)

		out, err = relay.ReportWatermark(ctx, 0, 11)
		require.NoError(t, err)
		require.Equal(t, OldestOutputInfo{Timeslice: 11, Channel: 0, Slot: InvalidSlot}, out)
		require.Equal(t, out, <-fences)

		occupied, err := relay.OccupiedSlots()
		require.NoError(t, err)
		require.Zero(t, occupied, "published slot holding 3 must be invalidated behind fence 11")
	})

	t.Run("late subscriber sees the latest fence", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		_, err := relay.ReportWatermark(ctx, 0, 4)
		require.NoError(t, err)

		fences, unsubscribe := relay.SubscribeFences()
		defer unsubscribe()
		require.Equal(t, TimesliceID(4), (<-fences).Timeslice)
	})

	t.Run("in-flight slots limit the output fence", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		_, err := relay.ReportWatermark(ctx, 0, 4)
		require.NoError(t, err)
		six, err := relay.Submit(ctx, Arrival{Timeslice: 6, Channel: 0})
		require.NoError(t, err)
		nine, err := relay.Submit(ctx, Arrival{Timeslice: 9, Channel: 0})
		require.NoError(t, err)

		out, err := relay.ReportWatermark(ctx, 0, 8)
		require.NoError(t, err)
		require.Equal(t, OldestOutputInfo{Timeslice: 6, Channel: InvalidChannel, Slot: six.Slot}, out)

		out, err = relay.Complete(ctx, six.Slot)
		require.NoError(t, err)
		require.Equal(t, OldestOutputInfo{Timeslice: 8, Channel: 0, Slot: InvalidSlot}, out)

		_, err = relay.Publish(ctx, nine.Slot)
		require.NoError(t, err)
		_, err = relay.ReportWatermark(ctx, 0, 12)
		require.NoError(t, err)

		occupied, err := relay.OccupiedSlots()
		require.NoError(t, err)
		require.Zero(t, occupied)

		in, err := relay.OldestPossibleInput()
		require.NoError(t, err)
		require.Equal(t, OldestInputInfo{Timeslice: 12, Channel: 0}, in)
	})

	t.Run("unknown channel", func(t *testing.T) {
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

		_, err := relay.ReportWatermark(ctx, 1, 4)
		require.ErrorIs(t, err, ErrUnknownChannel)
		_, err = relay.ReportWatermark(ctx, InvalidChannel, 4)
		require.ErrorIs(t, err, ErrUnknownChannel)
	})

	t.Run("regression leaves fences untouched", func(t *testing.T) {
		rm := newRecordingMetrics()
		relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"), WithMetrics(rm))

		_, err := relay.ReportWatermark(ctx, 0, 10)
		require.NoError(t, err)
		out, err := relay.ReportWatermark(ctx, 0, 5)
		require.NoError(t, err)

		require.Equal(t, TimesliceID(10), out.Timeslice)
		rm.mu.Lock()
		require.Equal(t, 1, rm.watermarkRegressions["tpc"])
		rm.mu.Unlock()
	})
}

func TestRelay_Complete(t *testing.T) {
	ctx := context.Background()
	relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

	_, err := relay.ReportWatermark(ctx, 0, 2)
	require.NoError(t, err)
	adm, err := relay.Submit(ctx, Arrival{Timeslice: 3, Channel: 0})
	require.NoError(t, err)

	out, err := relay.Complete(ctx, adm.Slot)
	require.NoError(t, err)
	require.Equal(t, TimesliceID(2), out.Timeslice)

	occupied, err := relay.OccupiedSlots()
	require.NoError(t, err)
	require.Zero(t, occupied)

	_, err = relay.Complete(ctx, 99)
	require.ErrorIs(t, err, ErrSlotOutOfRange)
	_, err = relay.Publish(ctx, -1)
	require.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestRelay_Release(t *testing.T) {
	ctx := context.Background()
	cfg := TestConfig()
	cfg.MaxLanes, cfg.SlotsPerLane = 1, 1
	relay := newStartedRelay(t, cfg, dataChannels("tpc"))

	first, err := relay.Submit(ctx, Arrival{Timeslice: 1, Channel: 0})
	require.NoError(t, err)
	evicting, err := relay.Submit(ctx, Arrival{Timeslice: 2, Channel: 0})
	require.NoError(t, err)
	require.Equal(t, ActionReplaceObsolete, evicting.Action)
	require.Equal(t, first.Slot, evicting.Slot)

	released, _, err := relay.Release(ctx, first.Slot, 1)
	require.NoError(t, err)
	require.False(t, released, "slot was taken over by timeslice 2")

	released, _, err = relay.Release(ctx, evicting.Slot, 2)
	require.NoError(t, err)
	require.True(t, released)

	occupied, err := relay.OccupiedSlots()
	require.NoError(t, err)
	require.Zero(t, occupied)
}

func TestRelay_Reset(t *testing.T) {
	ctx := context.Background()
	relay := newStartedRelay(t, TestConfig(), dataChannels("tpc"))

	_, err := relay.ReportWatermark(ctx, 0, 7)
	require.NoError(t, err)
	require.NoError(t, <-relay.WaitState(StateRunning, time.Second))

	require.NoError(t, relay.Reset(ctx))
	require.Equal(t, StateWaitingForData, relay.State())

	in, err := relay.OldestPossibleInput()
	require.NoError(t, err)
	require.Equal(t, OldestInputInfo{Timeslice: 0, Channel: InvalidChannel}, in)

	channels, err := relay.Channels()
	require.NoError(t, err)
	require.Zero(t, channels[0].OldestForChannel)

	_, err = relay.ReportWatermark(ctx, 0, 1)
	require.NoError(t, err)
	require.Equal(t, StateRunning, relay.State())
}

func TestRelay_ChannelByName(t *testing.T) {
	relay := newStartedRelay(t, TestConfig(), dataChannels("tpc", "its"))

	ch, err := relay.ChannelByName("its")
	require.NoError(t, err)
	require.Equal(t, ChannelIndex(1), ch)

	_, err = relay.ChannelByName("mft")
	require.ErrorIs(t, err, ErrUnknownChannel)
}

func TestRelay_WaitState(t *testing.T) {
	t.Run("already in state", func(t *testing.T) {
		r := &Relay{}
		r.state.Store(int32(StateRunning))

		require.NoError(t, <-r.WaitState(StateRunning, time.Second))
	})

	t.Run("timeout", func(t *testing.T) {
		r := &Relay{}
		r.state.Store(int32(StateInit))

		start := time.Now()
		err := <-r.WaitState(StateRunning, 50*time.Millisecond)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("multiple waiters", func(t *testing.T) {
		r := &Relay{}
		r.state.Store(int32(StateInit))

		first := r.WaitState(StateRunning, time.Second)
		second := r.WaitState(StateRunning, time.Second)
		r.state.Store(int32(StateRunning))

		require.NoError(t, <-first)
		require.NoError(t, <-second)
	})
}
