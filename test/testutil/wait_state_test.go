package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/slotindex"
	"github.com/arloliu/slotindex/source"
	"github.com/arloliu/slotindex/types"
	"github.com/stretchr/testify/require"
)

// mockRelay implements RelayWaiter for testing.
type mockRelay struct {
	currentState atomic.Int32
	transitions  []stateTransition
}

type stateTransition struct {
	delay time.Duration
	state types.State
}

func newMockRelay(initialState types.State) *mockRelay {
	m := &mockRelay{}
	m.currentState.Store(int32(initialState))

	return m
}

func (m *mockRelay) State() types.State {
	return types.State(m.currentState.Load())
}

func (m *mockRelay) scheduleTransitions(transitions ...stateTransition) {
	m.transitions = transitions
	go func() {
		for _, t := range transitions {
			time.Sleep(t.delay)
			m.currentState.Store(int32(t.state))
		}
	}()
}

func (m *mockRelay) WaitState(expectedState types.State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)

		if m.State() == expectedState {
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
				if m.State() == expectedState {
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

func TestWaitAllRelaysState_AllSucceed(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)
	r3 := newMockRelay(types.StateInit)

	// Schedule state transitions at different times
	r1.scheduleTransitions(stateTransition{50 * time.Millisecond, types.StateRunning})
	r2.scheduleTransitions(stateTransition{100 * time.Millisecond, types.StateRunning})
	r3.scheduleTransitions(stateTransition{150 * time.Millisecond, types.StateRunning})

	relays := []RelayWaiter{r1, r2, r3}

	ctx := context.Background()
	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 1*time.Second)

	require.NoError(t, err)
	require.Equal(t, types.StateRunning, r1.State())
	require.Equal(t, types.StateRunning, r2.State())
	require.Equal(t, types.StateRunning, r3.State())
}

func TestWaitAllRelaysState_OneTimeout(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)
	r3 := newMockRelay(types.StateInit)

	// r1 and r2 succeed, r3 never transitions
	r1.scheduleTransitions(stateTransition{50 * time.Millisecond, types.StateRunning})
	r2.scheduleTransitions(stateTransition{100 * time.Millisecond, types.StateRunning})

	relays := []RelayWaiter{r1, r2, r3}

	ctx := context.Background()
	start := time.Now()
	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 500*time.Millisecond)

	elapsed := time.Since(start)

	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "relay[2]")
	require.Contains(t, err.Error(), "Running")
	// Should return quickly after first timeout (500ms), not wait for all
	require.Less(t, elapsed, 800*time.Millisecond)
}

func TestWaitAllRelaysState_ContextCancellation(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)

	// Both relays transition slowly
	r1.scheduleTransitions(stateTransition{500 * time.Millisecond, types.StateRunning})
	r2.scheduleTransitions(stateTransition{500 * time.Millisecond, types.StateRunning})

	relays := []RelayWaiter{r1, r2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 1*time.Second)

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitAllRelaysState_EmptyRelays(t *testing.T) {
	var relays []RelayWaiter

	ctx := context.Background()
	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 1*time.Second)

	require.NoError(t, err)
}

func TestWaitAllRelaysState_AlreadyInState(t *testing.T) {
	r1 := newMockRelay(types.StateRunning)
	r2 := newMockRelay(types.StateRunning)
	r3 := newMockRelay(types.StateRunning)

	relays := []RelayWaiter{r1, r2, r3}

	ctx := context.Background()
	start := time.Now()
	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 1*time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	// Should return almost immediately since all are already in state
	require.Less(t, elapsed, 100*time.Millisecond)
}

func TestWaitAnyRelayState_FirstSucceeds(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)
	r3 := newMockRelay(types.StateInit)

	// r2 succeeds first
	r1.scheduleTransitions(stateTransition{150 * time.Millisecond, types.StateWaitingForData})
	r2.scheduleTransitions(stateTransition{50 * time.Millisecond, types.StateWaitingForData})
	r3.scheduleTransitions(stateTransition{200 * time.Millisecond, types.StateWaitingForData})

	relays := []RelayWaiter{r1, r2, r3}

	idx, err := WaitAnyRelayState(relays, types.StateWaitingForData, 1*time.Second)

	require.NoError(t, err)
	require.Equal(t, 1, idx) // r2 (index 1) succeeded first
}

func TestWaitAnyRelayState_AllTimeout(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)
	r3 := newMockRelay(types.StateInit)

	// None transition in time
	r1.scheduleTransitions(stateTransition{2 * time.Second, types.StateWaitingForData})
	r2.scheduleTransitions(stateTransition{2 * time.Second, types.StateWaitingForData})
	r3.scheduleTransitions(stateTransition{2 * time.Second, types.StateWaitingForData})

	relays := []RelayWaiter{r1, r2, r3}

	idx, err := WaitAnyRelayState(relays, types.StateWaitingForData, 500*time.Millisecond)

	require.Error(t, err)
	require.Equal(t, -1, idx)
	require.Contains(t, err.Error(), "all relays failed")
	require.Contains(t, err.Error(), "WaitingForData")
	require.Contains(t, err.Error(), "relay[0]")
	require.Contains(t, err.Error(), "relay[1]")
	require.Contains(t, err.Error(), "relay[2]")
}

func TestWaitAnyRelayState_EmptyRelays(t *testing.T) {
	var relays []RelayWaiter

	idx, err := WaitAnyRelayState(relays, types.StateRunning, 1*time.Second)

	require.Error(t, err)
	require.Equal(t, -1, idx)
	require.Contains(t, err.Error(), "no relays provided")
}

func TestWaitAnyRelayState_AlreadyInState(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateWaitingForData) // Already in target state
	r3 := newMockRelay(types.StateInit)

	relays := []RelayWaiter{r1, r2, r3}

	start := time.Now()
	idx, err := WaitAnyRelayState(relays, types.StateWaitingForData, 1*time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 1, idx) // r2 (index 1) was already in state
	// Should return quickly
	require.Less(t, elapsed, 100*time.Millisecond)
}

func TestWaitRelayStates_SequentialSuccess(t *testing.T) {
	r := newMockRelay(types.StateInit)

	// Schedule sequential state transitions
	r.scheduleTransitions(
		stateTransition{50 * time.Millisecond, types.StateWaitingForData},
		stateTransition{100 * time.Millisecond, types.StateRunning},
		stateTransition{150 * time.Millisecond, types.StateShutdown},
	)

	states := []types.State{
		types.StateInit, // Already in this state
		types.StateWaitingForData,
		types.StateRunning,
		types.StateShutdown,
	}

	ctx := context.Background()
	err := WaitRelayStates(ctx, r, states, 1*time.Second)

	require.NoError(t, err)
	require.Equal(t, types.StateShutdown, r.State())
}

func TestWaitRelayStates_TimeoutOnSecondState(t *testing.T) {
	r := newMockRelay(types.StateInit)

	// First transition succeeds, second never happens
	r.scheduleTransitions(
		stateTransition{50 * time.Millisecond, types.StateWaitingForData},
	)

	states := []types.State{
		types.StateInit,
		types.StateWaitingForData,
		types.StateRunning, // This will timeout
	}

	ctx := context.Background()
	err := WaitRelayStates(ctx, r, states, 300*time.Millisecond)

	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "state[2]")
	require.Contains(t, err.Error(), "Running")
}

func TestWaitRelayStates_ContextCancellation(t *testing.T) {
	r := newMockRelay(types.StateInit)

	// Slow transition
	r.scheduleTransitions(
		stateTransition{500 * time.Millisecond, types.StateWaitingForData},
	)

	states := []types.State{
		types.StateInit,
		types.StateWaitingForData,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := WaitRelayStates(ctx, r, states, 1*time.Second)

	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitRelayStates_EmptyStates(t *testing.T) {
	r := newMockRelay(types.StateInit)

	var states []types.State

	ctx := context.Background()
	err := WaitRelayStates(ctx, r, states, 1*time.Second)

	require.NoError(t, err)
}

func TestWaitAllRelaysState_EarlyFailure(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)
	r3 := newMockRelay(types.StateInit)

	// r1 succeeds, r2 fails quickly, r3 would succeed slowly
	r1.scheduleTransitions(stateTransition{50 * time.Millisecond, types.StateRunning})
	// r2 never transitions (will timeout)
	r3.scheduleTransitions(stateTransition{2 * time.Second, types.StateRunning})

	relays := []RelayWaiter{r1, r2, r3}

	ctx := context.Background()
	start := time.Now()
	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 300*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// Should fail around 300ms (r2 timeout), not wait 2s for r3
	require.Less(t, elapsed, 600*time.Millisecond)
}

func TestWaitRelayWaiter_TypeAssertion(t *testing.T) {
	// Verify both the mock and the real relay implement RelayWaiter
	var _ RelayWaiter = (*mockRelay)(nil)
	var _ RelayWaiter = (*slotindex.Relay)(nil)

	// Verify we can use the interface
	r := newMockRelay(types.StateInit)
	var iface RelayWaiter = r

	ch := iface.WaitState(types.StateInit, 1*time.Second)
	err := <-ch

	require.NoError(t, err)
}

func TestWaitAllRelaysState_MixedStates(t *testing.T) {
	// Test waiting for relays starting in different states
	r1 := newMockRelay(types.StateRunning)        // Already at target
	r2 := newMockRelay(types.StateInit)           // Needs transition
	r3 := newMockRelay(types.StateWaitingForData) // Different state, needs transition

	r2.scheduleTransitions(stateTransition{50 * time.Millisecond, types.StateRunning})
	r3.scheduleTransitions(stateTransition{100 * time.Millisecond, types.StateRunning})

	relays := []RelayWaiter{r1, r2, r3}

	ctx := context.Background()
	err := WaitAllRelaysState(ctx, relays, types.StateRunning, 1*time.Second)

	require.NoError(t, err)
	require.Equal(t, types.StateRunning, r1.State())
	require.Equal(t, types.StateRunning, r2.State())
	require.Equal(t, types.StateRunning, r3.State())
}

func TestWaitAnyRelayState_SomeTimeout(t *testing.T) {
	r1 := newMockRelay(types.StateInit)
	r2 := newMockRelay(types.StateInit)
	r3 := newMockRelay(types.StateInit)

	// r1 and r2 timeout, r3 succeeds
	r3.scheduleTransitions(stateTransition{100 * time.Millisecond, types.StateWaitingForData})

	relays := []RelayWaiter{r1, r2, r3}

	idx, err := WaitAnyRelayState(relays, types.StateWaitingForData, 500*time.Millisecond)

	require.NoError(t, err)
	require.Equal(t, 2, idx) // r3 (index 2) succeeded
}

func TestWaitRelayStates_RealRelay(t *testing.T) {
	cfg := slotindex.TestConfig()
	relay, err := slotindex.NewRelay(&cfg, source.NewStatic([]types.ChannelInfo{{Name: "tpc"}}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = relay.Start(ctx)
		time.Sleep(30 * time.Millisecond)
		_, _ = relay.ReportWatermark(ctx, 0, 5)
		time.Sleep(30 * time.Millisecond)
		_ = relay.Stop(ctx)
	}()

	err = WaitRelayStates(ctx, relay, []types.State{
		types.StateWaitingForData,
		types.StateRunning,
		types.StateShutdown,
	}, time.Second)
	require.NoError(t, err)
}
