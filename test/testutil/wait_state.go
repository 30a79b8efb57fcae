package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/slotindex/types"
)

// RelayWaiter defines the subset of Relay methods needed for waiting.
// This allows the helper to work with both real relays and test doubles.
type RelayWaiter interface {
	// WaitState waits for the relay to reach the expected state within the timeout.
	WaitState(expectedState types.State, timeout time.Duration) <-chan error
}

// WaitAllRelaysState waits for all relays to reach the expected state.
// Waits run in parallel and the first failure cancels the rest.
//
// If any relay fails to reach the state within the timeout, the function returns
// immediately with the first error encountered. If the context is cancelled, all
// waiting operations are abandoned and context.Canceled is returned.
//
// Parameters:
//   - ctx: Context for cancellation (recommended for test cleanup)
//   - relays: Slice of relays to wait on
//   - expectedState: Target state for all relays
//   - timeout: Maximum time to wait for each individual relay
//
// Returns:
//   - error: nil if all relays reached the state, first error encountered otherwise
//
// Example:
//
//	relays := []testutil.RelayWaiter{r1, r2, r3}
//	err := testutil.WaitAllRelaysState(ctx, relays, types.StateRunning, 30*time.Second)
//	require.NoError(t, err, "all relays should be running")
func WaitAllRelaysState(
	ctx context.Context,
	relays []RelayWaiter,
	expectedState types.State,
	timeout time.Duration,
) error {
	if len(relays) == 0 {
		return nil
	}

	// Use errgroup-like pattern for parallel wait with early failure
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		cancel   context.Context
		cancelFn context.CancelFunc
	)

	cancel, cancelFn = context.WithCancel(ctx)
	defer cancelFn()

	wg.Add(len(relays))
	for i, r := range relays {
		go func(index int, m RelayWaiter) {
			defer wg.Done()

			select {
			case err := <-m.WaitState(expectedState, timeout):
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("relay[%d] failed to reach state %s: %w", index, expectedState, err)
						cancelFn() // Cancel other waiters on first failure
					})
				}
			case <-cancel.Done():
				// Context cancelled (either by parent or first failure)
				return
			}
		}(i, r)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	if cancel.Err() != nil {
		return cancel.Err()
	}

	return nil
}

// WaitAnyRelayState waits for any relay to reach the expected state.
//
// The function returns as soon as the first relay reaches the state. If all relays
// fail to reach the state within the timeout, a combined error is returned.
//
// Parameters:
//   - relays: Slice of relays to wait on
//   - expectedState: Target state to wait for
//   - timeout: Maximum time to wait for each individual relay
//
// Returns:
//   - int: Index of the first relay that reached the state (-1 if none succeeded)
//   - error: nil if any relay reached the state, combined error if all failed
//
// Example:
//
//	relays := []testutil.RelayWaiter{r1, r2, r3}
//	idx, err := testutil.WaitAnyRelayState(relays, types.StateRunning, 10*time.Second)
//	require.NoError(t, err, "at least one relay should see data")
//	t.Logf("relay %d started running first", idx)
func WaitAnyRelayState(
	relays []RelayWaiter,
	expectedState types.State,
	timeout time.Duration,
) (int, error) {
	if len(relays) == 0 {
		return -1, errors.New("no relays provided")
	}

	type result struct {
		index int
		err   error
	}

	resultCh := make(chan result, len(relays))

	// Start waiting on all relays
	for i, r := range relays {
		go func(index int, m RelayWaiter) {
			err := <-m.WaitState(expectedState, timeout)
			resultCh <- result{index: index, err: err}
		}(i, r)
	}

	// Wait for first success or all failures
	errs := make([]error, 0, 1)
	for range relays {
		r := <-resultCh
		if r.err == nil {
			// First success - return immediately without waiting for other relays
			return r.index, nil
		}
		errs = append(errs, fmt.Errorf("relay[%d]: %w", r.index, r.err))
	}

	// All failed, return combined error
	return -1, fmt.Errorf("all relays failed to reach state %s: %w", expectedState, errors.Join(errs...))
}

// WaitRelayStates waits for a relay to progress through a sequence of states.
// This is useful for testing state machine transitions.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: Relay to watch
//   - states: Sequence of states to wait for (in order)
//   - timeout: Maximum time to wait for each individual state transition
//
// Returns:
//   - error: nil if all states reached, error on first failure
//
// Example:
//
//	states := []types.State{
//	    types.StateInit,
//	    types.StateWaitingForData,
//	    types.StateRunning,
//	}
//	err := testutil.WaitRelayStates(ctx, r, states, 5*time.Second)
//	require.NoError(t, err, "relay should progress through all states")
func WaitRelayStates(
	ctx context.Context,
	r RelayWaiter,
	states []types.State,
	timeout time.Duration,
) error {
	for i, state := range states {
		select {
		case err := <-r.WaitState(state, timeout):
			if err != nil {
				return fmt.Errorf("failed to reach state[%d] %s: %w", i, state, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
