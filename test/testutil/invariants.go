package testutil

import (
	"testing"

	"github.com/arloliu/slotindex/types"
)

// AssertFencesMonotonic verifies that a sequence of observed output fences never moves
// backwards and that every fence limited by a slot reports no limiting channel.
//
// Parameters:
//   - t: testing handle
//   - fences: fences in the order a subscriber received them
func AssertFencesMonotonic(t *testing.T, fences []types.OldestOutputInfo) {
	t.Helper()

	for i := 1; i < len(fences); i++ {
		if fences[i].Timeslice < fences[i-1].Timeslice {
			t.Fatalf("output fence regressed at #%d: %d -> %d", i, fences[i-1].Timeslice, fences[i].Timeslice)
		}
	}
	for i, f := range fences {
		if f.LimitedBySlot() && f.Channel != types.InvalidChannel {
			t.Fatalf("fence #%d limited by slot %d also names channel %d", i, f.Slot, f.Channel)
		}
	}
}

// AssertAdmissionsExclusive verifies that no timeslice was admitted into two different
// slots and that every admitted timeslice landed in its own lane.
//
// Parameters:
//   - t: testing handle
//   - maxLanes: lane count of the index that produced the admissions
//   - admitted: map of timeslice -> slots it was admitted to, in admission order
func AssertAdmissionsExclusive(t *testing.T, maxLanes int, admitted map[types.TimesliceID][]types.SlotIndex) {
	t.Helper()

	for ts, slots := range admitted {
		lane := types.SlotIndex(uint64(ts) % uint64(maxLanes))
		for _, s := range slots {
			if s%types.SlotIndex(maxLanes) != lane {
				t.Fatalf("timeslice %d admitted to slot %d outside lane %d", ts, s, lane)
			}
			if s != slots[0] {
				t.Fatalf("timeslice %d admitted to slots %d and %d", ts, slots[0], s)
			}
		}
	}
}
