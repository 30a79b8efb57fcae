package testutil

import (
	"testing"

	"github.com/arloliu/slotindex/types"
)

func TestAssertFencesMonotonic_Passes(t *testing.T) {
	fences := []types.OldestOutputInfo{
		{Timeslice: 0, Channel: 0, Slot: types.InvalidSlot},
		{Timeslice: 3, Channel: types.InvalidChannel, Slot: 1},
		{Timeslice: 3, Channel: 1, Slot: types.InvalidSlot},
		{Timeslice: 9, Channel: 0, Slot: types.InvalidSlot},
	}
	AssertFencesMonotonic(t, fences)
}

func TestAssertAdmissionsExclusive_Passes(t *testing.T) {
	admitted := map[types.TimesliceID][]types.SlotIndex{
		0: {0},
		1: {1, 1},
		4: {4},
		5: {1},
	}
	AssertAdmissionsExclusive(t, 4, admitted)
}
