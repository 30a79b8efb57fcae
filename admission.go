package slotindex

import "github.com/arloliu/slotindex/variables"

// FindCandidateSlot returns the slot an arrival with timeslice ts competes for.
//
// Only slots of ts's lane are considered, in order lane, lane+MaxLanes, lane+2*MaxLanes...
// The first match wins in this order of preference:
//  1. a slot already holding ts, so a timeslice never occupies two slots;
//  2. a slot without a readable timeslice (free, or holding garbage);
//  3. the occupied slot with the smallest timeslice.
//
// Parameters:
//   - ts: Timeslice of the arrival
//
// Returns:
//   - SlotIndex: Candidate slot, always within ts's lane
func (idx *Index) FindCandidateSlot(ts TimesliceID) SlotIndex {
	lane := int(idx.LaneOf(ts))

	free := InvalidSlot
	oldest := InvalidSlot
	oldestTS := InvalidTimeslice

	for i := lane; i < len(idx.slots); i += idx.maxLanes {
		held, ok := idx.slots[i].vars.Timeslice()
		if !ok {
			if free == InvalidSlot {
				free = SlotIndex(i)
			}

			continue
		}
		if held == ts {
			return SlotIndex(i)
		}
		if oldest == InvalidSlot || held < oldestTS {
			oldest = SlotIndex(i)
			oldestTS = held
		}
	}

	if free != InvalidSlot {
		return free
	}

	return oldest
}

// Admit tries to place newContext into the candidate slot of ts.
//
// A newContext whose readable timeslice differs from ts is ActionDropInvalid before
// anything else, so every committed timeslice sits in its own lane.
//
// Decision order:
//  1. candidate has no content: commit, ActionReplaceUnused;
//  2. candidate content has no readable timeslice: commit, ActionReplaceUnused;
//  3. newContext has no readable timeslice: ActionDropInvalid;
//  4. otherwise the backpressure policy decides, given whether the new timeslice
//     is strictly newer than the occupant (see BackpressurePolicy.Resolve).
//
// The index stores a copy of newContext; the caller keeps ownership of its argument.
// Outcomes that do not admit leave every slot unchanged and return InvalidSlot.
// Admit does not mark the slot dirty; Associate does.
//
// Parameters:
//   - newContext: Variables for the new timeslice; nil is treated as unreadable
//   - ts: Timeslice used to select the lane
//
// Returns:
//   - Admission: Decision and, when admitted, the slot now holding newContext
func (idx *Index) Admit(newContext *variables.Context, ts TimesliceID) Admission {
	s := idx.FindCandidateSlot(ts)
	admission := idx.decide(newContext, ts, s)

	if admission.Admitted() {
		idx.slots[s].vars = *newContext.Clone()
	}

	idx.metrics.RecordAdmission(admission.Action)
	idx.hooks.OnAdmission(ts, admission)
	idx.logger.Debug("admit",
		"timeslice", ts,
		"candidate", s,
		"action", admission.Action,
		"slot", admission.Slot,
	)

	return admission
}

func (idx *Index) decide(newContext *variables.Context, ts TimesliceID, s SlotIndex) Admission {
	if newContext == nil {
		return Admission{Action: ActionDropInvalid, Slot: InvalidSlot}
	}
	// A context naming another timeslice would land outside its own lane.
	if carried, ok := newContext.Timeslice(); ok && carried != ts {
		return Admission{Action: ActionDropInvalid, Slot: InvalidSlot}
	}

	held, occupied := idx.slots[s].vars.Timeslice()

	// Free slots and slots holding garbage are overwritten unconditionally.
	if !occupied {
		return Admission{Action: ActionReplaceUnused, Slot: s}
	}

	incoming, ok := newContext.Timeslice()
	if !ok {
		return Admission{Action: ActionDropInvalid, Slot: InvalidSlot}
	}

	action := idx.backpressure.Resolve(incoming > held)
	if !action.Admitted() {
		return Admission{Action: action, Slot: InvalidSlot}
	}

	return Admission{Action: action, Slot: s}
}
