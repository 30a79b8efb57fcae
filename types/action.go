package types

// ActionTaken is the outcome of an admission attempt.
//
// Outcomes are values, not errors: the driver branches on them deterministically.
//
//	ReplaceUnused    slot was free (or held garbage) and now holds the new context
//	ReplaceObsolete  slot held another timeslice which was evicted in favour of the new one
//	DropInvalid      the new context carries no readable timeslice; nothing committed
//	DropObsolete     the policy refused the new arrival; slot unchanged
//	Wait             the policy asks the driver to apply backpressure; slot unchanged
type ActionTaken int

const (
	// ActionReplaceUnused indicates the context was committed into an unused slot.
	ActionReplaceUnused ActionTaken = iota

	// ActionReplaceObsolete indicates the previous occupant was evicted.
	ActionReplaceObsolete

	// ActionDropInvalid indicates a malformed admission request.
	ActionDropInvalid

	// ActionDropObsolete indicates the new arrival was refused by the policy.
	ActionDropObsolete

	// ActionWait indicates the driver must retry later.
	ActionWait
)

// String returns the string representation of the action.
func (a ActionTaken) String() string {
	switch a {
	case ActionReplaceUnused:
		return "ReplaceUnused"
	case ActionReplaceObsolete:
		return "ReplaceObsolete"
	case ActionDropInvalid:
		return "DropInvalid"
	case ActionDropObsolete:
		return "DropObsolete"
	case ActionWait:
		return "Wait"
	default:
		return "Unknown"
	}
}

// Admitted reports whether the action committed the new context into a slot.
func (a ActionTaken) Admitted() bool {
	return a == ActionReplaceUnused || a == ActionReplaceObsolete
}

// Admission is the result of an admission attempt.
type Admission struct {
	// Action is the decision taken by the index.
	Action ActionTaken

	// Slot is the slot holding the new context, or InvalidSlot when nothing was committed.
	Slot SlotIndex
}

// Admitted reports whether the new context now occupies Slot.
func (a Admission) Admitted() bool {
	return a.Action.Admitted()
}
