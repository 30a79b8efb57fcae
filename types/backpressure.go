package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackpressurePolicy resolves slot contention between an incoming timeslice and the
// timeslice currently occupying the candidate slot.
//
// The policy is chosen once at configuration time. The zero value is not a valid policy.
type BackpressurePolicy int

const (
	// BackpressureUnset is the zero value and is rejected by Validate.
	BackpressureUnset BackpressurePolicy = iota

	// BackpressureDropAncient keeps the newest timeslice: an older occupant is evicted,
	// an older arrival is dropped.
	BackpressureDropAncient

	// BackpressureDropRecent keeps the oldest timeslice: a newer arrival is dropped,
	// a newer occupant is evicted.
	BackpressureDropRecent

	// BackpressureWait never evicts: the driver stalls until a slot frees.
	BackpressureWait
)

// String returns the string representation of the policy.
func (p BackpressurePolicy) String() string {
	switch p {
	case BackpressureDropAncient:
		return "drop-ancient"
	case BackpressureDropRecent:
		return "drop-recent"
	case BackpressureWait:
		return "wait"
	case BackpressureUnset:
		return "unset"
	default:
		return "unknown"
	}
}

// Validate returns ErrInvalidBackpressurePolicy unless p is one of the three policies.
func (p BackpressurePolicy) Validate() error {
	switch p {
	case BackpressureDropAncient, BackpressureDropRecent, BackpressureWait:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidBackpressurePolicy, int(p))
	}
}

// Resolve decides what happens to an arrival that conflicts with an occupied slot.
//
// newer is true when the arrival's timeslice is strictly greater than the occupant's.
// Under DropAncient the newer timeslice wins; under DropRecent the older one wins;
// Wait never changes the slot.
//
// Parameters:
//   - newer: Whether the arriving timeslice is more recent than the occupant
//
// Returns:
//   - ActionTaken: ActionReplaceObsolete, ActionDropObsolete or ActionWait
func (p BackpressurePolicy) Resolve(newer bool) ActionTaken {
	switch p {
	case BackpressureDropAncient:
		if newer {
			return ActionReplaceObsolete
		}

		return ActionDropObsolete
	case BackpressureDropRecent:
		if newer {
			return ActionDropObsolete
		}

		return ActionReplaceObsolete
	default:
		return ActionWait
	}
}

// ParseBackpressurePolicy parses a policy name.
//
// Accepted spellings are case-insensitive and ignore '-' and '_':
// "drop-ancient", "DropAncient", "drop_recent", "wait".
//
// Parameters:
//   - s: Policy name
//
// Returns:
//   - BackpressurePolicy: Parsed policy
//   - error: ErrInvalidBackpressurePolicy for unknown names
func ParseBackpressurePolicy(s string) (BackpressurePolicy, error) {
	norm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "dropancient":
		return BackpressureDropAncient, nil
	case "droprecent":
		return BackpressureDropRecent, nil
	case "wait":
		return BackpressureWait, nil
	default:
		return BackpressureUnset, fmt.Errorf("%w: %q", ErrInvalidBackpressurePolicy, s)
	}
}

// MarshalYAML encodes the policy by name.
func (p BackpressurePolicy) MarshalYAML() (any, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p.String(), nil
}

// UnmarshalYAML decodes a policy name.
func (p *BackpressurePolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("backpressure policy: %w", err)
	}

	parsed, err := ParseBackpressurePolicy(s)
	if err != nil {
		return err
	}
	*p = parsed

	return nil
}
