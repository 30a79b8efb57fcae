package slotindex

import (
	"fmt"

	"github.com/arloliu/slotindex/types"
	"github.com/arloliu/slotindex/variables"
)

// IndexConfig holds the construction parameters of an Index.
type IndexConfig struct {
	// MaxLanes is the number of lanes (>= 1).
	MaxLanes int

	// Slots is the arena size; a positive multiple of MaxLanes.
	Slots int

	// Backpressure resolves contention for an occupied slot.
	Backpressure BackpressurePolicy
}

// Validate checks the arena geometry and the policy.
func (c IndexConfig) Validate() error {
	if c.MaxLanes < 1 {
		return fmt.Errorf("%w: MaxLanes must be >= 1, got %d", ErrInvalidConfig, c.MaxLanes)
	}
	if c.Slots < c.MaxLanes || c.Slots%c.MaxLanes != 0 {
		return fmt.Errorf("%w: Slots (%d) must be a positive multiple of MaxLanes (%d)",
			ErrInvalidConfig, c.Slots, c.MaxLanes)
	}
	if err := c.Backpressure.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// slot is one arena position.
type slot struct {
	vars          variables.Context
	published     variables.Context
	publishedHash uint64
	hasPublished  bool
	dirty         bool
}

// Index maps timeslices onto a fixed arena of processing slots and tracks the
// oldest-possible input and output fences.
//
// Index is not safe for concurrent use. Every method must be called from a single
// scheduling goroutine or under an external lock held for the whole call; Relay does
// the latter. No method blocks: ActionWait is a returned decision, not a suspension.
//
// The arena is allocated once by NewIndex and never resized. Slot and channel indices
// outside the arena or roster are programming errors and panic with an error wrapping
// ErrSlotOutOfRange or ErrChannelOutOfRange.
type Index struct {
	maxLanes     int
	backpressure BackpressurePolicy

	slots    []slot
	channels []ChannelInfo
	byName   map[string]ChannelIndex
	hasData  bool

	oldestInput  OldestInputInfo
	oldestOutput OldestOutputInfo

	logger  Logger
	hooks   Hooks
	metrics MetricsCollector
}

// NewIndex creates an index with an empty arena and all fences at zero.
//
// Parameters:
//   - cfg: Arena geometry and backpressure policy
//   - channels: Channel roster; names must be unique when non-empty
//   - opts: Optional logger, metrics and hooks
//
// Returns:
//   - *Index: Ready-to-use index
//   - error: ErrInvalidConfig for bad geometry or policy, ErrDuplicateChannel for a repeated name
//
// Example:
//
//	idx, err := slotindex.NewIndex(slotindex.IndexConfig{
//	    MaxLanes:     4,
//	    Slots:        8,
//	    Backpressure: slotindex.BackpressureDropAncient,
//	}, []slotindex.ChannelInfo{{Name: "tpc", Kind: slotindex.ChannelKindData}})
func NewIndex(cfg IndexConfig, channels []ChannelInfo, opts ...Option) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	idx := &Index{
		maxLanes:     cfg.MaxLanes,
		backpressure: cfg.Backpressure,
		slots:        make([]slot, cfg.Slots),
		channels:     make([]ChannelInfo, len(channels)),
		byName:       make(map[string]ChannelIndex, len(channels)),
		logger:       o.logger,
		hooks:        *o.hooks,
		metrics:      o.metrics,
	}

	for i, ch := range channels {
		if ch.Name != "" {
			if _, dup := idx.byName[ch.Name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateChannel, ch.Name)
			}
			idx.byName[ch.Name] = ChannelIndex(i)
		}
		ch.OldestForChannel = 0
		idx.channels[i] = ch
		if ch.IsData() {
			idx.hasData = true
		}
	}
	idx.resetFences()

	return idx, nil
}

// Size returns the number of slots in the arena.
func (idx *Index) Size() int {
	return len(idx.slots)
}

// MaxLanes returns the lane count.
func (idx *Index) MaxLanes() int {
	return idx.maxLanes
}

// Backpressure returns the configured policy.
func (idx *Index) Backpressure() BackpressurePolicy {
	return idx.backpressure
}

// LaneOf returns the lane of a timeslice.
func (idx *Index) LaneOf(ts TimesliceID) Lane {
	return types.LaneOf(ts, idx.maxLanes)
}

// SlotLane returns the lane a slot belongs to.
func (idx *Index) SlotLane(s SlotIndex) Lane {
	idx.checkSlot(s)

	return Lane(int(s) % idx.maxLanes)
}

// Associate commits ts into the timeslice position of slot and marks it dirty.
//
// Other variables of the slot are left as they are.
func (idx *Index) Associate(ts TimesliceID, s SlotIndex) {
	idx.checkSlot(s)

	sl := &idx.slots[s]
	sl.vars.Put(variables.TimesliceVariable, variables.Uint64(uint64(ts)))
	sl.vars.Commit()
	sl.dirty = true

	idx.logger.Debug("associate", "timeslice", ts, "slot", s)
}

// IsValid reports whether slot holds a readable committed timeslice.
func (idx *Index) IsValid(s SlotIndex) bool {
	idx.checkSlot(s)

	_, ok := idx.slots[s].vars.Timeslice()

	return ok
}

// IsDirty reports whether slot holds an assignment not yet published or invalidated.
func (idx *Index) IsDirty(s SlotIndex) bool {
	idx.checkSlot(s)

	return idx.slots[s].dirty
}

// MarkDirty sets the dirty flag of slot.
func (idx *Index) MarkDirty(s SlotIndex, dirty bool) {
	idx.checkSlot(s)

	idx.slots[s].dirty = dirty
}

// MarkInvalid clears the slot content and its dirty flag. The published snapshot is kept.
func (idx *Index) MarkInvalid(s SlotIndex) {
	idx.checkSlot(s)

	sl := &idx.slots[s]
	sl.vars.Reset()
	sl.dirty = false
}

// PublishSlot copies the slot content into its published snapshot and clears the dirty flag.
//
// Returns:
//   - bool: true when the published committed values differ from the previous snapshot
func (idx *Index) PublishSlot(s SlotIndex) bool {
	idx.checkSlot(s)

	sl := &idx.slots[s]
	hash := sl.vars.Fingerprint()
	changed := !sl.hasPublished || hash != sl.publishedHash

	sl.published = sl.vars
	sl.published.Discard()
	sl.publishedHash = hash
	sl.hasPublished = true
	sl.dirty = false

	return changed
}

// Rescan marks every slot dirty so the next validation pass trusts all of them.
func (idx *Index) Rescan() {
	for i := range idx.slots {
		idx.slots[i].dirty = true
	}
}

// TimesliceForSlot returns the committed timeslice of slot, or InvalidTimeslice.
func (idx *Index) TimesliceForSlot(s SlotIndex) TimesliceID {
	idx.checkSlot(s)

	ts, _ := idx.slots[s].vars.Timeslice()

	return ts
}

// Variables returns a copy of the slot's variable context.
func (idx *Index) Variables(s SlotIndex) *variables.Context {
	idx.checkSlot(s)

	return idx.slots[s].vars.Clone()
}

// PublishedVariables returns a copy of the slot's last published context.
func (idx *Index) PublishedVariables(s SlotIndex) *variables.Context {
	idx.checkSlot(s)

	return idx.slots[s].published.Clone()
}

// OccupiedSlots returns the number of slots holding a readable timeslice.
func (idx *Index) OccupiedSlots() int {
	n := 0
	for i := range idx.slots {
		if _, ok := idx.slots[i].vars.Timeslice(); ok {
			n++
		}
	}

	return n
}

// ChannelInfo returns a copy of the channel record.
func (idx *Index) ChannelInfo(ch ChannelIndex) ChannelInfo {
	idx.checkChannel(ch)

	return idx.channels[ch]
}

// Channels returns a copy of the roster with current watermarks.
func (idx *Index) Channels() []ChannelInfo {
	out := make([]ChannelInfo, len(idx.channels))
	copy(out, idx.channels)

	return out
}

// ChannelByName resolves a channel name to its index.
func (idx *Index) ChannelByName(name string) (ChannelIndex, bool) {
	ch, ok := idx.byName[name]

	return ch, ok
}

// Reset returns channel watermarks and both fences to the zero baseline.
//
// Slot contents are left untouched; the driver decides what to do with in-flight work.
func (idx *Index) Reset() {
	for i := range idx.channels {
		idx.channels[i].OldestForChannel = 0
	}
	idx.resetFences()

	idx.logger.Info("index reset", "slots", len(idx.slots), "channels", len(idx.channels))
}

func (idx *Index) resetFences() {
	idx.oldestInput = OldestInputInfo{Timeslice: 0, Channel: InvalidChannel}
	idx.oldestOutput = OldestOutputInfo{Timeslice: 0, Channel: InvalidChannel, Slot: InvalidSlot}
}

func (idx *Index) checkSlot(s SlotIndex) {
	if s < 0 || int(s) >= len(idx.slots) {
		panic(fmt.Errorf("%w: slot %d, arena size %d", ErrSlotOutOfRange, s, len(idx.slots)))
	}
}

func (idx *Index) checkChannel(ch ChannelIndex) {
	if ch < 0 || int(ch) >= len(idx.channels) {
		panic(fmt.Errorf("%w: channel %d, roster size %d", ErrChannelOutOfRange, ch, len(idx.channels)))
	}
}
