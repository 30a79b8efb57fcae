package variables

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/slotindex/types"
)

// MaxVariables is the number of positions in a Context.
const MaxVariables = 16

// TimesliceVariable is the position holding the timeslice identifier.
const TimesliceVariable = 0

// Context is a fixed-size variable store with stage-then-commit writes.
//
// The zero Context is empty and ready to use. A Context is a value type: assigning it
// copies both the staged and the committed state.
type Context struct {
	committed [MaxVariables]Value
	staged    [MaxVariables]Value
	pending   [MaxVariables]bool
	dirty     bool
}

// New returns an empty context.
func New() *Context {
	return &Context{}
}

// NewForTimeslice returns a context with ts committed at TimesliceVariable.
//
// Parameters:
//   - ts: Timeslice identifier
//
// Returns:
//   - *Context: Context ready for admission
func NewForTimeslice(ts types.TimesliceID) *Context {
	c := &Context{}
	c.Put(TimesliceVariable, Uint64(uint64(ts)))
	c.Commit()

	return c
}

// Put stages a value at position pos. Staged values are invisible to Get until Commit.
//
// Panics if pos is outside [0, MaxVariables).
func (c *Context) Put(pos int, v Value) {
	checkPosition(pos)
	c.staged[pos] = v
	c.pending[pos] = true
	c.dirty = true
}

// Commit publishes every staged value.
func (c *Context) Commit() {
	if !c.dirty {
		return
	}
	for i := range c.staged {
		if c.pending[i] {
			c.committed[i] = c.staged[i]
			c.staged[i] = Value{}
			c.pending[i] = false
		}
	}
	c.dirty = false
}

// Discard drops every staged value without publishing it.
func (c *Context) Discard() {
	c.staged = [MaxVariables]Value{}
	c.pending = [MaxVariables]bool{}
	c.dirty = false
}

// HasStaged reports whether uncommitted writes are pending.
func (c *Context) HasStaged() bool {
	return c.dirty
}

// Get returns the committed value at position pos.
//
// Panics if pos is outside [0, MaxVariables).
func (c *Context) Get(pos int) Value {
	checkPosition(pos)

	return c.committed[pos]
}

// Timeslice returns the committed timeslice identifier.
//
// Returns:
//   - types.TimesliceID: Committed identifier
//   - bool: false when position TimesliceVariable holds no integer
func (c *Context) Timeslice() (types.TimesliceID, bool) {
	v, ok := c.committed[TimesliceVariable].AsUint64()
	if !ok {
		return types.InvalidTimeslice, false
	}

	return types.TimesliceID(v), true
}

// Reset clears staged and committed values.
func (c *Context) Reset() {
	*c = Context{}
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	cp := *c

	return &cp
}

// Fingerprint hashes the committed values.
//
// Two contexts with equal committed values have equal fingerprints; staged values are ignored.
//
// Returns:
//   - uint64: xxh3 hash of the committed values
func (c *Context) Fingerprint() uint64 {
	h := xxh3.New()
	var buf [9]byte
	for i := range c.committed {
		v := c.committed[i]
		buf[0] = byte(v.kind)
		switch v.kind {
		case KindUint64:
			binary.LittleEndian.PutUint64(buf[1:], v.u)
			_, _ = h.Write(buf[:])
		case KindString:
			binary.LittleEndian.PutUint64(buf[1:], uint64(len(v.s)))
			_, _ = h.Write(buf[:])
			_, _ = h.WriteString(v.s)
		default:
			_, _ = h.Write(buf[:1])
		}
	}

	return h.Sum64()
}

func checkPosition(pos int) {
	if pos < 0 || pos >= MaxVariables {
		panic(fmt.Sprintf("variables: position %d out of range [0,%d)", pos, MaxVariables))
	}
}
