// Package variables provides the per-slot variable context used by the timeslice index.
//
// A Context holds a small, fixed number of typed values. Writes are two-phase: Put stages a
// value, Commit publishes every staged value at once. Readers only ever see committed values,
// so they observe either the old content or the fully written new content.
//
// Position TimesliceVariable (0) holds the timeslice identifier occupying the slot.
package variables

import "strconv"

// Kind is the type tag of a Value.
type Kind uint8

const (
	// KindNone marks an empty value.
	KindNone Kind = iota

	// KindUint64 marks an unsigned integer value.
	KindUint64

	// KindString marks a string value.
	KindString
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUint64:
		return "uint64"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is an explicitly tagged variable value.
//
// The zero Value is None.
type Value struct {
	kind Kind
	u    uint64
	s    string
}

// None returns the empty value.
func None() Value {
	return Value{}
}

// Uint64 returns an unsigned integer value.
func Uint64(v uint64) Value {
	return Value{kind: KindUint64, u: v}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Kind returns the type tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNone reports whether the value is empty.
func (v Value) IsNone() bool {
	return v.kind == KindNone
}

// AsUint64 returns the integer and true when the value holds one.
func (v Value) AsUint64() (uint64, bool) {
	if v.kind != KindUint64 {
		return 0, false
	}

	return v.u, true
}

// AsString returns the string and true when the value holds one.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}

	return v.s, true
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUint64:
		return v.u == o.u
	case KindString:
		return v.s == o.s
	default:
		return true
	}
}

// GoString renders the value for debugging.
func (v Value) GoString() string {
	switch v.kind {
	case KindUint64:
		return "uint64(" + strconv.FormatUint(v.u, 10) + ")"
	case KindString:
		return "string(" + strconv.Quote(v.s) + ")"
	default:
		return "none"
	}
}
