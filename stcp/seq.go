package stcp

// Value is a 32-bit sequence number. Arithmetic on Value wraps at 2^32 and
// must never be compared with plain < or > — always go through [Add],
// [Sub] or [InWindow], which are wrap-safe by construction.
type Value uint32

// Size is a count of sequence-space octets, always non-negative and never
// larger than [WindowSize] in this implementation.
type Size uint32

// Add returns v+n in sequence space.
func Add(v Value, n Size) Value { return v + Value(n) }

// Sub returns the wrap-safe distance a-b, i.e. the Size that satisfies
// Add(b, Sub(a,b)) == a. Only meaningful when a is "ahead of or equal to" b
// in the modular sense the caller expects; callers that need a signed
// distance should use InWindow instead.
func Sub(a, b Value) Size { return Size(a - b) }

// LessThan reports whether a precedes b in sequence space, using the
// standard RFC9293 technique of comparing the signed difference.
func LessThan(a, b Value) bool { return int32(a-b) < 0 }

// LessThanEq reports whether a precedes or equals b in sequence space.
func LessThanEq(a, b Value) bool { return a == b || LessThan(a, b) }

// InWindow reports whether x lies in the modular closed interval [lo, hi].
// This is seq_in from spec section 4.1: when lo <= hi it is an ordinary
// range check; when lo > hi the interval wraps through zero and x is in
// range if it is on either side of the wrap point.
func InWindow(x, lo, hi Value) bool {
	if lo <= hi {
		return x >= lo && x <= hi
	}
	return x >= lo || x <= hi
}
