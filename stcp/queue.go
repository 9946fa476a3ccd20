package stcp

import "github.com/nevivurn/stcp/internal"

// segQueue is an ordered sequence of segments sorted ascending by Seq under
// modular ordering relative to ref (the current send or receive window
// base). It backs both send_queue and recv_queue from spec section 3: a
// small flat vector is enough because queue depth is bounded by
// WindowSize/MSS, per the design note in spec section 9 preferring this
// over a linked list.
type segQueue struct {
	items []Segment
	ref   Value
}

func (q *segQueue) reset(ref Value) {
	internal.SliceReuse(&q.items, 0)
	q.ref = ref
}

func (q *segQueue) setRef(ref Value) { q.ref = ref }

func (q *segQueue) Len() int { return len(q.items) }

func (q *segQueue) Empty() bool { return len(q.items) == 0 }

// Head returns a pointer to the earliest-sequenced segment, or nil if the
// queue is empty. The pointer is only valid until the next mutating call.
func (q *segQueue) Head() *Segment {
	if len(q.items) == 0 {
		return nil
	}
	return &q.items[0]
}

// PopHead removes and returns the earliest-sequenced segment. It panics if
// the queue is empty; callers must check Empty/Head first, matching the
// spec's "removal is only from the head" invariant.
func (q *segQueue) PopHead() Segment {
	s := q.items[0]
	q.items = q.items[1:]
	return s
}

// relOffset returns how far past ref a sits, for ordering purposes. Segments
// in a window never span more than WindowSize, so this never wraps within
// the comparison.
func (q *segQueue) relOffset(a Value) Size { return Sub(a, q.ref) }

// Insert inserts seg in ascending Seq order, collapsing duplicates per spec
// section 4.2: when an entry with the same Seq exists, the new segment is
// discarded if its logical length is <= the existing one's, otherwise the
// existing entry is replaced. Returns whether seg was accepted; the caller
// owns seg on rejection (nothing to free in Go, but the contract mirrors
// the C original's free-on-reject requirement for callers translating it).
func (q *segQueue) Insert(seg Segment) bool {
	segOff := q.relOffset(seg.Seq)
	lo, hi := 0, len(q.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if q.relOffset(q.items[mid].Seq) < segOff {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(q.items) && q.items[lo].Seq == seg.Seq {
		if seg.LogicalLen() <= q.items[lo].LogicalLen() {
			return false
		}
		q.items[lo] = seg
		return true
	}
	q.items = append(q.items, Segment{})
	copy(q.items[lo+1:], q.items[lo:])
	q.items[lo] = seg
	return true
}
