package ring

import "github.com/eapache/queue"

// UnionRange is the ordered, tail-first list of id-intervals a node
// currently replicates, excluding its own primary interval. The last
// index is the tail (the nearest predecessor's interval, replica_idx=1);
// index 0 is the head (the furthest predecessor, replica_idx=size).
//
// The backing store is an eapache/queue.Queue, which gives O(1)
// amortized push at the tail, pop at the head, and indexed access.
// queue.Queue itself is a plain FIFO with no head-side push and no
// tail-side pop, so InsertHead and PopTail are
// implemented by draining and rebuilding the queue; since size never
// exceeds k this stays within the O(size) bound the bookkeeping
// requires.
type UnionRange struct {
	q *queue.Queue
}

// NewUnionRange returns an empty union-of-ranges.
func NewUnionRange() *UnionRange {
	return &UnionRange{q: queue.New()}
}

// Len returns the number of intervals currently tracked.
func (u *UnionRange) Len() int { return u.q.Length() }

// Insert appends r at the tail.
func (u *UnionRange) Insert(r Range) { u.q.Add(r) }

// InsertHead prepends r, becoming the new head.
func (u *UnionRange) InsertHead(r Range) {
	items := u.drain()
	u.q.Add(r)
	for _, it := range items {
		u.q.Add(it)
	}
}

// PopHead drops the head interval, returning it. Reports ok=false on
// an empty union.
func (u *UnionRange) PopHead() (Range, bool) {
	if u.q.Length() == 0 {
		return Range{}, false
	}
	return u.q.Remove().(Range), true
}

// PopTail drops the tail interval, returning it.
func (u *UnionRange) PopTail() (Range, bool) {
	n := u.q.Length()
	if n == 0 {
		return Range{}, false
	}
	items := u.drain()
	tail := items[n-1]
	for _, it := range items[:n-1] {
		u.q.Add(it)
	}
	return tail, true
}

// GetHead returns, without removing, the head interval.
func (u *UnionRange) GetHead() (Range, bool) {
	if u.q.Length() == 0 {
		return Range{}, false
	}
	return u.q.Peek().(Range), true
}

// GetTail returns, without removing, the tail interval.
func (u *UnionRange) GetTail() (Range, bool) {
	n := u.q.Length()
	if n == 0 {
		return Range{}, false
	}
	return u.q.Get(n - 1).(Range), true
}

// At returns the interval at index i (0 = head).
func (u *UnionRange) At(i int) Range {
	return u.q.Get(i).(Range)
}

// drain removes and returns every interval, head-first, leaving the
// union empty.
func (u *UnionRange) drain() []Range {
	n := u.q.Length()
	out := make([]Range, n)
	for i := 0; i < n; i++ {
		out[i] = u.q.Remove().(Range)
	}
	return out
}

// All returns every interval in head-to-tail order. The returned slice
// is a copy; mutating it does not affect the union.
func (u *UnionRange) All() []Range {
	n := u.q.Length()
	out := make([]Range, n)
	for i := 0; i < n; i++ {
		out[i] = u.q.Get(i).(Range)
	}
	return out
}

// IsSubset scans from tail to head and returns the 1-based tail
// distance of the first interval containing x, or -1 if none does.
// This distance is exactly the replica_idx a node at that position
// would assign an item keyed by x.
func (u *UnionRange) IsSubset(x Id) int {
	n := u.q.Length()
	for i := n - 1; i >= 0; i-- {
		if u.At(i).Contains(x) {
			return n - i
		}
	}
	return -1
}

// SplitRange finds the unique interval containing pivot and replaces
// it with two half-open intervals split at pivot: the left piece keeps
// the original lower bound and becomes upper-inclusive at pivot; the
// right piece starts just after pivot and keeps the original upper
// bound. Order is preserved. No-op if no interval contains pivot.
func (u *UnionRange) SplitRange(pivot Id) {
	n := u.q.Length()
	for i := 0; i < n; i++ {
		r := u.At(i)
		if !r.Contains(pivot) || r.Upper.Equal(pivot) {
			continue
		}
		items := u.All()
		left := NewRange(r.Lower, pivot)
		right := NewRange(pivot, r.Upper)
		rebuilt := make([]Range, 0, n+1)
		rebuilt = append(rebuilt, items[:i]...)
		rebuilt = append(rebuilt, left, right)
		rebuilt = append(rebuilt, items[i+1:]...)
		u.drain()
		for _, it := range rebuilt {
			u.q.Add(it)
		}
		return
	}
}

// MergeAt fuses the intervals at indices i-1 and i into one interval
// spanning from the lower-index interval's lower bound to the
// higher-index interval's upper bound. Used on depart to reconstitute
// the span a departing predecessor's replica range covered.
func (u *UnionRange) MergeAt(i int) {
	n := u.q.Length()
	if i <= 0 || i >= n {
		return
	}
	items := u.All()
	merged := NewRange(items[i-1].Lower, items[i].Upper)
	rebuilt := make([]Range, 0, n-1)
	rebuilt = append(rebuilt, items[:i-1]...)
	rebuilt = append(rebuilt, merged)
	rebuilt = append(rebuilt, items[i+1:]...)
	u.drain()
	for _, it := range rebuilt {
		u.q.Add(it)
	}
}
