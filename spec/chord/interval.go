package chord

import "fmt"

type BoundKind int

const (
	Included BoundKind = iota
	Excluded
	Unbounded
)

type Bound struct {
	Kind  BoundKind
	Value uint64
}

func Inclusive(v uint64) Bound {
	return Bound{Kind: Included, Value: v}
}

func Exclusive(v uint64) Bound {
	return Bound{Kind: Excluded, Value: v}
}

func Unbound() Bound {
	return Bound{Kind: Unbounded}
}

// Range is an interval on the identifier ring. When the start lies past the
// end the range wraps around zero.
type Range struct {
	Start Bound
	End   Bound
}

// [a, b]
func Closed(a, b uint64) Range {
	return Range{Start: Inclusive(a), End: Inclusive(b)}
}

// [a, b)
func HalfOpen(a, b uint64) Range {
	return Range{Start: Inclusive(a), End: Exclusive(b)}
}

// (a, b]
func OpenClosed(a, b uint64) Range {
	return Range{Start: Exclusive(a), End: Inclusive(b)}
}

// (a, b)
func Open(a, b uint64) Range {
	return Range{Start: Exclusive(a), End: Exclusive(b)}
}

// Reversed reports whether the range would be empty as an ordinary interval,
// which on the ring means it wraps.
func (r Range) Reversed() bool {
	if r.Start.Kind == Unbounded || r.End.Kind == Unbounded {
		return false
	}
	if r.Start.Kind == Included && r.End.Kind == Included {
		return r.Start.Value > r.End.Value
	}
	return r.Start.Value >= r.End.Value
}

func (r Range) String() string {
	var start, end string
	switch r.Start.Kind {
	case Included:
		start = fmt.Sprintf("[%d", r.Start.Value)
	case Excluded:
		start = fmt.Sprintf("(%d", r.Start.Value)
	default:
		start = "(-inf"
	}
	switch r.End.Kind {
	case Included:
		end = fmt.Sprintf("%d]", r.End.Value)
	case Excluded:
		end = fmt.Sprintf("%d)", r.End.Value)
	default:
		end = "+inf)"
	}
	return start + ", " + end
}

func (b Bound) above(v uint64) bool {
	switch b.Kind {
	case Included:
		return v >= b.Value
	case Excluded:
		return v > b.Value
	default:
		return true
	}
}

func (b Bound) below(v uint64) bool {
	switch b.Kind {
	case Included:
		return v <= b.Value
	case Excluded:
		return v < b.Value
	default:
		return true
	}
}

// ContainsLooping tests v against r on the ring. A reversed range is split
// into [start, +inf) and (-inf, end].
func ContainsLooping(r Range, v uint64) bool {
	if r.Reversed() {
		return r.Start.above(v) || r.End.below(v)
	}
	return r.Start.above(v) && r.End.below(v)
}
