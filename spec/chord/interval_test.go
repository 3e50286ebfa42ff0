package chord

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func checkRange(t *testing.T, r Range, in []uint64, out []uint64) {
	t.Run(r.String(), func(t *testing.T) {
		as := require.New(t)
		for _, v := range in {
			as.True(ContainsLooping(r, v), "%d should be in %s", v, r)
		}
		for _, v := range out {
			as.False(ContainsLooping(r, v), "%d should not be in %s", v, r)
		}
	})
}

func TestContainsLoopingAscending(t *testing.T) {
	checkRange(t, Closed(1, 5), []uint64{1, 2, 3, 4, 5}, []uint64{0, 6})
	checkRange(t, HalfOpen(1, 5), []uint64{1, 2, 3, 4}, []uint64{0, 5, 6})
	checkRange(t, OpenClosed(1, 5), []uint64{2, 3, 4, 5}, []uint64{0, 1, 6})
	checkRange(t, Open(1, 5), []uint64{2, 3, 4}, []uint64{0, 1, 5, 6})
	checkRange(t, Closed(3, 3), []uint64{3}, []uint64{2, 4})
}

func TestContainsLoopingWrapping(t *testing.T) {
	checkRange(t, Closed(5, 1), []uint64{0, 1, 5, 6}, []uint64{2, 3, 4})
	checkRange(t, HalfOpen(5, 1), []uint64{0, 5, 6}, []uint64{1, 2, 3, 4})
	checkRange(t, OpenClosed(5, 1), []uint64{0, 1, 6}, []uint64{2, 3, 4, 5})
	checkRange(t, Open(5, 1), []uint64{0, 6}, []uint64{1, 2, 3, 4, 5})
}

func TestContainsLoopingDegenerate(t *testing.T) {
	// an exclusive bound on an equal pair wraps the whole ring
	checkRange(t, Open(10, 10), []uint64{0, 9, 11, ^uint64(0)}, []uint64{10})
	checkRange(t, OpenClosed(10, 10), []uint64{0, 9, 10, 11}, nil)
	checkRange(t, HalfOpen(10, 10), []uint64{0, 9, 10, 11}, nil)
}

func TestContainsLoopingUnbounded(t *testing.T) {
	checkRange(t, Range{Start: Unbound(), End: Inclusive(3)}, []uint64{0, 3}, []uint64{4})
	checkRange(t, Range{Start: Exclusive(3), End: Unbound()}, []uint64{4, ^uint64(0)}, []uint64{0, 3})
	checkRange(t, Range{Start: Unbound(), End: Unbound()}, []uint64{0, 42, ^uint64(0)}, nil)
}

func TestRangeReversed(t *testing.T) {
	as := require.New(t)

	as.False(Closed(3, 3).Reversed())
	as.True(Closed(4, 3).Reversed())
	as.True(HalfOpen(3, 3).Reversed())
	as.True(OpenClosed(3, 3).Reversed())
	as.False(OpenClosed(2, 3).Reversed())
	as.False(Range{Start: Inclusive(9), End: Unbound()}.Reversed())
	as.False(Range{Start: Unbound(), End: Exclusive(0)}.Reversed())
}
