package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(b byte) Id {
	var out Id
	out[IdSize-1] = b
	return out
}

func TestUnionRangeHeadTail(t *testing.T) {
	u := NewUnionRange()
	u.Insert(NewRange(id(0), id(10)))
	u.Insert(NewRange(id(10), id(20)))
	u.InsertHead(NewRange(id(250), id(0)))

	require.Equal(t, 3, u.Len())
	head, ok := u.GetHead()
	require.True(t, ok)
	assert.Equal(t, id(250), head.Lower)

	tail, ok := u.GetTail()
	require.True(t, ok)
	assert.Equal(t, id(20), tail.Upper)
}

func TestUnionRangeIsSubset(t *testing.T) {
	u := NewUnionRange()
	u.Insert(NewRange(id(0), id(10)))  // tail distance 2
	u.Insert(NewRange(id(10), id(20))) // tail distance 1

	assert.Equal(t, 1, u.IsSubset(id(15)))
	assert.Equal(t, 2, u.IsSubset(id(5)))
	assert.Equal(t, -1, u.IsSubset(id(25)))
}

func TestUnionRangeSplitRange(t *testing.T) {
	u := NewUnionRange()
	u.Insert(NewRange(id(0), id(20)))

	u.SplitRange(id(10))
	require.Equal(t, 2, u.Len())
	assert.Equal(t, NewRange(id(0), id(10)), u.At(0))
	assert.Equal(t, NewRange(id(10), id(20)), u.At(1))
}

func TestUnionRangeMergeAt(t *testing.T) {
	u := NewUnionRange()
	u.Insert(NewRange(id(0), id(10)))
	u.Insert(NewRange(id(10), id(20)))
	u.Insert(NewRange(id(20), id(30)))

	u.MergeAt(1)
	require.Equal(t, 2, u.Len())
	assert.Equal(t, NewRange(id(0), id(20)), u.At(0))
	assert.Equal(t, NewRange(id(20), id(30)), u.At(1))
}

func TestUnionRangePopHeadTail(t *testing.T) {
	u := NewUnionRange()
	u.Insert(NewRange(id(0), id(10)))
	u.Insert(NewRange(id(10), id(20)))
	u.Insert(NewRange(id(20), id(30)))

	h, ok := u.PopHead()
	require.True(t, ok)
	assert.Equal(t, NewRange(id(0), id(10)), h)

	tl, ok := u.PopTail()
	require.True(t, ok)
	assert.Equal(t, NewRange(id(20), id(30)), tl)

	assert.Equal(t, 1, u.Len())
}

func TestInHalfOpenWrap(t *testing.T) {
	lower := id(250)
	upper := id(10)
	assert.True(t, InHalfOpen(id(0), lower, upper))
	assert.True(t, InHalfOpen(id(10), lower, upper))
	assert.False(t, InHalfOpen(id(250), lower, upper))
	assert.False(t, InHalfOpen(id(20), lower, upper))
}

func TestHashIPDeterministic(t *testing.T) {
	a := HashIP([]byte{127, 0, 0, 1}, 8080)
	b := HashIP([]byte{127, 0, 0, 1}, 8080)
	assert.Equal(t, a, b)

	c := HashIP([]byte{127, 0, 0, 1}, 8081)
	assert.NotEqual(t, a, c)
}
