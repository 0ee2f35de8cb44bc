package store

import (
	"testing"

	"chorddht/internal/ring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertOrMergeConcatenatesValue(t *testing.T) {
	s := New()
	k := ring.Hash([]byte("foo"))

	s.InsertOrMerge(k, Item{Title: "foo", Value: "bar"})
	merged := s.InsertOrMerge(k, Item{Title: "foo", Value: "baz"})

	assert.Equal(t, "barbaz", merged.Value)

	got, ok := s.Get(k)
	require.True(t, ok)
	assert.Equal(t, "barbaz", got.Value)
}

func TestInsertOrMergePendingIsOred(t *testing.T) {
	s := New()
	k := ring.Hash([]byte("foo"))

	s.InsertOrMerge(k, Item{Title: "foo", Value: "a", Pending: true})
	merged := s.InsertOrMerge(k, Item{Title: "foo", Value: "b", Pending: false})
	assert.True(t, merged.Pending)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := New()
	_, ok := s.Delete(ring.Hash([]byte("missing")))
	assert.False(t, ok)
}

func TestFilterCollectsAllMatches(t *testing.T) {
	s := New()
	s.Put(ring.Hash([]byte("a")), Item{Title: "a", ReplicaIdx: 0})
	s.Put(ring.Hash([]byte("b")), Item{Title: "b", ReplicaIdx: 1})
	s.Put(ring.Hash([]byte("c")), Item{Title: "c", ReplicaIdx: 0})

	items := s.Filter(func(id ring.Id, it Item) bool { return it.ReplicaIdx == 0 })
	require.Len(t, items, 2)
	titles := []string{items[0].Title, items[1].Title}
	assert.ElementsMatch(t, []string{"a", "c"}, titles)
}
