package rbtree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTree(t *testing.T) {
	tr := New[int, string]()
	_, _, ok := tr.First()
	assert.False(t, ok)
	_, ok = tr.Lookup(1)
	assert.False(t, ok)
	assert.False(t, tr.Delete(1))
	assert.Equal(t, 0, tr.Len)
}

// Insert [2,1,0,7,16,42,37,165,-123], then First reports -123, Lookup(165)
// is present, Lookup(-1) is absent.
func TestInsertLookupAndFirstOnMixedKeys(t *testing.T) {
	tr := New[int, int]()
	keys := []int{2, 1, 0, 7, 16, 42, 37, 165, -123}
	for _, k := range keys {
		tr.Insert(k, k*10)
	}

	require.Equal(t, len(keys), tr.Len)

	minKey, minVal, ok := tr.First()
	require.True(t, ok)
	assert.Equal(t, -123, minKey)
	assert.Equal(t, -1230, minVal)

	v, ok := tr.Lookup(165)
	require.True(t, ok)
	assert.Equal(t, 1650, v)

	_, ok = tr.Lookup(-1)
	assert.False(t, ok)
}

func TestInsertOverwritesDuplicateKey(t *testing.T) {
	tr := New[int, string]()
	tr.Insert(5, "first")
	tr.Insert(5, "second")

	require.Equal(t, 1, tr.Len)
	v, ok := tr.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestDeleteRemovesKeyAndShrinksLen(t *testing.T) {
	tr := New[int, int]()
	for _, k := range []int{10, 5, 20, 1, 7, 15, 25} {
		tr.Insert(k, k)
	}

	require.True(t, tr.Delete(20))
	_, ok := tr.Lookup(20)
	assert.False(t, ok)
	assert.Equal(t, 6, tr.Len)

	assert.False(t, tr.Delete(999), "deleting an absent key reports false")
	assert.Equal(t, 6, tr.Len)
}

func TestDeleteDownToEmpty(t *testing.T) {
	tr := New[int, int]()
	tr.Insert(1, 1)
	require.True(t, tr.Delete(1))
	assert.Equal(t, 0, tr.Len)
	_, _, ok := tr.First()
	assert.False(t, ok)
}

// Walk must always see keys in ascending order: this is the structural
// invariant a red-black tree exists to guarantee regardless of insertion
// order.
func TestWalkIsAlwaysSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr := New[int, int]()
	var want []int
	for i := 0; i < 500; i++ {
		k := rng.Intn(10000) - 5000
		tr.Insert(k, k)
		want = append(want, k)
	}

	seen := map[int]bool{}
	uniq := want[:0]
	for _, k := range want {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Ints(uniq)

	var got []int
	tr.Walk(func(k, v int) { got = append(got, k) })

	assert.Equal(t, uniq, got)
	assert.Equal(t, len(uniq), tr.Len)
}

func TestFirstTracksMinimumAcrossInserts(t *testing.T) {
	tr := New[int, int]()
	tr.Insert(10, 10)
	k, _, _ := tr.First()
	assert.Equal(t, 10, k)

	tr.Insert(5, 5)
	k, _, _ = tr.First()
	assert.Equal(t, 5, k)

	tr.Insert(20, 20)
	k, _, _ = tr.First()
	assert.Equal(t, 5, k, "inserting a larger key must not disturb the cached minimum")

	tr.Insert(-1, -1)
	k, _, _ = tr.First()
	assert.Equal(t, -1, k)
}

func TestDisposeResetsTree(t *testing.T) {
	tr := New[int, int]()
	for _, k := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
		tr.Insert(k, k)
	}

	tr.Dispose()

	assert.Equal(t, 0, tr.Len)
	_, _, ok := tr.First()
	assert.False(t, ok)
	_, ok = tr.Lookup(3)
	assert.False(t, ok)

	// The tree must be reusable after Dispose.
	tr.Insert(7, 7)
	k, _, ok := tr.First()
	require.True(t, ok)
	assert.Equal(t, 7, k)
}

func TestInsertDeleteStressAgainstReferenceMap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := New[int, int]()
	ref := map[int]int{}

	for i := 0; i < 2000; i++ {
		k := rng.Intn(300)
		if rng.Intn(3) == 0 {
			wantOK := ref[k] != 0 || mapHas(ref, k)
			gotOK := tr.Delete(k)
			assert.Equal(t, wantOK, gotOK, "delete(%d)", k)
			delete(ref, k)
		} else {
			tr.Insert(k, k*2)
			ref[k] = k * 2
		}
		assert.Equal(t, len(ref), tr.Len)
	}

	for k, v := range ref {
		got, ok := tr.Lookup(k)
		require.True(t, ok, "key %d should be present", k)
		assert.Equal(t, v, got)
	}
}

func mapHas(m map[int]int, k int) bool {
	_, ok := m[k]
	return ok
}
