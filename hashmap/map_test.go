// Copyright 2024 The dstruct Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashmap

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

// toBuiltinMap returns the elements as a map[K]V. Useful for testing.
func (m *Map[K, V]) toBuiltinMap() map[K]V {
	r := make(map[K]V)
	m.All(func(k K, v V) bool {
		r[k] = v
		return true
	})
	return r
}

// randElement extracts an element by relying on the physical iteration
// order. The elements are not selected uniformly randomly.
func (m *Map[K, V]) randElement() (key K, value V, ok bool) {
	m.All(func(k K, v V) bool {
		key, value = k, v
		ok = true
		return false
	})
	return
}

// requireInvariants asserts the publicly documented shape invariants:
// power-of-two capacity, minimum capacity once allocated, and a load
// factor at or below 50%.
func requireInvariants[K comparable, V any](t *testing.T, m *Map[K, V]) {
	t.Helper()
	if m.Len() > 0 {
		require.GreaterOrEqual(t, uint64(m.capacity), uint64(minCapacity))
	}
	if m.capacity > 0 {
		require.EqualValues(t, 0, m.capacity&(m.capacity-1),
			"capacity %d is not a power of two", m.capacity)
		require.Less(t, uint64(m.Len())*2, uint64(m.capacity))
	}
}

func TestProbeSeq(t *testing.T) {
	genSeq := func(n int, hash uintptr, mask uintptr) []uintptr {
		seq := makeProbeSeq(hash, mask)
		vals := make([]uintptr, n)
		for i := 0; i < n; i++ {
			vals[i] = seq.offset
			seq = seq.next()
		}
		return vals
	}

	// With a power-of-two capacity the triangular sequence must visit
	// every slot exactly once before repeating, for any start offset.
	for _, capacity := range []int{8, 16, 64, 256} {
		for i := 0; i < capacity; i++ {
			vals := genSeq(capacity, uintptr(i), uintptr(capacity-1))
			sort.Slice(vals, func(a, b int) bool { return vals[a] < vals[b] })
			for j := range vals {
				require.EqualValues(t, j, vals[j],
					"capacity=%d hash=%d: slot %d not visited exactly once", capacity, i, j)
			}
		}
	}

	// After wrapping around, the next capacity steps form a permutation
	// of the slots again (the triangular sequence has period 2*capacity).
	vals := genSeq(16, 3, 7)[8:]
	sort.Slice(vals, func(a, b int) bool { return vals[a] < vals[b] })
	for j := range vals {
		require.EqualValues(t, j, vals[j])
	}
}

func TestCapacityFor(t *testing.T) {
	testCases := []struct {
		n        int
		expected uintptr
	}{
		{1, 8},
		{3, 8},
		{4, 16},
		{7, 16},
		{8, 32},
		{100, 256},
	}
	for _, c := range testCases {
		require.EqualValues(t, c.expected, capacityFor(c.n), "n=%d", c.n)
	}
}

func TestBasic(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int]) {
		const count = 100

		e := make(map[int]int)
		require.EqualValues(t, 0, m.Len())
		require.True(t, m.IsEmpty())

		// Non-existent.
		for i := 0; i < count; i++ {
			_, ok := m.Get(i)
			require.False(t, ok)
		}

		// Insert.
		for i := 0; i < count; i++ {
			m.Put(i, i+count)
			e[i] = i + count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+count, v)
			require.EqualValues(t, i+1, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
			requireInvariants(t, m)
		}

		// Update.
		for i := 0; i < count; i++ {
			m.Put(i, i+2*count)
			e[i] = i + 2*count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+2*count, v)
			require.EqualValues(t, count, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
		}

		// Delete.
		for i := 0; i < count; i++ {
			require.True(t, m.Delete(i))
			require.False(t, m.Delete(i))
			delete(e, i)
			require.EqualValues(t, count-i-1, m.Len())
			_, ok := m.Get(i)
			require.False(t, ok)
			require.Equal(t, e, m.toBuiltinMap())
			requireInvariants(t, m)
		}
	}

	t.Run("normal", func(t *testing.T) {
		test(t, New[int, int](0))
	})

	t.Run("presized", func(t *testing.T) {
		test(t, New[int, int](100))
	})

	// A constant hash function forces every key onto the same probe
	// chain; the probe sequence has to resolve all collisions.
	t.Run("degenerate", func(t *testing.T) {
		for _, h := range []uintptr{0, ^uintptr(0), uintptr(rand.Uint64())} {
			t.Run(fmt.Sprintf("%016x", h), func(t *testing.T) {
				m := New[int, int](0,
					WithHash[int, int](func(key *int, seed uintptr) uintptr {
						return h
					}))
				test(t, m)
			})
		}
	})
}

func TestGrowthTrajectory(t *testing.T) {
	// Starting from an empty map: the first insert allocates the minimum
	// capacity of 8, the 4th insert doubles to 16, the 8th doubles to 32.
	m := New[int, int](0)
	require.EqualValues(t, 0, m.capacity)

	expected := []uintptr{8, 8, 8, 16, 16, 16, 16, 32, 32}
	for i := 0; i < 9; i++ {
		m.Put(i, i)
		require.EqualValues(t, expected[i], m.capacity, "after insert %d", i+1)
	}
	require.EqualValues(t, 9, m.Len())
	require.EqualValues(t, 32, m.capacity)

	// Removing one key tombstones its slot without shrinking.
	require.True(t, m.Delete(3))
	require.EqualValues(t, 8, m.Len())
	require.EqualValues(t, 32, m.capacity)
	_, ok := m.Get(3)
	require.False(t, ok)
	require.False(t, m.Delete(3))
}

func TestDenseCollisions(t *testing.T) {
	// 100 distinct keys that all hash to the same value must all be
	// stored and retrievable.
	m := New[int, int](0,
		WithHash[int, int](func(key *int, seed uintptr) uintptr {
			return 42
		}))
	for i := 0; i < 100; i++ {
		m.Put(i, i*3)
	}
	require.EqualValues(t, 100, m.Len())
	for i := 0; i < 100; i++ {
		v, ok := m.Get(i)
		require.True(t, ok, "key %d", i)
		require.EqualValues(t, i*3, v)
	}
}

func TestRandom(t *testing.T) {
	test := func(t *testing.T, m *Map[int, int]) {
		e := make(map[int]int)
		for i := 0; i < 10000; i++ {
			switch r := rand.Float64(); {
			case r < 0.5: // 50% inserts
				k, v := rand.Int(), rand.Int()
				m.Put(k, v)
				e[k] = v
			case r < 0.65: // 15% updates
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					v := rand.Int()
					m.Put(k, v)
					e[k] = v
				}
			case r < 0.80: // 15% deletes
				if k, _, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					require.True(t, m.Delete(k))
					delete(e, k)
				}
			default: // 20% lookups
				if k, v, ok := m.randElement(); !ok {
					require.EqualValues(t, 0, m.Len(), e)
				} else {
					require.EqualValues(t, e[k], v)
				}
			}
			require.EqualValues(t, len(e), m.Len())
			requireInvariants(t, m)
		}
		require.Equal(t, e, m.toBuiltinMap())
	}

	t.Run("normal", func(t *testing.T) {
		test(t, New[int, int](0))
	})

	t.Run("degenerate", func(t *testing.T) {
		m := New[int, int](0,
			WithHash[int, int](func(key *int, seed uintptr) uintptr {
				return 0
			}))
		test(t, m)
	})
}

func TestDeleteInsertChurn(t *testing.T) {
	// Sustained delete/insert churn at a fixed size accumulates
	// tombstones. The table must rebuild rather than letting them starve
	// probe chains of empty slots, and the capacity must stay bounded.
	m := New[int, int](8)
	for i := 0; i < 8; i++ {
		m.Put(i, i)
	}
	capacity := m.capacity
	for i := 8; i < 10000; i++ {
		require.True(t, m.Delete(i-8))
		m.Put(i, i)
		require.EqualValues(t, 8, m.Len())
		require.EqualValues(t, capacity, m.capacity)
		requireInvariants(t, m)
	}
	for i := 9992; i < 10000; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.EqualValues(t, i, v)
	}
}

func TestGetOnEmptyMap(t *testing.T) {
	// A never-mutated map has no allocation and must short-circuit.
	m := New[string, int](0)
	require.EqualValues(t, 0, m.capacity)
	_, ok := m.Get("missing")
	require.False(t, ok)
	require.False(t, m.Delete("missing"))
	require.True(t, m.Find("missing").IsNone())
}

func TestFind(t *testing.T) {
	m := New[string, int](0)
	m.Put("a", 1)

	v, ok := m.Find("a").Get()
	require.True(t, ok)
	require.EqualValues(t, 1, v)
	require.True(t, m.Find("b").IsNone())
	require.EqualValues(t, 7, m.Find("b").GetOr(7))
}

func TestGetOrPut(t *testing.T) {
	m := New[int, string](0)

	// Miss path: the thunk runs and the result is inserted.
	calls := 0
	v := m.GetOrPut(1, func() string {
		calls++
		return "one"
	})
	require.EqualValues(t, 1, calls)
	require.EqualValues(t, "one", *v)
	require.EqualValues(t, 1, m.Len())

	// Hit path: the thunk must not be evaluated.
	v = m.GetOrPut(1, func() string {
		calls++
		return "unused"
	})
	require.EqualValues(t, 1, calls)
	require.EqualValues(t, "one", *v)

	// The returned pointer writes through to the stored value.
	*v = "uno"
	got, ok := m.Get(1)
	require.True(t, ok)
	require.EqualValues(t, "uno", got)
}

func TestGetOrPutAcrossResizes(t *testing.T) {
	// Every 4th insert on this trajectory triggers a resize; the pointer
	// returned by GetOrPut must always refer into the current array.
	m := New[int, int](0)
	for i := 0; i < 1000; i++ {
		p := m.GetOrPut(i, func() int { return i * 2 })
		require.EqualValues(t, i*2, *p)
		v, ok := m.Get(i)
		require.True(t, ok)
		require.EqualValues(t, i*2, v)
	}
	require.EqualValues(t, 1000, m.Len())
}

func TestEqual(t *testing.T) {
	a := New[string, int](0)
	b := New[string, int](100)

	require.True(t, Equal(a, a))
	require.True(t, Equal(a, b))

	for k, v := range map[string]int{"a": 1, "b": 2, "c": 3} {
		a.Put(k, v)
	}

	// Build b with a different insertion history: extra keys inserted
	// and removed again leave tombstones and a larger capacity behind.
	for i := 0; i < 100; i++ {
		b.Put(fmt.Sprintf("junk-%d", i), i)
	}
	for i := 0; i < 100; i++ {
		require.True(t, b.Delete(fmt.Sprintf("junk-%d", i)))
	}
	b.Put("a", 1)
	b.Put("b", 2)
	b.Put("c", 3)

	require.NotEqual(t, a.capacity, b.capacity)
	require.True(t, Equal(a, b))
	require.True(t, Equal(b, a))

	// Differing value.
	b.Put("c", 4)
	require.False(t, Equal(a, b))
	require.False(t, Equal(b, a))

	// Differing length.
	b.Put("c", 3)
	b.Put("d", 4)
	require.False(t, Equal(a, b))
	require.False(t, Equal(b, a))
}

func TestEqualFunc(t *testing.T) {
	a := New[int, []int](0)
	b := New[int, []int](0)
	a.Put(1, []int{1, 2})
	b.Put(1, []int{1, 2})

	eq := func(x, y []int) bool {
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	require.True(t, EqualFunc(a, b, eq))
	b.Put(1, []int{1, 3})
	require.False(t, EqualFunc(a, b, eq))
}

func TestClone(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	// Leave tombstones behind; the clone must not carry them over.
	for i := 0; i < 50; i++ {
		require.True(t, m.Delete(i))
	}

	c := m.Clone()
	require.True(t, Equal(m, c))
	require.EqualValues(t, capacityFor(m.Len()), c.capacity)

	// Mutating the clone must not affect the source and vice versa.
	c.Put(1000, 1000)
	_, ok := m.Get(1000)
	require.False(t, ok)
	m.Put(2000, 2000)
	_, ok = c.Get(2000)
	require.False(t, ok)

	// Cloning an empty map allocates nothing.
	empty := New[int, int](0).Clone()
	require.EqualValues(t, 0, empty.capacity)
	require.EqualValues(t, 0, empty.Len())
}

func TestClear(t *testing.T) {
	m := New[int, int](0)
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	capacity := m.capacity
	m.Clear()
	require.EqualValues(t, 0, m.Len())
	require.EqualValues(t, capacity, m.capacity)

	m.All(func(k, v int) bool {
		require.Fail(t, "should not iterate")
		return true
	})

	// The table is fully reusable after Clear.
	m.Put(1, 1)
	v, ok := m.Get(1)
	require.True(t, ok)
	require.EqualValues(t, 1, v)
}

func TestIterator(t *testing.T) {
	m := New[int, int](0)
	e := make(map[int]int)
	for i := 0; i < 100; i++ {
		m.Put(i, i*2)
		e[i] = i * 2
	}
	for i := 0; i < 100; i += 2 {
		require.True(t, m.Delete(i))
		delete(e, i)
	}

	// The iterator visits exactly the occupied slots.
	got := make(map[int]int)
	it := m.Iter()
	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		got[k] = v
	}
	require.Equal(t, e, got)

	// Iterators are independent, copyable cursors: a copy taken mid-way
	// re-yields the remainder without disturbing the original.
	it = m.Iter()
	var first map[int]int
	for i := 0; i < m.Len()/2; i++ {
		k, v, ok := it.Next()
		require.True(t, ok)
		if first == nil {
			first = map[int]int{}
		}
		first[k] = v
	}
	copied := it
	rest1 := drain(&it)
	rest2 := drain(&copied)
	require.Equal(t, rest1, rest2)
	for k, v := range rest1 {
		first[k] = v
	}
	require.Equal(t, e, first)
}

func drain(it *Iterator[int, int]) map[int]int {
	out := make(map[int]int)
	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		out[k] = v
	}
	return out
}

func TestIdentityHash(t *testing.T) {
	m := New[uint32, string](0, WithIdentityHash[uint32, string]())
	for i := uint32(0); i < 100; i++ {
		m.Put(i, fmt.Sprint(i))
	}
	for i := uint32(0); i < 100; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.EqualValues(t, fmt.Sprint(i), v)

		// The cached hash is the key's own bit pattern.
		require.EqualValues(t, uintptr(i), m.lookupSlot(i).hash)
	}
}

func TestWithHashXxhash(t *testing.T) {
	// Any deterministic, equality-consistent hash function can be
	// plugged in; exercise xxhash for string keys.
	m := New[string, int](0,
		WithHash[string, int](func(key *string, seed uintptr) uintptr {
			return uintptr(xxhash.Sum64String(*key))
		}))
	e := make(map[string]int)
	for i := 0; i < 1000; i++ {
		k := fmt.Sprintf("key-%d", i)
		m.Put(k, i)
		e[k] = i
	}
	require.Equal(t, e, m.toBuiltinMap())
	for k, v := range e {
		got, ok := m.Get(k)
		require.True(t, ok)
		require.EqualValues(t, v, got)
	}
}

type countingAllocator[K comparable, V any] struct {
	alloc int
	free  int
}

func (a *countingAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	a.alloc++
	return make([]Slot[K, V], n)
}

func (a *countingAllocator[K, V]) FreeSlots(_ []Slot[K, V]) {
	a.free++
}

func TestAllocator(t *testing.T) {
	a := &countingAllocator[int, int]{}
	m := New[int, int](0, WithAllocator[int, int](a))

	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}

	// 8 -> 16 -> 32 -> 64 -> 128 -> 256
	const expected = 6
	require.EqualValues(t, expected, a.alloc)
	require.EqualValues(t, expected-1, a.free)

	m.Close()
	require.EqualValues(t, expected, a.free)
	// Close is idempotent.
	m.Close()
	require.EqualValues(t, expected, a.free)
}

func TestPresizedNoResize(t *testing.T) {
	a := &countingAllocator[int, int]{}
	m := New[int, int](100, WithAllocator[int, int](a))
	require.EqualValues(t, 1, a.alloc)

	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	// The pre-sized allocation absorbs all 100 inserts.
	require.EqualValues(t, 1, a.alloc)
	require.EqualValues(t, 0, a.free)
}
