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

// Package hashmap implements a generic open-addressing hash table.
//
// Collisions are resolved by probing rather than chaining: the table is a
// single contiguous array of slots and every key has a deterministic probe
// sequence of candidate slots. Each slot is in one of three states: empty,
// occupied, or tombstone. Deleting an entry leaves a tombstone behind so
// that probe chains passing through the slot remain intact; tombstones are
// discarded wholesale on the next resize.
//
// The probe sequence is triangular: starting from hash&(capacity-1) the
// increment grows by one on each step. With a power-of-two capacity this
// visits every slot exactly once before repeating (i*(i+1)/2 is a
// bijection in Z/2^n), which rules out both infinite probing and the
// primary clustering of plain linear probing.
//
// The table doubles in capacity as soon as an insertion brings the
// occupancy to half of the capacity, so the load factor never exceeds 50%
// and probe chains stay short. Tombstones count against the same
// threshold: when occupied and tombstoned slots together fill half the
// table, it is rebuilt at its current capacity to discard them, so
// delete/insert churn cannot starve searches of empty slots. A probe
// that exhausts the table without satisfying its search mode is
// therefore an implementation bug and panics.
//
// By default a Map[K,V] uses the same hash function as Go's builtin
// map[K]V; a different hash function can be specified using the WithHash
// option, and fixed-width integer keys can hash to their own bit pattern
// using WithIdentityHash.
//
// A Map is NOT goroutine-safe.
package hashmap

import (
	"fmt"
	"math/rand"
	"strings"
	"unsafe"

	"github.com/w0rp/dstruct/option"
)

const (
	// minCapacity is the capacity allocated by the first insertion into an
	// empty map. Capacities are always powers of two so that i%capacity
	// reduces to a mask.
	minCapacity = 8
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

// Slot is one cell of the backing array. A slot holds a key and value
// pair together with the cached hash of the key; only occupied slots
// expose a valid pair. The cached hash is used to skip expensive key
// comparisons on probe collisions and to avoid rehashing keys during a
// resize.
type Slot[K comparable, V any] struct {
	hash  uintptr
	key   K
	value V
	state slotState
}

// Map is an unordered map from keys to values with Put, Get, Delete, and
// All operations. It uses open addressing with triangular probing and
// tombstone deletion, and keeps its load factor at or below 50% by
// doubling the backing array whenever an insertion fills half of it.
//
// The zero value for a Map is not usable; construct one with New.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// The hash function applied to keys of type K. By default it is
	// extracted from the Go runtime's implementation of map[K]struct{}.
	hash hashFn
	seed uintptr
	// The allocator used for the backing slot array.
	allocator Allocator[K, V]
	// The backing array. capacity is 0 for a map that has never been
	// inserted into, and a power of two >= minCapacity otherwise.
	slots    unsafeSlice[Slot[K, V]]
	capacity uintptr
	// The number of occupied slots. Tombstoned slots are not counted.
	used int
	// The number of tombstoned slots. Tracked separately because
	// tombstones consume probe-chain positions just like occupied slots:
	// if only occupancy drove rebuilds, delete/insert churn could fill
	// every slot with tombstones and leave searches with no empty slot
	// to terminate on.
	tombstones int
}

// New constructs a Map pre-sized so that minCapacity entries can be
// inserted without triggering a resize. If minCapacity is 0 the map
// performs no allocation and will grow on the first insert.
func New[K comparable, V any](minCapacity int, options ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:      getRuntimeHasher[K](),
		seed:      uintptr(rand.Uint64()),
		allocator: defaultAllocator[K, V]{},
	}

	for _, op := range options {
		op.apply(m)
	}

	if minCapacity > 0 {
		m.resize(capacityFor(minCapacity))
	}
	m.checkInvariants()
	return m
}

// capacityFor returns the smallest valid capacity that can hold n entries
// without crossing the 50% load-factor threshold.
func capacityFor(n int) uintptr {
	c := uintptr(minCapacity)
	for uintptr(n)*2 >= c {
		c *= 2
	}
	return c
}

// Put inserts an entry into the map, overwriting the value if an entry
// with the same key already exists.
func (m *Map[K, V]) Put(key K, value V) {
	if m.capacity == 0 {
		m.resize(minCapacity)
	}
	h := m.hash(noescape(unsafe.Pointer(&key)), m.seed)

	// Insert-mode search: stop at the first empty slot, or at an occupied
	// slot holding an equal key (the update path). Tombstones are stepped
	// over because a live duplicate of the key may exist further along
	// the probe chain.
	seq := makeProbeSeq(h, m.capacity-1)
	for n := uintptr(0); n < m.capacity; n++ {
		s := m.slots.At(seq.offset)
		switch s.state {
		case slotEmpty:
			s.hash = h
			s.key = key
			s.value = value
			s.state = slotOccupied
			m.used++
			if uintptr(m.used+m.tombstones)*2 >= m.capacity {
				if uintptr(m.used)*2 >= m.capacity {
					m.resize(2 * m.capacity)
				} else {
					// Tombstones, not occupancy, have filled half the
					// table. Rebuild at the same capacity to drop them.
					m.resize(m.capacity)
				}
			}
			m.checkInvariants()
			return
		case slotOccupied:
			if s.hash == h && s.key == key {
				s.value = value
				m.checkInvariants()
				return
			}
		}
		seq = seq.next()
	}
	panic(m.exhausted("insert", key))
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present. A lookup miss is not an error.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if s := m.lookupSlot(key); s != nil {
		return s.value, true
	}
	return value, false
}

// Find is Get with the result expressed as an option.Option.
func (m *Map[K, V]) Find(key K) option.Option[V] {
	if s := m.lookupSlot(key); s != nil {
		return option.Some(s.value)
	}
	return option.None[V]()
}

// GetOrPut returns a pointer to the value stored for key. If the key is
// not present, defaultValue is evaluated (only on the miss path) and the
// result is inserted first. The returned pointer aims into the backing
// array and is invalidated by any subsequent mutation of the map.
func (m *Map[K, V]) GetOrPut(key K, defaultValue func() V) *V {
	if s := m.lookupSlot(key); s != nil {
		return &s.value
	}
	// The insertion may trigger a resize which moves every slot, so the
	// slot is re-derived by a second lookup rather than remembered from
	// the insert.
	m.Put(key, defaultValue())
	return &m.lookupSlot(key).value
}

// Delete deletes the entry corresponding to the specified key from the
// map, reporting whether an entry was present. The slot is tombstoned
// rather than emptied so that probe chains running through it stay
// intact; the tombstone is reclaimed by the next resize.
func (m *Map[K, V]) Delete(key K) bool {
	if m.capacity == 0 {
		return false
	}
	h := m.hash(noescape(unsafe.Pointer(&key)), m.seed)

	// Delete-mode search: identical to lookup, but must land precisely on
	// the occupied slot to tombstone it.
	seq := makeProbeSeq(h, m.capacity-1)
	for n := uintptr(0); n < m.capacity; n++ {
		s := m.slots.At(seq.offset)
		switch s.state {
		case slotEmpty:
			return false
		case slotOccupied:
			if s.hash == h && s.key == key {
				// Clear the key and value so the table does not retain
				// references the caller believes deleted.
				*s = Slot[K, V]{state: slotTombstone}
				m.used--
				m.tombstones++
				m.checkInvariants()
				return true
			}
		}
		seq = seq.next()
	}
	panic(m.exhausted("delete", key))
}

// lookupSlot performs a lookup-mode search: stop at an occupied slot with
// a matching key (found) or at an empty slot (not found), skipping
// tombstones. Returns nil if the key is not present. A map that has never
// allocated short-circuits without touching the array.
func (m *Map[K, V]) lookupSlot(key K) *Slot[K, V] {
	if m.capacity == 0 {
		return nil
	}
	h := m.hash(noescape(unsafe.Pointer(&key)), m.seed)

	seq := makeProbeSeq(h, m.capacity-1)
	for n := uintptr(0); n < m.capacity; n++ {
		s := m.slots.At(seq.offset)
		switch s.state {
		case slotEmpty:
			return nil
		case slotOccupied:
			if s.hash == h && s.key == key {
				return s
			}
		}
		seq = seq.next()
	}
	panic(m.exhausted("lookup", key))
}

// freshInsert inserts an entry known not to be in the table into a table
// known to contain no tombstones. Used when rehashing into a brand-new
// array during resize, Clone, and New: the search stops at the first
// empty slot, nothing else needs to be examined.
func (m *Map[K, V]) freshInsert(h uintptr, key K, value V) {
	seq := makeProbeSeq(h, m.capacity-1)
	for n := uintptr(0); n < m.capacity; n++ {
		s := m.slots.At(seq.offset)
		if s.state == slotEmpty {
			s.hash = h
			s.key = key
			s.value = value
			s.state = slotOccupied
			return
		}
		seq = seq.next()
	}
	panic(m.exhausted("fresh-insert", key))
}

// resize reallocates the backing array at newCapacity and re-inserts
// every occupied slot into it via freshInsert, using the cached hashes so
// that no key is rehashed. Tombstones are discarded in the process, which
// amortizes their accumulated cost. Cost is O(used), which the standard
// doubling argument folds into O(1) amortized per insertion.
func (m *Map[K, V]) resize(newCapacity uintptr) {
	if newCapacity < minCapacity {
		newCapacity = minCapacity
	}

	oldSlots, oldCapacity := m.slots, m.capacity
	m.slots = makeUnsafeSlice(m.allocator.AllocSlots(int(newCapacity)))
	m.capacity = newCapacity
	m.tombstones = 0

	for i := uintptr(0); i < oldCapacity; i++ {
		s := oldSlots.At(i)
		if s.state == slotOccupied {
			m.freshInsert(s.hash, s.key, s.value)
		}
	}

	if oldCapacity > 0 {
		m.allocator.FreeSlots(oldSlots.Slice(0, oldCapacity))
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// IsEmpty reports whether the map contains no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// Clear deletes all entries from the map, retaining the current capacity.
func (m *Map[K, V]) Clear() {
	for i := uintptr(0); i < m.capacity; i++ {
		*m.slots.At(i) = Slot[K, V]{}
	}
	m.used = 0
	m.tombstones = 0
	m.checkInvariants()
}

// Close closes the map, releasing its backing array to the configured
// allocator. It is unnecessary to close a map using the default
// allocator. It is invalid to use a Map after it has been closed, though
// Close itself is idempotent.
func (m *Map[K, V]) Close() {
	if m.capacity > 0 {
		m.allocator.FreeSlots(m.slots.Slice(0, m.capacity))
		m.slots = makeUnsafeSlice([]Slot[K, V](nil))
		m.capacity = 0
		m.used = 0
		m.tombstones = 0
	}
	m.allocator = nil
}

// Clone returns a map equal to m with an independent backing array sized
// to fit the current number of entries; tombstones are never carried
// over. Keys and values are copied by assignment, so values sharing
// references (slices, pointers, maps) alias the originals.
func (m *Map[K, V]) Clone() *Map[K, V] {
	clone := &Map[K, V]{
		hash:      m.hash,
		seed:      m.seed,
		allocator: m.allocator,
	}
	if m.used > 0 {
		// Same seed, so the cached hashes remain valid in the clone.
		clone.resize(capacityFor(m.used))
		for i := uintptr(0); i < m.capacity; i++ {
			s := m.slots.At(i)
			if s.state == slotOccupied {
				clone.freshInsert(s.hash, s.key, s.value)
			}
		}
		clone.used = m.used
	}
	clone.checkInvariants()
	return clone
}

// Equal reports whether two maps contain the same entries. Equality is
// content-based: it is independent of capacity, physical slot order, and
// any pending tombstones in either map.
func Equal[K, V comparable](m, other *Map[K, V]) bool {
	return EqualFunc(m, other, func(a, b V) bool { return a == b })
}

// EqualFunc is like Equal, but compares values using eq, which permits
// value types that are not comparable.
func EqualFunc[K comparable, V1, V2 any](m *Map[K, V1], other *Map[K, V2], eq func(V1, V2) bool) bool {
	if m.used != other.used {
		return false
	}
	equal := true
	m.All(func(key K, value V1) bool {
		otherValue, ok := other.Get(key)
		if !ok || !eq(value, otherValue) {
			equal = false
		}
		return equal
	})
	return equal
}

// exhausted builds the panic message for a probe that visited every slot
// without satisfying its search mode. That can only happen if an internal
// invariant was broken (capacity not a power of two, or occupancy past
// 50% without a resize), so it is fatal and never recoverable.
func (m *Map[K, V]) exhausted(mode string, key K) string {
	return fmt.Sprintf("hashmap: %s probe for key %v exhausted the table\n%s",
		mode, key, m.debugString())
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", m.capacity, m.used, m.tombstones)
	for i := uintptr(0); i < m.capacity; i++ {
		s := m.slots.At(i)
		switch s.state {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotTombstone:
			fmt.Fprintf(&buf, "  %4d: tombstone\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [hash=%016x home=%d]\n",
				i, s.key, s.hash, s.hash&(m.capacity-1))
		}
	}
	return buf.String()
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.capacity > 0 {
			if m.capacity&(m.capacity-1) != 0 || m.capacity < minCapacity {
				panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two >= %d",
					m.capacity, minCapacity))
			}
			if uintptr(m.used+m.tombstones)*2 >= m.capacity {
				panic(fmt.Sprintf("invariant failed: used=%d + tombstones=%d exceeds half of capacity=%d\n%s",
					m.used, m.tombstones, m.capacity, m.debugString()))
			}
		} else if m.used != 0 {
			panic(fmt.Sprintf("invariant failed: used=%d with no allocation", m.used))
		}

		// Every occupied slot must carry the hash of its key and be
		// reachable through a lookup-mode search.
		var used, tombstones int
		for i := uintptr(0); i < m.capacity; i++ {
			s := m.slots.At(i)
			if s.state == slotTombstone {
				tombstones++
			}
			if s.state != slotOccupied {
				continue
			}
			used++
			if h := m.hash(noescape(unsafe.Pointer(&s.key)), m.seed); h != s.hash {
				panic(fmt.Sprintf("invariant failed: slot(%d): cached hash %016x != %016x\n%s",
					i, s.hash, h, m.debugString()))
			}
			if _, ok := m.Get(s.key); !ok {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v not found\n%s",
					i, s.key, m.debugString()))
			}
		}
		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d occupied slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if tombstones != m.tombstones {
			panic(fmt.Sprintf("invariant failed: found %d tombstoned slots, but tombstone count is %d\n%s",
				tombstones, m.tombstones, m.debugString()))
		}
	}
}

// probeSeq maintains the state for a probe sequence. The sequence is the
// triangular progression
//
//	p(i) := (hash + (i^2 + i)/2) (mod mask+1)
//
// realized incrementally as offset += step for step = 1, 2, ... Since
// (i^2+i)/2 is a bijection in Z/(2^m), the sequence visits every slot of
// a power-of-two table exactly once before repeating. See
// https://en.wikipedia.org/wiki/Quadratic_probing.
type probeSeq struct {
	mask   uintptr
	offset uintptr
	step   uintptr
}

func makeProbeSeq(hash, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		step:   0,
	}
}

func (s probeSeq) next() probeSeq {
	s.step++
	s.offset = (s.offset + s.step) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d step=%d", s.mask, s.offset, s.step)
}
