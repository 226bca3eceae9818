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

// All calls yield sequentially for each key and value present in the map.
// If yield returns false, iteration stops. Iteration order is physical
// slot order, not insertion order. Structurally mutating the map during
// iteration (an insert that resizes, or a delete that tombstones) leaves
// the iteration behavior undefined.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i := uintptr(0); i < m.capacity; i++ {
		s := m.slots.At(i)
		if s.state == slotOccupied {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Iterator is a cursor over the occupied slots of a Map in physical slot
// order. Iterators are cheap views over the backing array, not owners of
// it: they may be copied freely and each copy advances independently.
// The caller must not mutate the map while a traversal is in progress.
type Iterator[K comparable, V any] struct {
	slots    unsafeSlice[Slot[K, V]]
	capacity uintptr
	index    uintptr
}

// Iter returns an Iterator positioned before the first entry.
func (m *Map[K, V]) Iter() Iterator[K, V] {
	return Iterator[K, V]{slots: m.slots, capacity: m.capacity}
}

// Next advances to the next occupied slot, skipping empty and tombstoned
// slots, and returns its entry. ok is false once the table is exhausted.
func (it *Iterator[K, V]) Next() (key K, value V, ok bool) {
	for it.index < it.capacity {
		s := it.slots.At(it.index)
		it.index++
		if s.state == slotOccupied {
			return s.key, s.value, true
		}
	}
	return key, value, false
}
