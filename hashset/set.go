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

// Package hashset implements a hash set as a thin wrapper around
// hashmap.Map: each element is a key mapped to a zero-size value, so the
// set inherits the map's probing, tombstone deletion, and resize
// behavior unchanged.
//
// A Set is NOT goroutine-safe.
package hashset

import "github.com/w0rp/dstruct/hashmap"

// Set is an unordered collection of unique elements.
type Set[K comparable] struct {
	m *hashmap.Map[K, struct{}]
}

// New constructs a Set pre-sized so that minCapacity elements can be
// added without triggering a resize. If minCapacity is 0 the set performs
// no allocation and will grow on the first add.
func New[K comparable](minCapacity int, options ...hashmap.Option[K, struct{}]) *Set[K] {
	return &Set[K]{m: hashmap.New[K, struct{}](minCapacity, options...)}
}

// Of constructs a Set containing the given elements.
func Of[K comparable](elements ...K) *Set[K] {
	s := New[K](len(elements))
	for _, e := range elements {
		s.Add(e)
	}
	return s
}

// Add adds an element to the set. Adding an element already present is a
// noop.
func (s *Set[K]) Add(element K) {
	s.m.Put(element, struct{}{})
}

// Remove removes an element from the set, reporting whether it was
// present.
func (s *Set[K]) Remove(element K) bool {
	return s.m.Delete(element)
}

// Contains reports whether the set contains the element.
func (s *Set[K]) Contains(element K) bool {
	_, ok := s.m.Get(element)
	return ok
}

// Len returns the number of elements in the set.
func (s *Set[K]) Len() int {
	return s.m.Len()
}

// IsEmpty reports whether the set contains no elements.
func (s *Set[K]) IsEmpty() bool {
	return s.m.IsEmpty()
}

// Clear removes all elements, retaining the current capacity.
func (s *Set[K]) Clear() {
	s.m.Clear()
}

// Clone returns a set equal to s with an independent backing array.
func (s *Set[K]) Clone() *Set[K] {
	return &Set[K]{m: s.m.Clone()}
}

// Equal reports whether two sets contain the same elements, independent
// of capacity and physical layout.
func (s *Set[K]) Equal(other *Set[K]) bool {
	return hashmap.Equal(s.m, other.m)
}

// All calls yield sequentially for each element in the set. If yield
// returns false, iteration stops. The set must not be mutated during the
// traversal.
func (s *Set[K]) All(yield func(element K) bool) {
	s.m.All(func(k K, _ struct{}) bool {
		return yield(k)
	})
}

// Iter returns an Iterator positioned before the first element.
func (s *Set[K]) Iter() Iterator[K] {
	return Iterator[K]{it: s.m.Iter()}
}

// Union returns a new set with the elements of both s and other.
func (s *Set[K]) Union(other *Set[K]) *Set[K] {
	u := s.Clone()
	other.All(func(e K) bool {
		u.Add(e)
		return true
	})
	return u
}

// Intersect returns a new set with the elements present in both s and
// other.
func (s *Set[K]) Intersect(other *Set[K]) *Set[K] {
	i := New[K](0)
	s.All(func(e K) bool {
		if other.Contains(e) {
			i.Add(e)
		}
		return true
	})
	return i
}

// Difference returns a new set with the elements of s not present in
// other.
func (s *Set[K]) Difference(other *Set[K]) *Set[K] {
	d := New[K](0)
	s.All(func(e K) bool {
		if !other.Contains(e) {
			d.Add(e)
		}
		return true
	})
	return d
}

// Iterator is a copyable cursor over the elements of a Set. The caller
// must not mutate the set while a traversal is in progress.
type Iterator[K comparable] struct {
	it hashmap.Iterator[K, struct{}]
}

// Next advances to the next element. ok is false once the set is
// exhausted.
func (it *Iterator[K]) Next() (element K, ok bool) {
	element, _, ok = it.it.Next()
	return element, ok
}
