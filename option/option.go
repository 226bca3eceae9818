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

// Package option implements an optional value: a container that either
// holds a value of some type or holds nothing. Absence of a value is
// always represented by a None option, never by an error or a panic;
// only extracting a value from a None option with MustGet panics.
package option

import "fmt"

// Option holds either a value of type T or nothing. The zero value of an
// Option is None.
type Option[T any] struct {
	value T
	ok    bool
}

// Some returns an Option holding value.
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, ok: true}
}

// None returns an Option holding nothing.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the held value and whether one is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.ok
}

// MustGet returns the held value, panicking if the option is None.
func (o Option[T]) MustGet() T {
	if !o.ok {
		panic("option: MustGet called on a None option")
	}
	return o.value
}

// GetOr returns the held value, or fallback if the option is None.
func (o Option[T]) GetOr(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}

// GetOrFunc returns the held value, or the result of fallback if the
// option is None. fallback is only evaluated on the None path.
func (o Option[T]) GetOrFunc(fallback func() T) T {
	if !o.ok {
		return fallback()
	}
	return o.value
}

// IsSome reports whether the option holds a value.
func (o Option[T]) IsSome() bool {
	return o.ok
}

// IsNone reports whether the option holds nothing.
func (o Option[T]) IsNone() bool {
	return !o.ok
}

func (o Option[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}

// Map applies f to the value held by o, returning None if o is None.
func Map[T, U any](o Option[T], f func(T) U) Option[U] {
	if v, ok := o.Get(); ok {
		return Some(f(v))
	}
	return None[U]()
}
