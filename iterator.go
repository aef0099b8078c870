// Copyright 2024 The Cockroach Authors
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

package ordered

import "fmt"

// Iterator is a position within a Map's insertion order. Iterators are
// values and compare equal with == when they refer to the same slot of the
// same Map, which allows loops of the form:
//
//	for it := m.Begin(); it != m.End(); it = it.Next() {
//	  fmt.Printf("%v: %v\n", it.Key(), it.Value())
//	}
//
// An Iterator is invalidated by any insertion into its Map (the insertion
// may relocate every entry) and by Clear. Using an invalidated iterator is
// undefined behavior.
type Iterator[K comparable, V any] struct {
	m *Map[K, V]
	i uintptr
}

// Valid returns false for the End() iterator and the zero Iterator.
func (it Iterator[K, V]) Valid() bool {
	return it.m != nil && it.i < it.m.capacity
}

// Next returns the iterator positioned at the entry inserted after the
// current one, or End() if the current entry is the newest.
func (it Iterator[K, V]) Next() Iterator[K, V] {
	it.i = it.slot().next
	return it
}

// Key returns the key of the current entry.
func (it Iterator[K, V]) Key() K {
	return it.slot().key
}

// Value returns the value of the current entry.
func (it Iterator[K, V]) Value() V {
	return it.slot().value
}

// ValuePtr returns a pointer to the value of the current entry, allowing it
// to be modified in place.
func (it Iterator[K, V]) ValuePtr() *V {
	return &it.slot().value
}

// slot returns the slot the iterator is positioned at. Dereferencing End()
// panics with an index out of range; invariants builds report it explicitly.
func (it Iterator[K, V]) slot() *Slot[K, V] {
	if invariants && (!it.Valid() || !it.m.slots[it.i].used) {
		panic(fmt.Sprintf("dereference of invalid iterator at %d", it.i))
	}
	return &it.m.slots[it.i]
}
