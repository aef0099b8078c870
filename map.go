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

// package ordered is a Go implementation of an open-addressing hash map that
// remembers the order in which keys were inserted. Iteration visits entries
// from the oldest to the newest insertion, similar to Python's dict or
// Java's LinkedHashMap, while lookups and insertions keep the constant
// expected cost of a flat hash table.
//
// # Layout
//
// A Map is a single array of N slots where N is a power of 2 (at least 8).
// Each slot holds a key, a value, an occupied flag and the index of the slot
// that was inserted immediately after it. The successor indexes form an
// intrusive singly-linked list threaded through the slot array:
//
//	first -> slot[5] -> slot[2] -> slot[7] -> N   (N marks the tail)
//
// The Map records the index of the first (oldest) and last (newest) slot in
// the list. An empty Map has first == last == N. Appending to the list is
// done by pointing slot[last].next at the newly claimed slot. There is no
// deletion, so the list never needs to be spliced.
//
// # Probing
//
// Collisions are resolved with linear probing. The home slot for a key is
// hash(key)%N. Probing scans [home, N) and then wraps around to scan [0,
// home), stopping at the first unoccupied slot (the key is absent and this is
// where it would be inserted) or the first occupied slot holding an equal key.
// Rather than computing (home+i)%N on every step the scan is performed as two
// ascending runs over the slot array.
//
// # Growth
//
// The load factor is kept at or below 1/4: any insertion that would leave
// more than N/4 slots occupied first doubles the table. Growth walks the old
// table in insertion order and reinserts every entry into a fresh table of
// twice the size, which reproduces the insertion order exactly. Only then is
// the new key placed, at the tail of the order. A low load factor keeps
// linear probe sequences short and guarantees that every probe finds an
// unoccupied slot.
package ordered

import (
	"fmt"
	"iter"
	"strings"
)

const (
	debug = false

	// minCapacity is the number of slots in a Map created without an initial
	// capacity.
	minCapacity = 8
	// maxLoadDivisor bounds the load factor: a Map never has more than
	// capacity/maxLoadDivisor occupied slots.
	maxLoadDivisor = 4
)

// Slot holds a key and value.
type Slot[K comparable, V any] struct {
	key   K
	value V
	// next is the index of the slot inserted immediately after this one, or
	// the Map capacity if this slot holds the most recently inserted entry.
	// Only meaningful when used is true.
	next uintptr
	used bool
}

// Map is an insertion-ordered map from keys to values with Insert, Emplace,
// Ref, Find, At and All operations. By default, a Map[K,V] uses the same hash
// function as Go's builtin map[K]V and compares keys with ==, though different
// functions can be specified using the WithHash and WithEqual options.
//
// Entries can not be deleted: a Map only grows until it is Cleared or Closed.
//
// A Map is NOT goroutine-safe. Growth replaces the slot array wholesale, so
// readers need the same exclusion as writers.
type Map[K comparable, V any] struct {
	hash  hashFn[K]
	equal equalFn[K]
	seed  uintptr
	// The allocator to use for the slots slice.
	allocator Allocator[K, V]
	// slots is capacity in length.
	slots []Slot[K, V]
	// The total number of slots (always 2^N). The capacity is used as a mask
	// to quickly compute h%capacity.
	capacity uintptr
	// The indexes of the oldest and newest entries. Both are capacity when
	// the map is empty.
	first uintptr
	last  uintptr
	// The number of filled slots (i.e. the number of elements in the map).
	used int
}

// New constructs a new Map sized to hold initialCapacity elements without
// growing. An initialCapacity of 0 creates a map with the minimum capacity.
// The zero value for a Map is not usable.
func New[K comparable, V any](initialCapacity int, options ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.Init(initialCapacity, options...)
	return m
}

// Collect constructs a new Map holding the entries of seq. Entries are
// inserted in the order seq produces them. If seq produces a key more than
// once the first value wins.
func Collect[K comparable, V any](seq iter.Seq2[K, V], options ...Option[K, V]) *Map[K, V] {
	m := New[K, V](0, options...)
	m.InsertAll(seq)
	return m
}

// Init initializes a Map with the specified initial capacity. Init can be
// invoked on a Map that was not created by New in order to avoid a heap
// allocation. Calling Init on a Map that is in use discards its contents
// without releasing them to the allocator.
func (m *Map[K, V]) Init(initialCapacity int, options ...Option[K, V]) {
	*m = Map[K, V]{
		hash:      defaultHash[K],
		equal:     defaultEqual[K],
		seed:      fastrand(),
		allocator: defaultAllocator[K, V]{},
	}

	for _, op := range options {
		op.apply(m)
	}

	capacity := uintptr(minCapacity)
	if initialCapacity > 0 {
		for capacity < uintptr(initialCapacity)*maxLoadDivisor {
			capacity *= 2
		}
	}
	m.slots = m.allocator.AllocSlots(int(capacity))
	m.capacity = capacity
	m.first, m.last = capacity, capacity

	m.checkInvariants()
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
	}
	m.slots = nil
	m.capacity = 0
	m.first, m.last = 0, 0
	m.used = 0
	m.allocator = nil
}

// Find returns an iterator positioned at the entry for key, or End() if the
// key is not present. Find never modifies the map.
func (m *Map[K, V]) Find(key K) Iterator[K, V] {
	i, found := m.probe(&key)
	if !found {
		return m.End()
	}
	return Iterator[K, V]{m: m, i: i}
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	i, found := m.probe(&key)
	if !found {
		return value, false
	}
	return m.slots[i].value, true
}

// At returns a pointer to the value stored for key. If the key is not present
// the map is left unchanged and an error wrapping ErrKeyNotFound is
// returned. The pointer is invalidated by any subsequent insertion.
func (m *Map[K, V]) At(key K) (*V, error) {
	i, found := m.probe(&key)
	if !found {
		if debug {
			fmt.Printf("at(%v): not found\n", key)
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return &m.slots[i].value, nil
}

// Ref returns a pointer to the value stored for key, inserting the key with
// the zero value for V if it is not present. Ref never returns nil. The
// pointer is invalidated by any subsequent insertion.
func (m *Map[K, V]) Ref(key K) *V {
	i, found := m.prepareInsert(&key)
	if !found {
		var value V
		m.claim(i, key, value)
		m.checkInvariants()
	}
	return &m.slots[i].value
}

// Insert inserts an entry into the map if no entry with an equal key exists.
// An existing entry is never overwritten. Insert returns an iterator
// positioned at the entry for key and whether the entry was inserted.
func (m *Map[K, V]) Insert(key K, value V) (Iterator[K, V], bool) {
	i, found := m.prepareInsert(&key)
	if found {
		return Iterator[K, V]{m: m, i: i}, false
	}
	m.claim(i, key, value)
	m.checkInvariants()
	return Iterator[K, V]{m: m, i: i}, true
}

// Emplace is Insert with a lazily constructed value: makeValue is only
// invoked if key is not already present. makeValue must not access the map.
func (m *Map[K, V]) Emplace(key K, makeValue func() V) (Iterator[K, V], bool) {
	i, found := m.prepareInsert(&key)
	if found {
		return Iterator[K, V]{m: m, i: i}, false
	}
	m.claim(i, key, makeValue())
	m.checkInvariants()
	return Iterator[K, V]{m: m, i: i}, true
}

// InsertAll inserts every entry produced by seq, in order. Entries whose key
// is already present (including keys seq produced earlier) are skipped.
func (m *Map[K, V]) InsertAll(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		m.Insert(k, v)
	}
}

// Clear deletes all entries from the map resulting in an empty map. The
// capacity of the map is retained.
func (m *Map[K, V]) Clear() {
	clear(m.slots)
	m.first, m.last = m.capacity, m.capacity
	m.used = 0
	m.checkInvariants()
}

// Clone returns an independent copy of the map with the same entries in the
// same order. The copy shares the hash, equality and allocator configuration
// of m.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := *m
	c.slots = m.allocator.AllocSlots(int(m.capacity))
	copy(c.slots, m.slots)
	c.checkInvariants()
	return &c
}

// Swap exchanges the contents and configuration of m and other. Both maps
// remain valid. Swap is the way to move a Map's storage to another Map
// without copying it.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	*m, *other = *other, *m
}

// All returns an iterator over the entries in insertion order. The map can
// be mutated during iteration, though there is no guarantee that the
// mutations will be visible to the iteration.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(key K, value V) bool) {
		// Snapshot the slots so that iteration remains valid if the map is
		// resized during iteration. A slot can only become unused through
		// Clear, which also ends the iteration.
		slots, capacity := m.slots, m.capacity
		for i := m.first; i != capacity && slots[i].used; i = slots[i].next {
			s := &slots[i]
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Keys returns an iterator over the keys in insertion order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(key K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns an iterator over the values in insertion order of their
// keys.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(value V) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Begin returns an iterator positioned at the oldest entry, or End() if the
// map is empty.
func (m *Map[K, V]) Begin() Iterator[K, V] {
	return Iterator[K, V]{m: m, i: m.first}
}

// End returns the iterator one past the newest entry. End must not be
// dereferenced.
func (m *Map[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{m: m, i: m.capacity}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Empty returns true if the map has no entries.
func (m *Map[K, V]) Empty() bool {
	return m.used == 0
}

// String returns the entries of the map in insertion order, formatted the
// same way fmt formats a builtin map.
func (m *Map[K, V]) String() string {
	var buf strings.Builder
	buf.WriteString("map[")
	sep := ""
	for k, v := range m.All() {
		fmt.Fprintf(&buf, "%s%v:%v", sep, k, v)
		sep = " "
	}
	buf.WriteString("]")
	return buf.String()
}

// probe returns the index of the slot holding key if found is true, or the
// index of the unoccupied slot at which key would be inserted if found is
// false.
func (m *Map[K, V]) probe(key *K) (uintptr, bool) {
	h := m.hash(key, m.seed)
	home := h & (m.capacity - 1)
	if debug {
		fmt.Printf("probe(%v): home=%d capacity=%d\n", *key, home, m.capacity)
	}

	// The probe sequence is home, home+1, ..., capacity-1, 0, 1, ..., home-1.
	for _, r := range [2][2]uintptr{{home, m.capacity}, {0, home}} {
		for i := r[0]; i < r[1]; i++ {
			s := &m.slots[i]
			if !s.used {
				if debug {
					fmt.Printf("probe(not-found): index=%d\n", i)
				}
				return i, false
			}
			if m.equal(key, &s.key) {
				if debug {
					fmt.Printf("probe(found): index=%d\n", i)
				}
				return i, true
			}
			if debug {
				fmt.Printf("probe(skipping): index=%d key=%v\n", i, s.key)
			}
		}
	}

	panic(fmt.Sprintf("probe(%v): no unoccupied slot in a table with %d/%d used slots",
		*key, m.used, m.capacity))
}

// prepareInsert probes for key. If the key is present it returns its index
// and found=true. Otherwise it returns the index of the slot at which key
// should be claimed, first growing the map if claiming a slot would exceed
// the maximum load factor.
//
// Growing before the slot is claimed places the key in the same slot as
// claiming it in the old table and then growing would, but leaves the map
// untouched if the allocator fails.
func (m *Map[K, V]) prepareInsert(key *K) (i uintptr, found bool) {
	i, found = m.probe(key)
	if found || uintptr(m.used+1)*maxLoadDivisor <= m.capacity {
		return i, found
	}
	m.relocate(2 * m.capacity)
	i, found = m.probe(key)
	if found {
		panic(fmt.Sprintf("prepareInsert(%v): key appeared during relocation", *key))
	}
	return i, false
}

// claim stores the key and value in the unoccupied slot i and appends the
// slot to the insertion order.
func (m *Map[K, V]) claim(i uintptr, key K, value V) {
	s := &m.slots[i]
	s.key = key
	s.value = value
	s.next = m.capacity
	s.used = true

	if m.first == m.capacity {
		m.first = i
	} else {
		m.slots[m.last].next = i
	}
	m.last = i
	m.used++

	if debug {
		fmt.Printf("claim(%v): index=%d used=%d\n", key, i, m.used)
	}
}

// relocate replaces the slot array with one of newCapacity slots, inserting
// each entry into the new array in insertion order (we know that no
// insertion here will find an already-present key), and discards the old
// array.
func (m *Map[K, V]) relocate(newCapacity uintptr) {
	// Allocate before touching any state so that an allocation failure
	// leaves the map as it was.
	newSlots := m.allocator.AllocSlots(int(newCapacity))

	oldSlots, oldCapacity, oldFirst := m.slots, m.capacity, m.first
	if debug {
		fmt.Printf("relocate: capacity=%d->%d used=%d\n", oldCapacity, newCapacity, m.used)
	}

	m.slots = newSlots
	m.capacity = newCapacity
	m.first, m.last = newCapacity, newCapacity
	m.used = 0

	for i := oldFirst; i != oldCapacity; i = oldSlots[i].next {
		s := &oldSlots[i]
		j, _ := m.probe(&s.key)
		m.claim(j, s.key, s.value)
	}

	m.allocator.FreeSlots(oldSlots)
	m.checkInvariants()
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.capacity < minCapacity || m.capacity&(m.capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of 2 >= %d\n%s",
				m.capacity, minCapacity, m.debugString()))
		}
		if uintptr(len(m.slots)) != m.capacity {
			panic(fmt.Sprintf("invariant failed: %d slots, but capacity is %d\n%s",
				len(m.slots), m.capacity, m.debugString()))
		}
		if uintptr(m.used)*maxLoadDivisor > m.capacity {
			panic(fmt.Sprintf("invariant failed: %d used slots exceeds load factor for capacity %d\n%s",
				m.used, m.capacity, m.debugString()))
		}

		// Walk the insertion order. Bounding the walk by the used count
		// detects cycles.
		var walked int
		last := m.capacity
		for i := m.first; i != m.capacity; i = m.slots[i].next {
			if i > m.capacity {
				panic(fmt.Sprintf("invariant failed: successor index %d out of range\n%s",
					i, m.debugString()))
			}
			if !m.slots[i].used {
				panic(fmt.Sprintf("invariant failed: slot(%d) in insertion order is unused\n%s",
					i, m.debugString()))
			}
			if walked++; walked > m.used {
				panic(fmt.Sprintf("invariant failed: insertion order is longer than %d\n%s",
					m.used, m.debugString()))
			}
			last = i
		}
		if walked != m.used {
			panic(fmt.Sprintf("invariant failed: insertion order has %d entries, but used count is %d\n%s",
				walked, m.used, m.debugString()))
		}
		if last != m.last {
			panic(fmt.Sprintf("invariant failed: insertion order ends at %d, but last is %d\n%s",
				last, m.last, m.debugString()))
		}

		// For every used slot, verify that probing for its key finds it at
		// the same index. This also proves that keys are unique.
		var used int
		for i := uintptr(0); i < m.capacity; i++ {
			s := &m.slots[i]
			if !s.used {
				continue
			}
			used++
			if j, found := m.probe(&s.key); !found || j != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v found=%t at %d\n%s",
					i, s.key, found, j, m.debugString()))
			}
		}
		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  first=%d  last=%d\n", m.capacity, m.used, m.first, m.last)
	for i := range m.slots {
		s := &m.slots[i]
		if !s.used {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		h := m.hash(&s.key, m.seed)
		fmt.Fprintf(&buf, "  %4d: %v [home=%d next=%d]\n", i, s.key, h&(m.capacity-1), s.next)
	}
	return buf.String()
}
