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

import (
	"hash/maphash"
	"math/rand/v2"
)

type hashFn[K comparable] func(key *K, seed uintptr) uintptr

type equalFn[K comparable] func(a, b *K) bool

// hashSeed is shared by every Map using the default hash function. Maps are
// further distinguished by their per-map seed.
var hashSeed = maphash.MakeSeed()

// defaultHash hashes keys the same way Go's builtin map[K]V does.
func defaultHash[K comparable](key *K, seed uintptr) uintptr {
	return uintptr(maphash.Comparable(hashSeed, *key) ^ uint64(seed))
}

func defaultEqual[K comparable](a, b *K) bool {
	return *a == *b
}

func fastrand() uintptr {
	return uintptr(rand.Uint64())
}
