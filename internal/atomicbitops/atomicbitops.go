// Copyright The gnumach-go Authors.
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

// Package atomicbitops provides small atomic counter types. Uint64 holds a
// segment's nr_free_pages, which the info/metrics paths (§6's
// info_all/mem_size/mem_free) read without the segment lock held. Per-CPU
// cache counts are plain ints guarded by the cache lock and do not use
// these types.
//
// The segment lock is still the sole writer-side synchronization for
// nr_free_pages; these types exist so a concurrent reader never observes a
// torn value, not to replace the lock.
package atomicbitops

import "sync/atomic"

// Uint64 is a 64-bit atomic counter.
type Uint64 struct {
	value uint64
}

// Load returns the current value.
func (u *Uint64) Load() uint64 { return atomic.LoadUint64(&u.value) }

// Store sets the current value.
func (u *Uint64) Store(v uint64) { atomic.StoreUint64(&u.value, v) }

// Add adds delta and returns the new value.
func (u *Uint64) Add(delta int64) uint64 {
	if delta >= 0 {
		return atomic.AddUint64(&u.value, uint64(delta))
	}
	return atomic.AddUint64(&u.value, ^uint64(-delta-1))
}

// Int32 is a 32-bit atomic counter.
type Int32 struct {
	value int32
}

// Load returns the current value.
func (i *Int32) Load() int32 { return atomic.LoadInt32(&i.value) }

// Store sets the current value.
func (i *Int32) Store(v int32) { atomic.StoreInt32(&i.value, v) }

// Add adds delta and returns the new value.
func (i *Int32) Add(delta int32) int32 { return atomic.AddInt32(&i.value, delta) }
