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

// Package sync provides the spinlock and CPU-pinning primitives the
// allocator's fast paths need. Unlike a blocking mutex, a SpinLock never
// parks the goroutine — §5 forbids suspension inside any allocator entry
// point, and a segment lock is expected to be held only for the handful of
// instructions it takes to pop or push a free list.
package sync

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a test-and-test-and-set spinlock. The zero value is unlocked.
type SpinLock struct {
	locked atomic.Bool
}

// Lock spins until the lock is acquired.
func (s *SpinLock) Lock() {
	for !s.locked.CompareAndSwap(false, true) {
		for s.locked.Load() {
			runtime.Gosched()
		}
	}
}

// Unlock releases the lock. Unlock on an unlocked SpinLock is a programmer
// error, as in the C original (no ownership tracking).
func (s *SpinLock) Unlock() {
	s.locked.Store(false)
}

// TryLock attempts to acquire the lock without spinning.
func (s *SpinLock) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}
