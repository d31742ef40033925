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

package sync

import "testing"

func TestSpinLockTryLockFailsWhileHeld(t *testing.T) {
	var l SpinLock
	if !l.TryLock() {
		t.Fatal("TryLock() on a fresh lock = false, want true")
	}
	if l.TryLock() {
		t.Fatal("TryLock() on a held lock = true, want false")
	}
	l.Unlock()
	if !l.TryLock() {
		t.Fatal("TryLock() after Unlock = false, want true")
	}
}

func TestSpinLockLockUnlockRoundTrip(t *testing.T) {
	var l SpinLock
	done := make(chan struct{})
	l.Lock()

	go func() {
		l.Lock()
		l.Unlock()
		close(done)
	}()

	l.Unlock()
	<-done
}
