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

import "runtime"

// Pinned is returned by Pin and must be released via Unpin on every exit
// path of the pinned section, including error returns — the order-0 fast
// path (§4.G, §9) requires that the task not migrate between reading its
// CPU number and releasing the per-CPU cache lock.
type Pinned struct {
	cpu int
}

// Pin locks the calling goroutine to its current OS thread for the
// duration of the pinned section and reports the CPU index to operate on.
// cpuNumber is the host's cpu_number() (§6); it is called once, while
// still pinned, so the returned index cannot go stale mid-section.
func Pin(cpuNumber func() int) Pinned {
	runtime.LockOSThread()
	return Pinned{cpu: cpuNumber()}
}

// CPU returns the CPU index this section is pinned to.
func (p Pinned) CPU() int { return p.cpu }

// Unpin releases the pin taken by Pin. Must be called exactly once per
// Pin, on every exit path.
func (p Pinned) Unpin() {
	runtime.UnlockOSThread()
}
