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

// Package hostarch provides the page geometry of the host the allocator
// runs on: page size, page shift, and alignment helpers on physical
// addresses.
package hostarch

import "golang.org/x/sys/unix"

// defaultPageShift is used when the page size cannot be queried from the
// host (e.g. under an emulator that doesn't support the getpagesize call).
const defaultPageShift = 12

var (
	// PageShift is the binary log of the system page size.
	PageShift uint
	// PageSize is the system page size in bytes.
	PageSize uint64
)

func init() {
	size := unix.Getpagesize()
	if size <= 0 {
		PageShift = defaultPageShift
	} else {
		shift := uint(0)
		for v := size; v > 1; v >>= 1 {
			shift++
		}
		if 1<<shift != size {
			// Non-power-of-two page size is not supported by the buddy
			// allocator's alignment invariants; fall back to the default.
			shift = defaultPageShift
		}
		PageShift = shift
	}
	PageSize = 1 << PageShift
}

// Addr is a physical address.
type Addr uint64

// RoundDown returns v truncated to the page boundary below it.
func (v Addr) RoundDown() Addr {
	return v &^ Addr(PageSize-1)
}

// RoundUp returns v rounded up to the page boundary above it, and whether
// the rounding did not overflow.
func (v Addr) RoundUp() (Addr, bool) {
	r := (v + Addr(PageSize) - 1).RoundDown()
	return r, r >= v
}

// RoundDownOrder truncates v to the boundary of an order-k block
// (2^k * PageSize).
func (v Addr) RoundDownOrder(order uint) Addr {
	mask := Addr(PageSize)<<order - 1
	return v &^ mask
}

// AlignedOrder reports whether v is aligned to an order-k block boundary.
func (v Addr) AlignedOrder(order uint) bool {
	return v&(Addr(PageSize)<<order-1) == 0
}

// Atop converts a byte count to a page count, rounding down.
func Atop(size uint64) uint64 {
	return size >> PageShift
}

// Ptoa converts a page count to a byte count.
func Ptoa(pages uint64) uint64 {
	return pages << PageShift
}
