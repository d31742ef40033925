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

package bootmem

import (
	"testing"

	"github.com/nabijaczleweli/gnumach/internal/hostarch"
	"github.com/nabijaczleweli/gnumach/internal/log"
	"github.com/nabijaczleweli/gnumach/memmap"
)

func ps() uint64 { return hostarch.PageSize }

func TestNewPicksLargestArtifactFreeGap(t *testing.T) {
	biosEnd := uint64(0x10_0000) // 1 MiB
	memUpper := uint64(0x200_0000)

	loc := memmap.NewLocator(
		memmap.Artifact{Start: biosEnd, End: biosEnd + 4*ps()},
		memmap.Artifact{Start: biosEnd + 10*ps(), End: biosEnd + 11*ps()},
	)

	h := bootmemNew(t, loc, biosEnd, memUpper, 0)
	start, end := h.Bounds()

	if start < biosEnd+11*ps() {
		t.Fatalf("Bounds() start = %#x, want >= %#x (largest gap is after the second artifact)", start, biosEnd+11*ps())
	}
	if end != uint64(hostarch.Addr(memUpper).RoundDown()) {
		t.Fatalf("Bounds() end = %#x, want %#x", end, memUpper)
	}
}

func TestAllocTopDownMovesDownward(t *testing.T) {
	loc := memmap.NewLocator()
	h := bootmemNew(t, loc, 0x10_0000, 0x20_0000, 0)
	_, end := h.Bounds()

	a1 := h.Alloc(1)
	a2 := h.Alloc(1)

	if a1 != end-ps() {
		t.Errorf("first Alloc = %#x, want %#x", a1, end-ps())
	}
	if a2 != a1-ps() {
		t.Errorf("second Alloc = %#x, want %#x", a2, a1-ps())
	}
}

func TestAllocPanicsOnExhaustion(t *testing.T) {
	loc := memmap.NewLocator()
	h := bootmemNew(t, loc, 0x10_0000, 0x10_0000+4*ps(), 0)

	defer func() {
		if recover() == nil {
			t.Fatal("Alloc: want panic on exhaustion, got none")
		}
	}()
	h.Alloc(1000)
}

func TestAllocPanicsOnZeroSize(t *testing.T) {
	loc := memmap.NewLocator()
	h := bootmemNew(t, loc, 0x10_0000, 0x20_0000, 0)

	defer func() {
		if recover() == nil {
			t.Fatal("Alloc(0): want panic, got none")
		}
	}()
	h.Alloc(0)
}

func TestNewHypervisorIsBottomUp(t *testing.T) {
	h := NewHypervisor(0x1000, 4, 1024, 0, log.Discard)
	start, _ := h.Bounds()

	a1 := h.Alloc(1)
	a2 := h.Alloc(1)

	if a1 != start {
		t.Errorf("first Alloc = %#x, want %#x", a1, start)
	}
	if a2 != a1+ps() {
		t.Errorf("second Alloc = %#x, want %#x", a2, a1+ps())
	}
}

func bootmemNew(t *testing.T, loc *memmap.Locator, biosEnd, memUpper, directMapLimit uint64) *Heap {
	t.Helper()
	return New(loc, biosEnd, memUpper, directMapLimit, log.Discard)
}
