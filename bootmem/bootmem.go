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

// Package bootmem implements the pre-VM bump heap (component C, §4.C):
// the allocator used to steal page-aligned memory before the buddy
// allocator exists, carved from the largest boot-data-free gap in upper
// memory.
//
// Grounded on i386at/biosmem.c's biosmem_setup_allocator (largest-gap
// search), biosmem_bootalloc (top-down bump), and biosmem_xen_bootstrap
// (bottom-up hypervisor variant, §9's known quirk).
package bootmem

import (
	"github.com/nabijaczleweli/gnumach/internal/hostarch"
	"github.com/nabijaczleweli/gnumach/internal/log"
	"github.com/nabijaczleweli/gnumach/memmap"
)

// Direction is the bump-allocation policy: top-down preserves low DMA
// pages on BIOS platforms, bottom-up is required on hypervisor platforms
// where only a small low prefix of RAM is mapped at heap-setup time.
type Direction int

const (
	TopDown Direction = iota
	BottomUp
)

const (
	panicSetup = "bootmem: unable to set up heap"
	panicInval = "bootmem: invalid allocation request"
	panicNoMem = "bootmem: heap exhausted"
)

// Heap is the bump-allocated bootstrap heap.
type Heap struct {
	start, end, cur uint64
	dir             Direction
	logger          log.Logger
}

// New carves the bootstrap heap out of the largest boot-artifact-free gap
// in [biosMemEnd, memUpper), capped at directMapLimit whenever
// directMapLimit is non-zero (the cap does not depend on the target's word
// size), mirroring biosmem_setup_allocator: it walks from one artifact to the
// next across the whole upper-memory range (this loop does not consult
// the firmware map's AVAILABLE classification — that is the segment
// planner's job — it only avoids boot artifacts). Panics (via logger) if
// no such gap exists — a boot-tier failure per §7.
func New(loc *memmap.Locator, biosMemEnd, memUpper, directMapLimit uint64, logger log.Logger) *Heap {
	memEnd := uint64(hostarch.Addr(memUpper).RoundDown())
	if directMapLimit != 0 && memEnd > directMapLimit {
		memEnd = directMapLimit
	}

	var maxStart, maxEnd uint64
	next := biosMemEnd

	for {
		start := next
		artStart, artEnd, found := loc.FindFirst(start, memEnd)

		var end uint64
		if found {
			end = artStart
			next = artEnd
		} else {
			end = memEnd
			next = 0
		}

		if end > start && (end-start) > (maxEnd-maxStart) {
			maxStart, maxEnd = start, end
		}

		if next == 0 {
			break
		}
	}

	if rounded, ok := hostarch.Addr(maxStart).RoundUp(); ok {
		maxStart = uint64(rounded)
	}
	maxEnd = uint64(hostarch.Addr(maxEnd).RoundDown())

	if maxStart >= maxEnd {
		log.Panicf(logger, panicSetup)
	}

	return &Heap{start: maxStart, end: maxEnd, cur: maxEnd, dir: TopDown, logger: logger}
}

// NewHypervisor builds the bottom-up variant used when the kernel is
// running under a hypervisor that has only mapped the page-table frames it
// handed the kernel at boot: the heap starts three pages past the end of
// those frames and grows upward, per biosmem_xen_bootstrap's documented constraint that
// only the first ~512KiB is mapped at this point.
func NewHypervisor(ptBase uint64, nrPTFrames uint64, nrPages uint64, directMapLimit uint64, logger log.Logger) *Heap {
	start := ptBase + (nrPTFrames+3)*hostarch.PageSize
	end := hostarch.Ptoa(nrPages)
	if directMapLimit != 0 && end > directMapLimit {
		end = directMapLimit
	}
	return &Heap{start: start, end: end, cur: start, dir: BottomUp, logger: logger}
}

// Alloc returns the physical address of nrPages freshly bump-allocated
// pages, or panics with a fixed message if the heap is exhausted (§7
// boot-tier failure). Mirrors biosmem_bootalloc.
func (h *Heap) Alloc(nrPages uint64) uint64 {
	size := hostarch.Ptoa(nrPages)
	if size == 0 {
		log.Panicf(h.logger, panicInval)
	}

	var addr uint64
	switch h.dir {
	case BottomUp:
		addr = h.cur
		if addr < h.start || addr+size > h.end {
			log.Panicf(h.logger, panicNoMem)
		}
		h.cur += size
	default: // TopDown
		addr = h.cur - size
		if addr < h.start || addr > h.cur {
			log.Panicf(h.logger, panicNoMem)
		}
		h.cur = addr
	}
	return addr
}

// Bounds returns the heap's current [start, end) extent, start being the
// lowest address it will ever allocate and end the highest, regardless of
// direction.
func (h *Heap) Bounds() (start, end uint64) { return h.start, h.end }
