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

package pgalloc

import (
	"unsafe"

	"github.com/nabijaczleweli/gnumach/internal/hostarch"
	"github.com/nabijaczleweli/gnumach/internal/log"
	"github.com/nabijaczleweli/gnumach/bootmem"
	"github.com/nabijaczleweli/gnumach/memmap"
)

const panicNoSeg = "pgalloc: no physical memory loaded"

// ClassLimits gives the upper physical-address bound of each
// addressability class, ascending: DMA < DMA32 < DirectMap <= Highmem. A
// zero DMA, DMA32, or DirectMap means that class doesn't exist on this
// machine and is skipped; a zero Highmem means "use the top of normalized
// memory" instead, since it is the only class without a fixed constant.
type ClassLimits struct {
	DMA       uint64
	DMA32     uint64
	DirectMap uint64
	Highmem   uint64
}

// segPlan is one planned (possibly elided) segment, computed from the
// normalized firmware map before any descriptors exist (§4.D).
type segPlan struct {
	class      Selector
	start, end uint64
}

// Bootstrap drives the pre-VM sequence: normalize the firmware map, plan
// segments, and carve the bump heap. It implements the bootstrap API of
// §6: bootstrap(raw_firmware_info) / bootalloc / directmap_size / setup /
// free_usable.
type Bootstrap struct {
	mmap   memmap.Map
	loc    *memmap.Locator
	heap   *bootmem.Heap
	plans  []segPlan
	ncpu   int
	logger log.Logger
}

// NewBootstrap normalizes raw into a Map (component A), builds the boot
// artifact locator (component B), plans addressability segments
// (component D), and carves the bootstrap bump heap (component C).
//
// biosMemEnd and memUpper delimit the range the bump heap is searched in,
// exactly as BIOSMEM_END/mbi->mem_upper do in biosmem_setup_allocator.
func NewBootstrap(raw []memmap.Entry, artifacts []memmap.Artifact, biosMemEnd, memUpper uint64, limits ClassLimits, ncpu int, logger log.Logger) (*Bootstrap, error) {
	m, err := memmap.Build(raw)
	if err != nil {
		return nil, err
	}

	loc := memmap.NewLocator(artifacts...)

	classLimits := []struct {
		sel   Selector
		limit uint64
	}{
		{DMA, limits.DMA},
		{DMA32, limits.DMA32},
		{DIRECTMAP, limits.DirectMap},
		{HIGHMEM, limits.Highmem},
	}

	var plans []segPlan
	prev := uint64(0)
	for _, cl := range classLimits {
		limit := cl.limit
		if limit == 0 {
			if cl.sel == HIGHMEM {
				// Highmem's limit is "the rest of memory"; it is the only
				// class without a fixed machine constant in front of it.
				limit = ^uint64(0)
			} else {
				// A zero limit means this class doesn't apply on this
				// machine (e.g. no DMA32 window); skip it entirely rather
				// than treating it as unbounded, which would make it
				// swallow every other class.
				continue
			}
		}
		if limit <= prev {
			continue
		}
		availStart, availEnd, ok := m.FindAvail(prev, limit)
		if ok {
			plans = append(plans, segPlan{class: cl.sel, start: availStart, end: availEnd})
		}
		prev = limit
	}

	if len(plans) == 0 {
		log.Panicf(logger, panicNoSeg)
	}

	heap := bootmem.New(loc, biosMemEnd, memUpper, limits.DirectMap, logger)

	return &Bootstrap{mmap: m, loc: loc, heap: heap, plans: plans, ncpu: ncpu, logger: logger}, nil
}

// BootAlloc pre-VM allocates nrPages page-aligned pages, panicking (via
// logger) if the bump heap is exhausted (§6, §7).
func (b *Bootstrap) BootAlloc(nrPages uint64) uint64 {
	return b.heap.Alloc(nrPages)
}

// DirectMapSize returns the upper bound of memory directly mappable by
// the kernel: the end of the highest-numbered loaded segment at or below
// DIRECTMAP (§6).
func (b *Bootstrap) DirectMapSize() uint64 {
	var end uint64
	for _, p := range b.plans {
		if p.class <= DIRECTMAP {
			end = p.end
		}
	}
	return end
}

// Setup builds the page descriptor table (component E) by stealing memory
// from the bump heap, initializes every descriptor as RESERVED, tags the
// table's own descriptors TABLE, and constructs the steady-state
// Allocator with one loaded segment per planned class.
func (b *Bootstrap) Setup() *Allocator {
	var totalPages uint64
	for _, p := range b.plans {
		totalPages += hostarch.Atop(p.end - p.start)
	}

	descSize := unsafe.Sizeof(Page{})
	tableBytes, _ := hostarch.Addr(totalPages * uint64(descSize)).RoundUp()
	tablePages := hostarch.Atop(uint64(tableBytes))
	tablePA := b.heap.Alloc(tablePages)
	tableEnd := tablePA + uint64(tableBytes)

	descriptors := make([]Page, totalPages)

	a := &Allocator{
		descriptors: descriptors,
		logger:      b.logger,
		ncpu:        b.ncpu,
	}

	offset := uint64(0)
	for i, p := range b.plans {
		nrPages := hostarch.Atop(p.end - p.start)
		segPages := descriptors[offset : offset+nrPages]
		for j := range segPages {
			addr := p.start + uint64(j)*hostarch.PageSize
			segPages[j].addr = addr
			segPages[j].segIndex = i
			segPages[j].typ = Reserved
			segPages[j].setUnlisted()
			if addr >= tablePA && addr < tableEnd {
				segPages[j].typ = Table
			}
		}

		s := &segment{
			index:  i,
			start:  p.start,
			end:    p.end,
			pages:  segPages,
			cpuPools: make([]cpuCache, b.ncpu),
		}
		poolSize := CachePoolSize(nrPages)
		for c := range s.cpuPools {
			s.cpuPools[c] = newCPUCache(poolSize)
		}
		a.segs = append(a.segs, s)
		a.segNames = append(a.segNames, b.plans[i].class)

		offset += nrPages
	}

	a.buildSelectorTable()
	a.mmap = b.mmap
	a.tableStart, a.tableEnd = tablePA, tableEnd
	return a
}
