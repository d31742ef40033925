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
	"fmt"
	"strings"

	"github.com/nabijaczleweli/gnumach/internal/hostarch"
	"github.com/nabijaczleweli/gnumach/internal/log"
	isync "github.com/nabijaczleweli/gnumach/internal/sync"
	"github.com/nabijaczleweli/gnumach/memmap"
	"golang.org/x/time/rate"
)

const panicPmap = "pgalloc: unable to allocate pmap page"

// Allocator is the steady-state façade (component H, §4.H, §6): it
// resolves a selector to a starting segment, dispatches to the per-CPU
// cache or buddy core, and falls back across more restrictive segments on
// exhaustion.
type Allocator struct {
	descriptors []Page
	segs        []*segment
	segNames    []Selector
	selToSeg    [numSelectors]int

	mmap             memmap.Map
	tableStart, tableEnd uint64

	ncpu      int
	cpuNumber func() int

	logger log.Logger
	warn   *log.RateLimited

	ready bool
}

// SetCPUNumber installs the cpu_number() hook (§6) the per-CPU fast path
// uses to pick a cache while pinned. Must be called before the first
// order-0 Alloc/Free if the default (always CPU 0) isn't appropriate.
func (a *Allocator) SetCPUNumber(f func() int) {
	a.cpuNumber = f
}

func (a *Allocator) cpu() int {
	if a.cpuNumber != nil {
		n := a.cpuNumber()
		if n >= 0 && n < a.ncpu {
			return n
		}
	}
	return 0
}

func (a *Allocator) buildSelectorTable() {
	for sel := Selector(0); sel < numSelectors; sel++ {
		best := -1
		for i, class := range a.segNames {
			if class <= sel {
				best = i
			}
		}
		if best == -1 {
			best = 0
		}
		a.selToSeg[sel] = best
	}
}

// Ready reports whether the allocator has completed bootstrap
// (FreeUsable has run) and is safe to serve steady-state requests (§6).
func (a *Allocator) Ready() bool { return a.ready }

// FreeUsable walks every AVAILABLE range of the normalized firmware map
// and, for every sub-range not occupied by a boot artifact or by the
// descriptor table, calls Manage on each contained descriptor — the last
// bootstrap step, after which Ready reports true (§6).
func (a *Allocator) FreeUsable(artifacts []memmap.Artifact) {
	loc := memmap.NewLocator(artifacts...)

	for _, seg := range a.segs {
		mask := loc.ArtifactMask(seg.start, seg.end)

		for _, e := range a.mmap.Entries() {
			if e.Type != memmap.Available {
				continue
			}
			lo, hi := e.Base, e.End()
			if lo < seg.start {
				lo = seg.start
			}
			if hi > seg.end {
				hi = seg.end
			}
			if lo >= hi {
				continue
			}

			pageIdx := uint32(hostarch.Atop(lo - seg.start))
			for addr := lo; addr < hi; addr += hostarch.PageSize {
				if a.withinTable(addr) || mask.IsSet(pageIdx) {
					pageIdx++
					continue
				}
				pageIdx++
				if page := seg.pageAt(addr); page != nil {
					a.manageLocked(seg, page)
				}
			}
		}
	}

	a.ready = true
}

func (a *Allocator) withinTable(addr uint64) bool {
	return addr >= a.tableStart && addr < a.tableEnd
}

// Manage transitions a RESERVED descriptor to FREE and inserts it into its
// segment's buddy core (§3 Lifecycle, §6).
func (a *Allocator) Manage(page *Page) {
	seg := a.segs[page.segIndex]
	seg.lock.Lock()
	a.manageLocked(seg, page)
	seg.lock.Unlock()
}

func (a *Allocator) manageLocked(seg *segment, page *Page) {
	if page.typ != Reserved {
		return
	}
	page.typ = Free
	seg.freeToBuddy(page, 0)
}

// Alloc allocates a 2^order-page block, preferring selector's segment and
// falling back across more restrictive segments on exhaustion (§4.H).
// Returns nil, false if every reachable segment is exhausted; if typ is
// Pmap, exhaustion panics instead (page-table allocation cannot recover,
// §4.H, §7).
func (a *Allocator) Alloc(order uint, selector Selector, typ Type) (*Page, bool) {
	start := a.selToSeg[selector]

	for i := start; i >= 0; i-- {
		seg := a.segs[i]
		page := a.allocFromSeg(seg, order)
		if page != nil {
			a.setTypeLocked(page, order, typ)
			return page, true
		}
	}

	if typ == Pmap {
		log.Panicf(a.logger, panicPmap)
	}
	if a.warn != nil {
		a.warn.Warningf("alloc: no memory for order=%d selector=%s type=%s", order, selector, typ)
	}
	return nil, false
}

func (a *Allocator) allocFromSeg(seg *segment, order uint) *Page {
	if order != 0 {
		seg.lock.Lock()
		defer seg.lock.Unlock()
		return seg.allocFromBuddy(order)
	}

	pin := isync.Pin(a.cpu)
	defer pin.Unpin()
	cache := &seg.cpuPools[pin.CPU()]

	cache.lock.Lock()
	defer cache.lock.Unlock()

	if cache.nrPages == 0 {
		if cache.fill(seg, cache.transferSize) == 0 {
			return nil
		}
	}
	return cache.pop()
}

// Free returns a 2^order-page block to its segment: retags it FREE then
// releases it through the per-CPU cache (order 0) or directly through the
// buddy core (§4.H).
func (a *Allocator) Free(page *Page, order uint) {
	seg := a.segs[page.segIndex]
	a.setTypeLocked(page, order, Free)

	if order != 0 {
		seg.lock.Lock()
		seg.freeToBuddy(page, order)
		seg.lock.Unlock()
		return
	}

	pin := isync.Pin(a.cpu)
	defer pin.Unpin()
	cache := &seg.cpuPools[pin.CPU()]

	cache.lock.Lock()
	defer cache.lock.Unlock()

	if cache.nrPages == cache.size {
		cache.drain(seg, cache.transferSize)
	}
	cache.push(page)
}

// Lookup returns the descriptor owning physical address pa, or nil if pa
// is not within any loaded segment (§4.H, O(segments)).
func (a *Allocator) Lookup(pa uint64) *Page {
	for _, seg := range a.segs {
		if seg.contains(pa) {
			return seg.pageAt(pa)
		}
	}
	return nil
}

// SetType retags the 2^order descriptors headed by page with typ (§6).
func (a *Allocator) SetType(page *Page, order uint, typ Type) {
	a.setTypeLocked(page, order, typ)
}

func (a *Allocator) setTypeLocked(page *Page, order uint, typ Type) {
	seg := a.segs[page.segIndex]
	n := uint64(1) << order
	idx := seg.pageIndex(page.addr)
	for i := uint64(0); i < n; i++ {
		seg.pages[idx+int(i)].typ = typ
	}
}

// SegName returns the human-readable name of a loaded segment index (§6).
func (a *Allocator) SegName(index int) string {
	if index < 0 || index >= len(a.segNames) {
		return "UNKNOWN"
	}
	return a.segNames[index].String()
}

// InfoAll returns a human-readable per-segment capacity/free-count dump
// (§6), grounded on vm_page_info_all.
func (a *Allocator) InfoAll() string {
	var b strings.Builder
	for i, seg := range a.segs {
		pages := uint64(len(seg.pages))
		free := seg.nrFreePages.Load()
		fmt.Fprintf(&b, "pgalloc: %s: pages: %d (%dM), free: %d (%dM)\n",
			a.SegName(i), pages, pages>>(20-hostarch.PageShift), free, free>>(20-hostarch.PageShift))
	}
	return b.String()
}

// MemSize returns the total byte capacity of segments up to DIRECTMAP;
// HIGHMEM is excluded from "directly usable" totals, a deliberate
// accounting decision carried from vm_page_mem_size (§9 known quirk).
func (a *Allocator) MemSize() uint64 {
	var total uint64
	for i, seg := range a.segs {
		if a.segNames[i] > DIRECTMAP {
			continue
		}
		total += seg.end - seg.start
	}
	return total
}

// MemFree returns the total free page count of segments up to DIRECTMAP,
// mirroring vm_page_mem_free's identical HIGHMEM exclusion (§9). Pages
// held in per-CPU caches count as free; each cache's count is read under
// that cache's lock.
func (a *Allocator) MemFree() uint64 {
	var total uint64
	for i, seg := range a.segs {
		if a.segNames[i] > DIRECTMAP {
			continue
		}
		total += seg.nrFreePages.Load()
		for c := range seg.cpuPools {
			cache := &seg.cpuPools[c]
			cache.lock.Lock()
			total += uint64(cache.nrPages)
			cache.lock.Unlock()
		}
	}
	return total
}

// EnableRateLimitedWarnings throttles repeated runtime OOM-fallback
// warnings to at most r per second (burst allowance burst), as
// golang.org/x/time/rate is used for in pkg/log/rate_limited.go.
func (a *Allocator) EnableRateLimitedWarnings(r rate.Limit, burst int) {
	a.warn = log.NewRateLimited(a.logger, r, burst)
}
