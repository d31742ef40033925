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
	"github.com/nabijaczleweli/gnumach/internal/atomicbitops"
	"github.com/nabijaczleweli/gnumach/internal/hostarch"
	"github.com/nabijaczleweli/gnumach/internal/ilist"
	isync "github.com/nabijaczleweli/gnumach/internal/sync"
)

// Selector names an addressability class a caller requests (§6).
type Selector int

const (
	DMA Selector = iota
	DMA32
	DIRECTMAP
	HIGHMEM

	numSelectors
)

func (s Selector) String() string {
	switch s {
	case DMA:
		return "DMA"
	case DMA32:
		return "DMA32"
	case DIRECTMAP:
		return "DIRECTMAP"
	case HIGHMEM:
		return "HIGHMEM"
	default:
		return "UNKNOWN"
	}
}

// segment is one addressability-class segment (component F's backing
// store): a contiguous physical range, its descriptor subrange, one lock,
// MaxOrder free lists, a free-page counter, and one per-CPU cache per
// logical CPU (§3).
type segment struct {
	index      int
	start, end uint64
	// pages is the descriptor subrange owned by this segment, indexed by
	// (addr-start)/PageSize.
	pages []Page

	lock         isync.SpinLock
	freeLists    [MaxOrder]ilist.List
	nrFreePages  atomicbitops.Uint64
	cpuPools     []cpuCache
}

func (s *segment) pageIndex(addr uint64) int {
	return int((addr - s.start) / hostarch.PageSize)
}

func (s *segment) pageAt(addr uint64) *Page {
	i := s.pageIndex(addr)
	if i < 0 || i >= len(s.pages) {
		return nil
	}
	return &s.pages[i]
}

func (s *segment) contains(addr uint64) bool {
	return addr >= s.start && addr < s.end
}

// allocFromBuddy implements §4.F's allocation algorithm: scan free lists
// order..MaxOrder-1 for the first non-empty one, pop its head, then split
// down to the requested order. Caller must hold s.lock.
func (s *segment) allocFromBuddy(order uint) *Page {
	var j uint
	for j = order; j < MaxOrder; j++ {
		if !s.freeLists[j].Empty() {
			break
		}
	}
	if j == MaxOrder {
		return nil
	}

	page := s.freeLists[j].Front().(*Page)
	s.freeLists[j].Remove(page)
	page.setUnlisted()

	for j > order {
		j--
		buddyAddr := page.addr ^ (hostarch.PageSize << j)
		buddy := s.pageAt(buddyAddr)
		buddy.order = j
		s.freeLists[j].PushFront(buddy)
	}

	s.nrFreePages.Add(-int64(uint64(1) << order))
	return page
}

// freeToBuddy implements §4.F's free algorithm: repeatedly try to merge
// with the buddy block at the current order, climbing orders on every
// successful merge, then insert the final (possibly merged) block at the
// head of its free list (LIFO, for cache reuse of recently freed pages).
// Caller must hold s.lock.
func (s *segment) freeToBuddy(page *Page, order uint) {
	addr := page.addr
	nrPages := uint64(1) << order

	for order < MaxOrder-1 {
		buddyAddr := addr ^ (hostarch.PageSize << order)
		if !s.contains(buddyAddr) {
			break
		}
		buddy := s.pageAt(buddyAddr)
		if buddy.order != order {
			break
		}

		s.freeLists[order].Remove(buddy)
		buddy.setUnlisted()

		addr = uint64(hostarch.Addr(addr).RoundDownOrder(order + 1))
		order++
	}

	page = s.pageAt(addr)
	page.order = order
	s.freeLists[order].PushFront(page)
	s.nrFreePages.Add(int64(nrPages))
}

// freeListLen reports the number of free blocks at the given order, for
// tests.
func (s *segment) freeListLen(order uint) int {
	return s.freeLists[order].Len()
}
