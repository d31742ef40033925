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
	"testing"

	"github.com/nabijaczleweli/gnumach/internal/hostarch"
)

// newTestSegment builds a segment with nrPages contiguous RESERVED, unlisted
// descriptors starting at physical address 0, with no per-CPU caches — the
// buddy core tests below exercise segment methods directly.
func newTestSegment(nrPages int) *segment {
	pages := make([]Page, nrPages)
	for i := range pages {
		pages[i].addr = uint64(i) * hostarch.PageSize
		pages[i].segIndex = 0
		pages[i].typ = Reserved
		pages[i].setUnlisted()
	}
	return &segment{start: 0, end: uint64(nrPages) * hostarch.PageSize, pages: pages}
}

// Property: freeing every page of a power-of-two-sized segment, in any
// order, must fully merge into a single top-order free block (merge
// completeness).
func TestFreeToBuddyMergesFullyInOrder(t *testing.T) {
	s := newTestSegment(8)
	for i := range s.pages {
		s.freeToBuddy(&s.pages[i], 0)
	}

	if got := s.nrFreePages.Load(); got != 8 {
		t.Fatalf("nrFreePages = %d, want 8", got)
	}
	if got := s.freeListLen(3); got != 1 {
		t.Fatalf("freeListLen(3) = %d, want 1 (fully merged block)", got)
	}
	for order := uint(0); order < 3; order++ {
		if got := s.freeListLen(order); got != 0 {
			t.Errorf("freeListLen(%d) = %d, want 0", order, got)
		}
	}
}

func TestFreeToBuddyMergesOutOfOrder(t *testing.T) {
	s := newTestSegment(8)
	order := []int{5, 2, 7, 0, 3, 6, 1, 4}
	for _, i := range order {
		s.freeToBuddy(&s.pages[i], 0)
	}

	if got := s.freeListLen(3); got != 1 {
		t.Fatalf("freeListLen(3) = %d, want 1 regardless of free order", got)
	}
	if got := s.nrFreePages.Load(); got != 8 {
		t.Fatalf("nrFreePages = %d, want 8", got)
	}
}

// Property: an allocated block never overlaps another live allocation, and
// round-tripping alloc/free returns the accounting to its starting state.
func TestAllocFromBuddyRoundTrip(t *testing.T) {
	s := newTestSegment(8)
	for i := range s.pages {
		s.freeToBuddy(&s.pages[i], 0)
	}

	page := s.allocFromBuddy(3)
	if page == nil {
		t.Fatal("allocFromBuddy(3) = nil, want a page")
	}
	if page.Addr() != 0 {
		t.Errorf("allocFromBuddy(3).Addr() = %#x, want 0", page.Addr())
	}
	if got := s.nrFreePages.Load(); got != 0 {
		t.Fatalf("nrFreePages after full alloc = %d, want 0", got)
	}
	if got := s.freeListLen(3); got != 0 {
		t.Fatalf("freeListLen(3) after alloc = %d, want 0", got)
	}

	s.freeToBuddy(page, 3)
	if got := s.nrFreePages.Load(); got != 8 {
		t.Fatalf("nrFreePages after free-back = %d, want 8", got)
	}
	if got := s.freeListLen(3); got != 1 {
		t.Fatalf("freeListLen(3) after free-back = %d, want 1", got)
	}
}

// Property: allocating a smaller order than the only available free block
// splits it, and every resulting block is order-aligned.
func TestAllocFromBuddySplitsAndAligns(t *testing.T) {
	s := newTestSegment(8)
	for i := range s.pages {
		s.freeToBuddy(&s.pages[i], 0)
	}

	page := s.allocFromBuddy(0)
	if page == nil {
		t.Fatal("allocFromBuddy(0) = nil")
	}
	if !hostarch.Addr(page.Addr()).AlignedOrder(0) {
		t.Errorf("page.Addr() = %#x not order-0 aligned", page.Addr())
	}

	// order 3's list is now empty (it got split); some lower order should
	// hold the remaining 7 pages in total.
	if got := s.freeListLen(3); got != 0 {
		t.Errorf("freeListLen(3) = %d, want 0 after split", got)
	}
	total := 0
	for order := uint(0); order < MaxOrder; order++ {
		total += s.freeListLen(order) << order
	}
	if total != 7 {
		t.Errorf("remaining free pages = %d, want 7", total)
	}
	if got := s.nrFreePages.Load(); got != 7 {
		t.Errorf("nrFreePages = %d, want 7", got)
	}
}

func TestAllocFromBuddyReturnsNilWhenExhausted(t *testing.T) {
	s := newTestSegment(2)
	s.freeToBuddy(&s.pages[0], 0)
	s.freeToBuddy(&s.pages[1], 0)

	if page := s.allocFromBuddy(2); page != nil {
		t.Errorf("allocFromBuddy(2) = %v, want nil (only 2 pages exist)", page)
	}
}

func TestPageIndexAndContains(t *testing.T) {
	s := newTestSegment(4)
	if !s.contains(0) || !s.contains(3*hostarch.PageSize) {
		t.Error("contains() false for in-range addresses")
	}
	if s.contains(4 * hostarch.PageSize) {
		t.Error("contains() true for end address (exclusive bound)")
	}
	if s.pageIndex(2*hostarch.PageSize) != 2 {
		t.Errorf("pageIndex = %d, want 2", s.pageIndex(2*hostarch.PageSize))
	}
}
