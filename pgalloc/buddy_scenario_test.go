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

import "testing"

// S2: allocating order 3 from a fresh 8192-page segment splits the first
// order-10 (4MiB) block; freeing it back merges it fully, leaving the
// segment's free lists exactly as they were for that block (one order-10
// entry, nothing at any lower order). Free lists are LIFO, so the pages are
// released from the top down: the block at address 0 is then the last one
// inserted and heads the order-10 list.
func TestScenarioS2SplitThenFullyReassemble(t *testing.T) {
	s := newTestSegment(8192)
	for i := len(s.pages) - 1; i >= 0; i-- {
		s.freeToBuddy(&s.pages[i], 0)
	}
	if got := s.freeListLen(10); got != 8 {
		t.Fatalf("freeListLen(10) before alloc = %d, want 8 (8192/1024)", got)
	}

	page := s.allocFromBuddy(3)
	if page == nil {
		t.Fatal("allocFromBuddy(3) = nil")
	}
	if page.Addr() != 0 {
		t.Fatalf("allocFromBuddy(3).Addr() = %#x, want 0 (head of the first order-10 block)", page.Addr())
	}
	if got := s.freeListLen(10); got != 7 {
		t.Errorf("freeListLen(10) after split = %d, want 7", got)
	}
	for order := uint(3); order < 10; order++ {
		if got := s.freeListLen(order); got != 1 {
			t.Errorf("freeListLen(%d) after split = %d, want 1", order, got)
		}
	}

	s.freeToBuddy(page, 3)
	if got := s.freeListLen(10); got != 8 {
		t.Errorf("freeListLen(10) after free-back = %d, want 8 (fully reassembled)", got)
	}
	for order := uint(0); order < 10; order++ {
		if got := s.freeListLen(order); got != 0 {
			t.Errorf("freeListLen(%d) after free-back = %d, want 0", order, got)
		}
	}
}

// S6: allocate 16 consecutive order-0 pages from a fresh segment, free them
// in reverse order; the last free must complete a merge chain all the way
// to a single order-4 (16-page) block, with every lower list empty.
func TestScenarioS6MergeChainOnReverseFree(t *testing.T) {
	s := newTestSegment(16)
	for i := range s.pages {
		s.freeToBuddy(&s.pages[i], 0)
	}

	pages := make([]*Page, 16)
	for i := range pages {
		pages[i] = s.allocFromBuddy(0)
		if pages[i] == nil {
			t.Fatalf("allocFromBuddy(0) #%d = nil", i)
		}
	}
	if got := s.nrFreePages.Load(); got != 0 {
		t.Fatalf("nrFreePages after 16 allocs = %d, want 0", got)
	}

	for i := 15; i >= 0; i-- {
		s.freeToBuddy(pages[i], 0)
	}

	if got := s.freeListLen(4); got != 1 {
		t.Fatalf("freeListLen(4) = %d, want 1", got)
	}
	for order := uint(0); order < 4; order++ {
		if got := s.freeListLen(order); got != 0 {
			t.Errorf("freeListLen(%d) = %d, want 0", order, got)
		}
	}
	if got := s.nrFreePages.Load(); got != 16 {
		t.Errorf("nrFreePages = %d, want 16", got)
	}
}
