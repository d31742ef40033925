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

// Package pgalloc implements the steady-state physical page allocator:
// the segment planner, page descriptor table, binary-buddy core, per-CPU
// order-0 caches, and the allocator façade (§4.D-§4.H, §6).
//
// Grounded on vm/vm_page.c.
package pgalloc

import "github.com/nabijaczleweli/gnumach/internal/ilist"

// MaxOrder bounds free-block orders to [0, MaxOrder): blocks up to
// 2^(MaxOrder-1) pages. 11 gives blocks up to 4MiB for 4KiB pages (§3).
const MaxOrder = 11

// orderUnlisted is the sentinel order carried by a page that is not the
// head of a free block: either allocated, reserved, or a non-head page
// within a larger free block.
const orderUnlisted = ^uint(0)

// Type is the caller-assigned tag carried by an allocated or reserved
// page (§3).
type Type uint32

const (
	// Free marks a page currently in a free list or per-CPU cache.
	Free Type = iota
	// Reserved marks a page whose descriptor exists but has not yet been
	// released to the buddy allocator via Manage.
	Reserved
	// Table marks a page belonging to the descriptor table itself.
	Table
	// Pmap marks a page handed to the MMU/pmap layer for page tables.
	// Allocation failures for this type are unrecoverable (§4.H, §7).
	Pmap
	// Kernel marks a page used by general kernel data structures.
	Kernel
)

func (t Type) String() string {
	switch t {
	case Free:
		return "FREE"
	case Reserved:
		return "RESERVED"
	case Table:
		return "TABLE"
	case Pmap:
		return "PMAP"
	case Kernel:
		return "KERNEL"
	default:
		return "UNKNOWN"
	}
}

// Page is one page descriptor: one per page of managed RAM (§3). Pages are
// allocated once, in the descriptor table, at bootstrap and are never
// destroyed — only retagged and relinked.
//
// Page embeds ilist.Entry so it can be linked into a segment's free lists
// or a per-CPU cache's list with no further allocation (§9 "Intrusive
// linkage").
type Page struct {
	ilist.Entry

	addr     uint64
	segIndex int
	order    uint
	typ      Type
	private  any
}

// Addr returns the page's physical address.
func (p *Page) Addr() uint64 { return p.addr }

// SegIndex returns the index of the segment that owns this page.
func (p *Page) SegIndex() int { return p.segIndex }

// Type returns the page's current type tag.
func (p *Page) Type() Type { return p.typ }

// Order returns the page's free-block order if it currently heads one,
// or ok=false otherwise (the UNLISTED sentinel of §3).
func (p *Page) Order() (order uint, ok bool) {
	if p.order == orderUnlisted {
		return 0, false
	}
	return p.order, true
}

// Private returns the opaque pointer callers may stash on a page
// descriptor (§3).
func (p *Page) Private() any { return p.private }

// SetPrivate sets the opaque pointer callers may stash on a page
// descriptor.
func (p *Page) SetPrivate(v any) { p.private = v }

func (p *Page) setUnlisted() { p.order = orderUnlisted }
func (p *Page) isListed() bool { return p.order != orderUnlisted }
