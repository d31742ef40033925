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
	"github.com/nabijaczleweli/gnumach/internal/ilist"
	isync "github.com/nabijaczleweli/gnumach/internal/sync"
)

// cachePoolRatio is the divisor applied to a segment's page count to size
// its per-CPU caches (§3, §4.G): capacity = ceil(seg_pages / ratio).
const cachePoolRatio = 1024

// cachePoolMaxSize is the clamp applied to the computed capacity.
const cachePoolMaxSize = 128

// cachePoolTransferRatio determines the bulk transfer size: ceil(size/ratio).
const cachePoolTransferRatio = 2

// CachePoolSize computes a per-CPU cache's capacity for a segment holding
// segPages pages, clamped to [1, cachePoolMaxSize]. Exposed so callers can
// predict cache sizing without constructing a segment.
func CachePoolSize(segPages uint64) int {
	size := (segPages + cachePoolRatio - 1) / cachePoolRatio
	if size < 1 {
		size = 1
	} else if size > cachePoolMaxSize {
		size = cachePoolMaxSize
	}
	return int(size)
}

// cpuCache is a per-CPU reservoir of order-0 pages, used to eliminate lock
// contention on the segment lock for the common single-page path (§3,
// §4.G). Only order 0 is cached.
type cpuCache struct {
	lock         isync.SpinLock
	size         int
	transferSize int
	nrPages      int
	pages        ilist.List
}

func newCPUCache(size int) cpuCache {
	return cpuCache{
		size:         size,
		transferSize: (size + cachePoolTransferRatio - 1) / cachePoolTransferRatio,
	}
}

// pop removes and returns the most recently pushed page. Caller must hold
// c.lock and have verified nrPages > 0.
func (c *cpuCache) pop() *Page {
	page := c.pages.Front().(*Page)
	c.pages.Remove(page)
	c.nrPages--
	return page
}

// push inserts page at the head of the cache (LIFO, for cache-warm reuse).
// Caller must hold c.lock and have verified nrPages < size.
func (c *cpuCache) push(page *Page) {
	c.pages.PushFront(page)
	c.nrPages++
}

// fill moves up to n order-0 pages from the segment's buddy core into the
// cache, acquiring and releasing the segment lock once. Returns the
// number actually moved; fewer than n is acceptable (partial fill), and 0
// means the segment itself is out of order-0 memory (§4.G).
func (c *cpuCache) fill(seg *segment, n int) int {
	seg.lock.Lock()
	defer seg.lock.Unlock()

	moved := 0
	for moved < n {
		page := seg.allocFromBuddy(0)
		if page == nil {
			break
		}
		c.push(page)
		moved++
	}
	return moved
}

// drain moves n order-0 pages from the cache back into the segment's
// buddy core, acquiring and releasing the segment lock once (§4.G).
func (c *cpuCache) drain(seg *segment, n int) {
	seg.lock.Lock()
	defer seg.lock.Unlock()

	for i := 0; i < n && c.nrPages > 0; i++ {
		page := c.pop()
		seg.freeToBuddy(page, 0)
	}
}
