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

package memmap

import (
	"github.com/nabijaczleweli/gnumach/internal/bitmap"
	"github.com/nabijaczleweli/gnumach/internal/hostarch"
)

// Artifact is a range of physical memory occupied by a non-reclaimable
// boot object: the kernel image, its command line, the module table, each
// module's image and command line, or a selected ELF section (section
// header table, .shstrtab, .symtab, .strtab). Component B (§4.B).
type Artifact struct {
	Start uint64
	End   uint64
}

// Locator finds the boot artifact closest to a given minimum address,
// without ever treating artifact bytes as available memory. Grounded on
// biosmem_find_boot_data/biosmem_find_boot_data_update.
type Locator struct {
	artifacts []Artifact
}

// NewLocator builds a Locator over the given artifacts. Zero-length
// artifacts (Start == End) are dropped, matching the C source's "string ==
// 0" / "reserved == 0" guards that skip absent command lines.
func NewLocator(artifacts ...Artifact) *Locator {
	l := &Locator{}
	for _, a := range artifacts {
		if a.End > a.Start {
			l.artifacts = append(l.artifacts, a)
		}
	}
	return l
}

// FindFirst returns the boot artifact with the lowest start address in
// [min, max), and that artifact's end address. ok is false if no artifact
// falls in range, matching biosmem_find_boot_data's "return 0" case.
func (l *Locator) FindFirst(min, max uint64) (start, end uint64, ok bool) {
	start = max
	for _, a := range l.artifacts {
		if min <= a.Start && a.Start < start {
			start = a.Start
			end = a.End
			ok = true
		}
	}
	if start == max {
		return 0, 0, false
	}
	return start, end, true
}

// ArtifactMask builds a page-granularity bitmap over [min, max) with one
// bit set per page that falls within any artifact, letting a caller that
// must classify every page in a range (such as free_usable walking a
// segment) do so in O(1) per page instead of re-scanning the artifact list
// for every address.
func (l *Locator) ArtifactMask(min, max uint64) bitmap.Bitmap {
	if max <= min {
		return bitmap.New(0)
	}
	nrPages := hostarch.Atop(max - min)
	b := bitmap.New(uint32(nrPages))
	for _, a := range l.artifacts {
		lo, hi := a.Start, a.End
		if lo < min {
			lo = min
		}
		if hi > max {
			hi = max
		}
		if lo >= hi {
			continue
		}
		startPage := uint32(hostarch.Atop(lo - min))
		endPage := uint32(hostarch.Atop(hi-min-1) + 1)
		b.SetRange(startPage, endPage)
	}
	return b
}
