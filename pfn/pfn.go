// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pfn defines the page-frame identity that the buddy allocator
// consumes: a dense page-frame number (PFN) and the host-provided
// mapping between a PFN and its physical backing.
//
// The allocator never owns this mapping. A real kernel host would
// implement Index over its own frame tables; everything in this
// module depends on the interface only.
package pfn

import "fmt"

// Pfn is a dense, zero-based index identifying a physical page frame.
// PFNs are contiguous across the region a host donates to the
// allocator via buddy.Allocator.InsertFreePages.
type Pfn uint64

// None is the sentinel empty PFN, used by free-list links and by
// operations that may legitimately find nothing.
const None Pfn = ^Pfn(0)

// PageDescriptor is the opaque per-page record the host exposes for a
// PFN: its base address and the PFN that produced it. Descriptor
// identity is stable for the lifetime of the allocator.
type PageDescriptor struct {
	PFN         Pfn
	BaseAddress uintptr
}

// Index is the read-only pfn <-> descriptor mapping the host provides.
// The allocator consumes Describe to turn a PFN into a writable base
// address (for the free-page overlay and for zeroing) and PageSize for
// zeroing; Lookup goes the other way, from a raw address to its PFN,
// and is not called by the allocator itself.
type Index interface {
	// Describe returns the descriptor for pfn, or ok=false if pfn is
	// outside the managed region.
	Describe(p Pfn) (PageDescriptor, bool)

	// Lookup returns the PFN that owns addr, or ok=false if addr does
	// not fall inside any page this Index manages.
	Lookup(addr uintptr) (Pfn, bool)

	// PageSize returns the byte size of a single page (a power of two).
	PageSize() int
}

// ArrayIndex is an in-memory Index backed by a single contiguous []byte
// arena, standing in for the real PFN<->physical-address mapping a
// kernel host would supply. PFN 0 is the first page of the arena.
type ArrayIndex struct {
	arena    []byte
	pageSize int
}

// NewArrayIndex builds an ArrayIndex over arena, split into pages of
// pageSize bytes. pageSize must be a power of two and len(arena) must
// be a multiple of it.
func NewArrayIndex(arena []byte, pageSize int) (*ArrayIndex, error) {
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("pfn: pageSize must be a power of two, got %d", pageSize)
	}
	if len(arena) == 0 || len(arena)%pageSize != 0 {
		return nil, fmt.Errorf("pfn: arena size must be a non-zero multiple of pageSize %d, got %d", pageSize, len(arena))
	}
	return &ArrayIndex{arena: arena, pageSize: pageSize}, nil
}

// NumPages returns the total number of page frames in the arena.
func (a *ArrayIndex) NumPages() int { return len(a.arena) / a.pageSize }

// PageSize implements Index.
func (a *ArrayIndex) PageSize() int { return a.pageSize }

// Describe implements Index.
func (a *ArrayIndex) Describe(p Pfn) (PageDescriptor, bool) {
	off := int(p) * a.pageSize
	if p == None || off < 0 || off >= len(a.arena) {
		return PageDescriptor{}, false
	}
	return PageDescriptor{PFN: p, BaseAddress: a.arenaBase() + uintptr(off)}, true
}

// Lookup implements Index.
func (a *ArrayIndex) Lookup(addr uintptr) (Pfn, bool) {
	base := a.arenaBase()
	if addr < base {
		return None, false
	}
	off := addr - base
	if int(off) >= len(a.arena) {
		return None, false
	}
	return Pfn(int(off) / a.pageSize), true
}

// Page returns the raw bytes backing frame p, for tests that want to
// inspect or corrupt page contents directly (e.g. the ZERO-flag
// scenario in spec.md §8.4).
func (a *ArrayIndex) Page(p Pfn) []byte {
	off := int(p) * a.pageSize
	return a.arena[off : off+a.pageSize]
}
