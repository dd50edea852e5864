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

// Package overlay implements the buddy allocator's free-page metadata
// overlay (spec.md §4.1): a single forward link, next_free, stored at
// the base address of a free page's leader. Reading or writing this
// overlay for a page the allocator has handed to a caller is a
// memory-safety violation — callers of this package (the buddy engine)
// are responsible for only ever touching pages they know to be free.
package overlay

import (
	"unsafe"

	"github.com/gopheros/mm/pfn"
)

// Write stores next as the next_free link of the free block leader p.
func Write(idx pfn.Index, p pfn.Pfn, next pfn.Pfn) {
	*linkPtr(idx, p) = uint64(next)
}

// Read returns the next_free link currently stored at p.
func Read(idx pfn.Index, p pfn.Pfn) pfn.Pfn {
	return pfn.Pfn(*linkPtr(idx, p))
}

// Clear resets p's next_free link to the empty sentinel. Used when a
// block leaves a free list so a stale link can never be mistaken for
// a live one.
func Clear(idx pfn.Index, p pfn.Pfn) {
	Write(idx, p, pfn.None)
}

// linkPtr returns a pointer to the next_free word at the base of page
// p. Panics if p is not a page the Index knows about — that indicates
// a caller bug (an out-of-range or never-donated PFN), not a runtime
// condition to recover from.
func linkPtr(idx pfn.Index, p pfn.Pfn) *uint64 {
	desc, ok := idx.Describe(p)
	if !ok {
		panic("overlay: pfn not managed by index")
	}
	return (*uint64)(unsafe.Pointer(desc.BaseAddress))
}
