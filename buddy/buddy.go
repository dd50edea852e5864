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

// Package buddy implements a buddy-system physical page allocator with
// deferred coalescing and an optional per-order recent-free cache.
//
// The allocator manages a contiguous set of page frames identified by
// PFNs (see the pfn package) and hands out blocks whose size is a
// power of two number of pages (2^order pages), for orders 0..LastOrder
// inclusive. It keeps one singly linked, PFN-sorted free list per
// order; the link for a free block's leader page lives inside the
// page itself (see the overlay package) rather than in a side table.
//
// The allocator is not safe for concurrent use: callers must serialize
// access to a single Allocator, exactly as they would around any other
// single-big-lock kernel data structure.
package buddy

import (
	"fmt"
	"io"

	"github.com/gopheros/mm/overlay"
	"github.com/gopheros/mm/pfn"
)

// DefaultLastOrder is the inclusive maximum allocation order used when
// a host doesn't need a different ceiling. At a 4 KiB page size this
// caps single blocks at 4 KiB * 2^16 = 256 MiB.
const DefaultLastOrder = 16

// MaxPendingMerges is the width, in bits, of the deferred-merge bitmap
// kept for each order.
const MaxPendingMerges = 64

// Flag controls AllocatePages behavior.
type Flag uint8

const (
	// FlagNone requests no special handling.
	FlagNone Flag = 0
	// FlagZero instructs the allocator to zero the returned block's
	// bytes before returning it.
	FlagZero Flag = 1 << iota
)

// freeList is one order's singly linked, PFN-sorted chain of free
// blocks. The chain itself lives inside the free pages (see overlay);
// this struct only tracks the head and a count used for bookkeeping.
type freeList struct {
	head  pfn.Pfn
	count uint32
}

// Allocator is a buddy-system physical page allocator.
type Allocator struct {
	idx       pfn.Index
	lastOrder int

	lists   []freeList // lists[order] is the free list head+count for that order
	pending pendingBitmap
	cache   *recentCache

	totalFree uint64
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithLastOrder overrides DefaultLastOrder.
func WithLastOrder(order int) Option {
	return func(a *Allocator) { a.lastOrder = order }
}

// WithRecentFreeCache enables the optional per-order recent-free cache
// described in spec.md §4.6, with the given number of slots per order.
// Disabled (nil cache) unless this option is supplied.
func WithRecentFreeCache(slotsPerOrder int) Option {
	return func(a *Allocator) { a.cache = newRecentCache(a.lastOrder, slotsPerOrder) }
}

// New creates an empty allocator: all free lists empty, the
// deferred-merge bitmap zeroed, total_free == 0. idx supplies the host's
// PFN<->physical-address mapping; it is not owned by the allocator.
func New(idx pfn.Index, opts ...Option) *Allocator {
	a := &Allocator{idx: idx, lastOrder: DefaultLastOrder}
	for _, opt := range opts {
		opt(a)
	}
	a.lists = make([]freeList, a.lastOrder+1)
	a.pending = newPendingBitmap(a.lastOrder)
	return a
}

// TotalFree returns the number of free pages currently tracked by the
// allocator, across every free list and (if enabled) the recent-free
// cache.
func (a *Allocator) TotalFree() uint64 { return a.totalFree }

// LastOrder returns the allocator's inclusive maximum order.
func (a *Allocator) LastOrder() int { return a.lastOrder }

func blockPages(order int) uint64 { return uint64(1) << uint(order) }

func (a *Allocator) checkOrder(order int) {
	if order < 0 || order > a.lastOrder {
		panic(fmt.Sprintf("buddy: order %d out of range [0,%d]", order, a.lastOrder))
	}
}

// AllocatePages implements spec.md §4.6: scan orders order..LastOrder
// for the first non-empty list, split down to the requested order,
// retry once after a cleanup pass if nothing was found, and return the
// empty sentinel on exhaustion.
func (a *Allocator) AllocatePages(order int, flags Flag) (pfn.Pfn, bool) {
	a.checkOrder(order)

	block, ok := a.tryAllocate(order)
	if !ok {
		a.CleanupPendingMerges()
		block, ok = a.tryAllocate(order)
	}
	if !ok {
		return pfn.None, false
	}

	a.totalFree -= blockPages(order)
	if flags&FlagZero != 0 {
		a.zeroBlock(block, order)
	}
	return block, true
}

// tryAllocate performs a single scan-and-split attempt with no
// cleanup pass, consulting the recent-free cache first when present.
func (a *Allocator) tryAllocate(order int) (pfn.Pfn, bool) {
	if a.cache != nil {
		if block, ok := a.cache.take(order); ok {
			return block, true
		}
	}

	k := order
	for ; k <= a.lastOrder; k++ {
		if a.lists[k].count > 0 {
			break
		}
	}
	if k > a.lastOrder {
		return pfn.None, false
	}

	block := a.lists[k].head
	a.removeFreeBlock(k, block)
	for k > order {
		k--
		high := block + pfn.Pfn(blockPages(k))
		a.insertFreeBlock(k, high)
	}
	return block, true
}

func (a *Allocator) zeroBlock(block pfn.Pfn, order int) {
	n := int(blockPages(order))
	for i := 0; i < n; i++ {
		desc, ok := a.idx.Describe(block + pfn.Pfn(i))
		if !ok {
			panic("buddy: block page not managed by index")
		}
		zeroMem(desc.BaseAddress, a.idx.PageSize())
	}
}

// FreePages implements spec.md §4.5: insert the block, opportunistically
// record or consume a deferred-merge hint for its buddy, and account the
// freed pages in total_free. order must match the order the block was
// allocated with (or, for a donated region, the order it is aligned to
// and sized for).
func (a *Allocator) FreePages(block pfn.Pfn, order int) {
	a.checkOrder(order)
	if uint64(block)%blockPages(order) != 0 {
		panic(fmt.Sprintf("buddy: free of misaligned pfn %d at order %d", block, order))
	}
	if a.isFree(order, block) {
		panic(fmt.Sprintf("buddy: double free of pfn %d at order %d", block, order))
	}

	if a.cache != nil && a.cache.offer(order, block) {
		a.totalFree += blockPages(order)
		return
	}

	a.insertFreeBlock(order, block)

	if order < a.lastOrder {
		buddy := buddyPfn(order, block)
		if alignedTo(buddy, order) && a.isBuddyFree(order, buddy) {
			lower := block
			if buddy < lower {
				lower = buddy
			}
			if a.pending.Test(order, lower) {
				a.pending.Clear(order, lower)
				a.MergeBuddies(order, block)
			} else {
				a.pending.Set(order, lower)
			}
		}
	}

	a.totalFree += blockPages(order)
}

// isFree reports whether block is already tracked as free at order,
// either in the recent-free cache or in free_list[order]. FreePages
// consults this before accepting a block anywhere (cache included) so
// a double free is always caught, not just on the free-list path.
func (a *Allocator) isFree(order int, block pfn.Pfn) bool {
	if a.cache != nil && a.cache.contains(order, block) {
		return true
	}
	return a.isBuddyFree(order, block)
}

// InsertFreePages implements spec.md §4.7: donates an arbitrary
// contiguous range to the allocator by repeatedly peeling off the
// largest aligned, in-budget power-of-two block.
func (a *Allocator) InsertFreePages(start pfn.Pfn, count uint64) {
	if count == 0 {
		panic("buddy: insert_free_pages with zero count")
	}

	for count > 0 {
		order := a.largestOrderFor(start, count)
		a.insertFreeBlock(order, start)
		a.totalFree += blockPages(order)
		start += pfn.Pfn(blockPages(order))
		count -= blockPages(order)
	}
}

// largestOrderFor picks the largest order such that start is
// 2^order-aligned and 2^order <= remaining, capped at lastOrder.
func (a *Allocator) largestOrderFor(start pfn.Pfn, remaining uint64) int {
	order := a.lastOrder
	for order > 0 {
		size := blockPages(order)
		if uint64(start)%size == 0 && size <= remaining {
			break
		}
		order--
	}
	return order
}

// CleanupPendingMerges implements spec.md §4.5's best-effort pass:
// every set bit in every order's bitmap is treated as a candidate
// lower PFN, re-verified against the free lists, merged if real, and
// cleared either way.
func (a *Allocator) CleanupPendingMerges() {
	for order := 0; order < a.lastOrder; order++ {
		for _, lower := range a.pending.TakeAll(order) {
			if !alignedTo(lower, order+1) {
				continue
			}
			buddy := lower + pfn.Pfn(blockPages(order))
			if a.isBuddyFree(order, lower) && a.isBuddyFree(order, buddy) {
				a.MergeBuddies(order, lower)
			}
		}
	}
}

// Dump writes a per-order summary of the free lists to w. Purely
// diagnostic; never consulted for correctness.
func (a *Allocator) Dump(w io.Writer) {
	fmt.Fprintf(w, "buddy allocator: totalFree=%d lastOrder=%d\n", a.totalFree, a.lastOrder)
	for order := 0; order <= a.lastOrder; order++ {
		fmt.Fprintf(w, "  order %2d (count=%d):", order, a.lists[order].count)
		p := a.lists[order].head
		for p != pfn.None {
			fmt.Fprintf(w, " %d", p)
			p = overlay.Read(a.idx, p)
		}
		fmt.Fprintln(w)
	}
}
