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

package buddy

import (
	"fmt"

	"github.com/gopheros/mm/overlay"
	"github.com/gopheros/mm/pfn"
)

// buddyPfn implements spec.md §4.2's defining relation: two blocks at
// order k are buddies iff their PFNs differ only in bit k.
func buddyPfn(order int, p pfn.Pfn) pfn.Pfn {
	return p ^ pfn.Pfn(blockPages(order))
}

// alignedTo reports whether p is aligned to 2^order pages.
func alignedTo(p pfn.Pfn, order int) bool {
	return uint64(p)%blockPages(order) == 0
}

// insertFreeBlock implements spec.md §4.2: block_start must be aligned
// to its order and must not already be in the list. It is spliced in
// at the position that keeps the list sorted ascending by PFN.
func (a *Allocator) insertFreeBlock(order int, block pfn.Pfn) {
	if !alignedTo(block, order) {
		panic(fmt.Sprintf("buddy: insert of misaligned pfn %d at order %d", block, order))
	}

	l := &a.lists[order]
	if l.head == pfn.None || block <= l.head {
		if block == l.head {
			panic(fmt.Sprintf("buddy: double free of pfn %d at order %d", block, order))
		}
		overlay.Write(a.idx, block, l.head)
		l.head = block
		l.count++
		return
	}

	prev := l.head
	cur := overlay.Read(a.idx, prev)
	for cur != pfn.None && cur < block {
		prev = cur
		cur = overlay.Read(a.idx, cur)
	}
	if cur == block {
		panic(fmt.Sprintf("buddy: double free of pfn %d at order %d", block, order))
	}
	overlay.Write(a.idx, prev, block)
	overlay.Write(a.idx, block, cur)
	l.count++
}

// removeFreeBlock implements spec.md §4.2: block must currently be in
// free_list[order]. Unlinking is O(n) in list length; the block's own
// link is cleared to the empty sentinel afterward.
func (a *Allocator) removeFreeBlock(order int, block pfn.Pfn) {
	l := &a.lists[order]

	if l.head == block {
		l.head = overlay.Read(a.idx, block)
		overlay.Clear(a.idx, block)
		l.count--
		return
	}

	prev := l.head
	for prev != pfn.None {
		next := overlay.Read(a.idx, prev)
		if next == block {
			overlay.Write(a.idx, prev, overlay.Read(a.idx, block))
			overlay.Clear(a.idx, block)
			l.count--
			return
		}
		prev = next
	}

	panic(fmt.Sprintf("buddy: remove of pfn %d not present in free list at order %d", block, order))
}

// isBuddyFree implements spec.md §4.2: walks free_list[order] for an
// entry equal to p, returning on first match.
func (a *Allocator) isBuddyFree(order int, p pfn.Pfn) bool {
	cur := a.lists[order].head
	for cur != pfn.None {
		if cur == p {
			return true
		}
		cur = overlay.Read(a.idx, cur)
	}
	return false
}

// SplitBlock implements spec.md §4.3. order must be > 0 and block must
// currently be in free_list[order]; splitting is performed lazily, one
// level at a time, by AllocatePages.
func (a *Allocator) SplitBlock(order int, block pfn.Pfn) {
	if order <= 0 {
		panic("buddy: split_block called at order 0")
	}
	a.removeFreeBlock(order, block)
	half := pfn.Pfn(blockPages(order - 1))
	a.insertFreeBlock(order-1, block)
	a.insertFreeBlock(order-1, block+half)
}

// MergeBuddies implements spec.md §4.4. order must be < LastOrder. If
// block's buddy is not currently free, the merge is silently abandoned
// (not an error). On success the union is inserted into
// free_list[order+1] and a further merge is attempted recursively.
func (a *Allocator) MergeBuddies(order int, block pfn.Pfn) (merged bool, union pfn.Pfn) {
	if order >= a.lastOrder {
		return false, pfn.None
	}

	other := buddyPfn(order, block)
	if !alignedTo(other, order) || !a.isBuddyFree(order, other) || !a.isBuddyFree(order, block) {
		return false, pfn.None
	}

	a.removeFreeBlock(order, block)
	a.removeFreeBlock(order, other)

	union = block
	if other < union {
		union = other
	}
	a.insertFreeBlock(order+1, union)

	a.MergeBuddies(order+1, union)
	return true, union
}
