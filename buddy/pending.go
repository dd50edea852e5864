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
	"math/bits"

	"github.com/gopheros/mm/pfn"
)

// pendingBitmap is the deferred-merge bitmap from spec.md §4.5: one
// MaxPendingMerges-bit word per order, addressed by the hash-indexed,
// collision-prone idx function. A set bit is a hint that a merge at
// that order may be ready; it is never treated as ground truth — every
// read is followed by a re-check against the free lists (see
// Allocator.isBuddyFree).
type pendingBitmap struct {
	bits []uint64 // bits[order], MaxPendingMerges bits wide
}

func newPendingBitmap(lastOrder int) pendingBitmap {
	return pendingBitmap{bits: make([]uint64, lastOrder+1)}
}

// idx implements the source's (pfn+order) mod MaxPendingMerges hash.
// It is intentionally lossy: distinct PFNs at the same order can and
// do collide on the same bit.
func idx(p pfn.Pfn, order int) uint {
	return uint((uint64(p) + uint64(order)) % MaxPendingMerges)
}

// Set records a merge intent for the pair whose lower PFN is p.
func (pm *pendingBitmap) Set(order int, p pfn.Pfn) {
	pm.bits[order] |= 1 << idx(p, order)
}

// Clear discards the merge intent for p, regardless of whether it was
// ever genuinely set for that exact PFN (collisions may mean it
// belonged to a different pair).
func (pm *pendingBitmap) Clear(order int, p pfn.Pfn) {
	pm.bits[order] &^= 1 << idx(p, order)
}

// Test reports whether the bit addressed by p is currently set.
func (pm *pendingBitmap) Test(order int, p pfn.Pfn) bool {
	return pm.bits[order]&(1<<idx(p, order)) != 0
}

// TakeAll drains every set bit for order, returning the bit positions
// reinterpreted as candidate lower PFNs (spec.md §4.5's "interpret the
// bit as a candidate lower PFN"). Every returned bit is cleared from
// the bitmap, matching cleanup_pending_merges's "clear the bit either
// way" — callers re-verify each candidate against the free lists
// before merging.
func (pm *pendingBitmap) TakeAll(order int) []pfn.Pfn {
	word := pm.bits[order]
	if word == 0 {
		return nil
	}
	candidates := make([]pfn.Pfn, 0, bits.OnesCount64(word))
	for word != 0 {
		i := bits.TrailingZeros64(word)
		word &^= 1 << uint(i)
		candidates = append(candidates, pfn.Pfn(i))
	}
	pm.bits[order] = 0
	return candidates
}
