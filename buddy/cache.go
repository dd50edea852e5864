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

import "github.com/gopheros/mm/pfn"

// recentCache is the optional per-order recent-free cache described in
// spec.md §4.6 and Design Notes: a small, fixed-capacity holding area
// for recently freed blocks, checked before the free lists on
// allocation. It is a pure shortcut — the allocator is correct with it
// disabled — so it is deliberately simple: a preallocated, capped LIFO
// stack per order (push on free, pop on allocate), since slots fill
// and drain as blocks are freed and reused.
//
// Cached blocks are never simultaneously present in a free list; their
// pages are still accounted for in Allocator.totalFree, exactly as if
// they were.
type recentCache struct {
	slots [][]pfn.Pfn // slots[order] is a stack of up to `cap` cached PFNs
	cap   int
}

func newRecentCache(lastOrder, slotsPerOrder int) *recentCache {
	if slotsPerOrder <= 0 {
		slotsPerOrder = 4
	}
	c := &recentCache{
		slots: make([][]pfn.Pfn, lastOrder+1),
		cap:   slotsPerOrder,
	}
	for i := range c.slots {
		c.slots[i] = make([]pfn.Pfn, 0, slotsPerOrder)
	}
	return c
}

// offer tries to place block in the order's cache. Returns false if
// the cache for that order is full (the caller falls back to the
// regular free list).
func (c *recentCache) offer(order int, block pfn.Pfn) bool {
	s := c.slots[order]
	if len(s) >= c.cap {
		return false
	}
	c.slots[order] = append(s, block)
	return true
}

// contains reports whether block is currently held in the order's
// cache. Used by Allocator.isFree to detect a double free before it
// is ever accepted into the cache.
func (c *recentCache) contains(order int, block pfn.Pfn) bool {
	for _, p := range c.slots[order] {
		if p == block {
			return true
		}
	}
	return false
}

// take removes and returns the most recently cached block for order,
// if any.
func (c *recentCache) take(order int) (pfn.Pfn, bool) {
	s := c.slots[order]
	if len(s) == 0 {
		return pfn.None, false
	}
	n := len(s) - 1
	block := s[n]
	c.slots[order] = s[:n]
	return block, true
}
