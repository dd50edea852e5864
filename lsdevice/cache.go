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

// Package lsdevice supplements the physical page allocator with the
// "ls as a device" collaborator spec.md scopes out of the allocator
// itself: a cache of pre-rendered directory listings, served through a
// pread-style device. Rendering *how* a listing looks (sorting,
// human-readable sizes, column layout) stays entirely out of scope;
// this package only stores and serves opaque bytes.
package lsdevice

import (
	"hash/maphash"
	"sync"

	"github.com/gopheros/mm/internal/hack"
	intmaphash "github.com/gopheros/mm/internal/hash/maphash"
)

// ListingCache is an LRU-ish cache of rendered directory listings,
// keyed by path. Paths are hashed with maphash before bucketing so
// long paths don't dominate map-key comparisons; the full path is
// kept alongside the listing so Get detects the rare collision and
// reports a miss. Two colliding paths are not cached together: a Put
// for one replaces the other's entry.
type ListingCache struct {
	mu       sync.Mutex
	seed     maphash.Seed
	capacity int
	entries  map[uint64]*cacheEntry
	order    []uint64 // least-recently-used first
}

type cacheEntry struct {
	path    string
	listing []byte
}

// NewListingCache creates a cache holding up to capacity listings.
func NewListingCache(capacity int) *ListingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ListingCache{
		seed:     intmaphash.MakeSeed(),
		capacity: capacity,
		entries:  make(map[uint64]*cacheEntry, capacity),
	}
}

func (c *ListingCache) key(path string) uint64 {
	return intmaphash.String(c.seed, path)
}

// Put stores (or replaces) the rendered listing for path.
func (c *ListingCache) Put(path string, listing []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(path)
	if _, exists := c.entries[k]; exists {
		c.entries[k] = &cacheEntry{path: path, listing: listing}
		c.touch(k)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[k] = &cacheEntry{path: path, listing: listing}
	c.order = append(c.order, k)
}

// PutString is Put for callers that rendered the listing as a string
// (e.g. via strings.Builder) rather than []byte; the string's bytes
// are reinterpreted without copying, so s must not be mutated
// afterward (strings are normally immutable, but the usual caveats
// around unsafe string/[]byte punning still apply to how s was built).
func (c *ListingCache) PutString(path, s string) {
	c.Put(path, hack.StringToByteSlice(s))
}

// Get returns the cached listing for path, if present, marking it
// most recently used.
func (c *ListingCache) Get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(path)
	e, ok := c.entries[k]
	if !ok || e.path != path {
		return nil, false
	}
	c.touch(k)
	return e.listing, true
}

// Len reports the number of cached listings.
func (c *ListingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ListingCache) touch(k uint64) {
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, k)
}

func (c *ListingCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}
