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

package lsdevice

import (
	"fmt"

	"github.com/gopheros/mm/internal/hack"
)

// Device exposes a cached directory listing as a flat byte stream,
// readable at arbitrary offsets the way a block device or regular
// file would be. The listing itself must already be in cache (via
// ListingCache.Put) — rendering is not this package's concern.
type Device struct {
	cache *ListingCache
	path  string
}

// NewDevice returns a Device serving the listing cached for path.
func NewDevice(cache *ListingCache, path string) *Device {
	return &Device{cache: cache, path: path}
}

// Pread reads len(p) bytes starting at byte offset off of the cached
// listing for the device's path, returning however many bytes were
// actually available (io.EOF on a short read, matching io.ReaderAt).
func (d *Device) Pread(off int64, p []byte) (int, error) {
	listing, ok := d.cache.Get(d.path)
	if !ok {
		return 0, fmt.Errorf("lsdevice: no cached listing for %q", d.path)
	}

	r := NewReader(listing)
	if err := r.Seek(off); err != nil {
		return 0, err
	}
	return r.ReadBinary(p)
}

// String renders the full cached listing as a string without copying
// the underlying bytes. The result must not be retained past a Put
// that replaces this path's entry.
func (d *Device) String() (string, error) {
	listing, ok := d.cache.Get(d.path)
	if !ok {
		return "", fmt.Errorf("lsdevice: no cached listing for %q", d.path)
	}
	return hack.ByteSliceToString(listing), nil
}
