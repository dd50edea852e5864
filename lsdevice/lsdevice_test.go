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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingCachePutGet(t *testing.T) {
	c := NewListingCache(2)
	c.Put("/bin", []byte("a\nb\nc\n"))

	got, ok := c.Get("/bin")
	require.True(t, ok)
	assert.Equal(t, []byte("a\nb\nc\n"), got)
}

func TestListingCacheMiss(t *testing.T) {
	c := NewListingCache(2)
	_, ok := c.Get("/missing")
	assert.False(t, ok)
}

func TestListingCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewListingCache(2)
	c.Put("/a", []byte("a"))
	c.Put("/b", []byte("b"))
	c.Put("/c", []byte("c")) // evicts /a, the LRU entry

	_, ok := c.Get("/a")
	assert.False(t, ok)
	_, ok = c.Get("/b")
	assert.True(t, ok)
	_, ok = c.Get("/c")
	assert.True(t, ok)
}

func TestListingCacheGetRefreshesRecency(t *testing.T) {
	c := NewListingCache(2)
	c.Put("/a", []byte("a"))
	c.Put("/b", []byte("b"))
	_, _ = c.Get("/a") // touch /a so /b becomes LRU
	c.Put("/c", []byte("c"))

	_, ok := c.Get("/b")
	assert.False(t, ok, "/b should have been evicted")
	_, ok = c.Get("/a")
	assert.True(t, ok)
}

func TestDevicePreadSequentialAndRandomAccess(t *testing.T) {
	c := NewListingCache(4)
	c.Put("/etc", []byte("0123456789"))
	d := NewDevice(c, "/etc")

	buf := make([]byte, 4)
	n, err := d.Pread(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("0123"), buf)

	n, err = d.Pread(6, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("6789"), buf)
}

func TestDevicePreadShortReadAtEOF(t *testing.T) {
	c := NewListingCache(4)
	c.Put("/etc", []byte("0123456789"))
	d := NewDevice(c, "/etc")

	buf := make([]byte, 8)
	n, err := d.Pread(6, buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("6789"), buf[:n])
}

func TestDevicePreadUnknownPath(t *testing.T) {
	c := NewListingCache(4)
	d := NewDevice(c, "/missing")

	_, err := d.Pread(0, make([]byte, 1))
	assert.Error(t, err)
}

func TestReaderSeekNegativeOffset(t *testing.T) {
	r := NewReader([]byte("abc"))
	assert.Error(t, r.Seek(-1))
}

func TestListingCachePutStringAndDeviceString(t *testing.T) {
	c := NewListingCache(2)
	c.PutString("/home", "alice\nbob\n")
	d := NewDevice(c, "/home")

	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "alice\nbob\n", s)
}
