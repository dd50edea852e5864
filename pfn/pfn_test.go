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

package pfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArrayIndex(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		pageSize int
		wantErr  bool
	}{
		{"valid", 4096 * 4, 4096, false},
		{"pagesize_not_pow2", 4096 * 4, 3000, true},
		{"size_not_multiple", 4096*4 + 10, 4096, true},
		{"empty_arena", 0, 4096, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArrayIndex(make([]byte, tt.size), tt.pageSize)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArrayIndexDescribeLookup(t *testing.T) {
	idx, err := NewArrayIndex(make([]byte, 4096*4), 4096)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.NumPages())
	assert.Equal(t, 4096, idx.PageSize())

	for p := Pfn(0); p < 4; p++ {
		desc, ok := idx.Describe(p)
		require.True(t, ok)
		assert.Equal(t, p, desc.PFN)

		got, ok := idx.Lookup(desc.BaseAddress)
		require.True(t, ok)
		assert.Equal(t, p, got)
	}

	_, ok := idx.Describe(4)
	assert.False(t, ok)
	_, ok = idx.Describe(None)
	assert.False(t, ok)
}

func TestArrayIndexLookupOutOfRange(t *testing.T) {
	idx, err := NewArrayIndex(make([]byte, 4096*4), 4096)
	require.NoError(t, err)

	desc0, _ := idx.Describe(0)
	_, ok := idx.Lookup(desc0.BaseAddress - 1)
	assert.False(t, ok)

	last, _ := idx.Describe(3)
	_, ok = idx.Lookup(last.BaseAddress + 4096)
	assert.False(t, ok)
}

func TestArrayIndexPage(t *testing.T) {
	idx, err := NewArrayIndex(make([]byte, 4096*2), 4096)
	require.NoError(t, err)

	p := idx.Page(1)
	assert.Len(t, p, 4096)
	p[0] = 0xAB
	p2 := idx.Page(1)
	assert.Equal(t, byte(0xAB), p2[0])
}
