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

package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopheros/mm/buddy"
	"github.com/gopheros/mm/pfn"
)

const testPageSize = 4096

func newTestScheduler(t *testing.T, pages int) (*Scheduler, *buddy.Allocator) {
	t.Helper()
	idx, err := pfn.NewArrayIndex(make([]byte, pages*testPageSize), testPageSize)
	require.NoError(t, err)
	a := buddy.New(idx, buddy.WithLastOrder(6))
	a.InsertFreePages(0, uint64(pages))
	return New(a), a
}

func TestSpawnAllocatesStackAndAddsToRunQueue(t *testing.T) {
	s, a := newTestScheduler(t, 64)
	before := a.TotalFree()

	tcb, err := s.Spawn(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tcb.ID)
	assert.Equal(t, before-uint64(1<<StackOrder), a.TotalFree())
	assert.Equal(t, 1, s.Len())
}

func TestPickNextRotatesFIFO(t *testing.T) {
	s, _ := newTestScheduler(t, 64)
	t1, err := s.Spawn(1)
	require.NoError(t, err)
	t2, err := s.Spawn(2)
	require.NoError(t, err)
	t3, err := s.Spawn(3)
	require.NoError(t, err)

	next, ok := s.PickNext(t1)
	require.True(t, ok)
	assert.Equal(t, t2, next)

	next, ok = s.PickNext(t2)
	require.True(t, ok)
	assert.Equal(t, t3, next)

	next, ok = s.PickNext(t3)
	require.True(t, ok)
	assert.Equal(t, t1, next)
}

func TestPickNextSingleThreadPicksItself(t *testing.T) {
	s, _ := newTestScheduler(t, 64)
	t1, err := s.Spawn(1)
	require.NoError(t, err)

	next, ok := s.PickNext(t1)
	require.True(t, ok)
	assert.Equal(t, t1, next)
}

func TestPickNextEmptyRunQueue(t *testing.T) {
	s, _ := newTestScheduler(t, 64)
	_, ok := s.PickNext(nil)
	assert.False(t, ok)
}

func TestRemoveReleasesStackAndSkipsInRotation(t *testing.T) {
	s, a := newTestScheduler(t, 64)
	before := a.TotalFree()

	t1, err := s.Spawn(1)
	require.NoError(t, err)
	t2, err := s.Spawn(2)
	require.NoError(t, err)

	s.Remove(t1)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, before-uint64(1<<StackOrder), a.TotalFree())

	next, ok := s.PickNext(t2)
	require.True(t, ok)
	assert.Equal(t, t2, next)
}

func TestAddDuplicateThreadPanics(t *testing.T) {
	s, _ := newTestScheduler(t, 64)
	t1, err := s.Spawn(1)
	require.NoError(t, err)
	assert.Panics(t, func() { s.Add(t1) })
}

func TestSpawnOutOfMemory(t *testing.T) {
	s, _ := newTestScheduler(t, 1<<StackOrder)
	_, err := s.Spawn(1)
	require.NoError(t, err)

	_, err = s.Spawn(2)
	assert.Error(t, err)
}
