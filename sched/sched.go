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
	"fmt"

	"github.com/gopheros/mm/buddy"
	"github.com/gopheros/mm/pfn"
)

// StackOrder is the buddy order used for a thread's stack allocation.
const StackOrder = 2 // 4 pages

// TCB is a thread control block. Its only interesting field for this
// package is the backing memory it was allocated with; everything
// else is bookkeeping a real scheduler would extend.
type TCB struct {
	ID    uint64
	Stack pfn.Pfn
}

// Scheduler is a round-robin run-queue of TCBs. It is not safe for
// concurrent use.
type Scheduler struct {
	alloc *buddy.Allocator
	run   *ring[*TCB]
	keys  map[uint64]int // TCB.ID -> ring key
}

// New creates an empty scheduler backed by alloc for thread stack
// allocation.
func New(alloc *buddy.Allocator) *Scheduler {
	return &Scheduler{
		alloc: alloc,
		run:   newRing[*TCB](),
		keys:  make(map[uint64]int),
	}
}

// Spawn allocates a stack from the backing allocator and adds a new
// TCB to the run-queue.
func (s *Scheduler) Spawn(id uint64) (*TCB, error) {
	stack, ok := s.alloc.AllocatePages(StackOrder, buddy.FlagZero)
	if !ok {
		return nil, fmt.Errorf("sched: out of memory allocating stack for thread %d", id)
	}
	t := &TCB{ID: id, Stack: stack}
	s.Add(t)
	return t, nil
}

// Add inserts an already-constructed TCB into the run-queue.
func (s *Scheduler) Add(t *TCB) {
	if _, exists := s.keys[t.ID]; exists {
		panic(fmt.Sprintf("sched: thread %d already in run-queue", t.ID))
	}
	s.keys[t.ID] = s.run.insert(t)
}

// Remove drops a thread from the run-queue and releases its stack
// back to the allocator. Exiting a thread not currently in the
// run-queue is a no-op.
func (s *Scheduler) Remove(t *TCB) {
	key, ok := s.keys[t.ID]
	if !ok {
		return
	}
	s.run.remove(key)
	delete(s.keys, t.ID)
	s.alloc.FreePages(t.Stack, StackOrder)
}

// PickNext returns the thread that should run after current, in FIFO
// order. current may be nil to pick the head of an otherwise-empty
// pick cycle. Returns false if the run-queue is empty.
func (s *Scheduler) PickNext(current *TCB) (*TCB, bool) {
	if s.run.len() == 0 {
		return nil, false
	}
	if current == nil {
		item, _ := head(s.run)
		return item.value, true
	}
	key, ok := s.keys[current.ID]
	if !ok {
		item, _ := head(s.run)
		return item.value, true
	}
	item, ok := s.run.nextAfter(key)
	if !ok {
		return nil, false
	}
	return item.value, true
}

// Len reports the number of threads currently in the run-queue.
func (s *Scheduler) Len() int { return s.run.len() }

// head returns the run-queue's first entry in insertion order, mirroring
// container/ring.Ring[V]'s Head() accessor.
func head[V any](r *ring[V]) (*ringItem[V], bool) {
	if len(r.order) == 0 {
		return nil, false
	}
	return r.items[r.order[0]], true
}
