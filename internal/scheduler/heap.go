/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package scheduler

import (
	"container/heap"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
)

// queueItem is a ScheduledCheck: a ResolvedCheck tagged with its next-run
// timestamp, held in the scheduler's time-ordered queue.
type queueItem struct {
	name    string
	nextRun time.Time
	rc      *model.ResolvedCheck
	index   int // maintained by container/heap
}

// timeQueue is a min-heap ordered by nextRun, with a name->item side index
// so the scheduler can look up, update, or remove an entry by check name in
// O(log n) without scanning the heap. The binary heap plus side index stands
// in for a balanced tree keyed by timestamp, which Go's standard library
// lacks.
type timeQueue struct {
	items []*queueItem
	index map[string]*queueItem
}

func newTimeQueue() *timeQueue {
	return &timeQueue{index: make(map[string]*queueItem)}
}

// Len, Less, Swap, Push, Pop implement heap.Interface.
func (q *timeQueue) Len() int { return len(q.items) }

func (q *timeQueue) Less(i, j int) bool {
	return q.items[i].nextRun.Before(q.items[j].nextRun)
}

func (q *timeQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *timeQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(q.items)
	q.items = append(q.items, item)
}

func (q *timeQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[:n-1]
	return item
}

// Peek returns the earliest entry without removing it, or nil if empty.
func (q *timeQueue) Peek() *queueItem {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Upsert inserts a new entry for name, or updates the existing one's
// ResolvedCheck in place while preserving its current nextRun. Returns true
// if an entry already existed.
func (q *timeQueue) Upsert(name string, nextRun time.Time, rc *model.ResolvedCheck) bool {
	if item, ok := q.index[name]; ok {
		item.rc = rc
		return true
	}
	item := &queueItem{name: name, nextRun: nextRun, rc: rc}
	heap.Push(q, item)
	q.index[name] = item
	return false
}

// Remove deletes the entry for name, if present.
func (q *timeQueue) Remove(name string) {
	item, ok := q.index[name]
	if !ok {
		return
	}
	heap.Remove(q, item.index)
	delete(q.index, name)
}

// Has reports whether name currently occupies a queue slot.
func (q *timeQueue) Has(name string) bool {
	_, ok := q.index[name]
	return ok
}

// PopMin removes and returns the earliest entry.
func (q *timeQueue) PopMin() *queueItem {
	if q.Len() == 0 {
		return nil
	}
	item := heap.Pop(q).(*queueItem)
	delete(q.index, item.name)
	return item
}
