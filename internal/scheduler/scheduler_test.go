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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePublisher) PublishTask(_ context.Context, rc *model.ResolvedCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rc.Name)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func intervalCheck(name string, seconds int64) *model.ResolvedCheck {
	return &model.ResolvedCheck{Name: name, Interval: &seconds}
}

func passiveCheck(name string) *model.ResolvedCheck {
	return &model.ResolvedCheck{Name: name, Passive: true}
}

func TestSchedulerSchedulesNonPassiveCheck(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)

	s.handleAddOrUpdate(intervalCheck("c1", 5))

	if !s.queue.Has("c1") {
		t.Fatal("expected c1 to occupy a queue slot")
	}
	if len(s.active) != 1 {
		t.Fatalf("expected 1 active check, got %d", len(s.active))
	}
}

func TestSchedulerSkipsPassiveCheck(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)

	s.handleAddOrUpdate(passiveCheck("c2"))

	if s.queue.Has("c2") {
		t.Fatal("passive check must never occupy a queue slot")
	}
	if _, ok := s.active["c2"]; !ok {
		t.Fatal("passive check should still be tracked in the active set")
	}
}

func TestSchedulerTransitionToPassiveRemovesQueueEntry(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)

	s.handleAddOrUpdate(intervalCheck("c3", 5))
	if !s.queue.Has("c3") {
		t.Fatal("expected c3 scheduled")
	}

	updated := passiveCheck("c3")
	s.handleAddOrUpdate(updated)
	if s.queue.Has("c3") {
		t.Fatal("expected c3 removed from queue after becoming passive")
	}
}

func TestSchedulerPreservesNextRunAcrossUpdate(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.handleAddOrUpdate(intervalCheck("c4", 10))
	first := s.queue.index["c4"].nextRun

	s.now = func() time.Time { return fixed.Add(3 * time.Second) }
	s.handleAddOrUpdate(intervalCheck("c4", 10))
	second := s.queue.index["c4"].nextRun

	if !first.Equal(second) {
		t.Fatalf("expected next_run to be preserved across update, got %v then %v", first, second)
	}
}

func TestSchedulerRemoveDiscardsEntry(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)

	s.handleAddOrUpdate(intervalCheck("c5", 5))
	s.handleRemove("c5")

	if s.queue.Has("c5") {
		t.Fatal("expected c5 removed from queue")
	}
	if _, ok := s.active["c5"]; ok {
		t.Fatal("expected c5 removed from active set")
	}
}

func TestSchedulerFireDiscardedAfterRemoval(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)

	s.handleAddOrUpdate(intervalCheck("c6", 5))
	s.handleRemove("c6")

	// A timer fire that slipped through after the remove should be a no-op:
	// the queue entry is already gone, so PopMin returns nil.
	s.handleFire(context.Background())

	if pub.count() != 0 {
		t.Fatalf("expected no publish for a removed check, got %d", pub.count())
	}
}

func TestSchedulerMonotonicNextRun(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.handleAddOrUpdate(intervalCheck("c7", 5))
	firstNextRun := s.queue.index["c7"].nextRun

	// Simulate a large clock jump (transient lag) before the fire is handled.
	s.now = func() time.Time { return base.Add(time.Minute) }
	s.handleFire(context.Background())

	secondNextRun := s.queue.index["c7"].nextRun
	wantSecond := firstNextRun.Add(5 * time.Second)
	if !secondNextRun.Equal(wantSecond) {
		t.Fatalf("expected monotonic next_run %v (prior + interval), got %v", wantSecond, secondNextRun)
	}
	if pub.count() != 1 {
		t.Fatalf("expected exactly one publish, got %d", pub.count())
	}

	s.handleFire(context.Background())
	thirdNextRun := s.queue.index["c7"].nextRun
	if !thirdNextRun.After(secondNextRun) {
		t.Fatalf("expected next_run to keep advancing, got %v after %v", thirdNextRun, secondNextRun)
	}
	if pub.count() != 2 {
		t.Fatalf("expected two publishes total, got %d", pub.count())
	}
}
