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

// Package scheduler maintains a time-ordered queue of due checks and
// publishes execution tasks to the task stream at each check's cadence.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
)

// TaskPublisher is the task stream's producer side, as seen by the
// scheduler.
type TaskPublisher interface {
	PublishTask(ctx context.Context, rc *model.ResolvedCheck) error
}

// Event is the reconciler-to-scheduler event. Exactly one of AddOrUpdate or
// Remove fields is meaningful, selected by Kind.
type Event struct {
	Kind  EventKind
	Check *model.ResolvedCheck // set when Kind == EventAddOrUpdate
	Name  string               // set when Kind == EventRemove
}

type EventKind int

const (
	EventAddOrUpdate EventKind = iota
	EventRemove
)

// Scheduler owns an exclusive, single-goroutine event loop over a
// time-ordered queue. No other component mutates the queue or the active
// set directly; all changes arrive through Events().
type Scheduler struct {
	events chan Event
	queue  *timeQueue
	active map[string]*model.ResolvedCheck

	publisher TaskPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Scheduler. The events channel is buffered so the
// reconciler never blocks on a slow scheduler tick.
func New(publisher TaskPublisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		events:    make(chan Event, 256),
		queue:     newTimeQueue(),
		active:    make(map[string]*model.ResolvedCheck),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Events returns the channel the reconciler publishes AddOrUpdate/Remove
// events on.
func (s *Scheduler) Events() chan<- Event {
	return s.events
}

// Run drives the scheduler's cooperative event loop until ctx is cancelled.
// It is meant to be run on its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if item := s.queue.Peek(); item != nil {
			d := item.nextRun.Sub(s.now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("scheduler stopping")
			return

		case ev, ok := <-s.events:
			if timer != nil {
				timer.Stop()
			}
			if !ok {
				return
			}
			s.handleEvent(ev)

		case <-timerC:
			s.handleFire(ctx)
		}
	}
}

func (s *Scheduler) handleEvent(ev Event) {
	switch ev.Kind {
	case EventAddOrUpdate:
		s.handleAddOrUpdate(ev.Check)
	case EventRemove:
		s.handleRemove(ev.Name)
	}
}

func (s *Scheduler) handleAddOrUpdate(rc *model.ResolvedCheck) {
	s.active[rc.Name] = rc

	if rc.Passive || !rc.HasInterval() {
		s.queue.Remove(rc.Name)
		return
	}

	existed := s.queue.Upsert(rc.Name, s.now().Add(time.Duration(*rc.Interval)*time.Second), rc)
	if !existed {
		s.logger.Debug("scheduled check", slog.String("check", rc.Name), slog.Int64("interval_s", *rc.Interval))
	}
}

func (s *Scheduler) handleRemove(name string) {
	delete(s.active, name)
	s.queue.Remove(name)
}

func (s *Scheduler) handleFire(ctx context.Context) {
	item := s.queue.PopMin()
	if item == nil {
		return
	}

	active, ok := s.active[item.name]
	if !ok {
		s.logger.Debug("discarding fire for removed check", slog.String("check", item.name))
		return
	}
	if active.Passive || !active.HasInterval() {
		s.logger.Debug("discarding fire for now-passive check", slog.String("check", item.name))
		return
	}

	if err := s.publisher.PublishTask(ctx, active); err != nil {
		s.logger.Error("failed to publish task", slog.String("check", item.name), slog.String("error", err.Error()))
	}

	nextRun := item.nextRun.Add(time.Duration(*active.Interval) * time.Second)
	s.queue.Upsert(item.name, nextRun, active)
}
