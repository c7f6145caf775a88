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

package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/scheduler"
)

// transientRequeueDelay is the fixed backoff for a transient fetch failure,
// per §4.B.
const transientRequeueDelay = 60 * time.Second

// structuralErrLogCacheSize bounds how many checks have their last logged
// structural error message remembered for warn-log deduplication, so a check
// stuck on the same structural error doesn't re-log at full volume every
// reconcile tick.
const structuralErrLogCacheSize = 512

// SchedulerEvents is the subset of scheduler.Scheduler the reconciler needs:
// a send-only channel for AddOrUpdate/Remove events.
type SchedulerEvents interface {
	Events() chan<- scheduler.Event
}

// Reconciler translates upstream resource events into Resource Model updates
// and scheduler events.
type Reconciler struct {
	source    Source
	model     *Model
	scheduler SchedulerEvents
	logger    *slog.Logger

	requeue   chan string
	afterFunc func(time.Duration) <-chan time.Time

	structuralErrLog *lru.Cache[string, string]
}

// NewReconciler builds a Reconciler over an already-connected Source.
func NewReconciler(source Source, m *Model, sched SchedulerEvents, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, string](structuralErrLogCacheSize)
	return &Reconciler{
		source:           source,
		model:            m,
		scheduler:        sched,
		logger:           logger,
		requeue:          make(chan string, 256),
		afterFunc:        time.After,
		structuralErrLog: cache,
	}
}

// Run drives the reconciler's event loop until ctx is cancelled: it consumes
// upstream events and backoff-driven requeues of checks whose last
// reconciliation hit a transient error.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return

		case ev, ok := <-r.source.Events():
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)

		case name := <-r.requeue:
			r.reconcileCheck(ctx, name)
		}
	}
}

func (r *Reconciler) handleEvent(ctx context.Context, ev ResourceEvent) {
	switch ev.Kind {
	case KindCheck:
		if ev.Deleted {
			r.removeCheck(ev.Name)
			return
		}
		r.reconcileCheck(ctx, ev.Name)

	case KindScript:
		for _, name := range r.model.ChecksReferencingScript(ev.Name) {
			r.reconcileCheck(ctx, name)
		}

	case KindSecret:
		for _, name := range r.model.ChecksReferencingSecret(ev.Name, r.channelBotTokenRef) {
			r.reconcileCheck(ctx, name)
		}

	case KindChannel:
		for _, name := range r.model.ChecksReferencingChannel(ev.Name) {
			r.reconcileCheck(ctx, name)
		}
	}
}

func (r *Reconciler) channelBotTokenRef(channelName string) (string, bool) {
	channel, err := r.source.FetchChannel(channelName)
	if err != nil {
		return "", false
	}
	return channel.BotTokenRef, true
}

func (r *Reconciler) removeCheck(name string) {
	r.model.Delete(name)
	r.scheduler.Events() <- scheduler.Event{Kind: scheduler.EventRemove, Name: name}
	r.logger.Debug("removed check", slog.String("check", name))
}

// reconcileCheck performs the three-step reconciliation for a single check
// described in §4.B. Structural errors are logged and leave the last-good
// model entry intact; transient fetch failures are logged and requeued after
// a fixed backoff.
func (r *Reconciler) reconcileCheck(ctx context.Context, name string) {
	check, err := r.source.FetchCheck(name)
	if errors.Is(err, ErrNotFound) {
		r.removeCheck(name)
		return
	}
	if err != nil {
		r.logger.Error("transient failure fetching check, will retry",
			slog.String("check", name), slog.String("error", err.Error()))
		r.scheduleRequeue(ctx, name)
		return
	}

	resolved, err := resolve(r.source, check)
	if err != nil {
		if isStructuralErr(err) {
			r.logStructuralErr(name, err)
			return
		}
		r.logger.Error("transient failure resolving check, will retry",
			slog.String("check", name), slog.String("error", err.Error()))
		r.scheduleRequeue(ctx, name)
		return
	}

	r.model.Put(check, resolved)
	r.scheduler.Events() <- scheduler.Event{Kind: scheduler.EventAddOrUpdate, Check: resolved}
}

// logStructuralErr warns on a structural reconcile error, unless the message
// equals the last one logged for that check and the LRU cache still holds it.
func (r *Reconciler) logStructuralErr(name string, err error) {
	msg := err.Error()
	if prior, ok := r.structuralErrLog.Get(name); ok && prior == msg {
		return
	}
	r.structuralErrLog.Add(name, msg)
	r.logger.Warn("check reconciliation failed, retaining last-good entry",
		slog.String("check", name), slog.String("error", msg))
}

func isStructuralErr(err error) bool {
	var notFound *model.ErrResourceNotFound
	var propErr *model.ErrPropertyExtraction
	return errors.As(err, &notFound) || errors.As(err, &propErr)
}

// scheduleRequeue arranges for name to be reconciled again after
// transientRequeueDelay, without blocking the reconciler's event loop.
func (r *Reconciler) scheduleRequeue(ctx context.Context, name string) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-r.afterFunc(transientRequeueDelay):
		}
		select {
		case r.requeue <- name:
		case <-ctx.Done():
		}
	}()
}
