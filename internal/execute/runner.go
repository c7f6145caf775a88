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

// Package execute implements the runner: it consumes tasks from the task
// stream, executes each check's script in an isolated per-check working
// directory, and publishes the resulting CheckResult to the results stream.
package execute

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/stream"
)

// TaskReader is the task stream's consumer side, as seen by the runner.
type TaskReader interface {
	ReadTask(ctx context.Context, consumerName string) (stream.Entry, bool, error)
	AckTask(ctx context.Context, id string) error
}

// ResultPublisher is the results stream's producer side, as seen by the
// runner.
type ResultPublisher interface {
	PublishResult(ctx context.Context, r *model.CheckResult) error
}

// Runner repeatedly reads one task at a time and spawns an asynchronous
// execution for it, returning to reading immediately. Bounded concurrency
// per process is acceptable; nothing limits the number of in-flight
// executions here.
type Runner struct {
	reader    TaskReader
	publisher ResultPublisher
	executor  *Executor
	consumer  string
	logger    *slog.Logger
}

// NewRunner builds a Runner that executes scripts rooted at basePath.
func NewRunner(reader TaskReader, publisher ResultPublisher, basePath, consumerName string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		reader:    reader,
		publisher: publisher,
		executor:  NewExecutor(basePath, logger),
		consumer:  consumerName,
		logger:    logger,
	}
}

// Run drives the runner's read loop until ctx is cancelled. New task reads
// stop, but executions already dispatched are allowed to complete.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	execCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			r.logger.Info("runner stopping")
			wg.Wait()
			return
		}

		entry, ok, err := r.reader.ReadTask(ctx, r.consumer)
		if err != nil {
			r.logger.Error("failed to read task", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}

		wg.Add(1)
		go func(e stream.Entry) {
			defer wg.Done()
			r.processEntry(execCtx, e)
		}(entry)
	}
}

func (r *Runner) processEntry(ctx context.Context, entry stream.Entry) {
	var rc model.ResolvedCheck
	if err := json.Unmarshal(entry.Payload, &rc); err != nil {
		r.logger.Error("failed to decode task payload, leaving unacked",
			slog.String("entry_id", entry.ID), slog.String("error", err.Error()))
		return
	}

	result := r.executor.Execute(ctx, &rc)

	// Ack precedes publish: a crash between the two loses the result (the
	// next scheduled cycle re-observes the check) rather than replaying the
	// task forever.
	if err := r.reader.AckTask(ctx, entry.ID); err != nil {
		r.logger.Error("failed to ack task", slog.String("entry_id", entry.ID), slog.String("error", err.Error()))
	}

	if err := r.publisher.PublishResult(ctx, result); err != nil {
		r.logger.Error("failed to publish result",
			slog.String("check", rc.Name), slog.String("error", err.Error()))
	}
}

func newResult(rc *model.ResolvedCheck, status model.CheckStatus, output string) *model.CheckResult {
	now := time.Now()
	return &model.CheckResult{
		CheckName:              rc.Name,
		Output:                 output,
		Status:                 status,
		Timestamp:              &now,
		Channels:               rc.Channels,
		MuteNotifications:      rc.MuteNotifications,
		MuteNotificationsUntil: rc.MuteNotificationsUntil,
	}
}
