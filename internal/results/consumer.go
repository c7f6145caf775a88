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

package results

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/stream"
)

// ResultReader is the subset of the stream client the consumer needs.
type ResultReader interface {
	ReadResult(ctx context.Context, consumerName string) (stream.Entry, bool, error)
	AckResult(ctx context.Context, id string) error
}

// ResultPersister is the subset of Store the consumer needs, narrowed so
// tests can substitute an in-memory fake.
type ResultPersister interface {
	InsertResult(ctx context.Context, humanText string, perf []PerfPoint, r *model.CheckResult) error
}

// ResultNotifier is the subset of Notifier the consumer needs.
type ResultNotifier interface {
	Notify(ctx context.Context, humanText string, r *model.CheckResult)
}

// Consumer drives the result-processing path: one result read at a time,
// persisted, then notified, then acknowledged.
type Consumer struct {
	reader       ResultReader
	store        ResultPersister
	notifier     ResultNotifier
	logger       *slog.Logger
	consumerName string
}

// NewConsumer builds a Consumer.
func NewConsumer(reader ResultReader, store ResultPersister, notifier ResultNotifier, consumerName string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: reader, store: store, notifier: notifier, consumerName: consumerName, logger: logger}
}

// Run reads and processes results until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("result consumer stopping")
			return
		default:
		}

		entry, ok, err := c.reader.ReadResult(ctx, c.consumerName)
		if err != nil {
			c.logger.Error("result stream read failed", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(stream.NoMessageBackoff()):
			}
			continue
		}

		c.processEntry(ctx, entry)
	}
}

func (c *Consumer) processEntry(ctx context.Context, entry stream.Entry) {
	var result model.CheckResult
	if err := json.Unmarshal(entry.Payload, &result); err != nil {
		// A malformed payload is a poison message: leave it unacked so
		// redelivery (and eventually operator intervention) can handle it.
		c.logger.Error("failed to decode result payload, leaving unacked",
			slog.String("entry_id", entry.ID), slog.String("error", err.Error()))
		return
	}

	if !c.processResult(ctx, &result) {
		// Persistence failed: leave the entry unacked so the consumer group
		// redelivers it, per the transport-failure retry policy. Acking here
		// would silently drop a result that was never written to storage.
		c.logger.Error("leaving result unacked after persistence failure", slog.String("entry_id", entry.ID))
		return
	}

	if err := c.reader.AckResult(ctx, entry.ID); err != nil {
		c.logger.Error("failed to ack result", slog.String("entry_id", entry.ID), slog.String("error", err.Error()))
	}
}

// ProcessResult persists r and, if warranted, notifies its channels. It is
// exported so the admin facade can invoke the same path directly for
// externally-posted passive results.
func (c *Consumer) ProcessResult(ctx context.Context, r *model.CheckResult) {
	c.processResult(ctx, r)
}

// processResult reports whether r was successfully persisted. A notifier
// failure is logged but still counts as success: a perpetually broken
// webhook must not block acknowledgement or retry forever.
func (c *Consumer) processResult(ctx context.Context, r *model.CheckResult) bool {
	humanText, perfBlob := splitOutput(r.Output)
	perf := parsePerfBlob(perfBlob, c.logger)

	if err := c.store.InsertResult(ctx, humanText, perf, r); err != nil {
		c.logger.Error("failed to persist result", slog.String("check", r.CheckName), slog.String("error", err.Error()))
		return false
	}

	c.notifier.Notify(ctx, humanText, r)
	return true
}
