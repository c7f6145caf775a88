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

// Package stream wraps the two durable Redis streams the system uses for
// at-least-once task dispatch and result delivery.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NVIDIA/pinglow/internal/model"
)

const (
	tasksStream   = "tasks"
	tasksGroup    = "workers"
	resultsStream = "results"
	resultsGroup  = "controller"

	payloadField = "payload"

	// resultsBlockTimeout bounds how long a result-consumer read blocks
	// before the caller retries; the tasks reader blocks indefinitely.
	resultsBlockTimeout = 15 * time.Second

	// noMessageBackoff is how long a consumer sleeps after a blocking read
	// times out with nothing delivered, before trying again.
	noMessageBackoff = 100 * time.Millisecond
)

// Entry is one delivered stream message: its ID (for acknowledgement) plus
// the raw payload bytes.
type Entry struct {
	ID      string
	Payload []byte
}

// Client is the stream wrapper used by the scheduler (producer), runner
// (consumer of tasks, producer of results), and result consumer (consumer of
// results).
type Client struct {
	redis  *redis.Client
	logger *slog.Logger
}

// New wraps an existing go-redis client.
func New(redisClient *redis.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{redis: redisClient, logger: logger}
}

// EnsureGroups idempotently creates both streams and their consumer groups.
// Calling it twice is a no-op: an existing group/stream reports BUSYGROUP,
// which is swallowed.
func (c *Client) EnsureGroups(ctx context.Context) error {
	if err := c.ensureGroup(ctx, tasksStream, tasksGroup); err != nil {
		return err
	}
	return c.ensureGroup(ctx, resultsStream, resultsGroup)
}

func (c *Client) ensureGroup(ctx context.Context, stream, group string) error {
	err := c.redis.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err == nil {
		c.logger.Info("created stream consumer group", slog.String("stream", stream), slog.String("group", group))
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("create group %s/%s: %w", stream, group, err)
}

// PublishTask serializes rc and appends it to the tasks stream.
func (c *Client) PublishTask(ctx context.Context, rc *model.ResolvedCheck) error {
	payload, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("marshal resolved check %q: %w", rc.Name, err)
	}
	return c.add(ctx, tasksStream, payload)
}

// PublishResult serializes r and appends it to the results stream. The runner
// calls this; the admin facade hands passive check results straight to the
// result consumer's processing path instead.
func (c *Client) PublishResult(ctx context.Context, r *model.CheckResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal check result %q: %w", r.CheckName, err)
	}
	return c.add(ctx, resultsStream, payload)
}

func (c *Client) add(ctx context.Context, stream string, payload []byte) error {
	_, err := c.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// ReadTask blocks indefinitely for the next task delivered to consumerName
// under the workers group. It returns ok=false (with no error) only when ctx
// is cancelled.
func (c *Client) ReadTask(ctx context.Context, consumerName string) (entry Entry, ok bool, err error) {
	return c.readOne(ctx, tasksStream, tasksGroup, consumerName, 0)
}

// AckTask acknowledges a delivered task by ID.
func (c *Client) AckTask(ctx context.Context, id string) error {
	return c.ack(ctx, tasksStream, tasksGroup, id)
}

// ReadResult blocks up to resultsBlockTimeout for the next result. When the
// read times out with nothing delivered, ok is false and err is nil — the
// caller should retry after a short sleep, per the stream's bounded-blocking
// contract.
func (c *Client) ReadResult(ctx context.Context, consumerName string) (entry Entry, ok bool, err error) {
	return c.readOne(ctx, resultsStream, resultsGroup, consumerName, resultsBlockTimeout)
}

// AckResult acknowledges a delivered result by ID.
func (c *Client) AckResult(ctx context.Context, id string) error {
	return c.ack(ctx, resultsStream, resultsGroup, id)
}

// NoMessageBackoff is the sleep a consumer should take after a ReadResult (or
// ReadTask with a finite block) call returns ok=false, err=nil.
func NoMessageBackoff() time.Duration {
	return noMessageBackoff
}

func (c *Client) readOne(ctx context.Context, stream, group, consumer string, block time.Duration) (Entry, bool, error) {
	res, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return Entry{}, false, nil
		}
		if errors.Is(err, context.Canceled) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("xreadgroup %s/%s: %w", stream, group, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return Entry{}, false, nil
	}

	msg := res[0].Messages[0]
	raw, ok := msg.Values[payloadField]
	if !ok {
		return Entry{}, false, &model.ErrSerialization{Stream: stream, Cause: fmt.Errorf("missing %q field", payloadField)}
	}
	payload, err := payloadBytes(raw)
	if err != nil {
		return Entry{}, false, &model.ErrSerialization{Stream: stream, Cause: err}
	}
	return Entry{ID: msg.ID, Payload: payload}, true, nil
}

func (c *Client) ack(ctx context.Context, stream, group, id string) error {
	if err := c.redis.XAck(ctx, stream, group, id).Err(); err != nil {
		return fmt.Errorf("xack %s/%s %s: %w", stream, group, id, err)
	}
	return nil
}

func payloadBytes(raw interface{}) ([]byte, error) {
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", raw)
	}
}
