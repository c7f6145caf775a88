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

package execute

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/stream"
)

type fakeTaskReader struct {
	mu      sync.Mutex
	entries []stream.Entry
	acked   []string
}

func (f *fakeTaskReader) ReadTask(ctx context.Context, consumerName string) (stream.Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return stream.Entry{}, false, nil
	}
	e := f.entries[0]
	f.entries = f.entries[1:]
	return e, true, nil
}

func (f *fakeTaskReader) AckTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, id)
	return nil
}

type fakeResultPublisher struct {
	mu      sync.Mutex
	results []*model.CheckResult
}

func (f *fakeResultPublisher) PublishResult(ctx context.Context, r *model.CheckResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *fakeResultPublisher) snapshot() []*model.CheckResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.CheckResult, len(f.results))
	copy(out, f.results)
	return out
}

func TestRunnerProcessEntryExecutesAcksAndPublishes(t *testing.T) {
	dir := t.TempDir()
	rc := &model.ResolvedCheck{
		Name:   "c1",
		Script: &model.Script{Language: model.ScriptLanguageBash, Content: "exit 0"},
	}
	payload, err := json.Marshal(rc)
	if err != nil {
		t.Fatalf("marshal resolved check: %v", err)
	}

	reader := &fakeTaskReader{}
	publisher := &fakeResultPublisher{}
	runner := NewRunner(reader, publisher, dir, "runner-test", nil)

	runner.processEntry(context.Background(), stream.Entry{ID: "1-0", Payload: payload})

	if len(reader.acked) != 1 || reader.acked[0] != "1-0" {
		t.Fatalf("expected entry 1-0 to be acked, got %v", reader.acked)
	}
	results := publisher.snapshot()
	if len(results) != 1 || results[0].CheckName != "c1" || results[0].Status != model.StatusOk {
		t.Fatalf("unexpected published results: %+v", results)
	}
}

func TestRunnerProcessEntryLeavesUnackedOnDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	reader := &fakeTaskReader{}
	publisher := &fakeResultPublisher{}
	runner := NewRunner(reader, publisher, dir, "runner-test", nil)

	runner.processEntry(context.Background(), stream.Entry{ID: "bad-1", Payload: []byte("not json")})

	if len(reader.acked) != 0 {
		t.Fatalf("expected no ack for undecodable payload, got %v", reader.acked)
	}
	if len(publisher.snapshot()) != 0 {
		t.Fatal("expected no result published for undecodable payload")
	}
}

func TestRunnerRunStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	reader := &fakeTaskReader{}
	publisher := &fakeResultPublisher{}
	runner := NewRunner(reader, publisher, dir, "runner-test", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
