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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/results"
)

type fakeModel struct {
	mu       sync.Mutex
	raw      map[string]*model.Check
	resolved map[string]*model.ResolvedCheck
}

func newFakeModel() *fakeModel {
	return &fakeModel{raw: map[string]*model.Check{}, resolved: map[string]*model.ResolvedCheck{}}
}

func (f *fakeModel) List() []*model.ResolvedCheck {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.ResolvedCheck, 0, len(f.resolved))
	for _, rc := range f.resolved {
		out = append(out, rc)
	}
	return out
}

func (f *fakeModel) Get(name string) (*model.ResolvedCheck, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rc, ok := f.resolved[name]
	return rc, ok
}

func (f *fakeModel) GetRaw(name string) (*model.Check, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.raw[name]
	return c, ok
}

func (f *fakeModel) Put(raw *model.Check, resolved *model.ResolvedCheck) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[raw.Name] = raw
	f.resolved[resolved.Name] = resolved
}

type fakeStatusReader struct {
	latest  results.LatestStatus
	hasRow  bool
	perf    map[string]map[string]float64
	readErr error
}

func (f *fakeStatusReader) LatestResult(ctx context.Context, name string) (results.LatestStatus, bool, error) {
	return f.latest, f.hasRow, f.readErr
}

func (f *fakeStatusReader) PerfSeries(ctx context.Context, name string) (map[string]map[string]float64, error) {
	return f.perf, f.readErr
}

type fakeProcessor struct {
	mu        sync.Mutex
	processed []*model.CheckResult
}

func (f *fakeProcessor) ProcessResult(ctx context.Context, r *model.CheckResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, r)
}

type fakeMuter struct {
	mu       sync.Mutex
	calls    int
	lastMute bool
	lastName string
}

func (f *fakeMuter) SetMute(name string, mute bool, until *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastName = name
	f.lastMute = mute
	return nil
}

const testAPIKey = "shared-secret"

func newTestServer(m *fakeModel, status *fakeStatusReader, proc *fakeProcessor, mute *fakeMuter) *Server {
	return NewServer(m, status, proc, mute, testAPIKey, nil)
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	srv := newTestServer(newFakeModel(), &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthMissingKeyReturns401(t *testing.T) {
	srv := newTestServer(newFakeModel(), &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})
	req := httptest.NewRequest(http.MethodGet, "/checks", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMismatchedKeyReturns401(t *testing.T) {
	srv := newTestServer(newFakeModel(), &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})
	req := httptest.NewRequest(http.MethodGet, "/checks", nil)
	req.Header.Set("x-api-key", "wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthDuplicateKeyHeaderReturns401(t *testing.T) {
	srv := newTestServer(newFakeModel(), &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})
	req := httptest.NewRequest(http.MethodGet, "/checks", nil)
	req.Header.Add("x-api-key", testAPIKey)
	req.Header.Add("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestServerWithNoConfiguredKeyReturns500(t *testing.T) {
	srv := NewServer(newFakeModel(), &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{}, "", nil)
	req := httptest.NewRequest(http.MethodGet, "/checks", nil)
	req.Header.Set("x-api-key", "anything")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestListChecks(t *testing.T) {
	m := newFakeModel()
	interval := int64(30)
	m.Put(&model.Check{Name: "c1"}, &model.ResolvedCheck{Name: "c1", Interval: &interval})
	srv := newTestServer(m, &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})

	req := httptest.NewRequest(http.MethodGet, "/checks", nil)
	req.Header.Set("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []checkSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Name != "c1" || *got[0].Interval != 30 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestCheckStatusSynthesizesPendingWhenNoRow(t *testing.T) {
	m := newFakeModel()
	m.Put(&model.Check{Name: "c1"}, &model.ResolvedCheck{Name: "c1"})
	srv := newTestServer(m, &fakeStatusReader{hasRow: false}, &fakeProcessor{}, &fakeMuter{})

	req := httptest.NewRequest(http.MethodGet, "/check-status/c1", nil)
	req.Header.Set("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var got checkStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != model.StatusPending.String() || got.Output != pendingMessage {
		t.Fatalf("unexpected synthesized status: %+v", got)
	}
}

func TestCheckStatusUnknownCheckReturns404(t *testing.T) {
	srv := newTestServer(newFakeModel(), &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})
	req := httptest.NewRequest(http.MethodGet, "/check-status/ghost", nil)
	req.Header.Set("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMuteBadUntilReturns400(t *testing.T) {
	m := newFakeModel()
	m.Put(&model.Check{Name: "c1"}, &model.ResolvedCheck{Name: "c1"})
	srv := newTestServer(m, &fakeStatusReader{}, &fakeProcessor{}, &fakeMuter{})

	req := httptest.NewRequest(http.MethodPut, "/check/c1/mute?until=not-a-date", nil)
	req.Header.Set("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMuteAndUnmuteMirrorIntoModel(t *testing.T) {
	m := newFakeModel()
	m.Put(&model.Check{Name: "c1"}, &model.ResolvedCheck{Name: "c1"})
	mute := &fakeMuter{}
	srv := newTestServer(m, &fakeStatusReader{}, &fakeProcessor{}, mute)

	req := httptest.NewRequest(http.MethodPut, "/check/c1/mute", nil)
	req.Header.Set("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if mute.calls != 1 || !mute.lastMute || mute.lastName != "c1" {
		t.Fatalf("unexpected upstream mute call: %+v", mute)
	}
	resolved, _ := m.Get("c1")
	if !resolved.MuteNotifications {
		t.Fatal("expected model to mirror mute=true")
	}

	req = httptest.NewRequest(http.MethodDelete, "/check/c1/mute", nil)
	req.Header.Set("x-api-key", testAPIKey)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	resolved, _ = m.Get("c1")
	if resolved.MuteNotifications {
		t.Fatal("expected model to mirror mute=false after unmute")
	}
}

func TestPostResultInvokesProcessor(t *testing.T) {
	m := newFakeModel()
	m.Put(&model.Check{Name: "c1", Passive: true}, &model.ResolvedCheck{Name: "c1", Passive: true})
	proc := &fakeProcessor{}
	srv := newTestServer(m, &fakeStatusReader{}, proc, &fakeMuter{})

	body, _ := json.Marshal(map[string]interface{}{"output": "OK|cpu=1", "status": 0})
	req := httptest.NewRequest(http.MethodPost, "/check/c1/result", bytes.NewReader(body))
	req.Header.Set("x-api-key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(proc.processed) != 1 || proc.processed[0].CheckName != "c1" {
		t.Fatalf("unexpected processed results: %+v", proc.processed)
	}
}
