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

// Package api implements the admin facade: a read-mostly HTTP surface over
// the Resource Model and the result store, authenticated by a shared API
// key.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/reconcile"
	"github.com/NVIDIA/pinglow/internal/results"
)

// CheckModel is the subset of reconcile.Model the facade reads.
type CheckModel interface {
	List() []*model.ResolvedCheck
	Get(name string) (*model.ResolvedCheck, bool)
	Put(raw *model.Check, resolved *model.ResolvedCheck)
	GetRaw(name string) (*model.Check, bool)
}

// StatusReader is the subset of results.Store the facade reads.
type StatusReader interface {
	LatestResult(ctx context.Context, checkName string) (results.LatestStatus, bool, error)
	PerfSeries(ctx context.Context, checkName string) (map[string]map[string]float64, error)
}

// ResultProcessor accepts a directly-posted result (typically for a passive
// check) and routes it through the normal result-processing path.
type ResultProcessor interface {
	ProcessResult(ctx context.Context, r *model.CheckResult)
}

// Server is the admin facade's http.Handler, wired over the Resource Model,
// the result store, the result-processing path, and upstream mute writes.
type Server struct {
	mux *http.ServeMux

	model     CheckModel
	status    StatusReader
	processor ResultProcessor
	mute      reconcile.PatchMute

	apiKey string
	logger *slog.Logger
}

// NewServer builds the admin facade. apiKey must be non-empty; an empty key
// makes every authenticated request (every route except /healthz) fail
// closed with 500, per the misconfigured-server case in the auth contract.
func NewServer(model CheckModel, status StatusReader, processor ResultProcessor, mute reconcile.PatchMute, apiKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		model:     model,
		status:    status,
		processor: processor,
		mute:      mute,
		apiKey:    apiKey,
		logger:    logger,
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /checks", s.authenticated(s.handleListChecks))
	s.mux.Handle("GET /check-status/{name}", s.authenticated(s.handleCheckStatus))
	s.mux.Handle("GET /performance-data/{name}", s.authenticated(s.handlePerformanceData))
	s.mux.Handle("PUT /check/{name}/mute", s.authenticated(s.handleMute))
	s.mux.Handle("DELETE /check/{name}/mute", s.authenticated(s.handleUnmute))
	s.mux.Handle("POST /check/{name}/result", s.authenticated(s.handlePostResult))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// authenticated wraps next with the shared-key check: missing, duplicated,
// or mismatched x-api-key values all fail with 401; a server with no
// configured key fails every request with 500.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			writeError(w, http.StatusInternalServerError, "server has no api key configured")
			return
		}
		keys := r.Header.Values("x-api-key")
		if len(keys) != 1 || keys[0] != s.apiKey {
			writeError(w, http.StatusUnauthorized, "missing or invalid x-api-key")
			return
		}
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response body", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
