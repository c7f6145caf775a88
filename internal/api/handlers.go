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
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
)

type checkSummary struct {
	Name     string `json:"name"`
	Passive  bool   `json:"passive"`
	Interval *int64 `json:"interval,omitempty"`
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	checks := s.model.List()
	out := make([]checkSummary, 0, len(checks))
	for _, c := range checks {
		out = append(out, checkSummary{Name: c.Name, Passive: c.Passive, Interval: c.Interval})
	}
	writeJSON(w, http.StatusOK, out)
}

// pendingMessage is the fixed synthesized status for a check that has never
// produced a result.
const pendingMessage = "no result recorded yet"

type checkStatusResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Output    string    `json:"output"`
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.model.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}

	latest, ok, err := s.status.LatestResult(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to query latest result", slog.String("check", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to query result store")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, checkStatusResponse{
			Timestamp: time.Now(),
			Status:    model.StatusPending.String(),
			Output:    pendingMessage,
		})
		return
	}

	writeJSON(w, http.StatusOK, checkStatusResponse{
		Timestamp: latest.Timestamp,
		Status:    latest.Status.String(),
		Output:    latest.Output,
	})
}

func (s *Server) handlePerformanceData(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.model.Get(name); !ok {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}

	series, err := s.status.PerfSeries(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to query perf series", slog.String("check", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to query result store")
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	raw, ok := s.model.GetRaw(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}

	var until *string
	if rawUntil := r.URL.Query().Get("until"); rawUntil != "" {
		ts, err := time.Parse(time.RFC3339, rawUntil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		formatted := ts.Format(time.RFC3339)
		until = &formatted
	}

	if err := s.mute.SetMute(name, true, until); err != nil {
		s.logger.Error("failed to patch mute upstream", slog.String("check", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update upstream check")
		return
	}

	s.mirrorMute(raw, true, until)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnmute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	raw, ok := s.model.GetRaw(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}

	if err := s.mute.SetMute(name, false, nil); err != nil {
		s.logger.Error("failed to patch mute upstream", slog.String("check", name), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update upstream check")
		return
	}

	s.mirrorMute(raw, false, nil)
	w.WriteHeader(http.StatusNoContent)
}

// mirrorMute updates the model's view of raw's mute fields immediately,
// ahead of the reconciler observing the upstream patch through its own
// watch event.
func (s *Server) mirrorMute(raw *model.Check, mute bool, until *string) {
	updated := *raw
	updated.MuteNotifications = mute
	updated.MuteNotificationsUntil = nil
	if until != nil {
		if ts, err := time.Parse(time.RFC3339, *until); err == nil {
			updated.MuteNotificationsUntil = &ts
		}
	}

	resolved, ok := s.model.Get(raw.Name)
	if !ok {
		return
	}
	updatedResolved := *resolved
	updatedResolved.MuteNotifications = updated.MuteNotifications
	updatedResolved.MuteNotificationsUntil = updated.MuteNotificationsUntil
	s.model.Put(&updated, &updatedResolved)
}

type postedResult struct {
	Output string            `json:"output"`
	Status model.CheckStatus `json:"status"`
}

func (s *Server) handlePostResult(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	resolved, ok := s.model.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown check")
		return
	}

	var body postedResult
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now()
	result := &model.CheckResult{
		CheckName:              name,
		Output:                 body.Output,
		Status:                 body.Status,
		Timestamp:              &now,
		Channels:               resolved.Channels,
		MuteNotifications:      resolved.MuteNotifications,
		MuteNotificationsUntil: resolved.MuteNotificationsUntil,
	}

	s.processor.ProcessResult(r.Context(), result)
	w.WriteHeader(http.StatusAccepted)
}
