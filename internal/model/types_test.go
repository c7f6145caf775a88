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

package model

import (
	"testing"
	"time"
)

func TestStatusFromExitCode(t *testing.T) {
	cases := []struct {
		name        string
		exitCode    int
		hasExitCode bool
		want        CheckStatus
	}{
		{"ok", 0, true, StatusOk},
		{"warning", 1, true, StatusWarning},
		{"critical", 2, true, StatusCritical},
		{"pending boundary", 4, true, StatusPending},
		{"unknown code is check error", 99, true, StatusCheckError},
		{"missing exit code is check error", 0, false, StatusCheckError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StatusFromExitCode(tc.exitCode, tc.hasExitCode)
			if got != tc.want {
				t.Errorf("StatusFromExitCode(%d, %v) = %v, want %v", tc.exitCode, tc.hasExitCode, got, tc.want)
			}
		})
	}
}

func TestCheckResultSuppress(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name     string
		mute     bool
		until    *time.Time
		suppress bool
	}{
		{"not muted", false, nil, false},
		{"muted indefinitely", true, nil, true},
		{"muted until future", true, &future, true},
		{"muted until past", true, &past, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := CheckResult{MuteNotifications: tc.mute, MuteNotificationsUntil: tc.until}
			if got := r.Suppress(now); got != tc.suppress {
				t.Errorf("Suppress() = %v, want %v", got, tc.suppress)
			}
		})
	}
}

func TestCheckResultShouldNotify(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		status CheckStatus
		mute   bool
		want   bool
	}{
		{"ok never notifies", StatusOk, false, false},
		{"pending never notifies", StatusPending, false, false},
		{"critical notifies", StatusCritical, false, true},
		{"warning notifies", StatusWarning, false, true},
		{"critical muted does not notify", StatusCritical, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := CheckResult{Status: tc.status, MuteNotifications: tc.mute}
			if got := r.ShouldNotify(now); got != tc.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolvedCheckHasInterval(t *testing.T) {
	var zero int64 = 0
	var five int64 = 5
	cases := []struct {
		name string
		rc   ResolvedCheck
		want bool
	}{
		{"nil interval", ResolvedCheck{}, false},
		{"zero interval", ResolvedCheck{Interval: &zero}, false},
		{"positive interval", ResolvedCheck{Interval: &five}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rc.HasInterval(); got != tc.want {
				t.Errorf("HasInterval() = %v, want %v", got, tc.want)
			}
		})
	}
}
