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
	"log/slog"
	"testing"
)

func TestSplitOutput(t *testing.T) {
	cases := []struct {
		name      string
		output    string
		wantHuman string
		wantPerf  string
	}{
		{"empty", "", "", ""},
		{"no delimiter", "all good", "all good", ""},
		{"with perf", "text|k=1,k2=bad", "text", "k=1,k2=bad"},
		{"empty human with perf", "|k=1", "", "k=1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			human, perf := splitOutput(tc.output)
			if human != tc.wantHuman || perf != tc.wantPerf {
				t.Errorf("splitOutput(%q) = (%q, %q), want (%q, %q)", tc.output, human, perf, tc.wantHuman, tc.wantPerf)
			}
		})
	}
}

func TestParsePerfBlobBoundaries(t *testing.T) {
	logger := slog.Default()

	t.Run("empty blob yields no points", func(t *testing.T) {
		points := parsePerfBlob("", logger)
		if len(points) != 0 {
			t.Fatalf("expected zero points, got %d", len(points))
		}
	})

	t.Run("bad value substitutes zero", func(t *testing.T) {
		points := parsePerfBlob("k=1,k2=bad", logger)
		if len(points) != 2 {
			t.Fatalf("expected two points, got %d", len(points))
		}
		if points[0].Key != "k" || points[0].Value != 1.0 {
			t.Errorf("got first point %+v, want k=1.0", points[0])
		}
		if points[1].Key != "k2" || points[1].Value != 0.0 {
			t.Errorf("got second point %+v, want k2=0.0", points[1])
		}
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		points := parsePerfBlob(" cpu = 0.5 , mem = 2048 ", logger)
		if len(points) != 2 {
			t.Fatalf("expected two points, got %d", len(points))
		}
		if points[0].Key != "cpu" || points[0].Value != 0.5 {
			t.Errorf("got %+v, want cpu=0.5", points[0])
		}
		if points[1].Key != "mem" || points[1].Value != 2048.0 {
			t.Errorf("got %+v, want mem=2048.0", points[1])
		}
	})
}
