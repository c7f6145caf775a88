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
	"strconv"
	"strings"
)

// PerfPoint is one parsed key=value performance pair.
type PerfPoint struct {
	Key   string
	Value float64
}

// splitOutput splits raw output on the first '|' into human text and a
// performance blob. Output with no '|' is entirely human text.
func splitOutput(output string) (humanText, perfBlob string) {
	idx := strings.IndexByte(output, '|')
	if idx < 0 {
		return output, ""
	}
	return output[:idx], output[idx+1:]
}

// parsePerfBlob parses a comma-separated key=value blob. A pair whose value
// fails to parse as a float logs a warning and contributes 0.0 rather than
// being dropped.
func parsePerfBlob(blob string, logger *slog.Logger) []PerfPoint {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil
	}

	pairs := strings.Split(blob, ",")
	points := make([]PerfPoint, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		rawValue = strings.TrimSpace(rawValue)

		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			logger.Warn("failed to parse performance value, substituting 0.0",
				slog.String("key", key), slog.String("raw_value", rawValue))
			value = 0.0
		}
		points = append(points, PerfPoint{Key: key, Value: value})
	}
	return points
}
