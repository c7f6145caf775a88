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

// Package results persists check results and performance data, and notifies
// configured channels of non-OK outcomes subject to mute windows.
package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NVIDIA/pinglow/internal/model"
	"github.com/NVIDIA/pinglow/internal/postgres"
)

// Store persists check results and their parsed performance data.
type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewStore wraps a Postgres client for result persistence.
func NewStore(client *postgres.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// InsertResult writes one check_result row and one check_result_perf_data row
// per parsed performance pair.
func (s *Store) InsertResult(ctx context.Context, humanText string, perf []PerfPoint, r *model.CheckResult) error {
	ts := time.Now()
	if r.Timestamp != nil {
		ts = *r.Timestamp
	}

	const insertResult = `
		INSERT INTO check_result (timestamp, check_name, status, output)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.client.Pool().Exec(ctx, insertResult, ts, r.CheckName, int16(r.Status), humanText); err != nil {
		return fmt.Errorf("insert check_result for %q: %w", r.CheckName, err)
	}

	const insertPerf = `
		INSERT INTO check_result_perf_data (timestamp, check_name, perf_key, perf_value)
		VALUES ($1, $2, $3, $4)`
	for _, p := range perf {
		if _, err := s.client.Pool().Exec(ctx, insertPerf, ts, r.CheckName, p.Key, p.Value); err != nil {
			return fmt.Errorf("insert check_result_perf_data for %q key %q: %w", r.CheckName, p.Key, err)
		}
	}

	return nil
}

// LatestStatus is the most recent check_result row for a check.
type LatestStatus struct {
	Timestamp time.Time
	Status    model.CheckStatus
	Output    string
}

// LatestResult returns the most recent result row for name, or ok=false if
// none exists yet.
func (s *Store) LatestResult(ctx context.Context, name string) (LatestStatus, bool, error) {
	const query = `
		SELECT timestamp, status, output
		FROM check_result
		WHERE check_name = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	var out LatestStatus
	var status int16
	row := s.client.Pool().QueryRow(ctx, query, name)
	if err := row.Scan(&out.Timestamp, &status, &out.Output); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LatestStatus{}, false, nil
		}
		return LatestStatus{}, false, fmt.Errorf("query latest result for %q: %w", name, err)
	}
	out.Status = model.CheckStatus(status)
	return out, true, nil
}

// PerfSeries returns an ascending-timestamp map of timestamp -> (perf_key ->
// perf_value) for a check.
func (s *Store) PerfSeries(ctx context.Context, name string) (map[string]map[string]float64, error) {
	const query = `
		SELECT timestamp, perf_key, perf_value
		FROM check_result_perf_data
		WHERE check_name = $1
		ORDER BY timestamp ASC`

	rows, err := s.client.Pool().Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query perf data for %q: %w", name, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]float64)
	for rows.Next() {
		var ts time.Time
		var key string
		var value float64
		if err := rows.Scan(&ts, &key, &value); err != nil {
			return nil, fmt.Errorf("scan perf row for %q: %w", name, err)
		}
		bucket := ts.Format(time.RFC3339)
		if out[bucket] == nil {
			out[bucket] = make(map[string]float64)
		}
		out[bucket][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate perf rows for %q: %w", name, err)
	}
	return out, nil
}
