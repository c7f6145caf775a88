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

// Command runner consumes execution tasks from the task stream and runs
// each check's script in an isolated per-check working directory.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	libutils "github.com/NVIDIA/pinglow/lib/utils"

	"github.com/NVIDIA/pinglow/internal/config"
	"github.com/NVIDIA/pinglow/internal/execute"
	"github.com/NVIDIA/pinglow/internal/stream"
	redisutil "github.com/NVIDIA/pinglow/utils/redis"
)

func main() {
	cfg := config.ParseRunnerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	version, err := libutils.LoadVersion()
	if err != nil {
		logger.Warn("failed to load version metadata", slog.String("error", err.Error()))
		version = "dev"
	}
	logger.Info("starting runner",
		slog.String("version", version),
		slog.String("runner_name", cfg.RunnerName),
		slog.String("checks_base_path", cfg.ChecksBasePath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redisutil.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	streamClient := stream.New(redisClient.Client(), logger)
	if err := streamClient.EnsureGroups(ctx); err != nil {
		log.Fatalf("failed to ensure stream groups: %v", err)
	}

	if err := os.MkdirAll(cfg.ChecksBasePath, 0o755); err != nil {
		log.Fatalf("failed to create checks base path %q: %v", cfg.ChecksBasePath, err)
	}

	runner := execute.NewRunner(streamClient, streamClient, cfg.ChecksBasePath, cfg.RunnerName, logger)
	runner.Run(ctx)

	logger.Info("runner stopped gracefully")
}
