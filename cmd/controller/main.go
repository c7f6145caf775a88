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

// Command controller runs the reconciler, scheduler, result consumer, and
// admin facade as a single process.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	libutils "github.com/NVIDIA/pinglow/lib/utils"

	"github.com/NVIDIA/pinglow/internal/api"
	"github.com/NVIDIA/pinglow/internal/config"
	"github.com/NVIDIA/pinglow/internal/postgres"
	"github.com/NVIDIA/pinglow/internal/reconcile"
	"github.com/NVIDIA/pinglow/internal/results"
	"github.com/NVIDIA/pinglow/internal/scheduler"
	"github.com/NVIDIA/pinglow/internal/stream"
	redisutil "github.com/NVIDIA/pinglow/utils/redis"
)

const shutdownTimeout = 60 * time.Second

func main() {
	cfg := config.ParseControllerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	version, err := libutils.LoadVersion()
	if err != nil {
		logger.Warn("failed to load version metadata", slog.String("error", err.Error()))
		version = "dev"
	}
	logger.Info("starting controller", slog.String("version", version), slog.String("namespace", cfg.Namespace))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redisutil.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	pgClient, err := postgres.NewClient(ctx, cfg.Postgres, logger)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pgClient.Close()

	streamClient := stream.New(redisClient.Client(), logger)
	if err := streamClient.EnsureGroups(ctx); err != nil {
		log.Fatalf("failed to ensure stream groups: %v", err)
	}

	k8sSource, err := reconcile.NewK8sSource(ctx, cfg.Namespace, logger)
	if err != nil {
		log.Fatalf("failed to start resource watcher: %v", err)
	}

	model := reconcile.NewModel()
	sched := scheduler.New(streamClient, logger)
	rec := reconcile.NewReconciler(k8sSource, model, sched, logger)

	store := results.NewStore(pgClient, logger)
	notifier := results.NewNotifier(logger)
	consumer := results.NewConsumer(streamClient, store, notifier, "controller-result-consumer", logger)

	adminServer := api.NewServer(model, store, consumer, k8sSource, cfg.APIKey, logger)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: adminServer}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); rec.Run(ctx) }()
	go func() { defer wg.Done(); sched.Run(ctx) }()
	go func() { defer wg.Done(); consumer.Run(ctx) }()

	go func() {
		logger.Info("admin facade listening", slog.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin facade stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin facade failed to shut down cleanly", slog.String("error", err.Error()))
	}

	wg.Wait()
	logger.Info("controller stopped gracefully")
}
