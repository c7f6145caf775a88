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

// Package config parses controller and runner configuration from flags and
// environment variables at startup.
package config

import (
	"flag"

	"github.com/NVIDIA/pinglow/internal/postgres"
	"github.com/NVIDIA/pinglow/utils"
	redisutil "github.com/NVIDIA/pinglow/utils/redis"
)

// ControllerConfig holds everything the controller binary (reconciler,
// scheduler, result consumer, admin facade) needs at startup.
type ControllerConfig struct {
	Namespace  string
	APIKey     string
	ListenAddr string

	Redis    redisutil.RedisConfig
	Postgres postgres.Config
}

// RunnerConfig holds everything the runner binary needs at startup.
type RunnerConfig struct {
	RunnerName     string
	ChecksBasePath string

	Redis redisutil.RedisConfig
}

// ParseControllerConfig registers flags, calls flag.Parse(), and returns the
// resolved ControllerConfig. It must be called at most once per process.
func ParseControllerConfig() ControllerConfig {
	redisFlags := redisutil.RegisterRedisFlags()

	namespace := flag.String("namespace",
		utils.GetEnv("NAMESPACE", "default"),
		"Kubernetes namespace to watch for Check/Script/Secret/NotificationChannel resources")
	apiKey := flag.String("api-key",
		utils.GetEnvOrConfig("API_KEY", "api_key", ""),
		"shared secret required on the x-api-key header of admin facade requests")
	listenAddr := flag.String("listen-addr",
		utils.GetEnv("LISTEN_ADDR", ":8000"),
		"address the admin facade listens on")

	db := flag.String("db",
		utils.GetEnv("DB", "pinglow"),
		"Postgres database name")
	dbHost := flag.String("db-host",
		utils.GetEnv("DB_HOST", "localhost"),
		"Postgres host")
	dbUser := flag.String("db-user",
		utils.GetEnv("DB_USER", "pinglow"),
		"Postgres user")
	dbPassword := flag.String("db-user-password",
		utils.GetEnvOrConfig("DB_USER_PASSWORD", "db_user_password", ""),
		"Postgres password")

	flag.Parse()

	pgCfg := postgres.DefaultConfig()
	pgCfg.Host = *dbHost
	pgCfg.Database = *db
	pgCfg.User = *dbUser
	pgCfg.Password = *dbPassword

	return ControllerConfig{
		Namespace:  *namespace,
		APIKey:     *apiKey,
		ListenAddr: *listenAddr,
		Redis:      redisFlags.ToRedisConfig(),
		Postgres:   pgCfg,
	}
}

// ParseRunnerConfig registers flags, calls flag.Parse(), and returns the
// resolved RunnerConfig. It must be called at most once per process.
func ParseRunnerConfig() RunnerConfig {
	redisFlags := redisutil.RegisterRedisFlags()

	runnerName := flag.String("runner-name",
		utils.GetEnv("RUNNER_NAME", "runner-unknown"),
		"identifies this runner as a stream consumer")
	checksBasePath := flag.String("checks-base-path",
		utils.GetEnv("CHECKS_BASE_PATH", "/home/pinglow-runner/"),
		"base directory under which each check gets its own working directory")

	flag.Parse()

	return RunnerConfig{
		RunnerName:     *runnerName,
		ChecksBasePath: *checksBasePath,
		Redis:          redisFlags.ToRedisConfig(),
	}
}
