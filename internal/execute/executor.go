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

package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/NVIDIA/pinglow/internal/model"
)

const (
	scriptFilePython = "script.py"
	scriptFileBash   = "script.sh"
	venvDirName      = "venv"
	dirMode          = 0o755
	fileMode         = 0o644
)

// Executor runs a single ResolvedCheck's script inside an isolated working
// directory rooted at basePath.
type Executor struct {
	basePath string
	logger   *slog.Logger
}

// NewExecutor builds an Executor rooted at basePath.
func NewExecutor(basePath string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{basePath: basePath, logger: logger}
}

// Execute runs rc's script end to end and always returns a CheckResult: any
// failure along the way (missing script, venv setup, dependency install,
// process exec) is converted to a synthetic CheckError result rather than
// propagated, per the runner's never-fail-the-process contract.
func (e *Executor) Execute(ctx context.Context, rc *model.ResolvedCheck) *model.CheckResult {
	if rc.Script == nil {
		return newResult(rc, model.StatusCheckError, "no script configured for this check")
	}

	workDir := filepath.Join(e.basePath, "check-"+rc.Name)
	if err := os.MkdirAll(workDir, dirMode); err != nil {
		return newResult(rc, model.StatusCheckError, fmt.Sprintf("failed to create working directory: %v", err))
	}

	switch rc.Script.Language {
	case model.ScriptLanguageBash:
		return e.executeBash(ctx, rc, workDir)
	case model.ScriptLanguagePython:
		return e.executePython(ctx, rc, workDir)
	default:
		return newResult(rc, model.StatusCheckError, fmt.Sprintf("unsupported script language %q", rc.Script.Language))
	}
}

func (e *Executor) executeBash(ctx context.Context, rc *model.ResolvedCheck, workDir string) *model.CheckResult {
	scriptPath := filepath.Join(workDir, scriptFileBash)
	if err := os.WriteFile(scriptPath, []byte(rc.Script.Content), fileMode); err != nil {
		return newResult(rc, model.StatusCheckError, fmt.Sprintf("failed to write script: %v", err))
	}

	cmd := exec.CommandContext(ctx, "/bin/bash", scriptPath)
	cmd.Dir = workDir
	cmd.Env = secretEnv(rc.Secrets)
	return e.runAndMapStatus(rc, cmd)
}

func (e *Executor) executePython(ctx context.Context, rc *model.ResolvedCheck, workDir string) *model.CheckResult {
	scriptPath := filepath.Join(workDir, scriptFilePython)
	if err := os.WriteFile(scriptPath, []byte(rc.Script.Content), fileMode); err != nil {
		return newResult(rc, model.StatusCheckError, fmt.Sprintf("failed to write script: %v", err))
	}

	venvDir := filepath.Join(workDir, venvDirName)
	if err := e.ensureVenv(ctx, venvDir); err != nil {
		return newResult(rc, model.StatusCheckError, fmt.Sprintf("failed to create virtual environment: %v", err))
	}

	if len(rc.Script.PythonRequirements) > 0 {
		if out, err := e.installRequirements(ctx, venvDir, workDir, rc.Script.PythonRequirements); err != nil {
			return newResult(rc, model.StatusCheckError, fmt.Sprintf("dependency install failed: %v\n%s", err, out))
		}
	}

	cmd := exec.CommandContext(ctx, filepath.Join(venvDir, "bin", "python"), scriptPath)
	cmd.Dir = workDir
	cmd.Env = secretEnv(rc.Secrets)
	return e.runAndMapStatus(rc, cmd)
}

// ensureVenv creates the venv directory idempotently: a pyvenv.cfg already
// present is treated as "already created".
func (e *Executor) ensureVenv(ctx context.Context, venvDir string) error {
	if _, err := os.Stat(filepath.Join(venvDir, "pyvenv.cfg")); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cmd := exec.CommandContext(ctx, "python3", "-m", "venv", venvDir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, out.String())
	}
	return nil
}

// installRequirements tokenizes the script's declared requirements the same
// way shell-style argument strings are split elsewhere, then runs the venv's
// pip with them.
func (e *Executor) installRequirements(ctx context.Context, venvDir, workDir string, requirements []string) (string, error) {
	args, err := shlex.Split(strings.Join(requirements, " "))
	if err != nil {
		return "", fmt.Errorf("tokenize requirements: %w", err)
	}

	pipArgs := append([]string{"install"}, args...)
	cmd := exec.CommandContext(ctx, filepath.Join(venvDir, "bin", "pip"), pipArgs...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

// runAndMapStatus executes cmd, capturing stdout, and maps its exit code to
// a CheckResult. An error starting the process, or an exit code the process
// never reported, both resolve to CheckError via StatusFromExitCode.
func (e *Executor) runAndMapStatus(rc *model.ResolvedCheck, cmd *exec.Cmd) *model.CheckResult {
	stdout, runErr := cmd.Output()

	exitCode, hasExitCode := 0, true
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		exitCode = exitErr.ExitCode()
		hasExitCode = exitCode >= 0
	default:
		hasExitCode = false
	}

	status := model.StatusFromExitCode(exitCode, hasExitCode)
	output := string(stdout)
	if status == model.StatusCheckError && runErr != nil && !hasResultOutput(output) {
		output = runErr.Error()
	}
	return newResult(rc, status, output)
}

func hasResultOutput(output string) bool {
	return strings.TrimSpace(output) != ""
}

// secretEnv builds the child process environment: the parent's own
// environment (for PATH, HOME, etc.) plus one KEY=value entry per resolved
// secret.
func secretEnv(secrets map[string]string) []string {
	env := os.Environ()
	for k, v := range secrets {
		env = append(env, k+"="+v)
	}
	return env
}
