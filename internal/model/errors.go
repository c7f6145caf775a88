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

import "fmt"

// ErrResourceNotFound is returned when a check references a script, secret,
// or channel that does not exist in the Resource Model. Reconciliation of
// that check fails and the last-good model entry is retained.
type ErrResourceNotFound struct {
	Kind string // "Script", "Secret", "NotificationChannel"
	Name string
}

func (e *ErrResourceNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ErrPropertyExtraction is returned when a check or one of its dependents is
// missing a required attribute, e.g. a Telegram channel whose secret has no
// botToken key.
type ErrPropertyExtraction struct {
	Check string
	Field string
}

func (e *ErrPropertyExtraction) Error() string {
	return fmt.Sprintf("check %q: missing required field %q", e.Check, e.Field)
}

// ErrTransport wraps a failure talking to an upstream collaborator (resource
// watcher, stream, database, HTTP). Callers retry with backoff.
type ErrTransport struct {
	Op    string
	Cause error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Cause)
}

func (e *ErrTransport) Unwrap() error {
	return e.Cause
}

// ErrSerialization is returned when a stream entry's payload cannot be
// decoded. The stream-level policy is to leave it unacknowledged so
// redelivery retries it; persistent failures require operator intervention.
type ErrSerialization struct {
	Stream string
	Cause  error
}

func (e *ErrSerialization) Error() string {
	return fmt.Sprintf("failed to decode payload from stream %q: %v", e.Stream, e.Cause)
}

func (e *ErrSerialization) Unwrap() error {
	return e.Cause
}
