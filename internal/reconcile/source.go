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

package reconcile

import (
	"errors"

	"github.com/NVIDIA/pinglow/internal/model"
)

// ErrNotFound is returned by a Source fetch method when the named object does
// not exist upstream. Any other non-nil error is treated as transient.
var ErrNotFound = errors.New("resource not found")

// ResourceKind is one of the four upstream kinds the reconciler watches.
type ResourceKind int

const (
	KindCheck ResourceKind = iota
	KindScript
	KindSecret
	KindChannel
)

func (k ResourceKind) String() string {
	switch k {
	case KindCheck:
		return "Check"
	case KindScript:
		return "Script"
	case KindSecret:
		return "Secret"
	case KindChannel:
		return "NotificationChannel"
	default:
		return "Unknown"
	}
}

// ResourceEvent is a single upstream add/update/delete notification. Name
// identifies the object; Deleted distinguishes a removal (or a deletion
// marker) from an add/update.
type ResourceEvent struct {
	Kind    ResourceKind
	Name    string
	Deleted bool
}

// Source is the abstracted resource watcher: it streams typed events for all
// four kinds and serves point lookups by name for reconciliation fetches.
// Fetch methods return ErrNotFound for a missing object; any other error is
// transient. The k8s-backed implementation lives in k8s_source.go; tests
// substitute an in-memory fake.
type Source interface {
	// Events returns the channel upstream add/update/delete notifications
	// arrive on. The channel is closed when the source's context is
	// cancelled.
	Events() <-chan ResourceEvent

	FetchCheck(name string) (*model.Check, error)
	FetchScript(name string) (*model.Script, error)
	FetchSecret(name string) (*model.Secret, error)
	FetchChannel(name string) (*model.TelegramChannel, error)
}

// PatchMute is the subset of upstream write access the admin facade needs: it
// patches the Check's mute fields upstream (the reconciler observes the
// resulting Check event and mirrors it into the model).
type PatchMute interface {
	SetMute(name string, mute bool, until *string) error
}
