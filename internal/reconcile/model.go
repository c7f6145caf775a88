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

// Package reconcile owns the Resource Model (a concurrently readable
// check-name -> ResolvedCheck mapping) and the reconciler that keeps it in
// sync with upstream Check/Script/Secret/NotificationChannel resources.
package reconcile

import (
	"sort"
	"sync"

	"github.com/NVIDIA/pinglow/internal/model"
)

// Model is the process-wide Resource Model: a concurrently readable mapping
// from check name to its most recent ResolvedCheck, alongside the raw
// upstream Check used for reverse-indexing references. The reconciler and the
// admin facade are its only writers; they serialize on the same lock.
type Model struct {
	mu       sync.RWMutex
	resolved map[string]*model.ResolvedCheck
	raw      map[string]*model.Check
}

// NewModel constructs an empty Resource Model.
func NewModel() *Model {
	return &Model{
		resolved: make(map[string]*model.ResolvedCheck),
		raw:      make(map[string]*model.Check),
	}
}

// Get returns the resolved check by name, if present.
func (m *Model) Get(name string) (*model.ResolvedCheck, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rc, ok := m.resolved[name]
	return rc, ok
}

// GetRaw returns the raw upstream Check by name, if present.
func (m *Model) GetRaw(name string) (*model.Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.raw[name]
	return c, ok
}

// List returns a snapshot of all resolved checks, ordered by name.
func (m *Model) List() []*model.ResolvedCheck {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.ResolvedCheck, 0, len(m.resolved))
	for _, rc := range m.resolved {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Put overwrites the model entry for a check with its raw form and its
// freshly resolved form.
func (m *Model) Put(raw *model.Check, resolved *model.ResolvedCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[raw.Name] = raw
	m.resolved[resolved.Name] = resolved
}

// Delete removes a check from the model entirely.
func (m *Model) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.raw, name)
	delete(m.resolved, name)
}

// ChecksReferencingScript returns the names of checks whose scriptRef matches
// name.
func (m *Model) ChecksReferencingScript(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, c := range m.raw {
		if c.ScriptRef == name {
			out = append(out, c.Name)
		}
	}
	return out
}

// ChecksReferencingSecret returns the names of checks whose secretRefs
// contains name, plus any check whose channel's botTokenRef (resolved via
// channelBotTokenRef) matches name. channelBotTokenRef returns ok=false if the
// channel cannot be resolved.
func (m *Model) ChecksReferencingSecret(name string, channelBotTokenRef func(channelName string) (string, bool)) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	add := func(checkName string) {
		if !seen[checkName] {
			seen[checkName] = true
			out = append(out, checkName)
		}
	}
	for _, c := range m.raw {
		for _, ref := range c.SecretRefs {
			if ref == name {
				add(c.Name)
			}
		}
		for _, chRef := range c.ChannelRefs {
			if botTokenRef, ok := channelBotTokenRef(chRef); ok && botTokenRef == name {
				add(c.Name)
			}
		}
	}
	return out
}

// ChecksReferencingChannel returns the names of checks whose channelRefs
// contains name.
func (m *Model) ChecksReferencingChannel(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, c := range m.raw {
		for _, ref := range c.ChannelRefs {
			if ref == name {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}
