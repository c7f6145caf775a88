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
	"fmt"

	"github.com/NVIDIA/pinglow/internal/model"
)

// resolve hydrates a single named Check into a ResolvedCheck: its script (if
// referenced), its resolved secret values, and its resolved channels (chat id
// plus bot token). A missing reference fails closed with a structural
// *model.ErrResourceNotFound or *model.ErrPropertyExtraction; any other fetch
// error is propagated as transient.
func resolve(src Source, check *model.Check) (*model.ResolvedCheck, error) {
	rc := &model.ResolvedCheck{
		Name:                   check.Name,
		Passive:                check.Passive,
		Interval:               check.Interval,
		Secrets:                make(map[string]string),
		MuteNotifications:      check.MuteNotifications,
		MuteNotificationsUntil: check.MuteNotificationsUntil,
	}

	if check.ScriptRef != "" {
		script, err := src.FetchScript(check.ScriptRef)
		if err != nil {
			return nil, wrapFetchErr(err, "Script", check.ScriptRef)
		}
		rc.Script = script
	}

	for _, secretName := range check.SecretRefs {
		secret, err := src.FetchSecret(secretName)
		if err != nil {
			return nil, wrapFetchErr(err, "Secret", secretName)
		}
		for k, v := range secret.Data {
			rc.Secrets[k] = v
		}
	}

	rc.Channels = make([]model.ResolvedChannel, 0, len(check.ChannelRefs))
	for _, channelName := range check.ChannelRefs {
		channel, err := src.FetchChannel(channelName)
		if err != nil {
			return nil, wrapFetchErr(err, "NotificationChannel", channelName)
		}
		secret, err := src.FetchSecret(channel.BotTokenRef)
		if err != nil {
			return nil, wrapFetchErr(err, "Secret", channel.BotTokenRef)
		}
		botToken, ok := secret.Data["botToken"]
		if !ok {
			return nil, &model.ErrPropertyExtraction{Check: check.Name, Field: "botToken"}
		}
		rc.Channels = append(rc.Channels, model.ResolvedChannel{ChatID: channel.ChatID, BotToken: botToken})
	}

	return rc, nil
}

// wrapFetchErr turns a Source fetch error into the taxonomy's structural
// ResourceNotFound when the object is simply absent, leaving any other
// (transient) error unwrapped so the caller can tell the two apart.
func wrapFetchErr(err error, kind, name string) error {
	if errors.Is(err, ErrNotFound) {
		return &model.ErrResourceNotFound{Kind: kind, Name: name}
	}
	return fmt.Errorf("fetch %s %q: %w", kind, name, err)
}
