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
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NVIDIA/pinglow/internal/model"
)

const telegramAPIBase = "https://api.telegram.org"

// Notifier posts Telegram notifications for non-OK, unsuppressed results.
// Network failures are logged, never retried: a perpetually broken webhook
// must not block result acknowledgement.
type Notifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiBase    string
}

// NewNotifier constructs a Notifier with a bounded-timeout HTTP client.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		apiBase:    telegramAPIBase,
	}
}

// Notify sends r to every carried channel, provided the mute predicate
// permits. Each channel is attempted independently; a failure on one channel
// does not prevent delivery to the others.
func (n *Notifier) Notify(ctx context.Context, humanText string, r *model.CheckResult) {
	now := time.Now()
	if !r.ShouldNotify(now) {
		return
	}

	ts := now
	if r.Timestamp != nil {
		ts = *r.Timestamp
	}
	body := renderMessage(ts, r.CheckName, r.Status, humanText)

	for _, ch := range r.Channels {
		if err := n.send(ctx, ch, body); err != nil {
			n.logger.Error("telegram notification failed",
				slog.String("check", r.CheckName), slog.String("error", err.Error()))
		}
	}
}

func (n *Notifier) send(ctx context.Context, ch model.ResolvedChannel, body string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, ch.BotToken)

	form := url.Values{}
	form.Set("chat_id", ch.ChatID)
	form.Set("text", body)
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

func renderMessage(ts time.Time, checkName string, status model.CheckStatus, humanText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Date</b>: %s\n", ts.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "<b>Check name</b>: %s\n", html.EscapeString(checkName))
	fmt.Fprintf(&b, "<b>Status</b>: %s\n", status.String())
	b.WriteString("<b>Output</b>\n")
	fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(humanText))
	return b.String()
}
