// Copyright 2026 The SendPigeon Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/sendpigeon/cli/internal/client"
	"github.com/sendpigeon/cli/internal/display"
	"github.com/sendpigeon/cli/internal/message"
)

const maxTags = 5

// splitList splits a comma separated flag value.
func splitList(v string) message.Addresses {
	if v == "" {
		return nil
	}
	var out message.Addresses
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runSend(ctx context.Context, a *app, args []string) error {
	fs := a.flags("send")
	to := fs.String("to", "", "recipient address(es), comma-separated (required)")
	from := fs.String("from", "", "sender address")
	subject := fs.String("subject", "", "email subject")
	html := fs.String("html", "", "HTML body")
	text := fs.String("text", "", "plain text body")
	templateID := fs.String("template", "", "template ID to use")
	cc := fs.String("cc", "", "CC recipient(s), comma-separated")
	bcc := fs.String("bcc", "", "BCC recipient(s), comma-separated")
	replyTo := fs.String("reply-to", "", "reply-to address")
	scheduledAt := fs.String("scheduled-at", "", "ISO 8601 time to send at")
	idempotencyKey := fs.String("idempotency-key", "", "key making retries of this send safe")
	vars := map[string]string{}
	fs.Func("var", "template variable key=value (repeatable)", func(v string) error {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return errors.Errorf("want key=value, got %q", v)
		}
		vars[key] = value
		return nil
	})
	var tags []string
	fs.Func("tag", "tag (repeatable, max 5)", func(v string) error {
		tags = append(tags, v)
		return nil
	})
	if err := parse(fs, args); err != nil {
		return err
	}

	if *to == "" {
		return errors.New("--to is required")
	}
	if *templateID == "" && *subject == "" {
		return errors.New("either --subject or --template is required")
	}
	if *templateID == "" && *html == "" && *text == "" {
		return errors.New("either --html, --text, or --template is required")
	}

	req := message.SendEmailRequest{
		From:        *from,
		To:          splitList(*to),
		Cc:          splitList(*cc),
		Bcc:         splitList(*bcc),
		Subject:     *subject,
		HTML:        *html,
		Text:        *text,
		ReplyTo:     *replyTo,
		TemplateID:  *templateID,
		ScheduledAt: *scheduledAt,
	}
	if len(vars) > 0 {
		req.Variables = vars
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	req.Tags = tags

	c, err := a.client()
	if err != nil {
		return err
	}
	var opts []client.SendOption
	if *idempotencyKey != "" {
		opts = append(opts, client.WithIdempotencyKey(*idempotencyKey))
	}
	resp, err := c.Send(ctx, req, opts...)
	if err != nil {
		return err
	}

	a.printf("%s\n\n", display.Success("Email sent!"))
	a.printf("  ID:     %s\n", resp.ID)
	a.printf("  Status: %s\n", resp.Status)
	a.printf("  To:     %s\n", *to)
	if resp.ScheduledAt != "" {
		a.printf("  At:     %s\n", resp.ScheduledAt)
	}
	return nil
}
