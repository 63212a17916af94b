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
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sendpigeon/cli/internal/display"
	"github.com/sendpigeon/cli/internal/webhook"
)

func runWebhooks(ctx context.Context, a *app, args []string) error {
	return subcommand(ctx, a, "webhooks", args, "config", map[string]func(context.Context, *app, []string) error{
		"config":     webhooksConfig,
		"test":       webhooksTest,
		"deliveries": webhooksDeliveries,
		"verify":     webhooksVerify,
	})
}

func webhooksConfig(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("webhooks"), args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	wh, err := c.Webhooks.Config(ctx)
	if err != nil {
		return err
	}
	a.printf("\n")
	if wh.URL == nil || *wh.URL == "" {
		a.printf("  %s\n\n", display.Dim("Webhook not configured."))
		return nil
	}
	enabled := display.Warn("disabled")
	if wh.Enabled {
		enabled = display.Success("enabled")
	}
	secret := display.Failure("not set")
	if wh.HasSecret {
		secret = display.Success("configured")
	}
	events := strings.Join(wh.Events, ", ")
	if events == "" {
		events = "none"
	}
	a.printf("  %s  %s\n", display.Dim("Status:"), enabled)
	a.printf("  %s     %s\n", display.Dim("URL:"), *wh.URL)
	a.printf("  %s  %s\n", display.Dim("Secret:"), secret)
	a.printf("  %s  %s\n\n", display.Dim("Events:"), events)
	return nil
}

func webhooksTest(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("webhooks test"), args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	res, err := c.Webhooks.Test(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.Errorf("test failed: %s", res.Error)
	}
	a.printf("%s\n", display.Success("Test webhook sent (status: ", strconv.Itoa(res.StatusCode), ")"))
	return nil
}

func webhooksDeliveries(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("webhooks deliveries"), args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	ds, err := c.Webhooks.Deliveries(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		a.printf("%s\n", display.Dim("No deliveries found."))
		return nil
	}
	a.printf("\n%s\n", display.Dim("  "+display.Truncate("TIME", 10)+" "+display.Truncate("EVENT", 18)+" "+display.Truncate("STATUS", 12)+" CODE"))
	a.printf("%s\n", display.Dim("  "+strings.Repeat("─", 50)))
	for _, d := range ds {
		code := "-"
		if d.StatusCode != nil {
			code = strconv.Itoa(*d.StatusCode)
		}
		a.printf("  %s %s %s %s\n", display.Truncate(display.FormatTime(d.CreatedAt), 10),
			display.Truncate(d.Event, 18), display.PadStatus(d.Status, 12), code)
	}
	a.printf("\n")
	return nil
}

// webhooksVerify checks a captured delivery offline, the way a receiving
// handler would.
func webhooksVerify(ctx context.Context, a *app, args []string) error {
	fs := a.flags("webhooks verify")
	secret := fs.String("secret", os.Getenv("SENDPIGEON_WEBHOOK_SECRET"), "webhook signing secret (or set SENDPIGEON_WEBHOOK_SECRET)")
	signature := fs.String("signature", "", "value of the "+webhook.SignatureHeader+" header")
	timestamp := fs.String("timestamp", "", "value of the "+webhook.TimestampHeader+" header")
	payload := fs.String("payload", "", "raw request body")
	file := fs.String("file", "", "read the raw request body from this file, - for stdin")
	inbound := fs.Bool("inbound", false, "expect an email.received event")
	maxAge := fs.Duration("max-age", webhook.DefaultMaxAge, "accepted clock difference")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *secret == "" {
		return errors.New("--secret is required")
	}
	body := *payload
	if *file != "" {
		var r io.Reader = os.Stdin
		if *file != "-" {
			f, err := os.Open(*file)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrap(err, "reading payload")
		}
		body = string(b)
	}

	opts := webhook.VerifyOptions{
		Payload:   body,
		Signature: *signature,
		Timestamp: *timestamp,
		Secret:    *secret,
		MaxAge:    *maxAge,
	}
	if *inbound {
		ev, err := webhook.VerifyInbound(opts)
		if err != nil {
			return err
		}
		a.printf("%s\n", display.Success("Valid ", ev.Event, " from ", ev.Data.From, ": ", ev.Data.Subject))
		return nil
	}
	p, err := webhook.Verify(opts)
	if err != nil {
		return err
	}
	a.printf("%s\n", display.Success("Valid ", p.Event, " for ", p.Data.EmailID))
	return nil
}
