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
	"time"

	"golang.org/x/time/rate"

	"github.com/sendpigeon/cli/internal/client"
	"github.com/sendpigeon/cli/internal/display"
)

const (
	defaultLogLimit = 20
	tailPageSize    = 10
	tailInterval    = 2 * time.Second
)

func runLogs(ctx context.Context, a *app, args []string) error {
	return subcommand(ctx, a, "logs", args, "list", map[string]func(context.Context, *app, []string) error{
		"list": logsList,
		"tail": logsTail,
		"get":  logsGet,
	})
}

func logsList(ctx context.Context, a *app, args []string) error {
	fs := a.flags("logs")
	status := fs.String("status", "", "filter by status (sent, delivered, bounced, complained)")
	limit := fs.Int("limit", defaultLogLimit, "number of logs to show")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	page, err := c.Logs.List(ctx, *status, *limit)
	if err != nil {
		return err
	}
	if len(page.Data) == 0 {
		a.printf("%s\n", display.Dim("No emails found."))
		return nil
	}
	a.printf("\n%s\n", display.Dim("  "+display.Truncate("TIME", 10)+" "+display.Truncate("STATUS", 12)+" "+display.Truncate("TO", 28)+" SUBJECT"))
	a.printf("%s\n", display.Dim("  "+strings.Repeat("─", 75)))
	for _, l := range page.Data {
		a.printf("  %s %s %s %s\n",
			display.Truncate(display.FormatTime(l.When()), 10),
			display.PadStatus(l.Status, 12),
			display.Truncate(l.ToAddress, 28),
			display.Truncate(l.Subject, 30))
	}
	a.printf("\n")
	return nil
}

// tailLine formats one log entry for logs tail.
func tailLine(l client.EmailLog) string {
	return "[" + display.FormatTime(l.When()) + "] " + display.StatusSymbol(l.Status) + " " +
		display.Truncate(l.Status, 10) + " " + display.Truncate(l.ToAddress, 25) +
		` "` + strings.TrimRight(display.Truncate(l.Subject, 35), " ") + `"`
}

func logsTail(ctx context.Context, a *app, args []string) error {
	fs := a.flags("logs tail")
	status := fs.String("status", "", "filter by status")
	interval := fs.Duration("interval", tailInterval, "time between polls")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	a.printf("\n%s\n\n", display.Dim("Watching for new emails... (Ctrl+C to stop)"))

	limiter := rate.NewLimiter(rate.Every(*interval), 1)
	var lastID string
	first := true
	for {
		if err := limiter.Wait(ctx); err != nil {
			// Interrupted.
			return nil
		}
		page, err := c.Logs.List(ctx, *status, tailPageSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.printf("%s\n", display.Failure("Error: ", err))
			continue
		}
		if first {
			first = false
			if len(page.Data) > 0 {
				lastID = page.Data[0].ID
			}
			continue
		}
		fresh := client.NewSince(page.Data, lastID)
		if len(fresh) > 0 {
			lastID = fresh[len(fresh)-1].ID
		}
		for _, l := range fresh {
			a.printf("%s\n", tailLine(l))
		}
	}
}

func logsGet(ctx context.Context, a *app, args []string) error {
	id, err := oneArg(a, "logs get", "id", args)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	e, err := c.Logs.Get(ctx, id)
	if err != nil {
		return err
	}
	localTime := func(ts string) string {
		if t := display.ParseTime(ts); !t.IsZero() {
			return t.Local().Format("2006-01-02 15:04:05")
		}
		return ts
	}
	a.printf("\n")
	a.printf("  %s        %s\n", display.Dim("ID:"), e.ID)
	a.printf("  %s      %s\n", display.Dim("From:"), e.FromAddress)
	a.printf("  %s        %s\n", display.Dim("To:"), e.ToAddress)
	if e.CcAddress != nil {
		a.printf("  %s        %s\n", display.Dim("CC:"), *e.CcAddress)
	}
	if e.BccAddress != nil {
		a.printf("  %s       %s\n", display.Dim("BCC:"), *e.BccAddress)
	}
	a.printf("  %s   %s\n", display.Dim("Subject:"), e.Subject)
	a.printf("  %s    %s\n", display.Dim("Status:"), display.ColorStatus(e.Status))
	a.printf("  %s   %s\n", display.Dim("Created:"), localTime(e.CreatedAt))
	for _, ts := range []struct {
		label string
		at    *string
	}{
		{"Sent:     ", e.SentAt},
		{"Delivered:", e.DeliveredAt},
		{"Bounced:  ", e.BouncedAt},
	} {
		if ts.at != nil {
			a.printf("  %s %s\n", display.Dim(ts.label), localTime(*ts.at))
		}
	}
	a.printf("\n")
	return nil
}
