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

	"github.com/sendpigeon/cli/internal/client"
	"github.com/sendpigeon/cli/internal/display"
)

func runDomains(ctx context.Context, a *app, args []string) error {
	return subcommand(ctx, a, "domains", args, "", map[string]func(context.Context, *app, []string) error{
		"list":   domainsList,
		"verify": domainsVerify,
	})
}

func domainsList(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("domains list"), args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	ds, err := c.Domains.List(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		a.printf("%s\n", display.Dim("No domains found."))
		return nil
	}
	a.printf("\n%s\n", display.Dim("  "+display.Truncate("DOMAIN", 30)+" "+display.Truncate("STATUS", 12)+" VERIFIED"))
	a.printf("%s\n", display.Dim("  "+strings.Repeat("─", 55)))
	for _, d := range ds {
		verified := "-"
		if d.VerifiedAt != nil {
			if t := display.ParseTime(*d.VerifiedAt); !t.IsZero() {
				verified = t.Local().Format("2006-01-02")
			}
		}
		a.printf("  %s %s %s\n", display.Truncate(d.Name, 30), display.PadStatus(d.Status, 12), verified)
	}
	a.printf("\n")
	return nil
}

func recordLine(name string, r client.RecordStatus) string {
	status := display.Failure("✗ not found")
	switch {
	case r.Valid:
		status = display.Success("✓ verified")
	case r.Found:
		status = display.Warn("⚠ found but invalid")
	}
	return "  " + display.Truncate(name, 8) + " " + status
}

func domainsVerify(ctx context.Context, a *app, args []string) error {
	id, err := oneArg(a, "domains verify", "id", args)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	res, err := c.Domains.Verify(ctx, id)
	if err != nil {
		return err
	}
	v := res.Verification
	a.printf("\n  Domain: %s (%s)\n\n", display.Bold(res.Domain.Name), display.ColorStatus(res.Domain.Status))
	a.printf("%s\n", recordLine("DKIM", v.DKIM))
	a.printf("%s\n", recordLine("MX", v.MX))
	a.printf("%s\n", recordLine("SPF", v.SPF))
	a.printf("%s\n\n", recordLine("DMARC", v.DMARC))
	if v.Verified {
		a.printf("%s\n\n", display.Success("  ✓ Domain is fully verified!"))
	} else {
		a.printf("%s\n\n", display.Warn("  ⚠ Add the missing DNS records to complete verification"))
	}
	return nil
}
