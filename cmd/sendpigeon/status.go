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

	"github.com/sendpigeon/cli/internal/config"
	"github.com/sendpigeon/cli/internal/display"
)

const usageBarWidth = 30

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := a.flags("status")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	s, err := c.Status(ctx)
	if err != nil {
		return err
	}

	a.printf("%s\n\n", display.Success("API key valid"))
	a.printf("  %s %s\n", display.Dim("Organization:"), s.Organization.Name)
	a.printf("  %s         %s\n", display.Dim("Plan:"), s.Plan)
	a.printf("  %s      %s (%s, %s)\n", display.Dim("API Key:"),
		config.MaskAPIKey(a.cfg.APIKey), s.APIKey.Mode, s.APIKey.Permission)
	a.printf("\n  %s\n", display.Dim("Usage this period:"))
	if s.Usage.EmailLimit == nil {
		a.printf("    %d emails (unlimited)\n", s.Usage.EmailsSent)
		return nil
	}
	a.printf("    %d / %d emails (%g%%)\n", s.Usage.EmailsSent, *s.Usage.EmailLimit, s.Usage.PercentUsed)
	a.printf("    [%s]\n", usageBar(s.Usage.PercentUsed, usageBarWidth))
	return nil
}

// usageBar renders percent as a bar width cells wide, coloured by how
// close it is to the limit.
func usageBar(percent float64, width int) string {
	filled := int(percent/100*float64(width) + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled)
	switch {
	case percent > 90:
		bar = display.Failure(bar)
	case percent > 70:
		bar = display.Warn(bar)
	default:
		bar = display.Success(bar)
	}
	return bar + display.Dim(strings.Repeat("░", width-filled))
}
