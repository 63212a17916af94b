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

// Package display formats API objects for the terminal.
package display

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Dim renders s faintly.
func Dim(a ...any) string { return dim(a...) }

// Bold renders s in bold.
func Bold(a ...any) string { return bold(a...) }

// Success renders a in green.
func Success(a ...any) string { return green(a...) }

// Failure renders a in red.
func Failure(a ...any) string { return red(a...) }

// Warn renders a in yellow.
func Warn(a ...any) string { return yellow(a...) }

// ColorStatus colours an email, domain or template status.
func ColorStatus(status string) string {
	switch status {
	case "delivered", "verified", "published", "enabled", "success":
		return green(status)
	case "sent":
		return blue(status)
	case "bounced", "complained", "failed":
		return red(status)
	case "pending", "draft", "scheduled":
		return yellow(status)
	case "temporary_failure":
		return yellow("temp fail")
	default:
		return dim(status)
	}
}

// PadStatus is ColorStatus followed by enough spaces to fill n columns.
func PadStatus(status string, n int) string {
	label := status
	if status == "temporary_failure" {
		label = "temp fail"
	}
	pad := n - utf8.RuneCountInString(label)
	if pad < 0 {
		pad = 0
	}
	return ColorStatus(status) + strings.Repeat(" ", pad)
}

// StatusSymbol is a one character summary of status.
func StatusSymbol(status string) string {
	switch status {
	case "delivered", "verified":
		return green("✓")
	case "sent":
		return blue("→")
	case "bounced", "complained", "failed":
		return red("✗")
	case "pending":
		return yellow("○")
	default:
		return dim("?")
	}
}

// Truncate pads s to n runes, or cuts it to n with a trailing ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s + strings.Repeat(" ", n-utf8.RuneCountInString(s))
	}
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// RelativeTime describes t relative to now, falling back to a date
// after a week.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.Local().Format("2006-01-02")
	}
}

// FormatTime renders an RFC 3339 timestamp as a local wall clock time.
// Unparseable input is returned as is.
func FormatTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

// ParseTime parses an RFC 3339 timestamp, returning the zero time on
// failure.
func ParseTime(ts string) time.Time {
	t, _ := time.Parse(time.RFC3339, ts)
	return t
}
