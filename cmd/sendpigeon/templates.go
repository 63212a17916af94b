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
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sendpigeon/cli/internal/display"
	"github.com/sendpigeon/cli/internal/templates"
)

func runTemplates(ctx context.Context, a *app, args []string) error {
	return subcommand(ctx, a, "templates", args, "", map[string]func(context.Context, *app, []string) error{
		"list": templatesList,
		"get":  templatesGet,
		"pull": templatesPull,
		"push": templatesPush,
	})
}

// oneArg parses args and requires a single positional argument.
func oneArg(a *app, name, what string, args []string) (string, error) {
	fs := a.flags(name)
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", errors.Errorf("usage: sendpigeon %s <%s>", name, what)
	}
	return fs.Arg(0), nil
}

func templatesList(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("templates list"), args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	ts, err := c.Templates.List(ctx)
	if err != nil {
		return err
	}
	if len(ts) == 0 {
		a.printf("%s\n", display.Dim("No templates found."))
		return nil
	}
	now := time.Now()
	a.printf("\n%s\n", display.Dim(display.Truncate("ID", 24)+" "+display.Truncate("NAME", 20)+" "+display.Truncate("STATUS", 10)+" UPDATED"))
	a.printf("%s\n", display.Dim(strings.Repeat("─", 70)))
	for _, t := range ts {
		name := "-"
		if t.Name != nil && *t.Name != "" {
			name = *t.Name
		}
		a.printf("%s %s %s %s\n", display.Truncate(t.TemplateID, 24), display.Truncate(name, 20),
			display.PadStatus(t.Status, 10), display.RelativeTime(display.ParseTime(t.UpdatedAt), now))
	}
	a.printf("\n")
	return nil
}

func templatesGet(ctx context.Context, a *app, args []string) error {
	id, err := oneArg(a, "templates get", "id", args)
	if err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	t, err := c.Templates.Get(ctx, id)
	if err != nil {
		return err
	}
	name := "-"
	if t.Name != nil && *t.Name != "" {
		name = *t.Name
	}
	a.printf("\n")
	a.printf("  %s         %s\n", display.Dim("ID:"), t.TemplateID)
	a.printf("  %s       %s\n", display.Dim("Name:"), name)
	a.printf("  %s    %s\n", display.Dim("Subject:"), t.Subject)
	a.printf("  %s     %s\n", display.Dim("Status:"), display.ColorStatus(t.Status))
	a.printf("  %s    %s\n", display.Dim("Updated:"), display.RelativeTime(display.ParseTime(t.UpdatedAt), time.Now()))
	if len(t.Variables) > 0 {
		keys := make([]string, 0, len(t.Variables))
		for _, v := range t.Variables {
			keys = append(keys, v.Key)
		}
		a.printf("  %s  %s\n", display.Dim("Variables:"), strings.Join(keys, ", "))
	}
	a.printf("\n")
	return nil
}

func templatesPull(ctx context.Context, a *app, args []string) error {
	fs := a.flags("templates pull")
	id := fs.String("id", "", "only pull this template")
	dir := fs.String("dir", templates.DefaultDir, "directory to save templates in")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	n, err := templates.NewDir(*dir, a.log).Pull(ctx, c.Templates, *id)
	if err != nil {
		return err
	}
	if n == 0 {
		a.printf("%s\n", display.Dim("No templates to pull."))
		return nil
	}
	a.printf("%s\n", display.Success("Pulled ", n, " template(s) to ./", *dir, "/"))
	return nil
}

func templatesPush(ctx context.Context, a *app, args []string) error {
	fs := a.flags("templates push")
	id := fs.String("id", "", "only push this template")
	dir := fs.String("dir", templates.DefaultDir, "directory containing templates")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	sum, err := templates.NewDir(*dir, a.log).Push(ctx, c.Templates, *id)
	if err != nil {
		return errors.Wrap(err, "run 'sendpigeon templates pull' first")
	}
	if sum.Total == 0 {
		a.printf("%s\n", display.Dim("No templates to push."))
		return nil
	}
	names := make([]string, 0, len(sum.Errors))
	for name := range sum.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.printf("%s\n", display.Warn("Failed to push ", name, ": ", sum.Errors[name]))
	}
	if sum.Failed > 0 {
		a.printf("%s\n", display.Warn("Pushed ", sum.Pushed, "/", sum.Total, " templates"))
		return errors.Errorf("%d template(s) failed", sum.Failed)
	}
	a.printf("%s\n", display.Success("Pushed ", sum.Pushed, " template(s)"))
	return nil
}
