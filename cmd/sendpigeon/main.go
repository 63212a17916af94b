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

// The sendpigeon command sends email, manages templates, domains and
// webhooks, and runs a local server that catches email during
// development.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sendpigeon/cli/internal/client"
	"github.com/sendpigeon/cli/internal/config"
	"github.com/sendpigeon/cli/internal/display"
	"github.com/sendpigeon/cli/internal/logger"
	"github.com/sendpigeon/cli/internal/tracehttp"
)

const version = "1.1.0"

// errUsage means the usage text has already been printed.
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"dev", "Start local dev server for email testing", runDev},
	{"domains", "Manage sending domains", runDomains},
	{"logs", "View email logs", runLogs},
	{"send", "Send an email", runSend},
	{"status", "Check API key and account status", runStatus},
	{"templates", "Manage email templates", runTemplates},
	{"webhooks", "Manage and verify webhooks", runWebhooks},
}

// app carries what every command shares.
type app struct {
	out       io.Writer
	errOut    io.Writer
	overrides config.Overrides
	trace     bool
	cfg       *config.Config
	log       zerolog.Logger
	// newClient is replaced in tests.
	newClient func(apiKey string, opts ...client.Option) *client.Client
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:       out,
		errOut:    errOut,
		log:       zerolog.Nop(),
		newClient: client.New,
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// flags returns a FlagSet for a command that also accepts the global
// flags.
func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("sendpigeon "+name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	a.globalFlags(fs)
	return fs
}

func (a *app) globalFlags(fs *flag.FlagSet) {
	fs.Func("api-key", "API key (or set SENDPIGEON_API_KEY)", func(v string) error {
		a.overrides.APIKey = v
		return nil
	})
	fs.BoolFunc("debug", "log requests and responses", func(v string) error {
		a.overrides.Debug = v == "true"
		return nil
	})
}

// parse parses args.  The flag package has already reported any
// problem, so failures become errUsage.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// setup resolves configuration and logging once the command's flags are
// known.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(a.overrides)
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}
	a.cfg = cfg
	log, err := logger.New("dev", cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	a.log = log
	if a.trace {
		tracehttp.WrapDefaultTransport(log)
	}
	return nil
}

// client returns an API client for the configured key.
func (a *app) client() (*client.Client, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return a.newClient(a.cfg.APIKey, a.clientOptions()...), nil
}

func (a *app) clientOptions() []client.Option {
	opts := []client.Option{
		client.WithBaseURL(a.cfg.BaseURL),
		client.WithTimeout(a.cfg.Timeout),
		client.WithMaxRetries(a.cfg.MaxRetries),
		client.WithDebug(a.cfg.Debug),
		client.WithLogger(a.log),
	}
	if a.cfg.RateLimit > 0 {
		opts = append(opts, client.WithRateLimit(rate.NewLimiter(rate.Limit(a.cfg.RateLimit), 1)))
	}
	if a.trace {
		opts = append(opts, client.WithTracing())
	}
	return opts
}

func (a *app) usage() {
	w := a.errOut
	fmt.Fprintf(w, "SendPigeon CLI %s - send emails and manage your account\n\n", version)
	fmt.Fprintf(w, "Usage: sendpigeon [--api-key KEY] [--debug] [-T] <command> [arguments]\n\nCommands:\n")
	sorted := append([]command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sendpigeon", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.Usage = a.usage
	a.globalFlags(fs)
	fs.BoolVar(&a.trace, "T", false, "dump HTTP traffic and record OpenTelemetry spans")
	showVersion := fs.Bool("version", false, "print the version")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *showVersion {
		a.printf("%s\n", version)
		return nil
	}
	if fs.NArg() == 0 {
		a.usage()
		return errUsage
	}
	name := fs.Arg(0)
	for _, c := range commands {
		if c.name == name {
			return c.run(ctx, a, fs.Args()[1:])
		}
	}
	a.usage()
	return errors.Errorf("unknown command %q", name)
}

// subcommand dispatches to the named entry of subs, or to def when args
// is empty or starts with a flag.
func subcommand(ctx context.Context, a *app, group string, args []string, def string,
	subs map[string]func(context.Context, *app, []string) error) error {
	name := def
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}
	if f, ok := subs[name]; ok {
		return f(ctx, a, args)
	}
	var names []string
	for n := range subs {
		names = append(names, n)
	}
	sort.Strings(names)
	if name == "" {
		return errors.Errorf("usage: sendpigeon %s <%s>", group, strings.Join(names, "|"))
	}
	return errors.Errorf("unknown %s command %q (want %s)", group, name, strings.Join(names, ", "))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if err != errUsage {
			fmt.Fprintln(os.Stderr, display.Failure(fmt.Sprintf("Failed: %v", err)))
		}
		stop()
		os.Exit(1)
	}
}
