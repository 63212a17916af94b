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
	"net"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sendpigeon/cli/internal/devserver"
	"github.com/sendpigeon/cli/internal/display"
	"github.com/sendpigeon/cli/internal/persist"
)

func runDev(ctx context.Context, a *app, args []string) error {
	fs := a.flags("dev")
	port := fs.Int("port", 0, "HTTP port (default PORT or 4100)")
	fs.IntVar(port, "p", 0, "shorthand for --port")
	smtpPort := fs.Int("smtp-port", 0, "SMTP port (default SMTP_PORT or 4125)")
	noSMTP := fs.Bool("no-smtp", false, "disable the SMTP server")
	persistent := fs.Bool("persist", false, "keep emails in SQLite across restarts")
	dbPath := fs.String("db", "", "database for --persist (default ~/.sendpigeon/dev.db)")
	capacity := fs.Int("capacity", 0, "emails to keep (default 100, or 1000 with --persist)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.setup(); err != nil {
		return err
	}
	if *port == 0 {
		*port = a.cfg.Port
	}
	if *smtpPort == 0 {
		*smtpPort = a.cfg.SMTPPort
	}

	var store devserver.Store = devserver.NewRing(*capacity)
	if *persistent {
		path := *dbPath
		if path == "" {
			var err error
			if path, err = persist.DefaultPath(); err != nil {
				return err
			}
		}
		db, err := persist.Open(ctx, path, *capacity, a.log)
		if err != nil {
			return errors.Wrap(err, "unable to initialize database")
		}
		defer db.Close()
		store = db
	}

	httpAddr := net.JoinHostPort("", strconv.Itoa(*port))
	smtpAddr := net.JoinHostPort("", strconv.Itoa(*smtpPort))
	srv := devserver.New(devserver.Config{
		HTTPAddr: httpAddr,
		SMTPAddr: smtpAddr,
		SMTP:     !*noSMTP,
		Store:    store,
		Logger:   a.log,
	})

	a.printf("\n%s Dev Server\n\n", display.Bold("SendPigeon"))
	a.printf("  API:  http://localhost:%d/v1/emails\n", *port)
	a.printf("  UI:   http://localhost:%d\n", *port)
	if !*noSMTP {
		a.printf("  SMTP: localhost:%d\n", *smtpPort)
	}
	a.printf("\n%s\n", display.Dim("Emails sent to this server will be caught and displayed in the UI."))
	a.printf("%s\n\n", display.Dim("Press Ctrl+C to stop."))

	return srv.Run(ctx)
}
