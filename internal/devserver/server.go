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

// Package devserver is a local stand-in for the email API.  It accepts
// sends over HTTP and SMTP, keeps them in a Store and shows them in a
// small web UI.
package devserver

import (
	"context"
	"embed"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

//go:embed ui
var uiFiles embed.FS

const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	HTTPAddr string
	SMTPAddr string
	// SMTP enables the SMTP listener.
	SMTP bool
	// Store defaults to a Ring of DefaultCapacity.
	Store  Store
	Logger zerolog.Logger
}

// Server catches emails.
type Server struct {
	cfg   Config
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:   cfg,
		store: cfg.Store,
		log:   cfg.Logger,
		now:   time.Now,
	}
	if s.store == nil {
		s.store = NewRing(DefaultCapacity)
	}
	return s
}

// Store returns where caught emails are kept.
func (s *Server) Store() Store { return s.store }

// capture assigns e an id and timestamp and stores it.
func (s *Server) capture(ctx context.Context, e Email) (Email, error) {
	e.ID = NewID()
	e.CreatedAt = s.now().UTC()
	if err := s.store.Add(ctx, e); err != nil {
		return Email{}, err
	}
	s.log.Info().
		Str("id", e.ID).
		Str("source", e.Source).
		Msgf("%s → %s: %s", e.From, strings.Join(e.To, ", "), e.Subject)
	return e, nil
}

func (s *Server) newSMTPServer() *smtp.Server {
	srv := smtp.NewServer(&backend{s: s})
	srv.Domain = "localhost"
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.MaxMessageBytes = maxBodyBytes
	srv.MaxRecipients = 100
	return srv
}

// Run listens on the configured addresses and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	hl, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.HTTPAddr)
	}
	var sl net.Listener
	if s.cfg.SMTP {
		if sl, err = net.Listen("tcp", s.cfg.SMTPAddr); err != nil {
			hl.Close()
			return errors.Wrapf(err, "listening on %s", s.cfg.SMTPAddr)
		}
	}
	return s.Serve(ctx, hl, sl)
}

// Serve serves HTTP on hl and, when sl is not nil, SMTP on sl.  It
// returns after both have shut down, either because ctx was cancelled or
// because one of them failed.
func (s *Server) Serve(ctx context.Context, hl, sl net.Listener) error {
	grp, gctx := errgroup.WithContext(ctx)

	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grp.Go(func() error {
		s.log.Info().Str("addr", hl.Addr().String()).Msg("http listening")
		if err := hs.Serve(hl); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	var ss *smtp.Server
	if sl != nil {
		ss = s.newSMTPServer()
		grp.Go(func() error {
			s.log.Info().Str("addr", sl.Addr().String()).Msg("smtp listening")
			if err := ss.Serve(sl); err != nil && gctx.Err() == nil {
				return errors.Wrap(err, "smtp server")
			}
			return nil
		})
	}

	grp.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := hs.Shutdown(sctx)
		if ss != nil {
			if cerr := ss.Close(); cerr != nil && err == nil {
				err = cerr
			}
			// Serve may not have registered sl yet.
			sl.Close()
		}
		s.log.Info().Msg("dev server stopped")
		return errors.Wrap(err, "shutting down")
	})

	return grp.Wait()
}
