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

package devserver

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sendpigeon/cli/internal/message"
)

const (
	maxBodyBytes = 10 << 20
	maxBatchSize = 100

	codeValidation = "VALIDATION_ERROR"
)

type errorResponse struct {
	Error string `json:"error"`
}

type idResponse struct {
	ID string `json:"id"`
}

// Handler returns the HTTP API and UI of the dev server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/v1/emails", s.handleSend)
	r.Post("/v1/emails/batch", s.handleBatch)

	r.Get("/api/emails", s.handleList)
	r.Get("/api/emails/{id}", s.handleGet)
	r.Delete("/api/emails", s.handleClear)

	ui, err := fs.Sub(uiFiles, "ui")
	if err != nil {
		panic(err)
	}
	r.Handle("/*", http.FileServer(http.FS(ui)))

	return otelhttp.NewHandler(r, "sendpigeon-dev")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// readBody decodes the request body into a generic value.  It writes the
// error response itself and returns false on failure.
func readBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var v any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
		}
		return nil, false
	}
	return v, true
}

// parseEmail validates a decoded send request.  The returned string is
// the validation message when the request is unusable.
func parseEmail(v any) (Email, string) {
	req, ok := v.(map[string]any)
	if !ok {
		return Email{}, "Invalid request body"
	}

	var missing []string
	from, ok := req["from"].(string)
	if !ok {
		missing = append(missing, "from")
	}
	to, ok := parseAddresses(req["to"])
	if !ok {
		missing = append(missing, "to")
	}
	subject, ok := req["subject"].(string)
	if !ok {
		missing = append(missing, "subject")
	}
	html, isHTML := req["html"].(string)
	text, isText := req["text"].(string)
	if !isHTML && !isText {
		missing = append(missing, "html or text")
	}
	if len(missing) > 0 {
		return Email{}, "Missing required fields: " + strings.Join(missing, ", ")
	}
	e := Email{From: from, To: to, Subject: subject, HTML: html, Text: text, Source: SourceHTTP}

	if hs, ok := req["headers"].(map[string]any); ok {
		e.Headers = make(map[string]string, len(hs))
		for k, v := range hs {
			if s, ok := v.(string); ok {
				e.Headers[k] = s
			}
		}
	}
	if as, ok := req["attachments"].([]any); ok {
		for _, a := range as {
			m, ok := a.(map[string]any)
			if !ok {
				continue
			}
			meta := message.AttachmentMeta{}
			meta.Filename, _ = m["filename"].(string)
			meta.ContentType, _ = m["contentType"].(string)
			if c, ok := m["content"].(string); ok {
				meta.Size = int64(len(c))
			}
			e.Attachments = append(e.Attachments, meta)
		}
	}
	return e, ""
}

// parseAddresses accepts a single address or an array of addresses.
func parseAddresses(v any) (message.Addresses, bool) {
	switch to := v.(type) {
	case string:
		return message.Addresses{to}, true
	case []any:
		out := make(message.Addresses, 0, len(to))
		for _, a := range to {
			s, ok := a.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	v, ok := readBody(w, r)
	if !ok {
		return
	}
	e, problem := parseEmail(v)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	e, err := s.capture(r.Context(), e)
	if err != nil {
		s.log.Error().Err(err).Msg("storing email")
		writeError(w, http.StatusInternalServerError, "Failed to store email")
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: e.ID})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	v, ok := readBody(w, r)
	if !ok {
		return
	}
	body, _ := v.(map[string]any)
	entries, ok := body["emails"].([]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(entries) == 0 || len(entries) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Batch must contain between 1 and %d emails", maxBatchSize))
		return
	}

	resp := message.SendBatchResponse{
		Data:    make([]message.BatchEmailResult, 0, len(entries)),
		Summary: message.BatchSummary{Total: len(entries)},
	}
	for i, entry := range entries {
		res := message.BatchEmailResult{Index: i}
		e, problem := parseEmail(entry)
		if problem == "" {
			var err error
			if e, err = s.capture(r.Context(), e); err != nil {
				s.log.Error().Err(err).Int("index", i).Msg("storing email")
				problem = "Failed to store email"
			}
		}
		if problem != "" {
			res.Status = "error"
			res.Error = &message.BatchError{Code: codeValidation, Message: problem}
			resp.Summary.Failed++
		} else {
			res.Status = "sent"
			res.ID = e.ID
			resp.Summary.Sent++
		}
		resp.Data = append(resp.Data, res)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	emails, err := s.store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("listing emails")
		writeError(w, http.StatusInternalServerError, "Failed to list emails")
		return
	}
	if emails == nil {
		emails = []Email{}
	}
	writeJSON(w, http.StatusOK, emails)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("fetching email")
		writeError(w, http.StatusInternalServerError, "Failed to fetch email")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("clearing emails")
		writeError(w, http.StatusInternalServerError, "Failed to clear emails")
		return
	}
	s.log.Info().Msg("cleared all emails")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
