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

// Package request executes a single logical call against the email API,
// retrying transient failures and normalizing every outcome into either
// success or an *Error.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second

	msgTimedOut = "Request timed out"
)

// Descriptor describes one logical API call.  It is built fresh for
// every operation.
type Descriptor struct {
	BaseURL    string
	APIKey     string
	Method     string
	Path       string
	Body       any
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	Debug      bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the client used for every attempt.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithLogger sets the sink for debug tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithRateLimit makes every attempt wait on l first.
func WithRateLimit(l *rate.Limiter) Option {
	return func(e *Executor) { e.limiter = l }
}

// WithSleep replaces the backoff sleep.  Tests use it to observe delays
// without waiting for them.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// Executor issues Descriptors.  It holds no per-call state and is safe
// for concurrent use.
type Executor struct {
	client  *http.Client
	logger  zerolog.Logger
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error
}

// New returns an Executor using http.DefaultClient unless told otherwise.
func New(opts ...Option) *Executor {
	e := &Executor{
		client: http.DefaultClient,
		logger: zerolog.Nop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Do executes d.  On success a non-204 response body is decoded into
// out, which may be nil to discard it.  Expected failures are returned
// as *Error; a malformed descriptor or a cancelled ctx yields a plain
// error.
func (e *Executor) Do(ctx context.Context, d Descriptor, out any) error {
	if !validMethod(d.Method) {
		return errors.Errorf("request: unsupported method %q", d.Method)
	}
	if d.MaxRetries < 0 {
		d.MaxRetries = 0
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	var body []byte
	if d.Body != nil {
		var err error
		if body, err = encodeBody(d.Body); err != nil {
			return errors.Wrapf(err, "request: encoding body for %s %s", d.Method, d.Path)
		}
	}
	url := strings.TrimRight(d.BaseURL, "/") + d.Path

	var last *Error
	for attempt := 0; attempt <= d.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "request: waiting for rate limiter")
			}
		}
		if d.Debug {
			ev := e.logger.Debug().Str("method", d.Method).Str("path", d.Path)
			if attempt > 0 {
				ev = ev.Int("retry", attempt)
			}
			if body != nil {
				ev = ev.RawJSON("body", body)
			}
			ev.Msg("request")
		}

		status, retryAfter, err := e.attempt(ctx, d, url, body, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "request: cancelled")
		}
		last = err

		retryable := err.Kind != KindAPI || shouldRetry(status)
		if !retryable || attempt == d.MaxRetries {
			break
		}
		delay := Delay(attempt, retryAfter)
		if d.Debug {
			e.logger.Debug().Dur("delay", delay).Str("kind", string(err.Kind)).Msg("retrying")
		}
		if err := e.sleep(ctx, delay); err != nil {
			return errors.Wrap(err, "request: cancelled during backoff")
		}
	}
	return last
}

// encodeBody marshals v without escaping HTML.
func encodeBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// attempt performs one HTTP round trip.  It returns the response status
// and Retry-After header when a response was obtained.
func (e *Executor) attempt(ctx context.Context, d Descriptor, url string, body []byte, out any) (int, string, *Error) {
	actx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, d.Method, url, rd)
	if err != nil {
		return 0, "", &Error{Message: err.Error(), Kind: KindNetwork}
	}
	(&oauth2.Token{AccessToken: d.APIKey}).SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, "", &Error{Message: msgTimedOut, Kind: KindTimeout}
		}
		return 0, "", &Error{Message: err.Error(), Kind: KindNetwork}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, "", &Error{Message: msgTimedOut, Kind: KindTimeout}
		}
		return 0, "", &Error{Message: err.Error(), Kind: KindNetwork}
	}
	if d.Debug {
		ev := e.logger.Debug().Int("status", resp.StatusCode)
		if len(raw) > 0 {
			ev = ev.Bytes("body", raw)
		}
		ev.Msg("response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if resp.StatusCode == http.StatusNoContent || out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return resp.StatusCode, "", nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, "", &Error{Message: err.Error(), Kind: KindNetwork}
		}
		return resp.StatusCode, "", nil
	}
	return resp.StatusCode, resp.Header.Get("Retry-After"), parseError(resp.StatusCode, raw)
}
