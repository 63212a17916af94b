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

// Package client is a typed facade over the email API.  Each operation
// is a fixed method and path handed to the request executor, so every
// call gets the same timeout, retry and error handling.
package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/sendpigeon/cli/internal/config"
	"github.com/sendpigeon/cli/internal/message"
	"github.com/sendpigeon/cli/internal/request"
)

// MaxBatchSize is the most emails SendBatch accepts.
const MaxBatchSize = 100

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API address.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout bounds each attempt.  The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries sets how often 429, 5xx, timeouts and network errors
// are retried.  The value is clamped to [0, 5]; the default is 2.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = config.ClampRetries(n) }
}

// WithDebug logs every attempt and response at debug level.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the debug log sink.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimit throttles attempts client side.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithTracing instruments requests with OpenTelemetry spans.
func WithTracing() Option {
	return func(c *Client) { c.tracing = true }
}

// Client talks to the email API.  It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	debug      bool
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter
	tracing    bool
	exec       *request.Executor

	Emails       *EmailsService
	Templates    *TemplatesService
	Domains      *DomainsService
	APIKeys      *APIKeysService
	Suppressions *SuppressionsService
	Logs         *LogsService
	Webhooks     *WebhooksService
}

// New returns a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    config.DefaultBaseURL(),
		timeout:    config.DefaultTimeout,
		maxRetries: config.DefaultMaxRetries,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tracing {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		traced := *c.httpClient
		traced.Transport = otelhttp.NewTransport(base)
		c.httpClient = &traced
	}
	execOpts := []request.Option{request.WithHTTPClient(c.httpClient), request.WithLogger(c.logger)}
	if c.limiter != nil {
		execOpts = append(execOpts, request.WithRateLimit(c.limiter))
	}
	c.exec = request.New(execOpts...)

	c.Emails = &EmailsService{c}
	c.Templates = &TemplatesService{c}
	c.Domains = &DomainsService{c}
	c.APIKeys = &APIKeysService{c}
	c.Suppressions = &SuppressionsService{c}
	c.Logs = &LogsService{c}
	c.Webhooks = &WebhooksService{c}
	return c
}

// BaseURL reports the API address in use.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	return c.exec.Do(ctx, request.Descriptor{
		BaseURL:    c.baseURL,
		APIKey:     c.apiKey,
		Method:     method,
		Path:       path,
		Body:       body,
		Headers:    headers,
		Timeout:    c.timeout,
		MaxRetries: c.maxRetries,
		Debug:      c.debug,
	}, out)
}

func escape(id string) string {
	return url.PathEscape(id)
}

// withQuery appends the non-empty values to path.
func withQuery(path string, q url.Values) string {
	for k, v := range q {
		if len(v) == 0 || v[0] == "" {
			q.Del(k)
		}
	}
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// SendOption adjusts a single Send call.
type SendOption func(map[string]string)

// WithIdempotencyKey lets the API drop duplicates of a send that may
// already have succeeded.
func WithIdempotencyKey(key string) SendOption {
	return func(h map[string]string) {
		if key != "" {
			h["idempotency-key"] = key
		}
	}
}

// Send sends one email.
func (c *Client) Send(ctx context.Context, req message.SendEmailRequest, opts ...SendOption) (*message.SendEmailResponse, error) {
	if err := req.Resolve(ctx); err != nil {
		return nil, err
	}
	headers := map[string]string{}
	for _, opt := range opts {
		opt(headers)
	}
	var resp message.SendEmailResponse
	if err := c.do(ctx, http.MethodPost, "/v1/emails", req, &resp, headers); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendBatch sends up to MaxBatchSize emails in one request.  Entries
// fail independently; inspect each BatchEmailResult.
func (c *Client) SendBatch(ctx context.Context, emails []message.BatchEmail) (*message.SendBatchResponse, error) {
	if len(emails) == 0 || len(emails) > MaxBatchSize {
		return nil, errors.Errorf("batch must contain 1 to %d emails, got %d", MaxBatchSize, len(emails))
	}
	entries := make([]message.BatchEmail, len(emails))
	for i, e := range emails {
		if err := e.Resolve(ctx); err != nil {
			return nil, errors.Wrapf(err, "batch entry %d", i)
		}
		entries[i] = e
	}
	body := struct {
		Emails []message.BatchEmail `json:"emails"`
	}{entries}
	var resp message.SendBatchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/emails/batch", body, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status describes the account behind the API key.
type Status struct {
	Organization struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"organization"`
	Plan  string `json:"plan"`
	Usage struct {
		EmailsSent  int64   `json:"emailsSent"`
		EmailLimit  *int64  `json:"emailLimit"`
		PercentUsed float64 `json:"percentUsed"`
		PeriodStart string  `json:"periodStart"`
		PeriodEnd   string  `json:"periodEnd"`
	} `json:"usage"`
	APIKey struct {
		ID         string `json:"id"`
		Mode       string `json:"mode"`
		Permission string `json:"permission"`
	} `json:"apiKey"`
}

// Status checks the API key and reports usage.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &s, nil); err != nil {
		return nil, err
	}
	return &s, nil
}
