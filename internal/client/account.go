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

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// EmailLog is one entry of the send log.
type EmailLog struct {
	ID          string  `json:"id"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	CcAddress   *string `json:"ccAddress"`
	BccAddress  *string `json:"bccAddress"`
	Subject     string  `json:"subject"`
	Status      string  `json:"status"`
	IsTest      bool    `json:"isTest"`
	CreatedAt   string  `json:"createdAt"`
	SentAt      *string `json:"sentAt"`
	DeliveredAt *string `json:"deliveredAt"`
	BouncedAt   *string `json:"bouncedAt"`
	LatencyMs   *int64  `json:"latencyMs"`
}

// When is the time to show for the entry: sent if known, else created.
func (l EmailLog) When() string {
	if l.SentAt != nil && *l.SentAt != "" {
		return *l.SentAt
	}
	return l.CreatedAt
}

// LogPage is a page of the send log, newest first.
type LogPage struct {
	Data       []EmailLog `json:"data"`
	NextCursor *string    `json:"nextCursor"`
}

// LogsService reads the send log.
type LogsService struct{ c *Client }

// List returns the newest log entries, optionally only those in status.
func (s *LogsService) List(ctx context.Context, status string, limit int) (*LogPage, error) {
	q := url.Values{}
	q.Set("status", status)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var p LogPage
	if err := s.c.do(ctx, http.MethodGet, withQuery("/v1/logs", q), nil, &p, nil); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *LogsService) Get(ctx context.Context, id string) (*EmailLog, error) {
	var l EmailLog
	if err := s.c.do(ctx, http.MethodGet, "/v1/logs/"+escape(id), nil, &l, nil); err != nil {
		return nil, err
	}
	return &l, nil
}

// NewSince returns the entries of page that precede lastID, oldest
// first.  Everything is new when lastID does not appear.
func NewSince(page []EmailLog, lastID string) []EmailLog {
	var fresh []EmailLog
	for _, l := range page {
		if l.ID == lastID {
			break
		}
		fresh = append(fresh, l)
	}
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	return fresh
}

// WebhookConfig is the account's webhook endpoint.
type WebhookConfig struct {
	URL       *string  `json:"url"`
	Enabled   bool     `json:"enabled"`
	HasSecret bool     `json:"hasSecret"`
	Events    []string `json:"events"`
}

// WebhookTestResult reports a test delivery.
type WebhookTestResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WebhookDelivery is one attempt to deliver an event.
type WebhookDelivery struct {
	ID            string  `json:"id"`
	EmailID       *string `json:"emailId"`
	Event         string  `json:"event"`
	URL           string  `json:"url"`
	Status        string  `json:"status"`
	StatusCode    *int    `json:"statusCode"`
	Attempts      int     `json:"attempts"`
	LastAttemptAt *string `json:"lastAttemptAt"`
	Error         *string `json:"error"`
	CreatedAt     string  `json:"createdAt"`
}

// WebhooksService inspects webhook configuration and deliveries.
type WebhooksService struct{ c *Client }

func (s *WebhooksService) Config(ctx context.Context) (*WebhookConfig, error) {
	var w WebhookConfig
	if err := s.c.do(ctx, http.MethodGet, "/v1/webhooks", nil, &w, nil); err != nil {
		return nil, err
	}
	return &w, nil
}

// Test asks the API to send a webhook.test event to the endpoint.
func (s *WebhooksService) Test(ctx context.Context) (*WebhookTestResult, error) {
	var r WebhookTestResult
	if err := s.c.do(ctx, http.MethodPost, "/v1/webhooks/test", nil, &r, nil); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *WebhooksService) Deliveries(ctx context.Context) ([]WebhookDelivery, error) {
	var r struct {
		Deliveries []WebhookDelivery `json:"deliveries"`
	}
	if err := s.c.do(ctx, http.MethodGet, "/v1/webhooks/deliveries", nil, &r, nil); err != nil {
		return nil, err
	}
	return r.Deliveries, nil
}
