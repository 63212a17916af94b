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

	"github.com/sendpigeon/cli/internal/message"
)

// EmailsService reads and cancels sent emails.
type EmailsService struct{ c *Client }

// Get fetches an email by ID.
func (s *EmailsService) Get(ctx context.Context, id string) (*message.EmailDetail, error) {
	var e message.EmailDetail
	if err := s.c.do(ctx, http.MethodGet, "/v1/emails/"+escape(id), nil, &e, nil); err != nil {
		return nil, err
	}
	return &e, nil
}

// Cancel cancels a scheduled email before it is sent.
func (s *EmailsService) Cancel(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/v1/emails/"+escape(id)+"/schedule", nil, nil, nil)
}

// TemplateVariable declares a substitution a template accepts.
type TemplateVariable struct {
	Key           string `json:"key"`
	Type          string `json:"type"`
	FallbackValue string `json:"fallbackValue,omitempty"`
}

// TemplateDomain is the domain a template is bound to.
type TemplateDomain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Template is a stored email template.
type Template struct {
	ID         string             `json:"id"`
	TemplateID string             `json:"templateId"`
	Name       *string            `json:"name"`
	Subject    string             `json:"subject"`
	HTML       *string            `json:"html"`
	Text       *string            `json:"text"`
	Variables  []TemplateVariable `json:"variables"`
	Status     string             `json:"status"`
	Domain     *TemplateDomain    `json:"domain"`
	CreatedAt  string             `json:"createdAt"`
	UpdatedAt  string             `json:"updatedAt"`
}

// CreateTemplateRequest is the body of a template create.
type CreateTemplateRequest struct {
	TemplateID string             `json:"templateId"`
	Name       string             `json:"name,omitempty"`
	Subject    string             `json:"subject"`
	HTML       string             `json:"html,omitempty"`
	Text       string             `json:"text,omitempty"`
	Variables  []TemplateVariable `json:"variables,omitempty"`
	DomainID   string             `json:"domainId,omitempty"`
}

// UpdateTemplateRequest is the body of a template update.  Nil fields
// are left unchanged.
type UpdateTemplateRequest struct {
	Name      *string            `json:"name,omitempty"`
	Subject   *string            `json:"subject,omitempty"`
	HTML      *string            `json:"html,omitempty"`
	Text      *string            `json:"text,omitempty"`
	Variables []TemplateVariable `json:"variables,omitempty"`
	DomainID  *string            `json:"domainId,omitempty"`
}

// TestTemplateRequest sends a rendered template to one address.
type TestTemplateRequest struct {
	To        string            `json:"to"`
	Variables map[string]string `json:"variables,omitempty"`
}

// TestTemplateResponse reports the test email that was sent.
type TestTemplateResponse struct {
	Message string `json:"message"`
	EmailID string `json:"emailId"`
}

// TemplatesService manages templates.
type TemplatesService struct{ c *Client }

func (s *TemplatesService) template(ctx context.Context, method, path string, body any) (*Template, error) {
	var t Template
	if err := s.c.do(ctx, method, path, body, &t, nil); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TemplatesService) List(ctx context.Context) ([]Template, error) {
	var ts []Template
	if err := s.c.do(ctx, http.MethodGet, "/v1/templates", nil, &ts, nil); err != nil {
		return nil, err
	}
	return ts, nil
}

func (s *TemplatesService) Create(ctx context.Context, req CreateTemplateRequest) (*Template, error) {
	return s.template(ctx, http.MethodPost, "/v1/templates", req)
}

func (s *TemplatesService) Get(ctx context.Context, id string) (*Template, error) {
	return s.template(ctx, http.MethodGet, "/v1/templates/"+escape(id), nil)
}

func (s *TemplatesService) Update(ctx context.Context, id string, req UpdateTemplateRequest) (*Template, error) {
	return s.template(ctx, http.MethodPatch, "/v1/templates/"+escape(id), req)
}

func (s *TemplatesService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/v1/templates/"+escape(id), nil, nil, nil)
}

func (s *TemplatesService) Publish(ctx context.Context, id string) (*Template, error) {
	return s.template(ctx, http.MethodPost, "/v1/templates/"+escape(id)+"/publish", nil)
}

func (s *TemplatesService) Unpublish(ctx context.Context, id string) (*Template, error) {
	return s.template(ctx, http.MethodPost, "/v1/templates/"+escape(id)+"/unpublish", nil)
}

// Test sends the template, rendered with req.Variables, to req.To.
func (s *TemplatesService) Test(ctx context.Context, id string, req TestTemplateRequest) (*TestTemplateResponse, error) {
	var r TestTemplateResponse
	if err := s.c.do(ctx, http.MethodPost, "/v1/templates/"+escape(id)+"/test", req, &r, nil); err != nil {
		return nil, err
	}
	return &r, nil
}

// Domain is a sending domain.
type Domain struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	VerifiedAt    *string `json:"verifiedAt"`
	LastCheckedAt *string `json:"lastCheckedAt"`
	FailingSince  *string `json:"failingSince"`
	CreatedAt     string  `json:"createdAt"`
}

// DomainListItem is a Domain as listed.
type DomainListItem struct {
	Domain
	InboundEnabled bool `json:"inboundEnabled"`
	InboundReady   bool `json:"inboundReady"`
}

// DNSRecord is a record the domain owner must publish.
type DNSRecord struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Priority *int   `json:"priority,omitempty"`
}

// DomainWithDNSRecords is a Domain with its required DNS records.
type DomainWithDNSRecords struct {
	Domain
	DNSRecords []DNSRecord `json:"dnsRecords"`
}

// RecordStatus is the verification state of one DNS record.
type RecordStatus struct {
	Found bool `json:"found"`
	Valid bool `json:"valid"`
}

// DomainVerificationResult is returned by Verify.
type DomainVerificationResult struct {
	Domain       Domain `json:"domain"`
	Verification struct {
		Verified bool         `json:"verified"`
		DKIM     RecordStatus `json:"dkim"`
		MX       RecordStatus `json:"mx"`
		SPF      RecordStatus `json:"spf"`
		DMARC    RecordStatus `json:"dmarc"`
	} `json:"verification"`
}

// CreateDomainRequest registers a domain.
type CreateDomainRequest struct {
	Name             string `json:"name"`
	TestEmailAddress string `json:"testEmailAddress,omitempty"`
}

// DomainsService manages sending domains.
type DomainsService struct{ c *Client }

func (s *DomainsService) List(ctx context.Context) ([]DomainListItem, error) {
	var ds []DomainListItem
	if err := s.c.do(ctx, http.MethodGet, "/v1/domains", nil, &ds, nil); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *DomainsService) Create(ctx context.Context, req CreateDomainRequest) (*DomainWithDNSRecords, error) {
	var d DomainWithDNSRecords
	if err := s.c.do(ctx, http.MethodPost, "/v1/domains", req, &d, nil); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DomainsService) Get(ctx context.Context, id string) (*DomainWithDNSRecords, error) {
	var d DomainWithDNSRecords
	if err := s.c.do(ctx, http.MethodGet, "/v1/domains/"+escape(id), nil, &d, nil); err != nil {
		return nil, err
	}
	return &d, nil
}

// Verify asks the API to re-check the domain's DNS records.
func (s *DomainsService) Verify(ctx context.Context, id string) (*DomainVerificationResult, error) {
	var r DomainVerificationResult
	if err := s.c.do(ctx, http.MethodPost, "/v1/domains/"+escape(id)+"/verify", nil, &r, nil); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *DomainsService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/v1/domains/"+escape(id), nil, nil, nil)
}

// APIKey describes an API key without its secret.
type APIKey struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	KeyPrefix  string          `json:"keyPrefix"`
	Mode       string          `json:"mode"`
	Permission string          `json:"permission"`
	LastUsedAt *string         `json:"lastUsedAt"`
	ExpiresAt  *string         `json:"expiresAt"`
	CreatedAt  string          `json:"createdAt"`
	Domain     *TemplateDomain `json:"domain"`
}

// APIKeyWithSecret is returned once, on creation.
type APIKeyWithSecret struct {
	APIKey
	Key string `json:"key"`
}

// CreateAPIKeyRequest describes a new key.  Mode defaults to "live" and
// Permission to "full_access".
type CreateAPIKeyRequest struct {
	Name       string `json:"name"`
	Mode       string `json:"mode,omitempty"`
	Permission string `json:"permission,omitempty"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
	DomainID   string `json:"domainId,omitempty"`
}

// APIKeysService manages API keys.
type APIKeysService struct{ c *Client }

func (s *APIKeysService) List(ctx context.Context) ([]APIKey, error) {
	var ks []APIKey
	if err := s.c.do(ctx, http.MethodGet, "/v1/api-keys", nil, &ks, nil); err != nil {
		return nil, err
	}
	return ks, nil
}

func (s *APIKeysService) Create(ctx context.Context, req CreateAPIKeyRequest) (*APIKeyWithSecret, error) {
	var k APIKeyWithSecret
	if err := s.c.do(ctx, http.MethodPost, "/v1/api-keys", req, &k, nil); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *APIKeysService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, "/v1/api-keys/"+escape(id), nil, nil, nil)
}

// Suppression is an address the API will not send to.
type Suppression struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Reason        string  `json:"reason"`
	SourceEmailID *string `json:"sourceEmailId"`
	CreatedAt     string  `json:"createdAt"`
}

// SuppressionList is one page of suppressions.
type SuppressionList struct {
	Data  []Suppression `json:"data"`
	Total int           `json:"total"`
}

// SuppressionsService manages the suppression list.
type SuppressionsService struct{ c *Client }

// List returns a page of suppressions.  Zero limit or offset leaves the
// server default.
func (s *SuppressionsService) List(ctx context.Context, limit, offset int) (*SuppressionList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var l SuppressionList
	if err := s.c.do(ctx, http.MethodGet, withQuery("/v1/suppressions", q), nil, &l, nil); err != nil {
		return nil, err
	}
	return &l, nil
}

// Delete removes email from the suppression list.
func (s *SuppressionsService) Delete(ctx context.Context, email string) error {
	return s.c.do(ctx, http.MethodDelete, "/v1/suppressions/"+escape(email), nil, nil, nil)
}
