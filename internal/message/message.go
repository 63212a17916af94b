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

package message

// This file provides the email payloads exchanged with the API and the
// dev server.

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Addresses is one or more email addresses.  A single address travels
// on the wire as a bare string, several as an array.
type Addresses []string

// MarshalJSON implements json.Marshaler.
func (a Addresses) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Addresses) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*a = Addresses{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.New("addresses must be a string or an array of strings")
	}
	*a = many
	return nil
}

func (a Addresses) String() string {
	return strings.Join(a, ", ")
}

// AttachmentInput is a file to attach.  Exactly one of Content (base64)
// or Path (a URL the API fetches) is expected.
type AttachmentInput struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content,omitempty"`
	Path        string `json:"path,omitempty"`
}

// AttachmentMeta describes a stored attachment.
type AttachmentMeta struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// SendEmailRequest is the body of POST /v1/emails.
type SendEmailRequest struct {
	From        string            `json:"from"`
	To          Addresses         `json:"to"`
	Cc          Addresses         `json:"cc,omitempty"`
	Bcc         Addresses         `json:"bcc,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Text        string            `json:"text,omitempty"`
	ReplyTo     string            `json:"replyTo,omitempty"`
	TemplateID  string            `json:"templateId,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	// ScheduledAt is an ISO 8601 time at most 30 days ahead.
	ScheduledAt string `json:"scheduled_at,omitempty"`

	// Content, when set, supplies HTML and Text at send time.
	Content Content `json:"-"`
}

// SendEmailResponse is returned by POST /v1/emails.
type SendEmailResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	ScheduledAt string   `json:"scheduled_at,omitempty"`
	Suppressed  []string `json:"suppressed,omitempty"`
}

// BatchEmail is one entry of a batch send.
type BatchEmail struct {
	SendEmailRequest
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// BatchError explains why a batch entry was not sent.
type BatchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchEmailResult is the outcome of one batch entry.  Status is "sent"
// with ID set, or "error" with Error set.
type BatchEmailResult struct {
	Index      int         `json:"index"`
	Status     string      `json:"status"`
	ID         string      `json:"id,omitempty"`
	Suppressed []string    `json:"suppressed,omitempty"`
	Error      *BatchError `json:"error,omitempty"`
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SendBatchResponse is returned by POST /v1/emails/batch.
type SendBatchResponse struct {
	Data    []BatchEmailResult `json:"data"`
	Summary BatchSummary       `json:"summary"`
}

// EmailDetail is returned by GET /v1/emails/{id}.
type EmailDetail struct {
	ID            string            `json:"id"`
	FromAddress   string            `json:"fromAddress"`
	ToAddress     string            `json:"toAddress"`
	CcAddress     *string           `json:"ccAddress"`
	BccAddress    *string           `json:"bccAddress"`
	Subject       string            `json:"subject"`
	Status        string            `json:"status"`
	Tags          []string          `json:"tags"`
	Metadata      map[string]string `json:"metadata"`
	CreatedAt     string            `json:"createdAt"`
	SentAt        *string           `json:"sentAt"`
	DeliveredAt   *string           `json:"deliveredAt"`
	BouncedAt     *string           `json:"bouncedAt"`
	ComplainedAt  *string           `json:"complainedAt"`
	BounceType    *string           `json:"bounceType"`
	ComplaintType *string           `json:"complaintType"`
	Attachments   []AttachmentMeta  `json:"attachments"`
	HasBody       bool              `json:"hasBody"`
}
