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

// Package webhook authenticates webhook deliveries.  A delivery is
// signed with HMAC-SHA256 over "<timestamp>.<payload>" using the
// endpoint's shared secret and must be fresh to within MaxAge.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// DefaultMaxAge is the freshness window used when VerifyOptions.MaxAge
// is zero.
const DefaultMaxAge = 300 * time.Second

// Failure is the reason a delivery was rejected.
type Failure string

const (
	InvalidTimestamp       Failure = "Invalid timestamp"
	TimestampExpired       Failure = "Timestamp expired"
	TimestampInFuture      Failure = "Timestamp too far in future"
	InvalidSignature       Failure = "Invalid signature"
	InvalidSignatureFormat Failure = "Invalid signature format"
	InvalidPayloadJSON     Failure = "Invalid payload JSON"
	InvalidEventType       Failure = "Invalid event type"
)

func (f Failure) Error() string { return string(f) }

// Event names a delivery lifecycle event.
type Event string

const (
	EmailDelivered  Event = "email.delivered"
	EmailBounced    Event = "email.bounced"
	EmailComplained Event = "email.complained"
	EmailOpened     Event = "email.opened"
	EmailClicked    Event = "email.clicked"
	WebhookTest     Event = "webhook.test"
	EmailReceived   Event = "email.received"
)

// PayloadData holds the event specific fields.  Which are set depends on
// the event.
type PayloadData struct {
	EmailID       string `json:"emailId,omitempty"`
	ToAddress     string `json:"toAddress,omitempty"`
	FromAddress   string `json:"fromAddress,omitempty"`
	Subject       string `json:"subject,omitempty"`
	BounceType    string `json:"bounceType,omitempty"`
	ComplaintType string `json:"complaintType,omitempty"`
	OpenedAt      string `json:"openedAt,omitempty"`
	ClickedAt     string `json:"clickedAt,omitempty"`
	LinkURL       string `json:"linkUrl,omitempty"`
	LinkIndex     *int   `json:"linkIndex,omitempty"`
}

// Payload is a delivery lifecycle webhook body.
type Payload struct {
	Event     Event       `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      PayloadData `json:"data"`
}

// InboundAttachment describes a file attached to a received email.  URL
// is presigned and short lived.
type InboundAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// InboundEmailData is a received email.
type InboundEmailData struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Text        *string             `json:"text"`
	HTML        *string             `json:"html"`
	Attachments []InboundAttachment `json:"attachments"`
	RawURL      string              `json:"rawUrl"`
}

// InboundEmailEvent is the body of an email.received webhook.
type InboundEmailEvent struct {
	Event     Event            `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      InboundEmailData `json:"data"`
}

// VerifyOptions carries one delivery to check.
type VerifyOptions struct {
	// Payload is the raw request body, exactly as received.
	Payload   string
	Signature string
	Timestamp string
	Secret    string
	// MaxAge is the freshness window, counted in whole seconds with any
	// fraction rounded up.  Zero or negative means DefaultMaxAge.
	MaxAge time.Duration
}

var now = time.Now

// Sign returns the lowercase hex signature of payload sent at timestamp.
func Sign(secret, timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// windowSeconds converts a freshness window to whole seconds, rounding
// up so that a positive window never becomes zero.  Zero or negative
// means DefaultMaxAge.
func windowSeconds(maxAge time.Duration) int64 {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return int64((maxAge + time.Second - 1) / time.Second)
}

// authenticate checks freshness then signature.  Nothing about the
// payload is parsed before it succeeds.
func authenticate(opts VerifyOptions) error {
	ts, err := strconv.ParseInt(opts.Timestamp, 10, 64)
	if err != nil {
		return InvalidTimestamp
	}
	maxAge := windowSeconds(opts.MaxAge)
	age := now().Unix() - ts
	if age > maxAge {
		return TimestampExpired
	}
	if age < -maxAge {
		return TimestampInFuture
	}

	expected, err := hex.DecodeString(Sign(opts.Secret, opts.Timestamp, opts.Payload))
	if err != nil {
		return InvalidSignature
	}
	claimed, err := hex.DecodeString(opts.Signature)
	if err != nil || len(claimed) != len(expected) {
		return InvalidSignature
	}
	if subtle.ConstantTimeCompare(claimed, expected) != 1 {
		return InvalidSignature
	}
	return nil
}

// Verify authenticates a delivery lifecycle webhook and decodes it.  The
// body's shape is not checked: fields of the wrong type are left zero and
// callers switch on Payload.Event.
func Verify(opts VerifyOptions) (*Payload, error) {
	if err := authenticate(opts); err != nil {
		return nil, err
	}
	if !json.Valid([]byte(opts.Payload)) {
		return nil, InvalidPayloadJSON
	}
	var p Payload
	if err := json.Unmarshal([]byte(opts.Payload), &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, InvalidPayloadJSON
		}
	}
	return &p, nil
}

// VerifyInbound authenticates an inbound email webhook.  Beyond the
// signature the body must be an email.received event whose id, from,
// to and subject are strings.
func VerifyInbound(opts VerifyOptions) (*InboundEmailEvent, error) {
	if err := authenticate(opts); err != nil {
		return nil, err
	}
	var probe any
	if err := json.Unmarshal([]byte(opts.Payload), &probe); err != nil {
		return nil, InvalidPayloadJSON
	}
	if !isInboundEvent(probe) {
		return nil, InvalidEventType
	}
	var ev InboundEmailEvent
	if err := json.Unmarshal([]byte(opts.Payload), &ev); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, InvalidPayloadJSON
		}
	}
	return &ev, nil
}

func isInboundEvent(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok || obj["event"] != string(EmailReceived) {
		return false
	}
	data, ok := obj["data"].(map[string]any)
	if !ok {
		return false
	}
	for _, field := range []string{"id", "from", "to", "subject"} {
		if _, ok := data[field].(string); !ok {
			return false
		}
	}
	return true
}
