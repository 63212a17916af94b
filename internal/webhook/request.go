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

package webhook

import (
	"bytes"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	TimestampHeader = "X-Webhook-Timestamp"

	maxBodyBytes = 10 << 20
)

// optionsFromRequest reads the signature headers and the raw body.  The
// body is put back so later handlers can read it again.
func optionsFromRequest(r *http.Request, secret string) (VerifyOptions, error) {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return VerifyOptions{}, InvalidSignatureFormat
	}
	ts := r.Header.Get(TimestampHeader)
	if ts == "" {
		return VerifyOptions{}, InvalidTimestamp
	}
	if r.Body == nil {
		return VerifyOptions{}, InvalidPayloadJSON
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body.Close()
	if err != nil {
		return VerifyOptions{}, errors.Wrap(err, "reading webhook body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return VerifyOptions{
		Payload:   string(body),
		Signature: sig,
		Timestamp: ts,
		Secret:    secret,
	}, nil
}

// VerifyRequest authenticates a delivery lifecycle webhook received by an
// HTTP handler.
func VerifyRequest(r *http.Request, secret string) (*Payload, error) {
	opts, err := optionsFromRequest(r, secret)
	if err != nil {
		return nil, err
	}
	return Verify(opts)
}

// VerifyInboundRequest authenticates an inbound email webhook received by
// an HTTP handler.
func VerifyInboundRequest(r *http.Request, secret string) (*InboundEmailEvent, error) {
	opts, err := optionsFromRequest(r, secret)
	if err != nil {
		return nil, err
	}
	return VerifyInbound(opts)
}
