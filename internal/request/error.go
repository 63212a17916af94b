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

package request

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind string

const (
	// KindNetwork means no HTTP response was obtained.
	KindNetwork Kind = "network_error"
	// KindAPI means the server answered with a non-2xx status.
	KindAPI Kind = "api_error"
	// KindTimeout means no response arrived within the attempt timeout.
	KindTimeout Kind = "timeout_error"
)

// Error is the normalized outcome of a failed API call.  Status is set
// exactly when Kind is KindAPI.
type Error struct {
	Message string
	Kind    Kind
	// APICode is the server supplied machine code, e.g. QUOTA_EXCEEDED.
	APICode string
	Status  int
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindAPI && e.APICode != "":
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.APICode)
	case e.Kind == KindAPI:
		return fmt.Sprintf("%s (%d)", e.Message, e.Status)
	default:
		return e.Message
	}
}

// AsError reports whether err, or any error it wraps, is an *Error and
// returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is an API error carrying the given code.
func HasCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.APICode == code
}

func apiError(status int, message, code string) *Error {
	return &Error{Message: message, Kind: KindAPI, APICode: code, Status: status}
}

// errorEnvelope is the body the API sends with a non-2xx status.  Both
// fields are optional.
type errorEnvelope struct {
	Message *string `json:"message"`
	Code    *string `json:"code"`
}

// parseError decodes an error body tolerantly.  Anything that is not a
// JSON object yields the generic "Request failed" message.
func parseError(status int, body []byte) *Error {
	fallback := fmt.Sprintf("Request failed: %d", status)
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiError(status, fallback, "")
	}
	message := fallback
	if env.Message != nil {
		message = *env.Message
	}
	code := ""
	if env.Code != nil {
		code = *env.Code
	}
	return apiError(status, message, code)
}
