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

package tracehttp

import (
	"net/http"
	"net/http/httputil"

	"github.com/rs/zerolog"
)

// traceTransport is an http.RoundTripper that logs a dump of the
// request and response while delegating the real work to another
// http.RoundTripper.
type traceTransport struct {
	delegate http.RoundTripper
	logger   zerolog.Logger
}

// RoundTrip logs a dump of the request and response while delegating the
// round trip to the delegate.  The Authorization header is masked.
func (t *traceTransport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	masked := req.Clone(req.Context())
	if masked.Header.Get("Authorization") != "" {
		masked.Header.Set("Authorization", "Bearer ***")
	}
	// The clone shares req's body; DumpRequestOut consumes it and leaves
	// a fresh copy on masked.
	dump, dumpErr := httputil.DumpRequestOut(masked, true)
	if dumpErr == nil {
		t.logger.Debug().Str("dir", "out").Msg(string(dump))
	}
	req.Body = masked.Body
	resp, err = t.delegate.RoundTrip(req)
	if err != nil {
		t.logger.Debug().Err(err).Str("url", req.URL.String()).Msg("round trip failed")
		return resp, err
	}
	dump, dumpErr = httputil.DumpResponse(resp, true)
	if dumpErr == nil {
		t.logger.Debug().Str("dir", "in").Msg(string(dump))
	}
	return resp, nil
}

// Wrap returns d wrapped in a tracing transport that logs to logger.  A
// nil d means http.DefaultTransport.
func Wrap(d http.RoundTripper, logger zerolog.Logger) http.RoundTripper {
	if d == nil {
		d = http.DefaultTransport
	}
	return &traceTransport{delegate: d, logger: logger}
}

// WrapDefaultTransport injects a tracing transport into
// http.DefaultTransport.
func WrapDefaultTransport(logger zerolog.Logger) {
	http.DefaultTransport = Wrap(http.DefaultTransport, logger)
}
