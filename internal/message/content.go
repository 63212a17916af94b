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

import (
	"context"

	"github.com/pkg/errors"
)

// ErrContentAndHTML is returned when a request sets both Content and HTML.
var ErrContentAndHTML = errors.New("cannot use both content and html")

// Content produces an email body at send time.
type Content interface {
	Render(ctx context.Context) (html, text string, err error)
}

// RawContent is a body the caller already has.
type RawContent struct {
	HTML string
	Text string
}

// Render implements Content.
func (c RawContent) Render(context.Context) (string, string, error) {
	return c.HTML, c.Text, nil
}

// RendererFunc adapts a template renderer callback to Content.
type RendererFunc func(ctx context.Context) (html, text string, err error)

// Render implements Content.
func (f RendererFunc) Render(ctx context.Context) (string, string, error) {
	return f(ctx)
}

// Resolve renders req.Content into req.HTML and, when the caller gave no
// text, req.Text.  It is a no-op without Content.
func (req *SendEmailRequest) Resolve(ctx context.Context) error {
	if req.Content == nil {
		return nil
	}
	if req.HTML != "" {
		return ErrContentAndHTML
	}
	html, text, err := req.Content.Render(ctx)
	if err != nil {
		return errors.Wrap(err, "rendering email content")
	}
	req.HTML = html
	if req.Text == "" {
		req.Text = text
	}
	req.Content = nil
	return nil
}
