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

package devserver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sendpigeon/cli/internal/message"
)

// DefaultCapacity is how many emails the in-memory store keeps.
const DefaultCapacity = 100

// Sources of a captured email.
const (
	SourceHTTP = "http"
	SourceSMTP = "smtp"
)

// ErrNotFound is returned by Store.Get for an unknown id.
var ErrNotFound = errors.New("email not found")

// Email is a message caught by the dev server.
type Email struct {
	ID          string                   `json:"id"`
	From        string                   `json:"from"`
	To          message.Addresses        `json:"to"`
	Subject     string                   `json:"subject"`
	HTML        string                   `json:"html,omitempty"`
	Text        string                   `json:"text,omitempty"`
	Headers     map[string]string        `json:"headers,omitempty"`
	Attachments []message.AttachmentMeta `json:"attachments,omitempty"`
	Source      string                   `json:"source"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// NewID returns a fresh "dev_" prefixed email id.
func NewID() string {
	return "dev_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Store holds caught emails, newest first.
type Store interface {
	Add(ctx context.Context, e Email) error
	List(ctx context.Context) ([]Email, error)
	Get(ctx context.Context, id string) (*Email, error)
	Clear(ctx context.Context) error
}

// Ring is a bounded in-memory Store.  When full, adding an email evicts
// the oldest one.
type Ring struct {
	mu     sync.Mutex
	cap    int
	emails []Email
}

// NewRing returns a Ring holding at most capacity emails, or
// DefaultCapacity when capacity is not positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{cap: capacity}
}

func (r *Ring) Add(ctx context.Context, e Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append([]Email{e}, r.emails...)
	if len(r.emails) > r.cap {
		r.emails = r.emails[:r.cap]
	}
	return nil
}

// List returns a copy; callers may keep it.
func (r *Ring) List(ctx context.Context) ([]Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Email, len(r.emails))
	copy(out, r.emails)
	return out, nil
}

func (r *Ring) Get(ctx context.Context, id string) (*Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.emails {
		if r.emails[i].ID == id {
			e := r.emails[i]
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (r *Ring) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = nil
	return nil
}
