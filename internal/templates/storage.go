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

package templates

// This file declares what the sync needs from the template API.

import (
	"context"

	"github.com/sendpigeon/cli/internal/client"
)

// Lister lists all templates.
type Lister interface {
	List(ctx context.Context) ([]client.Template, error)
}

// Getter fetches one template.
type Getter interface {
	Get(ctx context.Context, id string) (*client.Template, error)
}

// Source provides everything Pull needs.
type Source interface {
	Lister
	Getter
}

// Destination provides everything Push needs.
type Destination interface {
	Update(ctx context.Context, id string, req client.UpdateTemplateRequest) (*client.Template, error)
	Create(ctx context.Context, req client.CreateTemplateRequest) (*client.Template, error)
}
