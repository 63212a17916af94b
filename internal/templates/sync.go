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

// Package templates mirrors email templates between the API and a local
// directory, one subdirectory per template.
package templates

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sendpigeon/cli/internal/client"
	"github.com/sendpigeon/cli/internal/request"
)

const pushConcurrency = 4

// Summary is the outcome of a Push.
type Summary struct {
	Total  int
	Pushed int
	Failed int
	// Errors maps a template directory name to why it was not pushed.
	Errors map[string]error
}

func listTemplates(ctx context.Context, src Source, id string, out chan<- client.Template) error {
	defer close(out)

	send := func(t client.Template) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- t:
			return nil
		}
	}
	if id != "" {
		t, err := src.Get(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "unable to retrieve template %v", id)
		}
		return send(*t)
	}
	ts, err := src.List(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to retrieve templates")
	}
	for _, t := range ts {
		if err := send(t); err != nil {
			return err
		}
	}
	return nil
}

func saveTemplates(d *Dir, in <-chan client.Template, count *int) error {
	for t := range in {
		if err := d.write(t); err != nil {
			return errors.Wrapf(err, "saving template %v", t.TemplateID)
		}
		d.log.Debug().Str("template", t.TemplateID).Msg("pulled template")
		*count++
	}
	return nil
}

// Pull downloads templates into d: all of them, or only id when it is
// not empty.  It returns how many were written.
func (d *Dir) Pull(ctx context.Context, src Source, id string) (int, error) {
	if err := mkdir(d.path); err != nil {
		return 0, errors.Wrapf(err, "creating %s", d.path)
	}
	grp, ctx := errgroup.WithContext(ctx)
	ts := make(chan client.Template, 16)
	count := 0
	grp.Go(func() error {
		return listTemplates(ctx, src, id, ts)
	})
	grp.Go(func() error {
		err := saveTemplates(d, ts, &count)
		if err != nil {
			// Unblock the lister.
			for range ts {
			}
		}
		return err
	})
	if err := grp.Wait(); err != nil {
		return count, errors.Wrap(err, "failed to pull templates")
	}
	d.log.Info().Int("count", count).Str("dir", d.path).Msg("pulled templates")
	return count, nil
}

// pushOne updates the template, creating it when the API does not know
// it yet.
func pushOne(ctx context.Context, dst Destination, l *local) error {
	update := client.UpdateTemplateRequest{
		Name:      l.meta.Name,
		Subject:   &l.meta.Subject,
		HTML:      l.html,
		Text:      l.text,
		Variables: l.meta.Variables,
	}
	_, err := dst.Update(ctx, l.meta.TemplateID, update)
	if err == nil {
		return nil
	}
	if !request.HasCode(err, "NOT_FOUND") {
		return err
	}
	create := client.CreateTemplateRequest{
		TemplateID: l.meta.TemplateID,
		Subject:    l.meta.Subject,
		Variables:  l.meta.Variables,
	}
	if l.meta.Name != nil {
		create.Name = *l.meta.Name
	}
	if l.html != nil {
		create.HTML = *l.html
	}
	if l.text != nil {
		create.Text = *l.text
	}
	_, err = dst.Create(ctx, create)
	return err
}

// Push uploads the templates in d: all of them, or only the one stored
// for id.  A template that fails does not stop the others.
func (d *Dir) Push(ctx context.Context, dst Destination, id string) (*Summary, error) {
	if _, err := os.Stat(d.path); err != nil {
		return nil, errors.Wrapf(err, "directory not found: %s", d.path)
	}
	var names []string
	if id != "" {
		names = []string{escape(id)}
	} else {
		var err error
		if names, err = d.names(); err != nil {
			return nil, errors.Wrapf(err, "listing %s", d.path)
		}
	}

	sum := &Summary{Total: len(names), Errors: map[string]error{}}
	var mu sync.Mutex
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			sum.Failed++
			sum.Errors[name] = err
			d.log.Warn().Err(err).Str("template", name).Msg("failed to push template")
			return
		}
		sum.Pushed++
		d.log.Debug().Str("template", name).Msg("pushed template")
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(pushConcurrency)
	for _, name := range names {
		name := name
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l, err := d.read(name)
			if err == nil {
				err = pushOne(gctx, dst, l)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			record(name, err)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return sum, errors.Wrap(err, "failed to push templates")
	}
	return sum, nil
}
