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

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sendpigeon/cli/internal/client"
)

const (
	// DefaultDir is where templates are kept relative to the working
	// directory.
	DefaultDir = "sendpigeon-templates"

	dirFileMode  = 0755
	fileFileMode = 0644

	metadataFile = "template.json"
	htmlFile     = "content.html"
	textFile     = "content.txt"
)

// Metadata is the content of template.json.
type Metadata struct {
	ID         string                    `json:"id"`
	TemplateID string                    `json:"templateId"`
	Name       *string                   `json:"name"`
	Subject    string                    `json:"subject"`
	Variables  []client.TemplateVariable `json:"variables"`
	Status     string                    `json:"status"`
}

// local is a template as found on disk.
type local struct {
	meta Metadata
	html *string
	text *string
}

// Dir is a directory holding one subdirectory per template.
type Dir struct {
	path string
	log  zerolog.Logger
}

// NewDir returns a Dir rooted at path.  Nothing is created until Pull.
func NewDir(path string, log zerolog.Logger) *Dir {
	return &Dir{path: path, log: log}
}

// Path returns the directory's root.
func (d *Dir) Path() string { return d.path }

func (d *Dir) templateDir(templateID string) string {
	return filepath.Join(d.path, escape(templateID))
}

// Return the specified string with characters that should not appear
// in a directory name escaped.
func escape(s string) string {
	hexCount := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			hexCount++
		}
	}

	if hexCount == 0 {
		return s
	}

	t := make([]byte, len(s)+2*hexCount)
	j := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case shouldEscape(c):
			t[j] = '='
			t[j+1] = "0123456789ABCDEF"[c>>4]
			t[j+2] = "0123456789ABCDEF"[c&15]
			j += 3
		default:
			t[j] = s[i]
			j++
		}
	}
	return string(t)
}

// Return true if the specified character should be escaped when
// appearing in a template directory name.
//
// Based on the POSIX portable filename character set: alphanumerics,
// period, underscore and hyphen.  The names "." and ".." survive this and
// are rejected by write.
func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '_', '.':
		return false
	}
	return true
}

func mkdir(dir string) error {
	if err := os.MkdirAll(dir, dirFileMode); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// write stores t under the directory, replacing any previous copy.
func (d *Dir) write(t client.Template) error {
	if t.TemplateID == "" || t.TemplateID == "." || t.TemplateID == ".." {
		return errors.Errorf("template %q has an unusable templateId %q", t.ID, t.TemplateID)
	}
	dir := d.templateDir(t.TemplateID)
	if err := mkdir(dir); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	meta := Metadata{
		ID:         t.ID,
		TemplateID: t.TemplateID,
		Name:       t.Name,
		Subject:    t.Subject,
		Variables:  t.Variables,
		Status:     t.Status,
	}
	if meta.Variables == nil {
		meta.Variables = []client.TemplateVariable{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(meta); err != nil {
		return errors.Wrapf(err, "encoding %s", t.TemplateID)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), buf.Bytes(), fileFileMode); err != nil {
		return err
	}
	for name, body := range map[string]*string{htmlFile: t.HTML, textFile: t.Text} {
		if body == nil || *body == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(*body), fileFileMode); err != nil {
			return err
		}
	}
	return nil
}

// read loads the template stored in the named subdirectory.
func (d *Dir) read(name string) (*local, error) {
	dir := filepath.Join(d.path, name)
	raw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%s: no %s", name, metadataFile)
		}
		return nil, err
	}
	var l local
	if err := json.Unmarshal(raw, &l.meta); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filepath.Join(dir, metadataFile))
	}
	if l.meta.TemplateID == "" {
		return nil, errors.Errorf("%s: %s has no templateId", name, metadataFile)
	}
	if l.html, err = readOptional(filepath.Join(dir, htmlFile)); err != nil {
		return nil, err
	}
	if l.text, err = readOptional(filepath.Join(dir, textFile)); err != nil {
		return nil, err
	}
	return &l, nil
}

func readOptional(path string) (*string, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// names lists the subdirectories that hold a template.json.
func (d *Dir) names() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(d.path, e.Name(), metadataFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
