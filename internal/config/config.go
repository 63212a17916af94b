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

// Package config resolves CLI settings from, in increasing precedence,
// built-in defaults, ~/.sendpigeon/config.yaml, a .env file, the
// environment and command line flags.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sendpigeon/cli/internal/homedir"
)

const (
	ProductionBaseURL = "https://api.sendpigeon.dev"
	DevBaseURL        = "http://localhost:4100"

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	MaxRetriesLimit   = 5
	DefaultPort       = 4100
	DefaultSMTPPort   = 4125

	// EnvFile is read from the working directory when present.
	EnvFile = ".env"
)

// ErrMissingAPIKey is returned by RequireAPIKey.  Its text is shown to
// the user as is.
var ErrMissingAPIKey = errors.New(`API key required

Provide an API key using one of these methods:
  1. Set SENDPIGEON_API_KEY environment variable
  2. Use --api-key flag

Get your API key at https://sendpigeon.dev/dashboard`)

// Config holds resolved settings.
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Dev        bool          `yaml:"dev"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Debug      bool          `yaml:"debug"`
	// LogLevel defaults to debug when Debug is set and to info otherwise.
	LogLevel   string        `yaml:"log_level"`
	// RateLimit caps API requests per second.  Zero means no limit.
	RateLimit  float64       `yaml:"rate_limit"`
	Port       int           `yaml:"port"`
	SMTPPort   int           `yaml:"smtp_port"`
}

// Overrides are values given on the command line.  Zero values are
// ignored.
type Overrides struct {
	APIKey  string
	BaseURL string
	Debug   bool
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		Port:       DefaultPort,
		SMTPPort:   DefaultSMTPPort,
	}
}

// File returns the path of the per-user config file.
func File() (string, error) {
	return homedir.Path(".sendpigeon", "config.yaml")
}

// Load resolves the configuration from the standard locations.
func Load(o Overrides) (*Config, error) {
	path, err := File()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path, EnvFile, o)
}

// LoadFrom resolves the configuration using the given YAML and .env
// files.  Either file may be missing.
func LoadFrom(yamlPath, envPath string, o Overrides) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, err
	}
	dotenv, err := readDotenv(envPath)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
	if err := loadEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if o.APIKey != "" {
		cfg.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = ProductionBaseURL
		if cfg.Dev {
			cfg.BaseURL = DevBaseURL
		}
	}
	cfg.MaxRetries = ClampRetries(cfg.MaxRetries)
	return &cfg, nil
}

// RequireAPIKey returns ErrMissingAPIKey when no key was configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return env, nil
}

func loadEnv(cfg *Config, lookup func(string) string) error {
	if v := lookup("SENDPIGEON_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := lookup("SENDPIGEON_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := lookup("SENDPIGEON_DEV"); v != "" {
		cfg.Dev = v == "true"
	}
	if v := lookup("SENDPIGEON_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "SENDPIGEON_DEBUG")
		}
		cfg.Debug = b
	}
	if v := lookup("SENDPIGEON_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := lookup("SENDPIGEON_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return errors.Wrap(err, "SENDPIGEON_TIMEOUT")
		}
		cfg.Timeout = d
	}
	if v := lookup("SENDPIGEON_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 {
			return errors.Errorf("SENDPIGEON_RATE_LIMIT: invalid rate %q", v)
		}
		cfg.RateLimit = r
	}
	for key, dst := range map[string]*int{
		"SENDPIGEON_MAX_RETRIES": &cfg.MaxRetries,
		"PORT":                   &cfg.Port,
		"SMTP_PORT":              &cfg.SMTPPort,
	} {
		if v := lookup(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrap(err, key)
			}
			*dst = n
		}
	}
	return nil
}

// parseTimeout accepts a Go duration or a bare number of milliseconds.
func parseTimeout(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// ClampRetries bounds n to [0, MaxRetriesLimit].
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetriesLimit {
		return MaxRetriesLimit
	}
	return n
}

// DefaultBaseURL is the API address used when none is configured.
// SENDPIGEON_DEV=true points it at the local dev server.
func DefaultBaseURL() string {
	if os.Getenv("SENDPIGEON_DEV") == "true" {
		return DevBaseURL
	}
	return ProductionBaseURL
}

// MaskAPIKey shortens key for display.
func MaskAPIKey(key string) string {
	if len(key) <= 12 {
		return "***"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
