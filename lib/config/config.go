// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the daemon configuration.
//
// Configuration comes from a single file named by the --config flag or
// the FISCALD_CONFIG environment variable. There are no fallbacks and
// no automatic discovery; a missing path is an error. The file is YAML
// by default; .json and .jsonc files are accepted and preprocessed so
// comments and trailing commas survive.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// Listen is the HTTP listen address (e.g. "127.0.0.1:8478").
	Listen string `yaml:"listen" json:"listen"`

	// DatabasePath is the SQLite database file.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// PublicOrigin is the scheme and host share links are built
	// against (e.g. "https://fiscal.example.com").
	PublicOrigin string `yaml:"public_origin" json:"public_origin"`

	// CacheDir is where client sessions keep snapshot files. Empty
	// disables the local cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Owners is the registry of accountants allowed to use the owner
	// surface.
	Owners []Owner `yaml:"owners" json:"owners"`
}

// Owner is one registered accountant. The API key itself is never in
// the config, only its bcrypt hash (generate both with
// `fiscal keygen`).
type Owner struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	APIKeyHash string `yaml:"api_key_hash" json:"api_key_hash"`
}

// Default returns the base configuration merged under the loaded file.
// The file is still required; these are zero-value fillers, not a
// substitute for it.
func Default() *Config {
	return &Config{
		Listen: "127.0.0.1:8478",
	}
}

// Load reads the file named by FISCALD_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("FISCALD_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("config: FISCALD_CONFIG not set; " +
			"point it at your fiscald.yaml, or pass --config")
	}
	return LoadFile(path)
}

// LoadFile reads a specific configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// JSON with comments is YAML-parseable only after stripping the
	// comments and trailing commas.
	if strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonc") {
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors, reporting all of them
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("database_path is required"))
	}
	if c.PublicOrigin != "" && !strings.HasPrefix(c.PublicOrigin, "http://") && !strings.HasPrefix(c.PublicOrigin, "https://") {
		errs = append(errs, fmt.Errorf("public_origin must start with http:// or https://"))
	}

	seen := make(map[string]bool)
	for i, owner := range c.Owners {
		if owner.ID == "" {
			errs = append(errs, fmt.Errorf("owners[%d]: id is required", i))
			continue
		}
		if seen[owner.ID] {
			errs = append(errs, fmt.Errorf("owners[%d]: duplicate id %q", i, owner.ID))
		}
		seen[owner.ID] = true
		if _, err := bcrypt.Cost([]byte(owner.APIKeyHash)); err != nil {
			errs = append(errs, fmt.Errorf("owner %s: api_key_hash is not a bcrypt hash", owner.ID))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Authenticate resolves an API key to the owner it belongs to, or nil
// when no registered hash matches. Comparison cost is bcrypt's; the
// owner registry is small by design.
func (c *Config) Authenticate(apiKey string) *Owner {
	for i := range c.Owners {
		owner := &c.Owners[i]
		if bcrypt.CompareHashAndPassword([]byte(owner.APIKeyHash), []byte(apiKey)) == nil {
			return owner
		}
	}
	return nil
}
