// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/setefiscal/setefiscal/lib/config"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testHash(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestLoadYAML(t *testing.T) {
	hash := testHash(t, "chave-secreta")
	path := writeConfig(t, "fiscald.yaml", `
listen: "0.0.0.0:9000"
database_path: /var/lib/fiscald/fiscal.db
public_origin: https://fiscal.example.com
owners:
  - id: owner-alice
    name: Alice Contadora
    api_key_hash: "`+hash+`"
`)

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	owner := cfg.Authenticate("chave-secreta")
	if owner == nil || owner.ID != "owner-alice" {
		t.Errorf("Authenticate = %+v", owner)
	}
	if cfg.Authenticate("chave-errada") != nil {
		t.Error("wrong key authenticated")
	}
	if cfg.Authenticate("") != nil {
		t.Error("empty key authenticated")
	}
}

func TestLoadJSONC(t *testing.T) {
	path := writeConfig(t, "fiscald.jsonc", `{
	// local development setup
	"listen": "127.0.0.1:8478",
	"database_path": "./fiscal.db",
}`)

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DatabasePath != "./fiscal.db" {
		t.Errorf("database_path = %q", cfg.DatabasePath)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := &config.Config{
		PublicOrigin: "fiscal.example.com",
		Owners: []config.Owner{
			{ID: "a", APIKeyHash: "not-bcrypt"},
			{ID: "a", APIKeyHash: "not-bcrypt"},
			{Name: "no id"},
		},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate passed")
	}
	for _, want := range []string{
		"listen is required",
		"database_path is required",
		"public_origin",
		"duplicate id",
		"not a bcrypt hash",
		"id is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadRequiresPath(t *testing.T) {
	t.Setenv("FISCALD_CONFIG", "")
	if _, err := config.Load(); err == nil {
		t.Fatal("Load without FISCALD_CONFIG passed")
	}

	t.Setenv("FISCALD_CONFIG", writeConfig(t, "f.yaml", "listen: ':1'\ndatabase_path: d.db\n"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":1" {
		t.Errorf("listen = %q", cfg.Listen)
	}
}
