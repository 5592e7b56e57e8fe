/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHALKBOARD_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("CHALKBOARD_DB_BACKEND", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.Environment != "development" {
		t.Fatalf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("DBBackend = %q, want sqlite", cfg.DBBackend)
	}
	if cfg.MaxTermDays != 370 {
		t.Fatalf("MaxTermDays = %d, want 370", cfg.MaxTermDays)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("CHALKBOARD_DB_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DSN, got nil")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CHALKBOARD_DB_DSN", "dsn")
	t.Setenv("CHALKBOARD_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}

func TestLoadRequiresSigningKeyOutsideDevelopment(t *testing.T) {
	t.Setenv("CHALKBOARD_DB_DSN", "dsn")
	t.Setenv("CHALKBOARD_DB_BACKEND", "postgres")
	t.Setenv("CHALKBOARD_ENV", "production")
	t.Setenv("CHALKBOARD_JWT_SIGNING_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing signing key in production, got nil")
	}
}
