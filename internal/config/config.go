/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
//
// Note that the deployment environment here only tunes logging and server
// behavior. The safety gate for destructive operations never reads it: the
// operator must name the target environment explicitly on every request.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	MetricsBind   string
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MaxTermDays   int // Upper bound on term length accepted by the generate API (days)
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("CHALKBOARD_ENV", "development"),
		HTTPBind:      getEnv("CHALKBOARD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("CHALKBOARD_HTTP_PORT", 8080),
		MetricsBind:   getEnv("CHALKBOARD_METRICS_BIND", "127.0.0.1:9000"),
		DBBackend:     DatabaseBackend(getEnv("CHALKBOARD_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:         getEnv("CHALKBOARD_DB_DSN", ""),
		JWTSigningKey: getEnv("CHALKBOARD_JWT_SIGNING_KEY", ""),
		MaxTermDays:   getEnvInt("CHALKBOARD_MAX_TERM_DAYS", 370),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("CHALKBOARD_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" && !strings.EqualFold(cfg.Environment, "development") {
		return nil, fmt.Errorf("CHALKBOARD_JWT_SIGNING_KEY must be provided outside development")
	}

	if cfg.MaxTermDays <= 0 {
		return nil, fmt.Errorf("CHALKBOARD_MAX_TERM_DAYS must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
