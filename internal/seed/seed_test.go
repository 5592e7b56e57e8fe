/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chalkboard-app/chalkboard/internal/models"
)

const seedDoc = `
tenants:
  - id: 11111111-1111-1111-1111-111111111111
    name: Northside Tutoring
    centers:
      - id: 22222222-2222-2222-2222-222222222222
        name: Downtown
        timezone: America/Edmonton
        tutors:
          - id: 33333333-3333-3333-3333-333333333333
            display_name: Dana Lee
            email: dana@example.com
        groups:
          - id: 44444444-4444-4444-4444-444444444444
            name: Grade 10 Math
            subject: math
`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	err = gdb.AutoMigrate(&models.Tenant{}, &models.Center{}, &models.Tutor{}, &models.ClassGroup{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func writeSeedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedDoc), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoadAndApply(t *testing.T) {
	gdb := newTestDB(t)

	f, err := Load(writeSeedFile(t))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	sum, err := Apply(context.Background(), gdb, f, zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if sum.Tenants != 1 || sum.Centers != 1 || sum.Tutors != 1 || sum.Groups != 1 {
		t.Fatalf("summary = %+v, want one of each", sum)
	}

	var tutor models.Tutor
	if err := gdb.First(&tutor, "id = ?", "33333333-3333-3333-3333-333333333333").Error; err != nil {
		t.Fatalf("tutor was not inserted: %v", err)
	}
	if tutor.TenantID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("tutor tenant = %s", tutor.TenantID)
	}
	if !tutor.Active {
		t.Fatal("seeded tutor should be active")
	}
}

func TestApplyIsRepeatable(t *testing.T) {
	gdb := newTestDB(t)

	f, err := Load(writeSeedFile(t))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if _, err := Apply(context.Background(), gdb, f, zerolog.Nop()); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	sum, err := Apply(context.Background(), gdb, f, zerolog.Nop())
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if sum.Tenants != 0 || sum.Centers != 0 || sum.Tutors != 0 || sum.Groups != 0 {
		t.Fatalf("second apply inserted rows: %+v", sum)
	}

	var count int64
	if err := gdb.Model(&models.Tenant{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count tenants: %v", err)
	}
	if count != 1 {
		t.Fatalf("tenant rows = %d, want 1", count)
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("tenants: []\n"), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a seed file with no tenants")
	}
}
