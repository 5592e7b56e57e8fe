/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chalkboard-app/chalkboard/internal/audit"
	"github.com/chalkboard-app/chalkboard/internal/auth"
	"github.com/chalkboard-app/chalkboard/internal/models"
	"github.com/chalkboard-app/chalkboard/internal/scheduler"
)

var testSecret = []byte("api-test-secret")

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Session{}, &models.AuditLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	logger := zerolog.Nop()
	recorder := audit.NewRecorder(gdb, logger)
	svc := scheduler.NewService(gdb, recorder, logger)

	r := chi.NewRouter()
	New(gdb, testSecret, svc, recorder, logger).Routes(r)
	return r, gdb
}

func issueToken(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{
		UserID:   "user-1",
		TenantID: "tenant-1",
		Roles:    roles,
	}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func generateBody() []byte {
	body, _ := json.Marshal(generatePayload{
		Term: termPayload{
			StartDate: "2026-02-09",
			EndDate:   "2026-03-09",
			TimeZone:  "America/Edmonton",
		},
		Rules: []rulePayload{{
			Weekday:         2,
			StartTime:       "18:30",
			DurationMinutes: 60,
			TutorID:         "tutor-1",
			CenterID:        "center-1",
			Label:           "Tue math",
		}},
		Environment: "staging",
	})
	return body
}

func TestGenerateRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/generate", bytes.NewReader(generateBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGenerateRequiresManagerRole(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/generate", bytes.NewReader(generateBody()))
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGenerateHappyPath(t *testing.T) {
	router, gdb := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/generate", bytes.NewReader(generateBody()))
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var summary scheduler.CommitSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.Created != 4 {
		t.Fatalf("created = %d, want 4", summary.Created)
	}

	var count int64
	if err := gdb.Model(&models.Session{}).Where("tenant_id = ?", "tenant-1").Count(&count).Error; err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 4 {
		t.Fatalf("session rows = %d, want 4", count)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(generatePayload{
		Term:        termPayload{StartDate: "2026-02-09", EndDate: "2026-03-09", TimeZone: "Mars/Olympus"},
		Rules:       []rulePayload{{Weekday: 2, StartTime: "18:30", DurationMinutes: 60, TutorID: "t", CenterID: "c"}},
		Environment: "staging",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/generate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error != "validation_failed" {
		t.Fatalf("error = %q, want validation_failed", resp.Error)
	}
	if _, ok := resp.Fields["term.time_zone"]; !ok {
		t.Fatalf("expected term.time_zone field error, got %v", resp.Fields)
	}
}

func TestResetForbiddenInProduction(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(resetPayload{
		Term:              termPayload{StartDate: "2026-02-09", EndDate: "2026-03-09", TimeZone: "America/Edmonton"},
		Environment:       "production",
		ConfirmProduction: true,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/reset", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestListSessionsScopedToTokenTenant(t *testing.T) {
	router, gdb := newTestRouter(t)

	now := time.Now().UTC().Truncate(time.Second)
	rows := []models.Session{
		{ID: "s-1", TenantID: "tenant-1", TutorID: "t-1", CenterID: "c-1", SessionType: models.SessionTypeRecurringGroup, Status: models.SessionStatusScheduled, StartsAt: now, EndsAt: now.Add(time.Hour)},
		{ID: "s-2", TenantID: "tenant-2", TutorID: "t-1", CenterID: "c-1", SessionType: models.SessionTypeRecurringGroup, Status: models.SessionStatusScheduled, StartsAt: now, EndsAt: now.Add(time.Hour)},
	}
	if err := gdb.Create(&rows).Error; err != nil {
		t.Fatalf("failed to seed sessions: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1 (other tenant's rows must be invisible)", resp.Count)
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
