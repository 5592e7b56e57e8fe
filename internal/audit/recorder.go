/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audit persists an append-only trail of engine operations.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chalkboard-app/chalkboard/internal/models"
)

// Recorder writes audit log rows. Recording is best effort: a failed write
// is logged and swallowed so auditing never blocks or fails the audited
// operation itself.
type Recorder struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(db *gorm.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Entry describes one audited operation.
type Entry struct {
	TenantID  string
	ActorID   string
	Action    models.AuditAction
	Details   map[string]any
	IPAddress string
}

// Record persists the entry.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	row := models.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		TenantID:  e.TenantID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Details:   e.Details,
		IPAddress: e.IPAddress,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.Error().Err(err).
			Str("action", string(e.Action)).
			Str("tenant_id", e.TenantID).
			Msg("Failed to write audit log entry")
		return
	}

	r.logger.Debug().
		Str("action", string(e.Action)).
		Str("tenant_id", e.TenantID).
		Str("actor_id", e.ActorID).
		Msg("Audit entry recorded")
}

// List returns audit entries for a tenant, newest first.
func (r *Recorder) List(ctx context.Context, tenantID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
