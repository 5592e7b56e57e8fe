/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for every mutating engine operation.
const (
	AuditActionScheduleGenerate   AuditAction = "schedule.generate"
	AuditActionScheduleDryRun     AuditAction = "schedule.dry_run"
	AuditActionScheduleReset      AuditAction = "schedule.reset"
	AuditActionSessionsBulkCancel AuditAction = "sessions.bulk_cancel"
	AuditActionSeedApply          AuditAction = "seed.apply"
)

// AuditLog records engine operations for the external audit trail.
type AuditLog struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	Timestamp time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	TenantID  string         `gorm:"type:uuid;index:idx_audit_tenant"`
	ActorID   string         `gorm:"type:varchar(255)"`
	Action    AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	Details   map[string]any `gorm:"type:jsonb;serializer:json"` // counts, conflicts, window bounds
	IPAddress string         `gorm:"type:varchar(45)"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
