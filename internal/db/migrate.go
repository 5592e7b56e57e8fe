/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"gorm.io/gorm"

	"github.com/chalkboard-app/chalkboard/internal/models"
)

// Migrate applies the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Center{},
		&models.Tutor{},
		&models.ClassGroup{},
		&models.Session{},
		&models.AuditLog{},
	)
}
