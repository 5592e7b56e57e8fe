/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chalkboard-app/chalkboard/internal/models"
)

// PersistenceError wraps a database failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// sessionWriter is the commit boundary of a generation run. The dry-run
// implementation answers the same questions without touching the database.
type sessionWriter interface {
	// CreateSessions inserts the rows, silently skipping any that collide
	// with an existing binding, and returns the number actually inserted.
	CreateSessions(ctx context.Context, sessions []models.Session) (int64, error)
	// DeleteGeneratedRange removes generator-owned scheduled sessions for
	// the tenant inside [from, to) and returns the number removed.
	DeleteGeneratedRange(ctx context.Context, tenantID string, from, to time.Time) (int64, error)
}

// generatedRangeScope narrows a query to rows the generator owns: recurring
// group sessions still in the scheduled state. Cancelled and completed rows
// are operator history and are never touched.
func generatedRangeScope(db *gorm.DB, tenantID string, from, to time.Time) *gorm.DB {
	return db.Model(&models.Session{}).
		Where("tenant_id = ?", tenantID).
		Where("session_type = ?", models.SessionTypeRecurringGroup).
		Where("status = ?", models.SessionStatusScheduled).
		Where("starts_at >= ? AND starts_at < ?", from, to)
}

type gormWriter struct {
	db *gorm.DB
}

func (w *gormWriter) CreateSessions(ctx context.Context, sessions []models.Session) (int64, error) {
	if len(sessions) == 0 {
		return 0, nil
	}
	// The unique index on (tenant, tutor, center, starts_at) is the final
	// arbiter; concurrent runs lose races here instead of erroring.
	tx := w.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sessions)
	if tx.Error != nil {
		return 0, &PersistenceError{Op: "session insert", Err: tx.Error}
	}
	return tx.RowsAffected, nil
}

func (w *gormWriter) DeleteGeneratedRange(ctx context.Context, tenantID string, from, to time.Time) (int64, error) {
	tx := generatedRangeScope(w.db.WithContext(ctx), tenantID, from, to).
		Delete(&models.Session{})
	if tx.Error != nil {
		return 0, &PersistenceError{Op: "range reset", Err: tx.Error}
	}
	return tx.RowsAffected, nil
}

// dryRunWriter reports what a commit would do without writing anything.
type dryRunWriter struct {
	db *gorm.DB
}

func (w *dryRunWriter) CreateSessions(_ context.Context, sessions []models.Session) (int64, error) {
	return int64(len(sessions)), nil
}

func (w *dryRunWriter) DeleteGeneratedRange(ctx context.Context, tenantID string, from, to time.Time) (int64, error) {
	var count int64
	tx := generatedRangeScope(w.db.WithContext(ctx), tenantID, from, to).Count(&count)
	if tx.Error != nil {
		return 0, &PersistenceError{Op: "range reset preview", Err: tx.Error}
	}
	return count, nil
}
