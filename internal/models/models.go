/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// SessionType distinguishes generator-owned bookings from one-off entries
// created through other admin paths.
type SessionType string

const (
	SessionTypeRecurringGroup SessionType = "recurring_group"
	SessionTypeOneOff         SessionType = "one_off"
)

// SessionStatus is the lifecycle state of a session row. Cancelled and
// completed are terminal.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusCompleted SessionStatus = "completed"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCancelled || s == SessionStatusCompleted
}

// CancelReason is the closed set of reasons accepted by bulk cancellation.
type CancelReason string

const (
	CancelReasonWeather          CancelReason = "weather"
	CancelReasonTutorUnavailable CancelReason = "tutor_unavailable"
	CancelReasonHoliday          CancelReason = "holiday"
	CancelReasonLowEnrollment    CancelReason = "low_enrollment"
	CancelReasonOther            CancelReason = "other"
)

// ValidCancelReason reports whether the reason is part of the closed set.
func ValidCancelReason(r CancelReason) bool {
	switch r {
	case CancelReasonWeather, CancelReasonTutorUnavailable, CancelReasonHoliday,
		CancelReasonLowEnrollment, CancelReasonOther:
		return true
	}
	return false
}

// Tenant is a tutoring organization occupying the shared store.
type Tenant struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Tenant) TableName() string {
	return "tenants"
}

// Center is a physical tutoring location belonging to a tenant.
type Center struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;index:idx_centers_tenant;not null"`
	Name      string `gorm:"type:varchar(255);not null"`
	Timezone  string `gorm:"type:varchar(64)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (Center) TableName() string {
	return "centers"
}

// Tutor is a staff member who can be booked for sessions.
type Tutor struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	TenantID    string `gorm:"type:uuid;index:idx_tutors_tenant;not null"`
	CenterID    string `gorm:"type:uuid;index:idx_tutors_center"`
	DisplayName string `gorm:"type:varchar(255);not null"`
	Email       string `gorm:"type:varchar(255)"`
	Active      bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM.
func (Tutor) TableName() string {
	return "tutors"
}

// ClassGroup is a named cohort of students a recurring rule schedules for.
type ClassGroup struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TenantID  string `gorm:"type:uuid;index:idx_class_groups_tenant;not null"`
	CenterID  string `gorm:"type:uuid;index:idx_class_groups_center"`
	Name      string `gorm:"type:varchar(255);not null"`
	Subject   string `gorm:"type:varchar(128)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (ClassGroup) TableName() string {
	return "class_groups"
}

// Session is one concrete booked occurrence. The composite unique index on
// (tenant, tutor, center, starts_at) is the store-level uniqueness contract
// that makes skip-duplicate commits idempotent.
type Session struct {
	ID           string        `gorm:"type:uuid;primaryKey"`
	TenantID     string        `gorm:"type:uuid;index:idx_sessions_tenant;uniqueIndex:uniq_sessions_binding;not null"`
	TutorID      string        `gorm:"type:uuid;uniqueIndex:uniq_sessions_binding;not null"`
	CenterID     string        `gorm:"type:uuid;uniqueIndex:uniq_sessions_binding;not null"`
	GroupID      *string       `gorm:"type:uuid;index:idx_sessions_group"`
	SessionType  SessionType   `gorm:"type:varchar(32);not null"`
	Status       SessionStatus `gorm:"type:varchar(32);not null;default:'scheduled'"`
	CancelReason *CancelReason `gorm:"type:varchar(32)"`
	StartsAt     time.Time     `gorm:"uniqueIndex:uniq_sessions_binding;index:idx_sessions_window;not null"`
	EndsAt       time.Time     `gorm:"not null"`
	Timezone     string        `gorm:"type:varchar(64)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}
