/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler materializes recurring rules into session rows and runs
// the bulk operations that act on them.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chalkboard-app/chalkboard/internal/audit"
	"github.com/chalkboard-app/chalkboard/internal/conflict"
	"github.com/chalkboard-app/chalkboard/internal/models"
	"github.com/chalkboard-app/chalkboard/internal/recurrence"
	"github.com/chalkboard-app/chalkboard/internal/safety"
	"github.com/chalkboard-app/chalkboard/internal/telemetry"
)

// defaultMaxTermDays bounds accepted term length; a school year plus slack.
const defaultMaxTermDays = 370

// Service runs generation, reset and bulk transition operations.
type Service struct {
	db          *gorm.DB
	audit       *audit.Recorder
	logger      zerolog.Logger
	idGen       func() string
	now         func() time.Time
	maxTermDays int
}

// NewService creates a scheduling service.
func NewService(db *gorm.DB, recorder *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		db:          db,
		audit:       recorder,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		idGen:       uuid.NewString,
		now:         time.Now,
		maxTermDays: defaultMaxTermDays,
	}
}

// SetMaxTermDays overrides the accepted term length bound.
func (s *Service) SetMaxTermDays(days int) {
	if days > 0 {
		s.maxTermDays = days
	}
}

// GenerateRequest describes one generation run.
type GenerateRequest struct {
	TenantID   string
	Actor      string
	IPAddress  string
	Term       recurrence.Term
	Rules      []recurrence.Rule
	Exclusions []string

	// DryRun computes the full summary without writing.
	DryRun bool
	// ResetRange deletes generator-owned scheduled sessions in the term
	// window before regenerating.
	ResetRange bool

	Environment       safety.Environment
	ConfirmProduction bool
}

// CommitSummary reports what a run did, or would do under dry run.
type CommitSummary struct {
	Occurrences int      `json:"occurrences"`
	Created     int      `json:"created"`
	Skipped     int      `json:"skipped"`
	Deleted     int      `json:"deleted"`
	Conflicts   []string `json:"conflicts,omitempty"`
	DryRun      bool     `json:"dry_run"`
}

// RunGeneration expands the request's rules over its term, resolves the
// candidates against persisted state and commits the survivors.
//
// The safety gate runs first, for dry runs too: a preview must fail exactly
// where the real run would, so an unconfirmed production request is rejected
// before any domain logic regardless of mode. When ResetRange is set the
// reset executes before existing bindings are snapshotted, so a
// reset-and-regenerate run recreates every occurrence the rules still
// produce.
func (s *Service) RunGeneration(ctx context.Context, req GenerateRequest) (CommitSummary, error) {
	started := s.now()

	err := safety.Check(req.Environment, safety.Flags{
		Reset:             req.ResetRange,
		ConfirmProduction: req.ConfirmProduction,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("tenant_id", req.TenantID).
			Str("environment", string(req.Environment)).
			Bool("dry_run", req.DryRun).
			Msg("Generation run rejected by safety gate")
		return CommitSummary{}, err
	}

	if req.TenantID == "" {
		return CommitSummary{}, &recurrence.ValidationError{Fields: map[string]string{
			"tenant_id": "tenant is required",
		}}
	}
	if len(req.Rules) == 0 {
		return CommitSummary{}, &recurrence.ValidationError{Fields: map[string]string{
			"rules": "at least one rule is required",
		}}
	}

	exclusions, err := recurrence.NewExclusionSet(req.Exclusions...)
	if err != nil {
		return CommitSummary{}, err
	}

	windowStart, windowEnd, err := recurrence.Window(req.Term)
	if err != nil {
		return CommitSummary{}, err
	}
	if windowEnd.Sub(windowStart) > time.Duration(s.maxTermDays)*24*time.Hour {
		return CommitSummary{}, &recurrence.ValidationError{Fields: map[string]string{
			"term": fmt.Sprintf("term exceeds the %d day limit", s.maxTermDays),
		}}
	}

	candidates, err := s.expandRules(req.Term, req.Rules, exclusions)
	if err != nil {
		return CommitSummary{}, err
	}

	writer := s.writer(req.DryRun)
	summary := CommitSummary{Occurrences: len(candidates), DryRun: req.DryRun}

	if req.ResetRange {
		deleted, err := writer.DeleteGeneratedRange(ctx, req.TenantID, windowStart, windowEnd)
		if err != nil {
			return CommitSummary{}, err
		}
		summary.Deleted = int(deleted)
	}

	existing, err := s.fetchBindings(ctx, req, windowStart, windowEnd)
	if err != nil {
		return CommitSummary{}, err
	}

	res := conflict.Resolve(candidates, existing)
	summary.Conflicts = res.Conflicts

	created, err := writer.CreateSessions(ctx, s.toSessions(req, res.Creatable))
	if err != nil {
		return CommitSummary{}, err
	}
	summary.Created = int(created)
	// Creatable rows not inserted lost the unique-index race to a concurrent
	// run; count them with the already-persisted skips.
	summary.Skipped = len(res.AlreadyExists) + (len(res.Creatable) - summary.Created)

	s.observeGeneration(req, summary, len(res.AlreadyExists), started)
	s.recordGeneration(ctx, req, summary)

	s.logger.Info().
		Str("tenant_id", req.TenantID).
		Bool("dry_run", req.DryRun).
		Int("occurrences", summary.Occurrences).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("deleted", summary.Deleted).
		Int("conflicts", len(summary.Conflicts)).
		Dur("elapsed", s.now().Sub(started)).
		Msg("Generation run complete")

	return summary, nil
}

// ResetRequest describes a standalone range reset.
type ResetRequest struct {
	TenantID  string
	Actor     string
	IPAddress string
	Term      recurrence.Term

	Environment       safety.Environment
	ConfirmProduction bool
}

// ResetRange deletes generator-owned scheduled sessions in the term window
// without regenerating. Cancelled and completed sessions survive.
func (s *Service) ResetRange(ctx context.Context, req ResetRequest) (CommitSummary, error) {
	err := safety.Check(req.Environment, safety.Flags{
		Reset:             true,
		ConfirmProduction: req.ConfirmProduction,
	})
	if err != nil {
		return CommitSummary{}, err
	}

	if req.TenantID == "" {
		return CommitSummary{}, &recurrence.ValidationError{Fields: map[string]string{
			"tenant_id": "tenant is required",
		}}
	}

	windowStart, windowEnd, err := recurrence.Window(req.Term)
	if err != nil {
		return CommitSummary{}, err
	}

	writer := &gormWriter{db: s.db}
	deleted, err := writer.DeleteGeneratedRange(ctx, req.TenantID, windowStart, windowEnd)
	if err != nil {
		return CommitSummary{}, err
	}

	summary := CommitSummary{Deleted: int(deleted)}
	telemetry.SessionsDeletedTotal.WithLabelValues(req.TenantID).Add(float64(deleted))

	s.audit.Record(ctx, audit.Entry{
		TenantID:  req.TenantID,
		ActorID:   req.Actor,
		Action:    models.AuditActionScheduleReset,
		IPAddress: req.IPAddress,
		Details: map[string]any{
			"deleted":      summary.Deleted,
			"window_start": windowStart.Format(time.RFC3339),
			"window_end":   windowEnd.Format(time.RFC3339),
		},
	})

	s.logger.Info().
		Str("tenant_id", req.TenantID).
		Int("deleted", summary.Deleted).
		Msg("Schedule range reset")

	return summary, nil
}

// BulkCancelRequest transitions a set of sessions to cancelled.
type BulkCancelRequest struct {
	TenantID   string
	Actor      string
	IPAddress  string
	SessionIDs []string
	Reason     models.CancelReason

	Environment       safety.Environment
	ConfirmProduction bool
}

// BulkCancel cancels the identified sessions. Rows already in a terminal
// state, or belonging to another tenant, are left untouched; the returned
// count reflects rows actually changed.
func (s *Service) BulkCancel(ctx context.Context, req BulkCancelRequest) (int, error) {
	err := safety.Check(req.Environment, safety.Flags{
		ConfirmProduction: req.ConfirmProduction,
	})
	if err != nil {
		return 0, err
	}

	if len(req.SessionIDs) == 0 {
		return 0, &recurrence.ValidationError{Fields: map[string]string{
			"session_ids": "at least one session is required",
		}}
	}
	if !models.ValidCancelReason(req.Reason) {
		return 0, &recurrence.ValidationError{Fields: map[string]string{
			"reason": fmt.Sprintf("unknown cancel reason %q", req.Reason),
		}}
	}

	tx := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id IN ?", req.SessionIDs).
		Where("tenant_id = ?", req.TenantID).
		Where("status = ?", models.SessionStatusScheduled).
		Updates(map[string]any{
			"status":        models.SessionStatusCancelled,
			"cancel_reason": req.Reason,
			"updated_at":    s.now().UTC(),
		})
	if tx.Error != nil {
		return 0, &PersistenceError{Op: "bulk cancel", Err: tx.Error}
	}
	transitioned := int(tx.RowsAffected)

	telemetry.BulkTransitionsTotal.WithLabelValues(req.TenantID, string(req.Reason)).Add(float64(transitioned))

	s.audit.Record(ctx, audit.Entry{
		TenantID:  req.TenantID,
		ActorID:   req.Actor,
		Action:    models.AuditActionSessionsBulkCancel,
		IPAddress: req.IPAddress,
		Details: map[string]any{
			"requested":    len(req.SessionIDs),
			"transitioned": transitioned,
			"reason":       string(req.Reason),
		},
	})

	s.logger.Info().
		Str("tenant_id", req.TenantID).
		Str("reason", string(req.Reason)).
		Int("requested", len(req.SessionIDs)).
		Int("transitioned", transitioned).
		Msg("Bulk cancel complete")

	return transitioned, nil
}

// SessionFilter narrows a session listing.
type SessionFilter struct {
	From     *time.Time
	To       *time.Time
	TutorID  string
	CenterID string
	Status   string
	Limit    int
}

// ListSessions returns a tenant's sessions ordered by start time.
func (s *Service) ListSessions(ctx context.Context, tenantID string, f SessionFilter) ([]models.Session, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	q := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("tenant_id = ?", tenantID)
	if f.From != nil {
		q = q.Where("starts_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("starts_at < ?", *f.To)
	}
	if f.TutorID != "" {
		q = q.Where("tutor_id = ?", f.TutorID)
	}
	if f.CenterID != "" {
		q = q.Where("center_id = ?", f.CenterID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var sessions []models.Session
	if err := q.Order("starts_at ASC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, &PersistenceError{Op: "session list", Err: err}
	}
	return sessions, nil
}

func (s *Service) writer(dryRun bool) sessionWriter {
	if dryRun {
		return &dryRunWriter{db: s.db}
	}
	return &gormWriter{db: s.db}
}

func (s *Service) expandRules(term recurrence.Term, rules []recurrence.Rule, exclusions recurrence.ExclusionSet) ([]conflict.Candidate, error) {
	var candidates []conflict.Candidate
	for i, rule := range rules {
		occs, err := recurrence.Generate(term, rule, exclusions)
		if err != nil {
			return nil, err
		}
		label := rule.Label
		if label == "" {
			label = fmt.Sprintf("rule %d", i+1)
		}
		for _, occ := range occs {
			candidates = append(candidates, conflict.Candidate{
				TutorID:   rule.TutorID,
				CenterID:  rule.CenterID,
				GroupID:   rule.GroupID,
				RuleLabel: label,
				Timezone:  term.TimeZone,
				LocalDate: occ.LocalDate,
				StartsAt:  occ.StartsAt,
				EndsAt:    occ.EndsAt,
			})
		}
	}
	return candidates, nil
}

// fetchBindings snapshots the binding keys already persisted in the window
// for the tutors and centers the rules touch. Under a dry run that models a
// reset, generator-owned scheduled rows are left out of the snapshot since a
// real reset would have deleted them before this point.
func (s *Service) fetchBindings(ctx context.Context, req GenerateRequest, from, to time.Time) (map[conflict.BindingKey]struct{}, error) {
	tutorIDs := make([]string, 0, len(req.Rules))
	centerIDs := make([]string, 0, len(req.Rules))
	for _, r := range req.Rules {
		tutorIDs = append(tutorIDs, r.TutorID)
		centerIDs = append(centerIDs, r.CenterID)
	}

	q := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("tenant_id = ?", req.TenantID).
		Where("tutor_id IN ?", tutorIDs).
		Where("center_id IN ?", centerIDs).
		Where("starts_at >= ? AND starts_at < ?", from, to)
	if req.DryRun && req.ResetRange {
		q = q.Not(
			"session_type = ? AND status = ?",
			models.SessionTypeRecurringGroup, models.SessionStatusScheduled,
		)
	}

	var rows []models.Session
	if err := q.Select("tutor_id", "center_id", "starts_at").Find(&rows).Error; err != nil {
		return nil, &PersistenceError{Op: "binding snapshot", Err: err}
	}

	existing := make(map[conflict.BindingKey]struct{}, len(rows))
	for _, row := range rows {
		existing[conflict.BindingKey{
			TutorID:        row.TutorID,
			CenterID:       row.CenterID,
			StartUnixMilli: row.StartsAt.UnixMilli(),
		}] = struct{}{}
	}
	return existing, nil
}

func (s *Service) toSessions(req GenerateRequest, creatable []conflict.Candidate) []models.Session {
	now := s.now().UTC()
	sessions := make([]models.Session, 0, len(creatable))
	for _, cand := range creatable {
		var groupID *string
		if cand.GroupID != "" {
			g := cand.GroupID
			groupID = &g
		}
		sessions = append(sessions, models.Session{
			ID:          s.idGen(),
			TenantID:    req.TenantID,
			TutorID:     cand.TutorID,
			CenterID:    cand.CenterID,
			GroupID:     groupID,
			SessionType: models.SessionTypeRecurringGroup,
			Status:      models.SessionStatusScheduled,
			StartsAt:    cand.StartsAt,
			EndsAt:      cand.EndsAt,
			Timezone:    cand.Timezone,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return sessions
}

func (s *Service) observeGeneration(req GenerateRequest, summary CommitSummary, alreadyExists int, started time.Time) {
	mode := "commit"
	if req.DryRun {
		mode = "dry_run"
	}
	telemetry.GenerationRunsTotal.WithLabelValues(req.TenantID, mode).Inc()
	telemetry.OccurrencesGeneratedTotal.WithLabelValues(req.TenantID).Add(float64(summary.Occurrences))
	telemetry.ConflictsTotal.WithLabelValues(req.TenantID, "batch").Add(float64(len(summary.Conflicts)))
	telemetry.ConflictsTotal.WithLabelValues(req.TenantID, "existing").Add(float64(alreadyExists))
	if !req.DryRun {
		telemetry.SessionsCreatedTotal.WithLabelValues(req.TenantID).Add(float64(summary.Created))
		telemetry.SessionsSkippedTotal.WithLabelValues(req.TenantID).Add(float64(summary.Skipped))
		telemetry.SessionsDeletedTotal.WithLabelValues(req.TenantID).Add(float64(summary.Deleted))
	}
	telemetry.GenerationDuration.Observe(s.now().Sub(started).Seconds())
}

func (s *Service) recordGeneration(ctx context.Context, req GenerateRequest, summary CommitSummary) {
	action := models.AuditActionScheduleGenerate
	if req.DryRun {
		action = models.AuditActionScheduleDryRun
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:  req.TenantID,
		ActorID:   req.Actor,
		Action:    action,
		IPAddress: req.IPAddress,
		Details: map[string]any{
			"term_start":  req.Term.StartDate,
			"term_end":    req.Term.EndDate,
			"time_zone":   req.Term.TimeZone,
			"rules":       len(req.Rules),
			"occurrences": summary.Occurrences,
			"created":     summary.Created,
			"skipped":     summary.Skipped,
			"deleted":     summary.Deleted,
			"conflicts":   summary.Conflicts,
			"reset_range": req.ResetRange,
		},
	})
}
