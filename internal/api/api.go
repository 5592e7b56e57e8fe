/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface of the scheduling engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chalkboard-app/chalkboard/internal/audit"
	"github.com/chalkboard-app/chalkboard/internal/auth"
	"github.com/chalkboard-app/chalkboard/internal/models"
	"github.com/chalkboard-app/chalkboard/internal/recurrence"
	"github.com/chalkboard-app/chalkboard/internal/safety"
	"github.com/chalkboard-app/chalkboard/internal/scheduler"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	scheduler *scheduler.Service
	audit     *audit.Recorder
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, svc *scheduler.Service, recorder *audit.Recorder, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		scheduler: svc,
		audit:     recorder,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(a.jwtSecret))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRoles(auth.RoleAdmin, auth.RoleManager))
			r.Post("/schedule/generate", a.handleGenerate)
			r.Post("/schedule/reset", a.handleReset)
			r.Post("/sessions/bulk-cancel", a.handleBulkCancel)
		})

		r.Get("/sessions", a.handleListSessions)
		r.Get("/audit", a.handleListAudit)
	})
}

type termPayload struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TimeZone  string `json:"time_zone"`
}

type rulePayload struct {
	Weekday         int    `json:"weekday"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	TutorID         string `json:"tutor_id"`
	CenterID        string `json:"center_id"`
	GroupID         string `json:"group_id,omitempty"`
	Label           string `json:"label,omitempty"`
}

type generatePayload struct {
	Term              termPayload   `json:"term"`
	Rules             []rulePayload `json:"rules"`
	Exclusions        []string      `json:"exclusions,omitempty"`
	DryRun            bool          `json:"dry_run"`
	ResetRange        bool          `json:"reset_range"`
	Environment       string        `json:"environment"`
	ConfirmProduction bool          `json:"confirm_production"`
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	env, err := safety.ParseEnvironment(payload.Environment)
	if err != nil {
		writeValidation(w, map[string]string{"environment": err.Error()})
		return
	}

	rules := make([]recurrence.Rule, 0, len(payload.Rules))
	for _, rp := range payload.Rules {
		rules = append(rules, recurrence.Rule{
			Weekday:         rp.Weekday,
			StartTimeLocal:  rp.StartTime,
			DurationMinutes: rp.DurationMinutes,
			TutorID:         rp.TutorID,
			CenterID:        rp.CenterID,
			GroupID:         rp.GroupID,
			Label:           rp.Label,
		})
	}

	summary, err := a.scheduler.RunGeneration(r.Context(), scheduler.GenerateRequest{
		TenantID:  claims.TenantID,
		Actor:     claims.UserID,
		IPAddress: r.RemoteAddr,
		Term: recurrence.Term{
			StartDate: payload.Term.StartDate,
			EndDate:   payload.Term.EndDate,
			TimeZone:  payload.Term.TimeZone,
		},
		Rules:             rules,
		Exclusions:        payload.Exclusions,
		DryRun:            payload.DryRun,
		ResetRange:        payload.ResetRange,
		Environment:       env,
		ConfirmProduction: payload.ConfirmProduction,
	})
	if err != nil {
		a.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type resetPayload struct {
	Term              termPayload `json:"term"`
	Environment       string      `json:"environment"`
	ConfirmProduction bool        `json:"confirm_production"`
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload resetPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	env, err := safety.ParseEnvironment(payload.Environment)
	if err != nil {
		writeValidation(w, map[string]string{"environment": err.Error()})
		return
	}

	summary, err := a.scheduler.ResetRange(r.Context(), scheduler.ResetRequest{
		TenantID:  claims.TenantID,
		Actor:     claims.UserID,
		IPAddress: r.RemoteAddr,
		Term: recurrence.Term{
			StartDate: payload.Term.StartDate,
			EndDate:   payload.Term.EndDate,
			TimeZone:  payload.Term.TimeZone,
		},
		Environment:       env,
		ConfirmProduction: payload.ConfirmProduction,
	})
	if err != nil {
		a.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type bulkCancelPayload struct {
	SessionIDs        []string `json:"session_ids"`
	Reason            string   `json:"reason"`
	Environment       string   `json:"environment"`
	ConfirmProduction bool     `json:"confirm_production"`
}

func (a *API) handleBulkCancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload bulkCancelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	env, err := safety.ParseEnvironment(payload.Environment)
	if err != nil {
		writeValidation(w, map[string]string{"environment": err.Error()})
		return
	}

	transitioned, err := a.scheduler.BulkCancel(r.Context(), scheduler.BulkCancelRequest{
		TenantID:          claims.TenantID,
		Actor:             claims.UserID,
		IPAddress:         r.RemoteAddr,
		SessionIDs:        payload.SessionIDs,
		Reason:            models.CancelReason(payload.Reason),
		Environment:       env,
		ConfirmProduction: payload.ConfirmProduction,
	})
	if err != nil {
		a.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"requested":    len(payload.SessionIDs),
		"transitioned": transitioned,
	})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := scheduler.SessionFilter{
		TutorID:  r.URL.Query().Get("tutor_id"),
		CenterID: r.URL.Query().Get("center_id"),
		Status:   r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeValidation(w, map[string]string{"from": "invalid timestamp, want RFC 3339"})
			return
		}
		filter.From = &ts
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeValidation(w, map[string]string{"to": "invalid timestamp, want RFC 3339"})
			return
		}
		filter.To = &ts
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}

	sessions, err := a.scheduler.ListSessions(r.Context(), claims.TenantID, filter)
	if err != nil {
		a.writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := a.audit.List(r.Context(), claims.TenantID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeOperationError maps engine errors onto HTTP statuses.
func (a *API) writeOperationError(w http.ResponseWriter, err error) {
	var vErr *recurrence.ValidationError
	var pErr *scheduler.PersistenceError

	switch {
	case errors.As(err, &vErr):
		writeValidation(w, vErr.Fields)
	case errors.Is(err, safety.ErrForbiddenOperation):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":  "forbidden_operation",
			"detail": err.Error(),
		})
	case errors.Is(err, safety.ErrUnknownEnvironment):
		writeValidation(w, map[string]string{"environment": err.Error()})
	case errors.As(err, &pErr):
		a.logger.Error().Err(err).Msg("Persistence failure")
		writeError(w, http.StatusInternalServerError, "db_error")
	default:
		a.logger.Error().Err(err).Msg("Unhandled operation error")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation_failed",
		"fields": fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
