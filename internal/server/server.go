/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage and HTTP routing together.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chalkboard-app/chalkboard/internal/api"
	"github.com/chalkboard-app/chalkboard/internal/audit"
	"github.com/chalkboard-app/chalkboard/internal/config"
	"github.com/chalkboard-app/chalkboard/internal/db"
	"github.com/chalkboard-app/chalkboard/internal/scheduler"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	router chi.Router

	db        *gorm.DB
	api       *api.API
	scheduler *scheduler.Service
	audit     *audit.Recorder
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	recorder := audit.NewRecorder(gdb, logger)
	schedSvc := scheduler.NewService(gdb, recorder, logger)
	schedSvc.SetMaxTermDays(cfg.MaxTermDays)
	apiSvc := api.New(gdb, []byte(cfg.JWTSigningKey), schedSvc, recorder, logger)
	apiSvc.Routes(router)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		db:        gdb,
		api:       apiSvc,
		scheduler: schedSvc,
		audit:     recorder,
	}, nil
}

// Scheduler exposes the scheduling service for CLI commands.
func (s *Server) Scheduler() *scheduler.Service {
	return s.scheduler
}

// DB exposes the database handle for CLI commands.
func (s *Server) DB() *gorm.DB {
	return s.db
}

// HTTPServer builds the configured http.Server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Close releases held resources.
func (s *Server) Close() error {
	return db.Close(s.db)
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
