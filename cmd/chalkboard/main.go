/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chalkboard-app/chalkboard/internal/audit"
	"github.com/chalkboard-app/chalkboard/internal/config"
	"github.com/chalkboard-app/chalkboard/internal/db"
	"github.com/chalkboard-app/chalkboard/internal/logging"
	"github.com/chalkboard-app/chalkboard/internal/models"
	"github.com/chalkboard-app/chalkboard/internal/recurrence"
	"github.com/chalkboard-app/chalkboard/internal/safety"
	"github.com/chalkboard-app/chalkboard/internal/scheduler"
	"github.com/chalkboard-app/chalkboard/internal/seed"
	"github.com/chalkboard-app/chalkboard/internal/server"
	"github.com/chalkboard-app/chalkboard/internal/telemetry"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chalkboard",
	Short: "Chalkboard - Tutoring center scheduling engine",
	Long:  "Chalkboard materializes recurring class rules into concrete sessions, resolves booking conflicts, and runs bulk schedule operations for multi-tenant tutoring centers.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Chalkboard server",
	Long:  "Start the HTTP API server for schedule generation and session management",
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a schedule generation pass from a request file",
	RunE:  runGenerate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply fixture tenants, centers and tutors from a seed file",
	RunE:  runSeed,
}

var (
	flagRequestFile string
	flagTenant      string
	flagActor       string
	flagEnvironment string
	flagDryRun      bool
	flagResetRange  bool
	flagConfirmProd bool
	flagSeedFile    string
)

func init() {
	generateCmd.Flags().StringVar(&flagRequestFile, "request", "", "path to the YAML generation request")
	generateCmd.Flags().StringVar(&flagTenant, "tenant", "", "tenant the run applies to")
	generateCmd.Flags().StringVar(&flagActor, "actor", "cli", "actor recorded in the audit trail")
	generateCmd.Flags().StringVar(&flagEnvironment, "environment", "", "target environment (staging or production)")
	generateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compute the summary without writing")
	generateCmd.Flags().BoolVar(&flagResetRange, "reset-range", false, "delete generated sessions in the window before regenerating")
	generateCmd.Flags().BoolVar(&flagConfirmProd, "confirm-production", false, "acknowledge a run aimed at production")
	_ = generateCmd.MarkFlagRequired("request")
	_ = generateCmd.MarkFlagRequired("tenant")
	_ = generateCmd.MarkFlagRequired("environment")

	seedCmd.Flags().StringVar(&flagSeedFile, "file", "", "path to the YAML seed file")
	seedCmd.Flags().StringVar(&flagActor, "actor", "cli", "actor recorded in the audit trail")
	seedCmd.Flags().StringVar(&flagEnvironment, "environment", "", "target environment (staging or production)")
	seedCmd.Flags().BoolVar(&flagConfirmProd, "confirm-production", false, "acknowledge a run aimed at production")
	_ = seedCmd.MarkFlagRequired("file")
	_ = seedCmd.MarkFlagRequired("environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Chalkboard starting")

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           telemetry.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("Metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := metricsServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown failed")
	}
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Chalkboard stopped")
	return nil
}

// generationRequestFile is the on-disk shape accepted by the generate command.
type generationRequestFile struct {
	Term struct {
		StartDate string `yaml:"start_date"`
		EndDate   string `yaml:"end_date"`
		TimeZone  string `yaml:"time_zone"`
	} `yaml:"term"`
	Rules []struct {
		Weekday         int    `yaml:"weekday"`
		StartTime       string `yaml:"start_time"`
		DurationMinutes int    `yaml:"duration_minutes"`
		TutorID         string `yaml:"tutor_id"`
		CenterID        string `yaml:"center_id"`
		GroupID         string `yaml:"group_id"`
		Label           string `yaml:"label"`
	} `yaml:"rules"`
	Exclusions []string `yaml:"exclusions"`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	env, err := safety.ParseEnvironment(flagEnvironment)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(flagRequestFile)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}
	var reqFile generationRequestFile
	if err := yaml.Unmarshal(raw, &reqFile); err != nil {
		return fmt.Errorf("parse request file: %w", err)
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(gdb) }()
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	svc := scheduler.NewService(gdb, audit.NewRecorder(gdb, logger), logger)
	svc.SetMaxTermDays(cfg.MaxTermDays)

	rules := make([]recurrence.Rule, 0, len(reqFile.Rules))
	for _, r := range reqFile.Rules {
		rules = append(rules, recurrence.Rule{
			Weekday:         r.Weekday,
			StartTimeLocal:  r.StartTime,
			DurationMinutes: r.DurationMinutes,
			TutorID:         r.TutorID,
			CenterID:        r.CenterID,
			GroupID:         r.GroupID,
			Label:           r.Label,
		})
	}

	summary, err := svc.RunGeneration(cmd.Context(), scheduler.GenerateRequest{
		TenantID: flagTenant,
		Actor:    flagActor,
		Term: recurrence.Term{
			StartDate: reqFile.Term.StartDate,
			EndDate:   reqFile.Term.EndDate,
			TimeZone:  reqFile.Term.TimeZone,
		},
		Rules:             rules,
		Exclusions:        reqFile.Exclusions,
		DryRun:            flagDryRun,
		ResetRange:        flagResetRange,
		Environment:       env,
		ConfirmProduction: flagConfirmProd,
	})
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	env, err := safety.ParseEnvironment(flagEnvironment)
	if err != nil {
		return err
	}
	if err := safety.Check(env, safety.Flags{Seed: true, ConfirmProduction: flagConfirmProd}); err != nil {
		return err
	}

	f, err := seed.Load(flagSeedFile)
	if err != nil {
		return err
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(gdb) }()
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	sum, err := seed.Apply(cmd.Context(), gdb, f, logger)
	if err != nil {
		return err
	}

	audit.NewRecorder(gdb, logger).Record(cmd.Context(), audit.Entry{
		ActorID: flagActor,
		Action:  models.AuditActionSeedApply,
		Details: map[string]any{
			"tenants": sum.Tenants,
			"centers": sum.Centers,
			"tutors":  sum.Tutors,
			"groups":  sum.Groups,
		},
	})

	fmt.Printf("seeded %d tenants, %d centers, %d tutors, %d groups\n",
		sum.Tenants, sum.Centers, sum.Tutors, sum.Groups)
	return nil
}
