/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package seed loads fixture organizations from YAML and applies them to the
// store. Seeding is a staging convenience and is blocked in production by the
// safety gate; callers must pass that gate before invoking Apply.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chalkboard-app/chalkboard/internal/models"
)

// File is the root of a seed document.
type File struct {
	Tenants []TenantSeed `yaml:"tenants"`
}

// TenantSeed describes one tenant with its centers, tutors and groups.
type TenantSeed struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Centers []CenterSeed `yaml:"centers"`
}

// CenterSeed describes a center and the staff attached to it.
type CenterSeed struct {
	ID       string      `yaml:"id"`
	Name     string      `yaml:"name"`
	Timezone string      `yaml:"timezone"`
	Tutors   []TutorSeed `yaml:"tutors"`
	Groups   []GroupSeed `yaml:"groups"`
}

// TutorSeed describes a tutor.
type TutorSeed struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

// GroupSeed describes a class group.
type GroupSeed struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Tenants) == 0 {
		return nil, fmt.Errorf("seed file declares no tenants")
	}
	return &f, nil
}

// Summary reports what Apply inserted.
type Summary struct {
	Tenants int
	Centers int
	Tutors  int
	Groups  int
}

// Apply inserts the fixture rows. Inserts are conflict tolerant so a seed
// file can be applied repeatedly; existing rows are left untouched.
func Apply(ctx context.Context, db *gorm.DB, f *File, logger zerolog.Logger) (Summary, error) {
	var sum Summary
	skipExisting := clause.OnConflict{DoNothing: true}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ts := range f.Tenants {
			tenant := models.Tenant{ID: orNewID(ts.ID), Name: ts.Name}
			res := tx.Clauses(skipExisting).Create(&tenant)
			if res.Error != nil {
				return fmt.Errorf("seed tenant %q: %w", ts.Name, res.Error)
			}
			sum.Tenants += int(res.RowsAffected)

			for _, cs := range ts.Centers {
				center := models.Center{
					ID:       orNewID(cs.ID),
					TenantID: tenant.ID,
					Name:     cs.Name,
					Timezone: cs.Timezone,
				}
				res := tx.Clauses(skipExisting).Create(&center)
				if res.Error != nil {
					return fmt.Errorf("seed center %q: %w", cs.Name, res.Error)
				}
				sum.Centers += int(res.RowsAffected)

				for _, tut := range cs.Tutors {
					tutor := models.Tutor{
						ID:          orNewID(tut.ID),
						TenantID:    tenant.ID,
						CenterID:    center.ID,
						DisplayName: tut.DisplayName,
						Email:       tut.Email,
						Active:      true,
					}
					res := tx.Clauses(skipExisting).Create(&tutor)
					if res.Error != nil {
						return fmt.Errorf("seed tutor %q: %w", tut.DisplayName, res.Error)
					}
					sum.Tutors += int(res.RowsAffected)
				}

				for _, gs := range cs.Groups {
					group := models.ClassGroup{
						ID:       orNewID(gs.ID),
						TenantID: tenant.ID,
						CenterID: center.ID,
						Name:     gs.Name,
						Subject:  gs.Subject,
					}
					res := tx.Clauses(skipExisting).Create(&group)
					if res.Error != nil {
						return fmt.Errorf("seed group %q: %w", gs.Name, res.Error)
					}
					sum.Groups += int(res.RowsAffected)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	logger.Info().
		Int("tenants", sum.Tenants).
		Int("centers", sum.Centers).
		Int("tutors", sum.Tutors).
		Int("groups", sum.Groups).
		Msg("Seed applied")

	return sum, nil
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
