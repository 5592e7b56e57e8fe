/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package safety guards destructive scheduling operations behind an
// operator-declared target environment. The environment is never read from
// configuration or inferred from the deployment; the caller states where the
// operation is aimed and the gate decides what is permitted there.
package safety

import (
	"errors"
	"fmt"
)

// Environment is the operator-declared target of an engine run.
type Environment string

// Recognized environments.
const (
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// Sentinel errors returned by the gate.
var (
	ErrUnknownEnvironment = errors.New("unknown target environment")
	ErrForbiddenOperation = errors.New("operation forbidden in target environment")
)

// Flags describes the destructive or bulk aspects of a requested run.
type Flags struct {
	// Reset requests deletion of generator-owned sessions in the window.
	Reset bool
	// Seed requests applying fixture data.
	Seed bool
	// ConfirmProduction is the explicit acknowledgement required for any
	// mutating run aimed at production.
	ConfirmProduction bool
}

// ParseEnvironment validates an operator-supplied environment string.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvStaging:
		return EnvStaging, nil
	case EnvProduction:
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("%w: %q (want staging or production)", ErrUnknownEnvironment, s)
	}
}

// Check decides whether the flagged operation may proceed in env.
//
// Staging permits everything. Production never permits reset or seeding,
// and requires ConfirmProduction for any run at all.
func Check(env Environment, flags Flags) error {
	switch env {
	case EnvStaging:
		return nil
	case EnvProduction:
		if flags.Reset {
			return fmt.Errorf("%w: schedule reset is not available in production", ErrForbiddenOperation)
		}
		if flags.Seed {
			return fmt.Errorf("%w: seeding is not available in production", ErrForbiddenOperation)
		}
		if !flags.ConfirmProduction {
			return fmt.Errorf("%w: production runs require explicit confirmation", ErrForbiddenOperation)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
}
