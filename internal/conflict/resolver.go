/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package conflict

import (
	"fmt"
	"time"
)

// BindingKey is the uniqueness domain for a booking: a tutor, at a center,
// at an absolute instant. Two candidates sharing a key are in direct
// conflict regardless of which rule produced them. The struct is comparable
// and usable as a map key.
type BindingKey struct {
	TutorID        string
	CenterID       string
	StartUnixMilli int64
}

// Candidate is one generated occurrence annotated with the resources it
// binds and the label of the rule that produced it.
type Candidate struct {
	TutorID   string
	CenterID  string
	GroupID   string
	RuleLabel string
	Timezone  string
	LocalDate string
	StartsAt  time.Time
	EndsAt    time.Time
}

// Key derives the binding key for the candidate.
func (c Candidate) Key() BindingKey {
	return BindingKey{
		TutorID:        c.TutorID,
		CenterID:       c.CenterID,
		StartUnixMilli: c.StartsAt.UnixMilli(),
	}
}

// Resolution partitions a candidate batch against persisted state.
//
// Creatable holds candidates safe to insert: no two share a key and none
// collide with an existing binding. AlreadyExists holds candidates whose key
// is already persisted; that is the idempotence path, not an error. Conflicts
// describes in-batch duplicates, which indicate an authoring mistake such as
// two rules booking the same tutor at the same instant.
type Resolution struct {
	Creatable     []Candidate
	AlreadyExists []Candidate
	Conflicts     []string
}

// Resolve applies the first-wins policy over candidates in input order.
func Resolve(candidates []Candidate, existing map[BindingKey]struct{}) Resolution {
	var res Resolution
	claimed := make(map[BindingKey]string, len(candidates))

	for _, cand := range candidates {
		key := cand.Key()

		if winner, dup := claimed[key]; dup {
			res.Conflicts = append(res.Conflicts, fmt.Sprintf(
				"overlap for tutor=%s center=%s start=%s (rule: %s, first claimed by: %s)",
				cand.TutorID, cand.CenterID, cand.StartsAt.UTC().Format(time.RFC3339),
				cand.RuleLabel, winner,
			))
			continue
		}
		claimed[key] = cand.RuleLabel

		if _, ok := existing[key]; ok {
			res.AlreadyExists = append(res.AlreadyExists, cand)
			continue
		}

		res.Creatable = append(res.Creatable, cand)
	}

	return res
}
