/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// DateLayout is the wire format for local calendar dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for local wall-clock times.
	TimeLayout = "15:04"

	minutesPerDay = 24 * 60

	// defaultMaxOccurrences caps expansion as a guard against malformed
	// terms; a weekly rule over a one-year term yields at most 54.
	defaultMaxOccurrences = 500
)

// Term is the inclusive local-date window a rule is expanded over.
type Term struct {
	StartDate string
	EndDate   string
	TimeZone  string
}

// Rule is a weekly recurrence pattern bound to a tutor and center.
// Weekday follows ISO 8601: 1 is Monday, 7 is Sunday.
type Rule struct {
	Weekday         int
	StartTimeLocal  string
	DurationMinutes int
	TutorID         string
	CenterID        string
	GroupID         string
	Label           string
}

// Occurrence is one concrete instance of a rule, expressed as absolute
// instants. LocalDate records the wall-clock date it was derived from.
type Occurrence struct {
	StartsAt  time.Time
	EndsAt    time.Time
	LocalDate string
}

// ExclusionSet holds local calendar dates removed from generation.
type ExclusionSet map[string]struct{}

// NewExclusionSet validates and collects exclusion dates.
func NewExclusionSet(dates ...string) (ExclusionSet, error) {
	set := make(ExclusionSet, len(dates))
	for _, d := range dates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, &ValidationError{Fields: map[string]string{
				"exclusions": fmt.Sprintf("invalid exclusion date %q, want YYYY-MM-DD", d),
			}}
		}
		set[d] = struct{}{}
	}
	return set, nil
}

// Contains reports whether the local date is excluded.
func (s ExclusionSet) Contains(date string) bool {
	_, ok := s[date]
	return ok
}

// ValidationError accumulates field level input problems. It is always
// raised before any I/O happens.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "invalid scheduling input"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid scheduling input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

func (e *ValidationError) hasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Generate expands a weekly rule over the term into absolute occurrences.
//
// Expansion walks local calendar dates in the term's zone, so wall-clock
// start time is invariant across daylight-saving transitions while the UTC
// instant shifts with the zone offset. Results are sorted ascending by
// StartsAt. The function is pure: no clock reads, no I/O.
func Generate(term Term, rule Rule, exclusions ExclusionSet) ([]Occurrence, error) {
	vErr := &ValidationError{}

	loc := validateTerm(term, vErr)
	startHour, startMinute := validateRule(rule, vErr)
	if vErr.hasErrors() {
		return nil, vErr
	}

	startDate, _ := time.ParseInLocation(DateLayout, term.StartDate, loc)
	endDate, _ := time.ParseInLocation(DateLayout, term.EndDate, loc)
	if endDate.Before(startDate) {
		vErr.add("term", "start_date must not be after end_date")
		return nil, vErr
	}

	set, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   time.Date(startDate.Year(), startDate.Month(), startDate.Day(), startHour, startMinute, 0, 0, loc),
		Until:     time.Date(endDate.Year(), endDate.Month(), endDate.Day(), startHour, startMinute, 0, 0, loc),
		Byweekday: []rrule.Weekday{isoWeekday(rule.Weekday)},
	})
	if err != nil {
		vErr.add("rule", fmt.Sprintf("recurrence expansion failed: %v", err))
		return nil, vErr
	}

	endMinutes := startHour*60 + startMinute + rule.DurationMinutes

	occurrences := make([]Occurrence, 0)
	for _, candidate := range set.All() {
		local := candidate.In(loc)
		localDate := local.Format(DateLayout)
		if exclusions.Contains(localDate) {
			continue
		}

		// Rebuild both ends from wall-clock components so the zone offset is
		// resolved at each local moment, not carried over from the previous week.
		start := time.Date(local.Year(), local.Month(), local.Day(), startHour, startMinute, 0, 0, loc)
		end := time.Date(local.Year(), local.Month(), local.Day(), endMinutes/60, endMinutes%60, 0, 0, loc)

		if len(occurrences) == defaultMaxOccurrences {
			vErr.add("term", fmt.Sprintf("expansion exceeds %d occurrences", defaultMaxOccurrences))
			return nil, vErr
		}
		occurrences = append(occurrences, Occurrence{
			StartsAt:  start.UTC(),
			EndsAt:    end.UTC(),
			LocalDate: localDate,
		})
	}

	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].StartsAt.Before(occurrences[j].StartsAt)
	})

	return occurrences, nil
}

// Window returns the half-open absolute interval [start, end) covering the
// term: local midnight opening the first day through local midnight after
// the last day, in the term's zone.
func Window(term Term) (time.Time, time.Time, error) {
	vErr := &ValidationError{}
	loc := validateTerm(term, vErr)
	if vErr.hasErrors() {
		return time.Time{}, time.Time{}, vErr
	}

	startDate, _ := time.ParseInLocation(DateLayout, term.StartDate, loc)
	endDate, _ := time.ParseInLocation(DateLayout, term.EndDate, loc)
	if endDate.Before(startDate) {
		vErr.add("term", "start_date must not be after end_date")
		return time.Time{}, time.Time{}, vErr
	}

	windowStart := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, loc)
	dayAfterEnd := endDate.AddDate(0, 0, 1)
	windowEnd := time.Date(dayAfterEnd.Year(), dayAfterEnd.Month(), dayAfterEnd.Day(), 0, 0, 0, 0, loc)

	return windowStart.UTC(), windowEnd.UTC(), nil
}

func validateTerm(term Term, vErr *ValidationError) *time.Location {
	if _, err := time.Parse(DateLayout, term.StartDate); err != nil {
		vErr.add("term.start_date", fmt.Sprintf("invalid date %q, want YYYY-MM-DD", term.StartDate))
	}
	if _, err := time.Parse(DateLayout, term.EndDate); err != nil {
		vErr.add("term.end_date", fmt.Sprintf("invalid date %q, want YYYY-MM-DD", term.EndDate))
	}

	if term.TimeZone == "" {
		vErr.add("term.time_zone", "time zone is required")
		return time.UTC
	}
	loc, err := time.LoadLocation(term.TimeZone)
	if err != nil {
		vErr.add("term.time_zone", fmt.Sprintf("unrecognized IANA zone %q", term.TimeZone))
		return time.UTC
	}
	return loc
}

func validateRule(rule Rule, vErr *ValidationError) (hour, minute int) {
	if rule.Weekday < 1 || rule.Weekday > 7 {
		vErr.add("rule.weekday", fmt.Sprintf("weekday %d out of range 1..7 (Monday..Sunday)", rule.Weekday))
	}

	parsed, err := time.Parse(TimeLayout, rule.StartTimeLocal)
	if err != nil {
		vErr.add("rule.start_time", fmt.Sprintf("invalid time %q, want HH:mm", rule.StartTimeLocal))
	} else {
		hour, minute = parsed.Hour(), parsed.Minute()
	}

	if rule.DurationMinutes <= 0 {
		vErr.add("rule.duration_minutes", "duration must be positive")
	} else if err == nil && hour*60+minute+rule.DurationMinutes > minutesPerDay {
		// Overnight sessions are unsupported; reject instead of rolling into
		// the next calendar day.
		vErr.add("rule.duration_minutes", "session must not cross local midnight")
	}

	if rule.TutorID == "" {
		vErr.add("rule.tutor_id", "tutor is required")
	}
	if rule.CenterID == "" {
		vErr.add("rule.center_id", "center is required")
	}

	return hour, minute
}

func isoWeekday(weekday int) rrule.Weekday {
	switch weekday {
	case 1:
		return rrule.MO
	case 2:
		return rrule.TU
	case 3:
		return rrule.WE
	case 4:
		return rrule.TH
	case 5:
		return rrule.FR
	case 6:
		return rrule.SA
	default:
		return rrule.SU
	}
}
