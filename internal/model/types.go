// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// IntervalKind is the grading mode of an interval.
type IntervalKind string

const (
	KindWork  IntervalKind = "work"
	KindEdit  IntervalKind = "edit"
	KindBreak IntervalKind = "break"
)

// Valid reports whether k is a known interval kind.
func (k IntervalKind) Valid() bool {
	switch k {
	case KindWork, KindEdit, KindBreak:
		return true
	default:
		return false
	}
}

// Outcome is the lifecycle state of a session record.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeActive     Outcome = "active"
	OutcomeDraft      Outcome = "draft"
	OutcomeCompleted  Outcome = "completed"
	OutcomeInactivity Outcome = "deleted_inactivity"
	OutcomeWPM        Outcome = "deleted_wpm"
	OutcomeAbandoned  Outcome = "deleted_abandoned"
)

// Terminal reports whether the outcome ends a timed session.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeCompleted, OutcomeInactivity, OutcomeWPM, OutcomeAbandoned:
		return true
	default:
		return false
	}
}

// Destructive reports whether the outcome wipes the session content.
func (o Outcome) Destructive() bool {
	switch o {
	case OutcomeInactivity, OutcomeWPM, OutcomeAbandoned:
		return true
	default:
		return false
	}
}

// Interval is one timed segment of a session.
type Interval struct {
	Name    string       `toml:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Minutes int          `toml:"minutes" json:"minutes" yaml:"minutes"`
	Kind    IntervalKind `toml:"kind" json:"kind" yaml:"kind"`
}

// SessionConfig defines a timed writing session. It is not modified once a session starts.
type SessionConfig struct {
	Title             string
	DurationMin       int
	MinWPM            int
	OrganizerText     string
	PreventCopy       bool
	Redact            bool
	ExemptHeadings    bool
	InactivityEnabled bool
	InactivitySec     int
	UseIntervals      bool
	Intervals         []Interval
}

// Plan returns the intervals the session runs through. Without intervals the
// session is a single work interval covering the whole duration.
func (c SessionConfig) Plan() []Interval {
	if c.UseIntervals && len(c.Intervals) > 0 {
		out := make([]Interval, len(c.Intervals))
		copy(out, c.Intervals)
		return out
	}
	return []Interval{{Minutes: c.DurationMin, Kind: KindWork}}
}

// TotalMinutes sums the planned interval lengths.
func (c SessionConfig) TotalMinutes() int {
	total := 0
	for _, it := range c.Plan() {
		total += it.Minutes
	}
	return total
}

// Validate rejects configurations that cannot start a session.
func (c SessionConfig) Validate() error {
	if c.MinWPM <= 0 {
		return fmt.Errorf("--min-wpm must be > 0")
	}
	if c.InactivityEnabled && c.InactivitySec < 1 {
		return fmt.Errorf("--inactivity-sec must be >= 1")
	}
	if !c.UseIntervals {
		if c.DurationMin <= 0 {
			return fmt.Errorf("--duration must be > 0")
		}
		return nil
	}
	if len(c.Intervals) == 0 {
		return fmt.Errorf("at least one interval is required")
	}
	for i, it := range c.Intervals {
		if it.Minutes < 1 {
			return fmt.Errorf("interval %d: minutes must be >= 1", i+1)
		}
		if !it.Kind.Valid() {
			return fmt.Errorf("interval %d: unknown kind %q", i+1, it.Kind)
		}
	}
	return nil
}

// SessionRecord is a persisted session row.
type SessionRecord struct {
	ID                  string     `json:"id" yaml:"id"`
	UserID              string     `json:"user_id" yaml:"user_id"`
	Title               string     `json:"title" yaml:"title"`
	DurationMin         int        `json:"duration_min" yaml:"duration_min"`
	MinWPM              int        `json:"min_wpm" yaml:"min_wpm"`
	ReminderIntervalMin int        `json:"reminder_interval_min" yaml:"reminder_interval_min"`
	OrganizerText       string     `json:"organizer_text" yaml:"organizer_text"`
	Content             string     `json:"content" yaml:"content"`
	WordCount           int        `json:"word_count" yaml:"word_count"`
	WPMAtEnd            float64    `json:"wpm_at_end" yaml:"wpm_at_end"`
	ElapsedSec          int        `json:"elapsed_sec" yaml:"elapsed_sec"`
	Outcome             Outcome    `json:"outcome" yaml:"outcome"`
	CreatedAt           time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt         *time.Time `json:"completed_at" yaml:"completed_at,omitempty"`
}

// CreateRequest holds the fields accepted when creating a record.
type CreateRequest struct {
	DurationMin         int     `json:"duration_min"`
	MinWPM              int     `json:"min_wpm"`
	ReminderIntervalMin int     `json:"reminder_interval_min,omitempty"`
	OrganizerText       string  `json:"organizer_text,omitempty"`
	Outcome             Outcome `json:"outcome,omitempty"`
	Title               string  `json:"title,omitempty"`
	Content             string  `json:"content,omitempty"`
}

// SessionPatch is a partial update. Only these fields can be patched; a nil
// field is left unchanged.
type SessionPatch struct {
	Content       *string  `json:"content,omitempty"`
	OrganizerText *string  `json:"organizer_text,omitempty"`
	WordCount     *int     `json:"word_count,omitempty"`
	WPMAtEnd      *float64 `json:"wpm_at_end,omitempty"`
	ElapsedSec    *int     `json:"elapsed_sec,omitempty"`
	Title         *string  `json:"title,omitempty"`
	Outcome       *Outcome `json:"outcome,omitempty"`
	DurationMin   *int     `json:"duration_min,omitempty"`
	MinWPM        *int     `json:"min_wpm,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p.Content == nil && p.OrganizerText == nil && p.WordCount == nil &&
		p.WPMAtEnd == nil && p.ElapsedSec == nil && p.Title == nil &&
		p.Outcome == nil && p.DurationMin == nil && p.MinWPM == nil
}

// FinalizeRequest carries the final metrics of a session.
type FinalizeRequest struct {
	Outcome       Outcome `json:"outcome"`
	Content       string  `json:"content"`
	OrganizerText string  `json:"organizer_text"`
	WordCount     int     `json:"word_count"`
	WPMAtEnd      float64 `json:"wpm_at_end"`
	ElapsedSec    int     `json:"elapsed_sec"`
}

// Scope selects which records a listing returns.
type Scope string

const (
	// ScopeHistory excludes active sessions and drafts.
	ScopeHistory Scope = "history"
	ScopeDrafts  Scope = "drafts"
	ScopeAll     Scope = "all"
)

// ListFilter defines filters for listing records.
type ListFilter struct {
	Scope Scope
	Last  int
}
