// Package schedule tracks the active interval of a session plan.
package schedule

import (
	"fmt"

	"github.com/verte-zerg/redline/internal/model"
)

// Scheduler holds an ordered interval plan and the index of the active interval.
type Scheduler struct {
	intervals []model.Interval
	index     int
}

// New builds a scheduler positioned on the first interval. An empty plan gets a
// single one-minute work interval so Current always has something to return.
func New(plan []model.Interval) *Scheduler {
	intervals := make([]model.Interval, len(plan))
	copy(intervals, plan)
	if len(intervals) == 0 {
		intervals = []model.Interval{{Minutes: 1, Kind: model.KindWork}}
	}
	return &Scheduler{intervals: intervals}
}

// Len returns the number of intervals.
func (s *Scheduler) Len() int {
	return len(s.intervals)
}

// Index returns the active interval index.
func (s *Scheduler) Index() int {
	return s.index
}

// Current returns the active interval, or the first one if the index is out of range.
func (s *Scheduler) Current() model.Interval {
	if s.index < 0 || s.index >= len(s.intervals) {
		return s.intervals[0]
	}
	return s.intervals[s.index]
}

// IsLast reports whether the active interval is the final one.
func (s *Scheduler) IsLast() bool {
	return s.index == len(s.intervals)-1
}

// Advance returns the index following the active one, or false when the plan is exhausted.
func (s *Scheduler) Advance() (int, bool) {
	next := s.index + 1
	if next >= len(s.intervals) {
		return 0, false
	}
	return next, true
}

// Enter makes interval i active. The index never moves backwards.
func (s *Scheduler) Enter(i int) error {
	if i < 0 || i >= len(s.intervals) {
		return fmt.Errorf("interval %d out of range (have %d)", i, len(s.intervals))
	}
	if i < s.index {
		return fmt.Errorf("interval %d precedes active interval %d", i, s.index)
	}
	s.index = i
	return nil
}

// DurationSeconds returns the interval length in seconds.
func DurationSeconds(it model.Interval) int {
	return it.Minutes * 60
}
