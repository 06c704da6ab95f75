package schedule

import (
	"testing"

	"github.com/verte-zerg/redline/internal/model"
)

func TestSchedulerAdvance(t *testing.T) {
	s := New([]model.Interval{
		{Minutes: 1, Kind: model.KindWork},
		{Minutes: 2, Kind: model.KindBreak},
	})
	if s.Current().Kind != model.KindWork || s.IsLast() {
		t.Fatalf("expected to start on first work interval")
	}
	next, ok := s.Advance()
	if !ok || next != 1 {
		t.Fatalf("expected next index 1, got %d %v", next, ok)
	}
	if s.Index() != 0 {
		t.Fatalf("advance must not move the index")
	}
	if err := s.Enter(next); err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	if !s.IsLast() || s.Current().Kind != model.KindBreak {
		t.Fatalf("expected last break interval")
	}
	if _, ok := s.Advance(); ok {
		t.Fatalf("expected no interval after the last one")
	}
	if DurationSeconds(s.Current()) != 120 {
		t.Fatalf("expected 120 seconds, got %d", DurationSeconds(s.Current()))
	}
}

func TestSchedulerEnterIsMonotonic(t *testing.T) {
	s := New([]model.Interval{{Minutes: 1, Kind: model.KindWork}, {Minutes: 1, Kind: model.KindEdit}})
	if err := s.Enter(1); err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	if err := s.Enter(0); err == nil {
		t.Fatalf("expected error moving backwards")
	}
	if err := s.Enter(5); err == nil {
		t.Fatalf("expected error for out of range index")
	}
	if s.Index() != 1 {
		t.Fatalf("expected index to stay at 1, got %d", s.Index())
	}
}

func TestSchedulerEmptyPlan(t *testing.T) {
	s := New(nil)
	if s.Len() != 1 || s.Current().Kind != model.KindWork || !s.IsLast() {
		t.Fatalf("expected a single fallback work interval")
	}
}
