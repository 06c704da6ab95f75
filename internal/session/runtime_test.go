package session

import (
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/stats"
)

type fakeHost struct {
	beeps      int
	fullscreen bool
	enters     int
	exits      int
	clears     int
	enterErr   error
}

func (h *fakeHost) Beep() { h.beeps++ }

func (h *fakeHost) EnterFullscreen() error {
	h.enters++
	if h.enterErr != nil {
		return h.enterErr
	}
	h.fullscreen = true
	return nil
}

func (h *fakeHost) ExitFullscreen() error {
	h.exits++
	h.fullscreen = false
	return nil
}

func (h *fakeHost) ClearDocument() { h.clears++ }

type fakeSink struct {
	patches   []model.SessionPatch
	finalizes []model.FinalizeRequest
	ids       []string
}

func (s *fakeSink) Patch(id string, patch model.SessionPatch) {
	s.ids = append(s.ids, id)
	s.patches = append(s.patches, patch)
}

func (s *fakeSink) Finalize(id string, req model.FinalizeRequest) {
	s.ids = append(s.ids, id)
	s.finalizes = append(s.finalizes, req)
}

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func newRuntime(t *testing.T, cfg model.SessionConfig) (*Runtime, *fakeHost, *fakeSink) {
	t.Helper()
	host := &fakeHost{}
	sink := &fakeSink{}
	r := New(cfg, host, sink)
	if err := r.Begin("sess-1", t0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return r, host, sink
}

// typeText simulates the document adapter handing over new content.
func typeText(r *Runtime, text string) {
	r.OnDocumentChange(text, text)
}

func TestBeginStartsFirstInterval(t *testing.T) {
	host := &fakeHost{enterErr: errors.New("no alt screen")}
	r := New(model.SessionConfig{DurationMin: 2, MinWPM: 5}, host, &fakeSink{})
	if r.Snapshot().Phase != PhaseInitializing {
		t.Fatalf("expected initializing phase")
	}
	if snap := r.Tick(at(1)); snap.Phase != PhaseInitializing {
		t.Fatalf("tick before begin must be a no-op")
	}
	if err := r.Abandon(at(1)); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := r.Begin("abc", t0); err != nil {
		t.Fatalf("begin should ignore fullscreen failure: %v", err)
	}
	snap := r.Snapshot()
	if snap.Phase != PhaseRunning || snap.Remaining != 120 || snap.IntervalIndex != 0 {
		t.Fatalf("unexpected snapshot after begin: %+v", snap)
	}
	if host.enters != 1 {
		t.Fatalf("expected one fullscreen request, got %d", host.enters)
	}
	if err := r.Begin("abc", t0); err == nil {
		t.Fatalf("expected second begin to fail")
	}
}

func TestInactivityDeletesAtThreshold(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 10, MinWPM: 1, InactivityEnabled: true, InactivitySec: 10}
	r, host, sink := newRuntime(t, cfg)

	// Idle before the first keystroke never counts.
	for sec := 1; sec <= 20; sec++ {
		if snap := r.Tick(at(sec)); snap.Outcome != model.OutcomeNone {
			t.Fatalf("unexpected outcome before typing at %d: %s", sec, snap.Outcome)
		}
	}
	typeText(r, "hello")
	r.Tick(at(21))
	for i := 1; i < 10; i++ {
		if snap := r.Tick(at(21 + i)); snap.Outcome != model.OutcomeNone {
			t.Fatalf("deleted early at idle tick %d", i)
		}
	}
	if host.beeps != 3 {
		t.Fatalf("expected 3 warning beeps, got %d", host.beeps)
	}
	snap := r.Tick(at(31))
	if snap.Outcome != model.OutcomeInactivity || r.Outcome() != model.OutcomeInactivity {
		t.Fatalf("expected inactivity deletion at 10th idle tick, got %q", snap.Outcome)
	}
	if host.clears != 1 {
		t.Fatalf("expected document to be cleared")
	}
	if len(sink.finalizes) != 1 {
		t.Fatalf("expected one finalize, got %d", len(sink.finalizes))
	}
	final := sink.finalizes[0]
	if final.Content != "" || final.WordCount != 0 || final.Outcome != model.OutcomeInactivity {
		t.Fatalf("expected destroyed content in finalize, got %+v", final)
	}
	if host.fullscreen {
		t.Fatalf("expected fullscreen to be exited")
	}
}

func TestInactivityWarningAtShortThreshold(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 10, MinWPM: 1, InactivityEnabled: true, InactivitySec: 2}
	r, host, _ := newRuntime(t, cfg)
	typeText(r, "hello")
	r.Tick(at(1))
	if host.beeps != 0 {
		t.Fatalf("expected no beep on the tick that saw the change, got %d", host.beeps)
	}

	if snap := r.Tick(at(2)); snap.Outcome != model.OutcomeNone {
		t.Fatalf("deleted after one idle tick: %s", snap.Outcome)
	}
	if host.beeps != 1 {
		t.Fatalf("expected one warning beep after the first idle tick, got %d", host.beeps)
	}
	if snap := r.Tick(at(3)); snap.Outcome != model.OutcomeInactivity {
		t.Fatalf("expected inactivity deletion at the second idle tick, got %q", snap.Outcome)
	}
	if host.beeps != 1 {
		t.Fatalf("expected no beep on the deleting tick, got %d", host.beeps)
	}
}

func TestTypingResetsInactivity(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 10, MinWPM: 1, InactivityEnabled: true, InactivitySec: 5}
	r, _, _ := newRuntime(t, cfg)
	text := "a"
	typeText(r, text)
	for sec := 1; sec <= 30; sec++ {
		if sec%4 == 0 {
			text += " b"
			typeText(r, text)
		}
		if snap := r.Tick(at(sec)); snap.Outcome != model.OutcomeNone {
			t.Fatalf("unexpected outcome at %d: %s", sec, snap.Outcome)
		}
	}
}

func TestMinimumSpeedAfterGrace(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 5, MinWPM: 20}
	r, _, sink := newRuntime(t, cfg)
	grace := int(SpeedGrace / time.Second)
	for sec := 1; sec < grace; sec++ {
		if snap := r.Tick(at(sec)); snap.Outcome != model.OutcomeNone {
			t.Fatalf("deleted before grace at %d", sec)
		}
	}
	snap := r.Tick(at(grace))
	if snap.Outcome != model.OutcomeWPM {
		t.Fatalf("expected wpm deletion at %d, got %q", grace, snap.Outcome)
	}
	if len(sink.finalizes) != 1 || sink.finalizes[0].Outcome != model.OutcomeWPM {
		t.Fatalf("expected wpm finalize, got %+v", sink.finalizes)
	}
}

func TestSpeedCountsOnlyNetWords(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 5, MinWPM: 10}
	host := &fakeHost{}
	r := New(cfg, host, &fakeSink{})
	typeText(r, "one two three four five six seven eight nine ten")
	if err := r.Begin("draft-1", t0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	snap := r.Tick(at(30))
	if snap.WPM != 0 {
		t.Fatalf("pre-existing words must not count, got %d wpm", snap.WPM)
	}
	typeText(r, "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen")
	snap = r.Tick(at(60))
	if snap.WPM != 5 {
		t.Fatalf("expected 5 net wpm, got %d", snap.WPM)
	}
	if snap.Outcome != model.OutcomeWPM {
		t.Fatalf("expected 5 wpm to fail a 10 wpm minimum, got %q", snap.Outcome)
	}
}

func TestSpeedLevelFollowsWPM(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 5, MinWPM: 10}
	r, _, _ := newRuntime(t, cfg)
	words := ""
	for i := 0; i < 20; i++ {
		words += "word "
	}
	typeText(r, words)
	snap := r.Tick(at(60))
	if snap.WPM != 20 || snap.SpeedLevel != stats.LevelSafe {
		t.Fatalf("expected 20 wpm at safe level, got %d level %d", snap.WPM, snap.SpeedLevel)
	}
}

func TestIntervalAdvanceIntoBreakThenComplete(t *testing.T) {
	cfg := model.SessionConfig{
		MinWPM:       1,
		UseIntervals: true,
		Intervals: []model.Interval{
			{Minutes: 1, Kind: model.KindWork},
			{Minutes: 1, Kind: model.KindBreak},
		},
	}
	r, host, sink := newRuntime(t, cfg)
	typeText(r, "some words here")
	var snap Snapshot
	for sec := 1; sec <= 60; sec++ {
		snap = r.Tick(at(sec))
	}
	if snap.IntervalIndex != 1 || snap.Interval.Kind != model.KindBreak || snap.Remaining != 60 {
		t.Fatalf("expected fresh break interval after 60 ticks, got %+v", snap)
	}
	if snap.SpeedLevel != stats.LevelSafe {
		t.Fatalf("breaks must show the neutral level")
	}
	if snap.Graded {
		t.Fatalf("breaks must not be graded")
	}
	if err := r.Abandon(at(61)); !errors.Is(err, ErrBreakActive) {
		t.Fatalf("expected ErrBreakActive, got %v", err)
	}
	for sec := 61; sec <= 120; sec++ {
		snap = r.Tick(at(sec))
	}
	if snap.Outcome != model.OutcomeCompleted {
		t.Fatalf("expected completion after last break expires, got %q", snap.Outcome)
	}
	if snap.Remaining != 0 || !snap.BreakExpired {
		t.Fatalf("expected frozen break timer, got %+v", snap)
	}
	if host.beeps != 1 {
		t.Fatalf("expected a single break cue, got %d", host.beeps)
	}
	if len(sink.finalizes) != 1 {
		t.Fatalf("expected one finalize, got %d", len(sink.finalizes))
	}
	final := sink.finalizes[0]
	if final.Content != "some words here" || final.WordCount != 3 || final.ElapsedSec != 120 {
		t.Fatalf("unexpected completed finalize: %+v", final)
	}
	if host.clears != 0 {
		t.Fatalf("completed sessions keep their content")
	}
}

func TestExpiredBreakWaitsForEndBreak(t *testing.T) {
	cfg := model.SessionConfig{
		MinWPM:       1,
		UseIntervals: true,
		Intervals: []model.Interval{
			{Minutes: 1, Kind: model.KindBreak},
			{Minutes: 1, Kind: model.KindWork},
		},
	}
	r, host, _ := newRuntime(t, cfg)
	var snap Snapshot
	for sec := 1; sec <= 90; sec++ {
		snap = r.Tick(at(sec))
	}
	if snap.IntervalIndex != 0 || !snap.BreakExpired || snap.Remaining != 0 {
		t.Fatalf("expected expired break to hold, got %+v", snap)
	}
	if host.beeps != 1 {
		t.Fatalf("expected break cue once, got %d", host.beeps)
	}
	if err := r.SwitchToWork(at(90)); !errors.Is(err, ErrNotEditInterval) {
		t.Fatalf("expected ErrNotEditInterval, got %v", err)
	}
	if err := r.EndBreak(at(90)); err != nil {
		t.Fatalf("end break: %v", err)
	}
	snap = r.Snapshot()
	if snap.IntervalIndex != 1 || snap.Remaining != 60 || snap.BreakExpired {
		t.Fatalf("expected fresh work interval, got %+v", snap)
	}
	if err := r.EndBreak(at(91)); !errors.Is(err, ErrNotBreak) {
		t.Fatalf("expected ErrNotBreak, got %v", err)
	}
}

func TestEndBreakOnLastIntervalCompletes(t *testing.T) {
	cfg := model.SessionConfig{
		MinWPM:       1,
		UseIntervals: true,
		Intervals:    []model.Interval{{Minutes: 5, Kind: model.KindBreak}},
	}
	r, _, sink := newRuntime(t, cfg)
	if err := r.EndBreak(at(10)); err != nil {
		t.Fatalf("end break: %v", err)
	}
	if r.Outcome() != model.OutcomeCompleted || len(sink.finalizes) != 1 {
		t.Fatalf("expected completion, got %q", r.Outcome())
	}
}

func TestEditIntervalUngradedUntilSwitched(t *testing.T) {
	cfg := model.SessionConfig{
		MinWPM:            30,
		InactivityEnabled: true,
		InactivitySec:     5,
		UseIntervals:      true,
		Intervals:         []model.Interval{{Minutes: 10, Kind: model.KindEdit}},
	}
	r, _, _ := newRuntime(t, cfg)
	typeText(r, "existing draft text")
	for sec := 1; sec <= 120; sec++ {
		if snap := r.Tick(at(sec)); snap.Outcome != model.OutcomeNone {
			t.Fatalf("edit interval must not be graded, got %q at %d", snap.Outcome, sec)
		}
	}
	if err := r.SwitchToWork(at(120)); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := r.SwitchToWork(at(121)); !errors.Is(err, ErrAlreadyWorkMode) {
		t.Fatalf("expected ErrAlreadyWorkMode, got %v", err)
	}
	snap := r.Snapshot()
	if !snap.Graded || !snap.EditWork || snap.WPM != 0 {
		t.Fatalf("expected graded edit-work mode with fresh window, got %+v", snap)
	}
	for sec := 121; sec < 125; sec++ {
		if snap := r.Tick(at(sec)); snap.Outcome != model.OutcomeNone {
			t.Fatalf("deleted early at %d", sec)
		}
	}
	if snap := r.Tick(at(125)); snap.Outcome != model.OutcomeInactivity {
		t.Fatalf("expected inactivity after switch, got %q", snap.Outcome)
	}
}

func TestWorkIntervalExpiryRebaselines(t *testing.T) {
	cfg := model.SessionConfig{
		MinWPM:       10,
		UseIntervals: true,
		Intervals: []model.Interval{
			{Minutes: 1, Kind: model.KindEdit},
			{Minutes: 2, Kind: model.KindWork},
		},
	}
	r, _, _ := newRuntime(t, cfg)
	typeText(r, "a b c d e f g h i j k l m n o p q r s t")
	for sec := 1; sec <= 60; sec++ {
		r.Tick(at(sec))
	}
	snap := r.Snapshot()
	if snap.IntervalIndex != 1 || !snap.Graded {
		t.Fatalf("expected graded work interval, got %+v", snap)
	}
	snap = r.Tick(at(90))
	if snap.WPM != 0 {
		t.Fatalf("edit interval words must not count toward the new window, got %d", snap.WPM)
	}
}

func TestLastWorkIntervalCompletes(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 1, MinWPM: 1}
	r, _, sink := newRuntime(t, cfg)
	words := ""
	for i := 0; i < 40; i++ {
		words += "go "
	}
	typeText(r, words)
	var snap Snapshot
	for sec := 1; sec <= 60; sec++ {
		snap = r.Tick(at(sec))
	}
	if snap.Outcome != model.OutcomeCompleted {
		t.Fatalf("expected completion, got %q", snap.Outcome)
	}
	if got := sink.finalizes[0].WPMAtEnd; got != 40 {
		t.Fatalf("expected final wpm 40, got %.0f", got)
	}
}

func TestAutosaveEverySecondTick(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 5, MinWPM: 1, OrganizerText: "plan"}
	r, _, sink := newRuntime(t, cfg)
	typeText(r, "draft words")
	for sec := 1; sec <= 10; sec++ {
		r.Tick(at(sec))
	}
	if len(sink.patches) != 5 {
		t.Fatalf("expected 5 autosaves in 10 ticks, got %d", len(sink.patches))
	}
	last := sink.patches[len(sink.patches)-1]
	if *last.Content != "draft words" || *last.OrganizerText != "plan" || *last.WordCount != 2 || *last.ElapsedSec != 10 {
		t.Fatalf("unexpected autosave payload: %+v", last)
	}
	if last.Outcome != nil || last.Title != nil {
		t.Fatalf("autosave must not touch outcome or title")
	}
	for _, id := range sink.ids {
		if id != "sess-1" {
			t.Fatalf("unexpected id %q", id)
		}
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	cfg := model.SessionConfig{DurationMin: 5, MinWPM: 1}
	r, host, sink := newRuntime(t, cfg)
	typeText(r, "keep me")
	if err := r.Abandon(at(5)); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	r.finish(model.OutcomeCompleted, at(6))
	r.Tick(at(7))
	if err := r.Abandon(at(8)); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := r.EndBreak(at(8)); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if r.Outcome() != model.OutcomeAbandoned {
		t.Fatalf("outcome changed after first assignment: %q", r.Outcome())
	}
	if len(sink.finalizes) != 1 || host.exits != 1 || host.clears != 1 {
		t.Fatalf("expected exactly one finalization, got %d finalizes %d exits %d clears",
			len(sink.finalizes), host.exits, host.clears)
	}
	typeText(r, "late keystroke")
	if r.Snapshot().WordCount != 0 {
		t.Fatalf("content after the end must be ignored")
	}
}
