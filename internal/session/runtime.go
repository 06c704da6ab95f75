// Package session runs the per-second control loop of a timed writing session.
//
// A Runtime is driven by a single caller: Tick once per second, plus document
// changes and user actions in between. It is not safe for concurrent use; the
// Bubble Tea update loop serializes every call.
package session

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/schedule"
	"github.com/verte-zerg/redline/internal/stats"
)

const (
	// SpeedGrace is how long a speed window runs before minimum WPM is enforced.
	SpeedGrace = 60 * time.Second
	// AutosaveEvery is the number of ticks between autosaves.
	AutosaveEvery = 2
	// warningBand is how many seconds before the inactivity threshold the warning cue sounds.
	warningBand = 3
)

var (
	// ErrNotRunning is returned for actions before Begin.
	ErrNotRunning = errors.New("session has not started")
	// ErrTerminal is returned for actions after the session ended.
	ErrTerminal = errors.New("session already ended")
	// ErrBreakActive is returned when abandoning during a break.
	ErrBreakActive = errors.New("cannot abandon during a break")
	// ErrNotBreak is returned by EndBreak outside a break.
	ErrNotBreak = errors.New("active interval is not a break")
	// ErrNotEditInterval is returned by SwitchToWork outside an edit interval.
	ErrNotEditInterval = errors.New("active interval is not an edit interval")
	// ErrAlreadyWorkMode is returned by SwitchToWork when the edit interval is already graded.
	ErrAlreadyWorkMode = errors.New("edit interval already switched to work")
)

// Host performs the presentation side effects the runtime asks for.
type Host interface {
	Beep()
	EnterFullscreen() error
	ExitFullscreen() error
	ClearDocument()
}

// Sink receives persistence calls. Implementations must not block.
type Sink interface {
	Patch(id string, patch model.SessionPatch)
	Finalize(id string, req model.FinalizeRequest)
}

// Phase is the coarse runtime state.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseRunning
	PhaseEnded
)

// Snapshot is the display state published after each tick or action.
type Snapshot struct {
	Phase         Phase
	Outcome       model.Outcome
	Interval      model.Interval
	IntervalIndex int
	IntervalCount int
	IsLast        bool
	Remaining     int
	Elapsed       int
	WPM           int
	SpeedLevel    int
	WordCount     int
	Graded        bool
	EditWork      bool
	BreakExpired  bool
	InactiveSec   int
}

// Runtime owns the mutable state of one session attempt.
type Runtime struct {
	cfg   model.SessionConfig
	sched *schedule.Scheduler
	host  Host
	sink  Sink

	id    string
	phase Phase

	plain      string
	serialized string

	sessionStartedAt   time.Time
	intervalStartedAt  time.Time
	wpmWindowStartedAt time.Time
	intervalDuration   int
	remaining          int

	baselineWordCount      int
	lastObservedCharCount  int
	secondsSinceLastChange int
	hasEverTyped           bool
	editModeIsWork         bool
	breakExpired           bool
	autosaveTicks          int
	wpm                    int

	outcome   model.Outcome
	finalized bool
	snap      Snapshot
}

// New prepares a runtime for cfg. The session starts with Begin.
func New(cfg model.SessionConfig, host Host, sink Sink) *Runtime {
	r := &Runtime{
		cfg:   cfg,
		sched: schedule.New(cfg.Plan()),
		host:  host,
		sink:  sink,
	}
	r.intervalDuration = schedule.DurationSeconds(r.sched.Current())
	r.remaining = r.intervalDuration
	r.publish(time.Time{})
	return r
}

// Config returns the session configuration.
func (r *Runtime) Config() model.SessionConfig {
	return r.cfg
}

// ID returns the record id, empty before Begin.
func (r *Runtime) ID() string {
	return r.id
}

// Outcome returns the terminal outcome, or OutcomeNone while running.
func (r *Runtime) Outcome() model.Outcome {
	return r.outcome
}

// Snapshot returns the last published display state.
func (r *Runtime) Snapshot() Snapshot {
	return r.snap
}

// OnDocumentChange records the latest editor content. Content that arrives
// after the session ended is ignored.
func (r *Runtime) OnDocumentChange(plain, serialized string) {
	if r.phase == PhaseEnded {
		return
	}
	r.plain = plain
	r.serialized = serialized
}

// Begin moves the runtime to Running once the store has assigned id.
func (r *Runtime) Begin(id string, now time.Time) error {
	switch r.phase {
	case PhaseRunning:
		return errors.New("session already started")
	case PhaseEnded:
		return ErrTerminal
	}
	r.id = id
	r.phase = PhaseRunning
	r.sessionStartedAt = now
	if err := r.startInterval(0, now); err != nil {
		return err
	}
	_ = r.host.EnterFullscreen()
	r.publish(now)
	return nil
}

// Tick advances the control loop to now.
func (r *Runtime) Tick(now time.Time) Snapshot {
	if r.phase != PhaseRunning {
		return r.snap
	}

	current := r.sched.Current()
	remaining := r.intervalDuration - secondsBetween(r.intervalStartedAt, now)
	if remaining <= 0 {
		r.crossBoundary(current, now)
		return r.publish(now)
	}
	r.remaining = remaining

	words := stats.CountWords(r.plain)
	chars := utf8.RuneCountInString(r.plain)
	wpmElapsed := secondsBetween(r.wpmWindowStartedAt, now)
	r.wpm = stats.WordsPerMinute(words-r.baselineWordCount, wpmElapsed)

	if r.graded() {
		if outcome := r.grade(chars, wpmElapsed); outcome != model.OutcomeNone {
			r.finish(outcome, now)
			return r.publish(now)
		}
	}

	r.autosaveTicks++
	if r.autosaveTicks >= AutosaveEvery && r.id != "" {
		r.autosaveTicks = 0
		content := r.serialized
		organizer := r.cfg.OrganizerText
		wpm := float64(r.wpm)
		elapsed := secondsBetween(r.sessionStartedAt, now)
		r.sink.Patch(r.id, model.SessionPatch{
			Content:       &content,
			OrganizerText: &organizer,
			WordCount:     &words,
			WPMAtEnd:      &wpm,
			ElapsedSec:    &elapsed,
		})
	}
	return r.publish(now)
}

func (r *Runtime) crossBoundary(current model.Interval, now time.Time) {
	if current.Kind == model.KindBreak {
		if !r.breakExpired {
			r.breakExpired = true
			r.host.Beep()
		}
		r.remaining = 0
		if r.sched.IsLast() {
			r.finish(model.OutcomeCompleted, now)
		}
		return
	}
	next, ok := r.sched.Advance()
	if !ok {
		r.remaining = 0
		r.finish(model.OutcomeCompleted, now)
		return
	}
	if err := r.startInterval(next, now); err != nil {
		r.finish(model.OutcomeCompleted, now)
	}
}

// grade applies the inactivity and minimum speed rules and returns the
// outcome they force, if any.
func (r *Runtime) grade(chars, wpmElapsed int) model.Outcome {
	if r.cfg.InactivityEnabled {
		if chars > 0 {
			r.hasEverTyped = true
		}
		if r.hasEverTyped {
			if chars != r.lastObservedCharCount {
				r.secondsSinceLastChange = 0
				r.lastObservedCharCount = chars
			} else {
				r.secondsSinceLastChange++
			}
			threshold := max(1, r.cfg.InactivitySec)
			warnFrom := max(1, threshold-warningBand)
			if r.secondsSinceLastChange >= warnFrom && r.secondsSinceLastChange < threshold {
				r.host.Beep()
			}
			if r.secondsSinceLastChange >= threshold {
				return model.OutcomeInactivity
			}
		}
	}
	if wpmElapsed >= int(SpeedGrace/time.Second) && r.wpm < r.cfg.MinWPM {
		return model.OutcomeWPM
	}
	return model.OutcomeNone
}

// Abandon destroys the session on user request. Breaks cannot be abandoned.
func (r *Runtime) Abandon(now time.Time) error {
	if err := r.checkRunning(); err != nil {
		return err
	}
	if r.sched.Current().Kind == model.KindBreak {
		return ErrBreakActive
	}
	r.finish(model.OutcomeAbandoned, now)
	r.publish(now)
	return nil
}

// EndBreak leaves the active break, completing the session if it was the last interval.
func (r *Runtime) EndBreak(now time.Time) error {
	if err := r.checkRunning(); err != nil {
		return err
	}
	if r.sched.Current().Kind != model.KindBreak {
		return ErrNotBreak
	}
	next, ok := r.sched.Advance()
	if !ok {
		r.finish(model.OutcomeCompleted, now)
		r.publish(now)
		return nil
	}
	if err := r.startInterval(next, now); err != nil {
		return err
	}
	r.publish(now)
	return nil
}

// SwitchToWork turns the active edit interval into a graded one for the rest
// of the interval and restarts the speed window.
func (r *Runtime) SwitchToWork(now time.Time) error {
	if err := r.checkRunning(); err != nil {
		return err
	}
	if r.sched.Current().Kind != model.KindEdit {
		return ErrNotEditInterval
	}
	if r.editModeIsWork {
		return ErrAlreadyWorkMode
	}
	r.editModeIsWork = true
	r.wpmWindowStartedAt = now
	r.rebaseline()
	r.publish(now)
	return nil
}

func (r *Runtime) checkRunning() error {
	switch r.phase {
	case PhaseInitializing:
		return ErrNotRunning
	case PhaseEnded:
		return ErrTerminal
	}
	return nil
}

func (r *Runtime) startInterval(i int, now time.Time) error {
	if err := r.sched.Enter(i); err != nil {
		return err
	}
	r.intervalStartedAt = now
	r.wpmWindowStartedAt = now
	r.intervalDuration = schedule.DurationSeconds(r.sched.Current())
	r.remaining = r.intervalDuration
	r.editModeIsWork = false
	r.breakExpired = false
	r.rebaseline()
	return nil
}

// rebaseline starts a fresh measurement window from the current content.
func (r *Runtime) rebaseline() {
	chars := utf8.RuneCountInString(r.plain)
	r.baselineWordCount = stats.CountWords(r.plain)
	r.lastObservedCharCount = chars
	r.hasEverTyped = chars > 0
	r.secondsSinceLastChange = 0
	r.wpm = 0
}

func (r *Runtime) graded() bool {
	switch r.sched.Current().Kind {
	case model.KindWork:
		return true
	case model.KindEdit:
		return r.editModeIsWork
	default:
		return false
	}
}

// finish records the terminal outcome and sends the final write. Only the
// first call has any effect.
func (r *Runtime) finish(outcome model.Outcome, now time.Time) {
	if r.finalized || r.outcome != model.OutcomeNone {
		return
	}
	r.finalized = true
	r.outcome = outcome
	r.phase = PhaseEnded

	content, plain := r.serialized, r.plain
	if outcome.Destructive() {
		content, plain = "", ""
		r.serialized, r.plain = "", ""
		r.host.ClearDocument()
	}
	elapsed := secondsBetween(r.sessionStartedAt, now)
	words := stats.CountWords(plain)
	if r.id != "" {
		r.sink.Finalize(r.id, model.FinalizeRequest{
			Outcome:       outcome,
			Content:       content,
			OrganizerText: r.cfg.OrganizerText,
			WordCount:     words,
			WPMAtEnd:      float64(stats.WordsPerMinute(words, elapsed)),
			ElapsedSec:    elapsed,
		})
	}
	_ = r.host.ExitFullscreen()
}

func (r *Runtime) publish(now time.Time) Snapshot {
	current := r.sched.Current()
	level := stats.SpeedLevel(r.wpm, r.cfg.MinWPM)
	if current.Kind == model.KindBreak {
		level = stats.LevelSafe
	}
	elapsed := 0
	if !r.sessionStartedAt.IsZero() && !now.IsZero() {
		elapsed = secondsBetween(r.sessionStartedAt, now)
	}
	r.snap = Snapshot{
		Phase:         r.phase,
		Outcome:       r.outcome,
		Interval:      current,
		IntervalIndex: r.sched.Index(),
		IntervalCount: r.sched.Len(),
		IsLast:        r.sched.IsLast(),
		Remaining:     r.remaining,
		Elapsed:       elapsed,
		WPM:           r.wpm,
		SpeedLevel:    level,
		WordCount:     stats.CountWords(r.plain),
		Graded:        r.graded(),
		EditWork:      r.editModeIsWork,
		BreakExpired:  r.breakExpired,
		InactiveSec:   r.secondsSinceLastChange,
	}
	return r.snap
}

func secondsBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Second)
}
