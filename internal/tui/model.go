// Package tui provides the Bubble Tea writing screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/redline/internal/document"
	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/persist"
	"github.com/verte-zerg/redline/internal/session"
)

const createTimeout = 15 * time.Second

type screen int

const (
	screenStarting screen = iota
	screenWriting
	screenOutcome
	screenError
)

type tickMsg time.Time

type sessionCreatedMsg struct {
	record model.SessionRecord
}

type sessionFailedMsg struct {
	err error
}

// Options configures the writing screen.
type Options struct {
	Config  model.SessionConfig
	Gateway persist.Gateway
	Sink    session.Sink
	// DraftID promotes an existing draft instead of creating a new record.
	DraftID string
	// Bell receives the audible cue. Nil disables it.
	Bell io.Writer
	Now  func() time.Time
}

// Model implements the Bubble Tea writing UI.
type Model struct {
	cfg     model.SessionConfig
	gw      persist.Gateway
	draftID string
	now     func() time.Time

	rt      *session.Runtime
	host    *termHost
	editor  textarea.Model
	adapter *document.Adapter

	screen screen
	err    error
	notice string
	record model.SessionRecord

	width  int
	height int
}

// NewModel constructs the writing screen. The session record is created when
// the program starts.
func NewModel(opts Options) *Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Model{
		cfg:     opts.Config,
		gw:      opts.Gateway,
		draftID: opts.DraftID,
		now:     now,
	}
	m.host = &termHost{bell: opts.Bell, clear: m.clearDocument}
	m.rt = session.New(opts.Config, m.host, opts.Sink)
	m.adapter = document.NewAdapter("", m.rt.OnDocumentChange)

	ta := textarea.New()
	ta.Placeholder = overlayPlaceholder
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.KeyMap.Paste.SetEnabled(!opts.Config.PreventCopy)
	m.editor = ta
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.startCmd()
}

// Outcome returns the terminal outcome, or OutcomeNone if the session never finished.
func (m *Model) Outcome() model.Outcome {
	return m.rt.Outcome()
}

// Err returns the error that stopped the session from starting.
func (m *Model) Err() error {
	return m.err
}

// SessionID returns the id of the record backing the session.
func (m *Model) SessionID() string {
	return m.rt.ID()
}

// Snapshot returns the latest runtime display state.
func (m *Model) Snapshot() session.Snapshot {
	return m.rt.Snapshot()
}

func (m *Model) startCmd() tea.Cmd {
	gw := m.gw
	cfg := m.cfg
	draftID := m.draftID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
		defer cancel()
		if draftID != "" {
			rec, err := promoteDraft(ctx, gw, draftID, cfg)
			if err != nil {
				return sessionFailedMsg{err: err}
			}
			return sessionCreatedMsg{record: rec}
		}
		rec, err := gw.Create(ctx, model.CreateRequest{
			DurationMin:   cfg.TotalMinutes(),
			MinWPM:        cfg.MinWPM,
			OrganizerText: cfg.OrganizerText,
			Title:         cfg.Title,
		})
		if err != nil {
			return sessionFailedMsg{err: err}
		}
		return sessionCreatedMsg{record: rec}
	}
}

func promoteDraft(ctx context.Context, gw persist.Gateway, id string, cfg model.SessionConfig) (model.SessionRecord, error) {
	rec, err := gw.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	if rec.Outcome != model.OutcomeDraft {
		return rec, fmt.Errorf("session %s is not a draft (outcome %q)", id, rec.Outcome)
	}
	active := model.OutcomeActive
	duration := cfg.TotalMinutes()
	minWPM := cfg.MinWPM
	patch := model.SessionPatch{Outcome: &active, DurationMin: &duration, MinWPM: &minWPM}
	if cfg.OrganizerText != "" {
		organizer := cfg.OrganizerText
		patch.OrganizerText = &organizer
	}
	return gw.Patch(ctx, id, patch)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeEditor()
		return m, nil
	case sessionCreatedMsg:
		return m, m.handleCreated(msg.record)
	case sessionFailedMsg:
		m.err = msg.err
		m.screen = screenError
		return m, nil
	case tickMsg:
		m.rt.Tick(time.Time(msg))
		return m, m.afterRuntime(true)
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		if m.screen != screenWriting {
			return m, nil
		}
		return m, m.updateEditor(msg)
	}
}

// updateEditor forwards msg to the textarea and reports any content change to
// the runtime. Clipboard pastes arrive here as non-key messages.
func (m *Model) updateEditor(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.adapter.Update(m.editor.Value())
	return cmd
}

func (m *Model) handleCreated(rec model.SessionRecord) tea.Cmd {
	m.record = rec
	if rec.Content != "" {
		m.editor.SetValue(rec.Content)
		m.adapter.Update(m.editor.Value())
	}
	if err := m.rt.Begin(rec.ID, m.now()); err != nil {
		m.err = err
		m.screen = screenError
		return nil
	}
	m.screen = screenWriting
	focus := m.editor.Focus()
	return tea.Batch(append(m.host.drain(), focus, tickCmd())...)
}

// afterRuntime collects host commands and, while the session runs, schedules
// the next tick.
func (m *Model) afterRuntime(scheduleTick bool) tea.Cmd {
	cmds := m.host.drain()
	if m.rt.Outcome() != model.OutcomeNone {
		if m.screen == screenWriting {
			m.screen = screenOutcome
			m.editor.Blur()
		}
		return tea.Batch(cmds...)
	}
	if scheduleTick {
		cmds = append(cmds, tickCmd())
	}
	return tea.Batch(cmds...)
}

var blockedKeys = map[string]struct{}{
	"tab": {}, "delete": {}, "insert": {}, "home": {}, "end": {}, "pgup": {}, "pgdown": {},
	"f1": {}, "f2": {}, "f3": {}, "f4": {}, "f5": {}, "f6": {},
	"f7": {}, "f8": {}, "f9": {}, "f10": {}, "f11": {}, "f12": {},
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	switch m.screen {
	case screenStarting:
		if key == "ctrl+c" {
			return tea.Quit
		}
		return nil
	case screenOutcome, screenError:
		switch key {
		case "ctrl+c", "q", "esc", "enter":
			return tea.Quit
		}
		return nil
	}

	m.notice = ""
	switch key {
	case "ctrl+q", "ctrl+c":
		if err := m.rt.Abandon(m.now()); err != nil {
			m.notice = actionNotice(err)
		}
		return m.afterRuntime(false)
	case "ctrl+b":
		if err := m.rt.EndBreak(m.now()); err != nil {
			m.notice = actionNotice(err)
		}
		return m.afterRuntime(false)
	case "ctrl+g":
		if err := m.rt.SwitchToWork(m.now()); err != nil {
			m.notice = actionNotice(err)
		}
		return m.afterRuntime(false)
	case "ctrl+n":
		m.jumpHeading(1)
		return nil
	case "ctrl+p":
		m.jumpHeading(-1)
		return nil
	}
	if _, blocked := blockedKeys[key]; blocked {
		return nil
	}
	if m.copyProtected() && (msg.Paste || key == "ctrl+v") {
		m.notice = "Paste is disabled for this session."
		return nil
	}

	m.editor.KeyMap.Paste.SetEnabled(!m.copyProtected())
	return m.updateEditor(msg)
}

func actionNotice(err error) string {
	switch {
	case errors.Is(err, session.ErrBreakActive):
		return "Breaks cannot be abandoned. End the break first (ctrl+b)."
	case errors.Is(err, session.ErrNotBreak):
		return "There is no break to end."
	case errors.Is(err, session.ErrNotEditInterval):
		return "Only edit intervals can switch to work."
	case errors.Is(err, session.ErrAlreadyWorkMode):
		return "Already in work mode."
	default:
		return err.Error()
	}
}

// copyProtected reports whether paste is blocked right now. Breaks lift the
// restriction.
func (m *Model) copyProtected() bool {
	return m.cfg.PreventCopy && m.rt.Snapshot().Interval.Kind != model.KindBreak
}

func (m *Model) redacted() bool {
	return m.cfg.Redact && m.rt.Snapshot().Interval.Kind != model.KindBreak
}

// jumpHeading moves the caret to the next (dir > 0) or previous heading,
// wrapping around the outline.
func (m *Model) jumpHeading(dir int) {
	outline := m.adapter.Outline()
	if len(outline) == 0 {
		return
	}
	current := m.editor.Line()
	target := -1
	if dir > 0 {
		for _, h := range outline {
			if h.Anchor.Line > current {
				target = h.Anchor.Line
				break
			}
		}
		if target < 0 {
			target = outline[0].Anchor.Line
		}
	} else {
		for i := len(outline) - 1; i >= 0; i-- {
			if outline[i].Anchor.Line < current {
				target = outline[i].Anchor.Line
				break
			}
		}
		if target < 0 {
			target = outline[len(outline)-1].Anchor.Line
		}
	}
	moveCaretToLine(&m.editor, target)
}

// moveCaretToLine walks the textarea caret to the start of a logical line.
func moveCaretToLine(ta *textarea.Model, line int) {
	if line < 0 || line >= ta.LineCount() {
		return
	}
	// Soft-wrapped rows take several steps per logical line.
	for guard := 0; ta.Line() != line && guard < 100000; guard++ {
		if ta.Line() < line {
			ta.CursorDown()
		} else {
			ta.CursorUp()
		}
	}
	ta.CursorStart()
}

func (m *Model) clearDocument() {
	m.editor.Reset()
	m.adapter.Clear()
}
