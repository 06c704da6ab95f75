package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/persist"
	"github.com/verte-zerg/redline/internal/session"
	"github.com/verte-zerg/redline/internal/stats"
)

const (
	marginWidth   = 3
	outlineWidth  = 24
	notesWidth    = 30
	defaultWidth  = 80
	defaultHeight = 24
)

// speedPalette runs from the alarm color at level 0 to white at the safe level.
var speedPalette = [stats.LevelSafe + 1]lipgloss.Color{
	"#FF0000", "#FF2020", "#FF4040", "#FF6060", "#FF8080",
	"#FFA0A0", "#FFC0C0", "#FFD0D0", "#FFE0E0", "#FFFFFF",
}

var (
	statusStyle        = lipgloss.NewStyle().Bold(true)
	minStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	footerStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	noticeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	panelTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8C8C8C"))
	outlineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	outlineActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	maskStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	cardStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
	deletedTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))
	doneTitleStyle     = lipgloss.NewStyle().Bold(true)
)

func speedColor(level int) lipgloss.Color {
	if level < 0 {
		level = 0
	}
	if level >= len(speedPalette) {
		level = len(speedPalette) - 1
	}
	return speedPalette[level]
}

type layout struct {
	width   int
	outline int
	notes   int
	editor  int
	body    int
}

func (m *Model) layout() layout {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	l := layout{width: w}
	rest := w - 2*marginWidth
	if rest >= 60 {
		l.outline = outlineWidth
		rest -= outlineWidth
	}
	if m.cfg.OrganizerText != "" && rest >= 70 {
		l.notes = notesWidth
		rest -= notesWidth
	}
	if rest < 10 {
		rest = 10
	}
	l.editor = rest
	l.body = h - 2
	if l.body < 3 {
		l.body = 3
	}
	return l
}

func (m *Model) resizeEditor() {
	l := m.layout()
	m.editor.SetWidth(l.editor - 2)
	m.editor.SetHeight(l.body)
}

// View implements tea.Model.
func (m *Model) View() string {
	switch m.screen {
	case screenStarting:
		return m.place(footerStyle.Render("Starting session…"))
	case screenError:
		return m.place(m.renderError())
	case screenOutcome:
		return m.place(m.renderOutcome())
	default:
		return m.renderWriting()
	}
}

func (m *Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderWriting() string {
	snap := m.rt.Snapshot()
	l := m.layout()
	margin := lipgloss.NewStyle().
		Background(speedColor(snap.SpeedLevel)).
		Width(marginWidth).
		Height(l.body).
		Render("")
	parts := []string{margin}
	if l.outline > 0 {
		parts = append(parts, m.renderOutline(l.outline, l.body))
	}
	parts = append(parts, m.renderEditor(l.editor, l.body))
	if l.notes > 0 {
		parts = append(parts, m.renderNotes(l.notes, l.body))
	}
	parts = append(parts, margin)
	body := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderStatus(snap, l.width), body, m.renderHints(snap))
}

func (m *Model) renderStatus(snap session.Snapshot, width int) string {
	left := statusStyle.Render(fmt.Sprintf("WPM: %d", snap.WPM)) + " " + minStyle.Render(fmt.Sprintf("(min %d)", m.cfg.MinWPM))
	right := intervalLabel(snap) + "  " + statusStyle.Render(stats.FormatDuration(snap.Remaining))
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func intervalLabel(snap session.Snapshot) string {
	var label string
	switch snap.Interval.Kind {
	case model.KindBreak:
		label = "Break"
		if snap.BreakExpired {
			label = "Break over"
		}
	case model.KindEdit:
		label = "Edit"
		if snap.EditWork {
			label = "Edit (work mode)"
		}
	default:
		label = "Work"
	}
	if snap.IntervalCount > 1 {
		label += fmt.Sprintf(" %d/%d", snap.IntervalIndex+1, snap.IntervalCount)
	}
	if snap.Interval.Name != "" {
		label += " · " + snap.Interval.Name
	}
	return label
}

func (m *Model) renderOutline(width, height int) string {
	lines := []string{panelTitleStyle.Render("HEADERS")}
	outline := m.adapter.Outline()
	if len(outline) == 0 {
		lines = append(lines, outlineStyle.Render("No headers yet."))
	}
	active := -1
	caret := m.editor.Line()
	for i, h := range outline {
		if h.Anchor.Line <= caret {
			active = i
		}
	}
	for i, h := range outline {
		if len(lines) >= height {
			break
		}
		text := strings.Repeat(" ", h.Level-1) + strings.Repeat("#", h.Level) + " " + h.Text
		text = runewidth.Truncate(text, width-1, "…")
		style := outlineStyle
		if i == active {
			style = outlineActiveStyle
		}
		lines = append(lines, style.Render(text))
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderEditor(width, height int) string {
	content := m.editor.View()
	if m.redacted() {
		rows := layoutOverlay(m.adapter.Masked(m.cfg.ExemptHeadings), width-2, height, m.editor.Line())
		content = maskStyle.Render(strings.Join(rows, "\n"))
	}
	return lipgloss.NewStyle().Width(width).Height(height).Padding(0, 1).Render(content)
}

func (m *Model) renderNotes(width, height int) string {
	lines := []string{panelTitleStyle.Render("NOTES")}
	wrapped := strings.Split(wordwrap.String(m.cfg.OrganizerText, width-2), "\n")
	for _, line := range wrapped {
		if len(lines) >= height {
			break
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().Width(width).Height(height).PaddingLeft(1).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderHints(snap session.Snapshot) string {
	var segments []string
	segments = append(segments, fmt.Sprintf("%d words", snap.WordCount))
	switch snap.Interval.Kind {
	case model.KindBreak:
		segments = append(segments, "ctrl+b end break")
	case model.KindEdit:
		if !snap.EditWork {
			segments = append(segments, "ctrl+g switch to work")
		}
		segments = append(segments, "ctrl+q abandon")
	default:
		segments = append(segments, "ctrl+q abandon")
	}
	segments = append(segments, "ctrl+n/ctrl+p headings")
	line := footerStyle.Render(strings.Join(segments, "  "))
	if m.notice != "" {
		line += "  " + noticeStyle.Render(m.notice)
	}
	return line
}

type outcomeText struct {
	title string
	desc  string
}

func (m *Model) outcomeText(outcome model.Outcome) outcomeText {
	switch outcome {
	case model.OutcomeCompleted:
		return outcomeText{"Session complete!", "Your writing has been saved."}
	case model.OutcomeInactivity:
		return outcomeText{"Too slow, deleted.", fmt.Sprintf("You stopped typing for %d seconds. Everything is gone.", m.cfg.InactivitySec)}
	case model.OutcomeWPM:
		return outcomeText{"Below minimum WPM, deleted.", "Your words per minute dropped too low. Everything is gone."}
	case model.OutcomeAbandoned:
		return outcomeText{"Deleted, abandoned.", "You ended the session. Everything is gone."}
	default:
		return outcomeText{string(outcome), ""}
	}
}

func (m *Model) renderOutcome() string {
	outcome := m.rt.Outcome()
	text := m.outcomeText(outcome)
	snap := m.rt.Snapshot()
	title := doneTitleStyle.Render(text.title)
	if outcome.Destructive() {
		title = deletedTitleStyle.Render(text.title)
	}
	lines := []string{title, "", text.desc, ""}
	if !outcome.Destructive() {
		lines = append(lines, fmt.Sprintf("Words: %d", snap.WordCount))
	}
	lines = append(lines,
		fmt.Sprintf("Time:  %s", stats.FormatDuration(snap.Elapsed)),
		"",
		footerStyle.Render("Press q to exit."),
	)
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderError() string {
	title := "Could not start the session"
	desc := ""
	if m.err != nil {
		desc = m.err.Error()
	}
	if errors.Is(m.err, persist.ErrUnauthorized) {
		title = "Access denied"
		desc = "The session server rejected your credentials. Check the [remote] token or --token."
	}
	lines := []string{deletedTitleStyle.Render(title), "", desc, "", footerStyle.Render("Press q to exit.")}
	return cardStyle.Render(strings.Join(lines, "\n"))
}
