// Package historyui provides the Bubble Tea session browser.
package historyui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/persist"
	"github.com/verte-zerg/redline/internal/stats"
)

const callTimeout = 10 * time.Second

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

var tabScopes = []model.Scope{model.ScopeHistory, model.ScopeDrafts, model.ScopeAll}

// Model implements the Bubble Tea session browser.
type Model struct {
	gw   persist.Gateway
	last int

	tabs      []string
	activeTab int
	records   []model.SessionRecord
	table     table.Model

	detail     viewport.Model
	showDetail bool

	filterMode  bool
	lastInput   textinput.Model
	filterError string

	confirmDelete bool
	errMsg        string
	notice        string

	width  int
	height int
}

// NewModel constructs a browser over gw starting on scope.
func NewModel(gw persist.Gateway, scope model.Scope, last int) *Model {
	m := &Model{
		gw:     gw,
		last:   last,
		tabs:   []string{"History", "Drafts", "All"},
		detail: viewport.New(0, 0),
	}
	for i, s := range tabScopes {
		if s == scope {
			m.activeTab = i
		}
	}
	m.lastInput = textinput.New()
	m.lastInput.Prompt = "Last N sessions (0 = all): "
	m.lastInput.CharLimit = 6
	m.lastInput.Cursor.SetMode(cursor.CursorBlink)
	m.table = table.New(
		table.WithColumns(columnsFor(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	m.table.SetStyles(tableStyles())
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Scope returns the scope of the active tab.
func (m *Model) Scope() model.Scope {
	return tabScopes[m.activeTab]
}

// Records returns the rows currently listed.
func (m *Model) Records() []model.SessionRecord {
	return m.records
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		if m.confirmDelete {
			return m.updateConfirm(msg)
		}
		if m.showDetail {
			return m.updateDetail(msg)
		}
		m.notice = ""
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			m.refresh()
			return m, nil
		case "/":
			return m.startFilter()
		case "enter":
			m.openDetail()
			return m, nil
		case "x":
			if _, ok := m.selected(); ok {
				m.confirmDelete = true
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "backspace":
		m.showDetail = false
		return m, nil
	case "g", "home":
		m.detail.GotoTop()
		return m, nil
	case "G", "end":
		m.detail.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirmDelete = false
	if msg.String() != "y" {
		return m, nil
	}
	rec, ok := m.selected()
	if !ok {
		return m, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := m.gw.Delete(ctx, rec.ID); err != nil {
		m.errMsg = fmt.Sprintf("Failed to delete: %v", err)
		return m, nil
	}
	m.refresh()
	m.notice = fmt.Sprintf("Deleted %s.", rec.ID)
	return m, nil
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	if m.last > 0 {
		m.lastInput.SetValue(strconv.Itoa(m.last))
	} else {
		m.lastInput.SetValue("")
	}
	return m, m.lastInput.Focus()
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		m.lastInput.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.lastInput.Value())
		last := 0
		if value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 0 {
				m.filterError = "invalid last value (use 0 or positive integer)"
				return m, nil
			}
			last = parsed
		}
		m.last = last
		m.filterMode = false
		m.filterError = ""
		m.lastInput.Blur()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.lastInput, cmd = m.lastInput.Update(msg)
	return m, cmd
}

func (m *Model) moveTab(delta int) {
	next := m.activeTab + delta
	if next < 0 {
		next = len(m.tabs) - 1
	}
	if next >= len(m.tabs) {
		next = 0
	}
	m.activeTab = next
	m.refresh()
}

func (m *Model) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	records, err := m.gw.List(ctx, model.ListFilter{Scope: m.Scope(), Last: m.last})
	if err != nil {
		m.errMsg = fmt.Sprintf("Failed to load sessions: %v", err)
		m.records = nil
		m.table.SetRows(nil)
		return
	}
	m.errMsg = ""
	m.records = records
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, table.Row(stats.HistoryRow(r)))
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(maxInt(0, len(rows)-1))
	}
}

func (m *Model) selected() (model.SessionRecord, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.records) {
		return model.SessionRecord{}, false
	}
	return m.records[idx], true
}

func (m *Model) openDetail() {
	rec, ok := m.selected()
	if !ok {
		return
	}
	m.detail.SetContent(stats.RecordMarkdown(rec))
	m.detail.GotoTop()
	m.showDetail = true
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.notice != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.detail.Width = m.width
	m.detail.Height = bodyHeight
	m.table.SetColumns(columnsFor(m.width))
	m.table.SetWidth(m.width)
	m.table.SetHeight(maxInt(1, bodyHeight-1))
	m.lastInput.Width = maxInt(10, m.width-lipgloss.Width(m.lastInput.Prompt)-2)
}

// columnsFor gives the title column whatever width the fixed columns leave.
func columnsFor(width int) []table.Column {
	fixed := []int{8, 16, 0, 18, 6, 6, 4}
	used := 0
	for _, w := range fixed {
		used += w + 1
	}
	titleWidth := maxInt(8, minInt(32, width-used-1))
	cols := make([]table.Column, len(stats.HistoryHeaders))
	for i, title := range stats.HistoryHeaders {
		w := fixed[i]
		if w == 0 {
			w = titleWidth
		}
		cols[i] = table.Column{Title: title, Width: w}
	}
	return cols
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.confirmDelete {
		return fitLines(m.renderConfirm(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	return m.renderTabs() + "\n" + headerStyle.Render(truncateLine(m.renderSummary(), m.width))
}

func (m *Model) renderSummary() string {
	s := stats.Summarize(m.records)
	last := "all"
	if m.last > 0 {
		last = strconv.Itoa(m.last)
	}
	return fmt.Sprintf("Sessions: %d  completed: %d  avg WPM: %.1f  best: %.1f  last: %s",
		s.Sessions, s.ByOutcome[model.OutcomeCompleted], s.AvgWPM, s.BestWPM, last)
}

func (m *Model) renderBody() string {
	switch {
	case m.filterMode:
		lines := []string{"Filter (enter to apply, esc to cancel)", m.lastInput.View()}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return strings.Join(lines, "\n")
	case m.showDetail:
		return m.detail.View()
	case len(m.records) == 0:
		return "No sessions found."
	default:
		return tableStyle.Render(m.table.View())
	}
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Move: up/down  Open: enter  Delete: x  Filter: /  Refresh: r  Quit: q"
	switch {
	case m.filterMode:
		help = "enter: apply  esc: cancel"
	case m.showDetail:
		help = "Scroll: up/down/pgup/pgdn  Back: esc"
	}
	line := headerStyle.Render(help)
	if m.errMsg != "" {
		line += "\n" + errorStyle.Render(m.errMsg)
	} else if m.notice != "" {
		line += "\n" + headerStyle.Render(m.notice)
	}
	return line
}

func (m *Model) renderConfirm() string {
	rec, _ := m.selected()
	title := rec.Title
	if title == "" {
		title = "Untitled session"
	}
	content := fmt.Sprintf("Delete %q (%s)?\n\ny: delete  any other key: cancel", title, rec.ID)
	modal := modalStyle.Width(maxInt(40, minInt(m.width-4, 80))).Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
