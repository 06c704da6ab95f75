package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// termHost turns runtime side effects into Bubble Tea commands. The commands
// are collected during Update and returned with its result.
type termHost struct {
	bell    io.Writer
	clear   func()
	pending []tea.Cmd
}

func (h *termHost) Beep() {
	if h.bell == nil {
		return
	}
	w := h.bell
	h.pending = append(h.pending, func() tea.Msg {
		_, _ = io.WriteString(w, "\a")
		return nil
	})
}

func (h *termHost) EnterFullscreen() error {
	h.pending = append(h.pending, tea.EnterAltScreen)
	return nil
}

func (h *termHost) ExitFullscreen() error {
	h.pending = append(h.pending, tea.ExitAltScreen)
	return nil
}

func (h *termHost) ClearDocument() {
	if h.clear != nil {
		h.clear()
	}
}

func (h *termHost) drain() []tea.Cmd {
	cmds := h.pending
	h.pending = nil
	return cmds
}
