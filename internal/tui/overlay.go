package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const overlayPlaceholder = "Start writing…"

type cell struct {
	s       string
	width   int
	isSpace bool
}

func buildCells(line string) []cell {
	out := make([]cell, 0, len(line))
	for _, r := range line {
		out = append(out, cell{
			s:       string(r),
			width:   runewidth.RuneWidth(r),
			isSpace: r == ' ',
		})
	}
	return out
}

func renderCells(cells []cell) string {
	var b strings.Builder
	for _, item := range cells {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapCells breaks one logical line into rows no wider than width, preferring
// to break at the last space.
func wrapCells(cells []cell, width int) []string {
	if width <= 0 {
		return []string{renderCells(cells)}
	}
	var rows []string
	line := make([]cell, 0, len(cells))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(cells); {
		item := cells[i]
		if item.isSpace && lineWidth+item.width > width {
			rows = append(rows, renderCells(line))
			line = line[:0]
			lineWidth = 0
			lastSpaceIdx = -1
			i++
			continue
		}
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				rows = append(rows, renderCells(line[:lastSpaceIdx]))
				line = append([]cell{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				rows = append(rows, renderCells(line))
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	rows = append(rows, renderCells(line))
	return rows
}

func lineWidthOf(line []cell) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []cell) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}

// layoutOverlay wraps masked text to width and returns at most height rows,
// scrolled so that the rows of logical line caretLine are visible.
func layoutOverlay(masked string, width, height, caretLine int) []string {
	if masked == "" {
		return []string{overlayPlaceholder}
	}
	var rows []string
	caretEnd := 0
	for i, line := range strings.Split(masked, "\n") {
		rows = append(rows, wrapCells(buildCells(line), width)...)
		if i <= caretLine {
			caretEnd = len(rows)
		}
	}
	if height <= 0 || len(rows) <= height {
		return rows
	}
	start := caretEnd - height
	if start < 0 {
		start = 0
	}
	return rows[start : start+height]
}
