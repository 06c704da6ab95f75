// Package document derives plain text, an outline, and a redacted rendering
// from a line-oriented markdown document.
package document

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// BlankHeading labels a heading with no text.
const BlankHeading = "(blank)"

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// Block is one line of the document.
type Block struct {
	Heading bool
	Level   int
	Text    string
	Line    int
	Offset  int
}

// Anchor locates a block so the editor can move its caret there.
type Anchor struct {
	Line   int
	Offset int
}

// Heading is an outline entry.
type Heading struct {
	Level  int
	Text   string
	Anchor Anchor
}

// Doc is a parsed document.
type Doc struct {
	src    string
	blocks []Block
}

// Parse splits src into blocks, one per line.
func Parse(src string) Doc {
	doc := Doc{src: src}
	if src == "" {
		return doc
	}
	offset := 0
	for i, line := range strings.Split(src, "\n") {
		block := Block{Text: line, Line: i, Offset: offset}
		if level, text, ok := parseHeading(line); ok {
			block.Heading = true
			block.Level = level
			block.Text = text
		}
		doc.blocks = append(doc.blocks, block)
		offset += utf8.RuneCountInString(line) + 1
	}
	return doc
}

func parseHeading(line string) (int, string, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	return len(m[1]), m[2], true
}

// Blocks returns the parsed blocks in document order.
func (d Doc) Blocks() []Block {
	return d.blocks
}

// Serialize returns the markdown source.
func (d Doc) Serialize() string {
	return d.src
}

// PlainText returns block text separated by newlines, without heading markers.
func (d Doc) PlainText() string {
	parts := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n")
}

// Outline lists the headings in document order.
func (d Doc) Outline() []Heading {
	var out []Heading
	for _, b := range d.blocks {
		if !b.Heading {
			continue
		}
		text := strings.TrimSpace(b.Text)
		if text == "" {
			text = BlankHeading
		}
		out = append(out, Heading{
			Level:  b.Level,
			Text:   text,
			Anchor: Anchor{Line: b.Line, Offset: b.Offset},
		})
	}
	return out
}

// RenderMasked replaces letters and digits with '*'. With allowHeadings,
// heading lines are kept verbatim.
func RenderMasked(src string, allowHeadings bool) string {
	if !allowHeadings {
		return Mask(src)
	}
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if _, _, ok := parseHeading(line); ok {
			continue
		}
		lines[i] = Mask(line)
	}
	return strings.Join(lines, "\n")
}

// Mask replaces every letter and digit in s with '*'.
func Mask(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return '*'
		}
		return r
	}, s)
}
