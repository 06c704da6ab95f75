package document

import (
	"testing"

	"pgregory.net/rapid"
)

func TestRenderMasked(t *testing.T) {
	if got := RenderMasked("Hello 1", false); got != "***** *" {
		t.Fatalf("unexpected mask: %q", got)
	}
	src := "# Title one\nbody, text!\n## Sub 2"
	got := RenderMasked(src, true)
	want := "# Title one\n****, ****!\n## Sub 2"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	got = RenderMasked(src, false)
	want = "# ***** ***\n****, ****!\n## *** *"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskUnicode(t *testing.T) {
	if got := Mask("naïve café — 42."); got != "***** **** — **." {
		t.Fatalf("unexpected mask: %q", got)
	}
}

func TestOutline(t *testing.T) {
	doc := Parse("intro\n# One\n\n##   \n####### too deep\n#nospace\n### Three ")
	outline := doc.Outline()
	if len(outline) != 3 {
		t.Fatalf("expected 3 headings, got %d: %+v", len(outline), outline)
	}
	if outline[0].Level != 1 || outline[0].Text != "One" {
		t.Fatalf("unexpected first heading: %+v", outline[0])
	}
	if outline[0].Anchor.Line != 1 || outline[0].Anchor.Offset != 6 {
		t.Fatalf("unexpected first anchor: %+v", outline[0].Anchor)
	}
	if outline[1].Level != 2 || outline[1].Text != BlankHeading {
		t.Fatalf("expected blank placeholder, got %+v", outline[1])
	}
	if outline[2].Level != 3 || outline[2].Text != "Three" || outline[2].Anchor.Line != 6 {
		t.Fatalf("unexpected third heading: %+v", outline[2])
	}
}

func TestPlainText(t *testing.T) {
	doc := Parse("# Title\nfirst line\n\nsecond")
	if got := doc.PlainText(); got != "Title\nfirst line\n\nsecond" {
		t.Fatalf("unexpected plain text: %q", got)
	}
	if got := doc.Serialize(); got != "# Title\nfirst line\n\nsecond" {
		t.Fatalf("unexpected serialized form: %q", got)
	}
	if got := Parse("").PlainText(); got != "" {
		t.Fatalf("expected empty plain text, got %q", got)
	}
}

func TestAdapterNotifiesOnChange(t *testing.T) {
	var calls int
	var lastPlain, lastSerialized string
	a := NewAdapter("seed", func(plain, serialized string) {
		calls++
		lastPlain, lastSerialized = plain, serialized
	})
	if a.Update("seed") {
		t.Fatalf("expected no change for identical content")
	}
	if calls != 0 {
		t.Fatalf("expected no notification, got %d", calls)
	}
	if !a.Update("# Head\nbody") {
		t.Fatalf("expected change")
	}
	if calls != 1 || lastPlain != "Head\nbody" || lastSerialized != "# Head\nbody" {
		t.Fatalf("unexpected notification: %d %q %q", calls, lastPlain, lastSerialized)
	}
	if a.CharCount() != 9 {
		t.Fatalf("expected 9 chars, got %d", a.CharCount())
	}
	a.Clear()
	if calls != 2 || lastPlain != "" || a.Serialized() != "" {
		t.Fatalf("expected clear to notify with empty content")
	}
}

func TestMaskPreservesShapeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		masked := []rune(Mask(s))
		orig := []rune(s)
		if len(masked) != len(orig) {
			t.Fatalf("mask changed length: %d vs %d", len(masked), len(orig))
		}
		for i, r := range orig {
			if masked[i] != r && masked[i] != '*' {
				t.Fatalf("unexpected rune %q at %d", masked[i], i)
			}
		}
	})
}
