package document

import "unicode/utf8"

// Listener receives the plain text and serialized form after every change.
type Listener func(plain, serialized string)

// Adapter tracks the live editor content and notifies a listener when it changes.
type Adapter struct {
	doc      Doc
	listener Listener
}

// NewAdapter returns an adapter holding initial. The listener is not called for
// the initial content.
func NewAdapter(initial string, listener Listener) *Adapter {
	return &Adapter{doc: Parse(initial), listener: listener}
}

// Update replaces the content with src. It reports whether the content changed.
func (a *Adapter) Update(src string) bool {
	if src == a.doc.Serialize() {
		return false
	}
	a.doc = Parse(src)
	a.notify()
	return true
}

// Clear empties the document.
func (a *Adapter) Clear() {
	a.Update("")
}

// Doc returns the current document.
func (a *Adapter) Doc() Doc {
	return a.doc
}

// PlainText returns the current plain text.
func (a *Adapter) PlainText() string {
	return a.doc.PlainText()
}

// Serialized returns the current markdown source.
func (a *Adapter) Serialized() string {
	return a.doc.Serialize()
}

// CharCount returns the number of runes in the plain text.
func (a *Adapter) CharCount() int {
	return utf8.RuneCountInString(a.doc.PlainText())
}

// Outline returns the current heading outline.
func (a *Adapter) Outline() []Heading {
	return a.doc.Outline()
}

// Masked returns the redacted rendering of the current content.
func (a *Adapter) Masked(allowHeadings bool) string {
	return RenderMasked(a.doc.Serialize(), allowHeadings)
}

func (a *Adapter) notify() {
	if a.listener == nil {
		return
	}
	a.listener(a.doc.PlainText(), a.doc.Serialize())
}
