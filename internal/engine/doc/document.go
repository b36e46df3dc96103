package doc

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Errors returned by document operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
)

// EditListener receives synchronous notification of document mutations.
// Listeners are invoked before the mutating call returns and must not call
// back into the document.
type EditListener interface {
	DocumentEdited(res EditResult)
}

// Document is the editing-surface contract consumed by the transform
// engine. Offsets are byte offsets; ranges are half-open.
type Document interface {
	// ID returns a stable identity for this document.
	ID() string

	// Len returns the document length in bytes.
	Len() ByteOffset

	// Text returns the full document content.
	Text() string

	// TextRange returns the text in [start, end).
	TextRange(start, end ByteOffset) (string, error)

	// Insert inserts text at offset.
	Insert(offset ByteOffset, text string) (EditResult, error)

	// Delete removes the text in [start, end).
	Delete(start, end ByteOffset) (EditResult, error)

	// Subscribe registers an edit listener and returns an unsubscribe
	// function.
	Subscribe(l EditListener) (unsubscribe func())

	// Selection returns the current selection as [start, end).
	Selection() (start, end ByteOffset)

	// SetSelection sets the selection, clamped to document bounds.
	SetSelection(start, end ByteOffset)

	// Highlight associates a style token with a byte range. Setting an
	// empty range removes the token.
	Highlight(style string, start, end ByteOffset)

	// Highlights returns the current style-token ranges.
	Highlights() map[string]Range
}

// MemDocument is an in-memory Document backed by a byte slice.
// All methods are thread-safe.
type MemDocument struct {
	mu         sync.RWMutex
	id         string
	text       []byte
	revision   int64
	listeners  map[int]EditListener
	nextListen int
	selStart   ByteOffset
	selEnd     ByteOffset
	highlights map[string]Range
}

// NewMemDocument creates a document with the given initial content.
func NewMemDocument(text string) *MemDocument {
	return &MemDocument{
		id:         uuid.NewString(),
		text:       []byte(text),
		listeners:  make(map[int]EditListener),
		highlights: make(map[string]Range),
	}
}

// ID returns the document identity.
func (d *MemDocument) ID() string {
	return d.id
}

// Len returns the document length in bytes.
func (d *MemDocument) Len() ByteOffset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ByteOffset(len(d.text))
}

// Revision returns a counter incremented on every mutation.
func (d *MemDocument) Revision() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// Text returns the full document content.
func (d *MemDocument) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.text)
}

// TextRange returns the text in [start, end).
func (d *MemDocument) TextRange(start, end ByteOffset) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkRange(start, end); err != nil {
		return "", err
	}
	return string(d.text[start:end]), nil
}

// Insert inserts text at offset and notifies listeners before returning.
func (d *MemDocument) Insert(offset ByteOffset, text string) (EditResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if offset < 0 || offset > ByteOffset(len(d.text)) {
		return EditResult{}, ErrOffsetOutOfRange
	}
	if text == "" {
		return EditResult{
			OldRange: NewRange(offset, offset),
			NewRange: NewRange(offset, offset),
		}, nil
	}

	var b strings.Builder
	b.Grow(len(d.text) + len(text))
	b.Write(d.text[:offset])
	b.WriteString(text)
	b.Write(d.text[offset:])
	d.text = []byte(b.String())
	d.revision++

	res := EditResult{
		OldRange: NewRange(offset, offset),
		NewRange: NewRange(offset, offset+ByteOffset(len(text))),
		Delta:    ByteOffset(len(text)),
	}
	d.notifyLocked(res)
	return res, nil
}

// Delete removes the text in [start, end) and notifies listeners before
// returning.
func (d *MemDocument) Delete(start, end ByteOffset) (EditResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkRange(start, end); err != nil {
		return EditResult{}, err
	}
	if start == end {
		return EditResult{
			OldRange: NewRange(start, end),
			NewRange: NewRange(start, start),
		}, nil
	}

	old := string(d.text[start:end])
	d.text = append(d.text[:start], d.text[end:]...)
	d.revision++

	res := EditResult{
		OldRange: NewRange(start, end),
		NewRange: NewRange(start, start),
		OldText:  old,
		Delta:    -ByteOffset(len(old)),
	}
	d.notifyLocked(res)
	return res, nil
}

// Subscribe registers an edit listener and returns an unsubscribe function.
func (d *MemDocument) Subscribe(l EditListener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextListen
	d.nextListen++
	d.listeners[id] = l

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Selection returns the current selection.
func (d *MemDocument) Selection() (ByteOffset, ByteOffset) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selStart, d.selEnd
}

// SetSelection sets the selection, clamped to document bounds.
func (d *MemDocument) SetSelection(start, end ByteOffset) {
	d.mu.Lock()
	defer d.mu.Unlock()

	max := ByteOffset(len(d.text))
	start = clamp(start, 0, max)
	end = clamp(end, 0, max)
	if start > end {
		start, end = end, start
	}
	d.selStart, d.selEnd = start, end
}

// Highlight associates a style token with a byte range.
// An empty range removes the token.
func (d *MemDocument) Highlight(style string, start, end ByteOffset) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if start >= end {
		delete(d.highlights, style)
		return
	}
	d.highlights[style] = NewRange(start, end)
}

// Highlights returns a copy of the current style-token ranges.
func (d *MemDocument) Highlights() map[string]Range {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]Range, len(d.highlights))
	for k, v := range d.highlights {
		out[k] = v
	}
	return out
}

// notifyLocked delivers an edit to all listeners (must hold lock).
func (d *MemDocument) notifyLocked(res EditResult) {
	for _, l := range d.listeners {
		l.DocumentEdited(res)
	}
	// Selection follows the same marker semantics as everything else:
	// collapse inside a deleted span, shift after the edit point.
	d.selStart = rebaseOffset(d.selStart, res)
	d.selEnd = rebaseOffset(d.selEnd, res)
}

// rebaseOffset shifts a plain offset across an edit.
func rebaseOffset(p ByteOffset, res EditResult) ByteOffset {
	s, e := res.OldRange.Start, res.OldRange.End
	switch {
	case p <= s:
		return p
	case p >= e:
		return p + res.Delta
	default:
		return s
	}
}

func (d *MemDocument) checkRange(start, end ByteOffset) error {
	if start > end {
		return ErrRangeInvalid
	}
	if start < 0 || end > ByteOffset(len(d.text)) {
		return ErrOffsetOutOfRange
	}
	return nil
}

func clamp(v, lo, hi ByteOffset) ByteOffset {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
