package doc

import "fmt"

// ByteOffset represents a byte position in a document.
type ByteOffset = int64

// Range represents a byte range in a document.
// Start is inclusive, End is exclusive: [Start, End).
type Range struct {
	Start ByteOffset // Inclusive start position
	End   ByteOffset // Exclusive end position
}

// NewRange creates a new Range from start and end offsets.
func NewRange(start, end ByteOffset) Range {
	return Range{Start: start, End: end}
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Len returns the length of the range in bytes.
func (r Range) Len() ByteOffset {
	return r.End - r.Start
}

// IsEmpty returns true if the range has zero length.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// IsValid returns true if the range is valid (Start <= End).
func (r Range) IsValid() bool {
	return r.Start <= r.End
}

// Contains returns true if the given offset is within the range.
func (r Range) Contains(offset ByteOffset) bool {
	return offset >= r.Start && offset < r.End
}

// Overlaps returns true if this range overlaps with another range.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Edit represents a text edit operation: replace Range with NewText.
// An empty Range is a pure insertion; empty NewText is a pure deletion.
type Edit struct {
	Range   Range  // The range to replace
	NewText string // The replacement text
}

// Delta returns the change in document length caused by this edit.
func (e Edit) Delta() ByteOffset {
	return ByteOffset(len(e.NewText)) - e.Range.Len()
}

// EditResult describes an applied edit. It is delivered to edit listeners
// and carries enough information to rebase offsets or invert the edit.
type EditResult struct {
	OldRange Range      // The original range that was modified
	NewRange Range      // The resulting range after the edit
	OldText  string     // The text that was removed (if any)
	Delta    ByteOffset // Change in document length
}
