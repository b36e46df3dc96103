package track

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/pipette/internal/engine/doc"
)

// Errors returned by tracker operations.
var (
	// ErrInvalidRange indicates malformed or out-of-bounds offsets.
	ErrInvalidRange = errors.New("invalid range")

	// ErrRangeNotTracked indicates the range is not registered with this
	// tracker (or was already destroyed).
	ErrRangeNotTracked = errors.New("range not tracked")
)

// GrowPolicy controls how a range reacts to insertions landing exactly on
// one of its boundaries.
type GrowPolicy uint8

const (
	// GrowNone never absorbs boundary insertions; the range is pushed
	// aside instead.
	GrowNone GrowPolicy = 0

	// GrowStart absorbs text inserted exactly at the start offset,
	// extending the range backward over it.
	GrowStart GrowPolicy = 1 << 0

	// GrowEnd absorbs text inserted exactly at the end offset, extending
	// the range forward over it. Ranges holding live user input (such as
	// a prompt line) want this so typing at the end keeps extending them.
	GrowEnd GrowPolicy = 1 << 1
)

// String returns a human-readable policy name.
func (p GrowPolicy) String() string {
	switch p {
	case GrowNone:
		return "none"
	case GrowStart:
		return "start"
	case GrowEnd:
		return "end"
	case GrowStart | GrowEnd:
		return "both"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// TrackedRange is a byte range whose offsets are kept valid across
// document edits by its owning Tracker. Offsets must only be read on the
// control thread that applies document mutations, or through Tracker
// accessors.
type TrackedRange struct {
	// ID uniquely identifies the range.
	ID string

	// Start and End delimit the half-open byte range [Start, End).
	Start doc.ByteOffset
	End   doc.ByteOffset

	// Policy controls boundary-insertion absorption.
	Policy GrowPolicy

	vanished bool
}

// Range returns the current offsets as a doc.Range.
func (r *TrackedRange) Range() doc.Range {
	return doc.NewRange(r.Start, r.End)
}

// Len returns the current length of the range in bytes.
func (r *TrackedRange) Len() doc.ByteOffset {
	return r.End - r.Start
}

// IsEmpty returns true if the range has zero length.
func (r *TrackedRange) IsEmpty() bool {
	return r.Start == r.End
}

// Vanished reports whether a deletion fully swallowed this range. A
// vanished range has collapsed to a point and no longer denotes any text;
// callers should treat it as gone.
func (r *TrackedRange) Vanished() bool {
	return r.vanished
}

// String returns a human-readable representation of the range.
func (r *TrackedRange) String() string {
	if r.vanished {
		return fmt.Sprintf("[%d:%d) grow=%s (vanished)", r.Start, r.End, r.Policy)
	}
	return fmt.Sprintf("[%d:%d) grow=%s", r.Start, r.End, r.Policy)
}

// Tracker maintains a set of tracked ranges for one document.
// It implements doc.EditListener so it can be subscribed directly to a
// document's edit notifications. All operations are thread-safe.
type Tracker struct {
	mu     sync.RWMutex
	ranges map[string]*TrackedRange
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ranges: make(map[string]*TrackedRange)}
}

// Create registers a new tracked range. docLen is the current document
// length, used for bounds validation. Returns ErrInvalidRange if
// start > end or the offsets fall outside [0, docLen].
func (t *Tracker) Create(docLen, start, end doc.ByteOffset, policy GrowPolicy) (*TrackedRange, error) {
	if start > end {
		return nil, fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, start, end)
	}
	if start < 0 || end > docLen {
		return nil, fmt.Errorf("%w: [%d:%d) outside document of %d bytes", ErrInvalidRange, start, end, docLen)
	}

	r := &TrackedRange{
		ID:     uuid.NewString(),
		Start:  start,
		End:    end,
		Policy: policy,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ranges[r.ID] = r
	return r, nil
}

// Destroy releases a tracked range. It does not delete document text.
// Destroying an unknown or already-destroyed range is a no-op.
func (t *Tracker) Destroy(r *TrackedRange) {
	if r == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ranges, r.ID)
}

// Relocate moves a tracked range to new offsets, clearing any vanished
// state. The session layer uses this after edits whose placement it knows
// exactly (preview replacement, commit insertion).
func (t *Tracker) Relocate(r *TrackedRange, start, end doc.ByteOffset) error {
	if start > end || start < 0 {
		return fmt.Errorf("%w: [%d:%d)", ErrInvalidRange, start, end)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ranges[r.ID]; !ok {
		return ErrRangeNotTracked
	}
	r.Start, r.End = start, end
	r.vanished = false
	return nil
}

// Ranges returns the tracked ranges ordered by start offset.
func (t *Tracker) Ranges() []*TrackedRange {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*TrackedRange, 0, len(t.ranges))
	for _, r := range t.ranges {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// Count returns the number of tracked ranges.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ranges)
}

// DocumentEdited implements doc.EditListener by rebasing every tracked
// range across the reported edit.
func (t *Tracker) DocumentEdited(res doc.EditResult) {
	inserted := res.NewRange.Len()
	t.ApplyEdit(res.OldRange.Start, res.OldRange.End, inserted)
}

// ApplyEdit rebases all tracked ranges for a mutation that replaced
// [editStart, editEnd) with insertedLen bytes. It must be invoked after
// every document mutation; subscribing the tracker to the document does
// this automatically.
func (t *Tracker) ApplyEdit(editStart, editEnd, insertedLen doc.ByteOffset) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if editEnd > editStart {
		for _, r := range t.ranges {
			applyDelete(r, editStart, editEnd)
		}
	}
	if insertedLen > 0 {
		for _, r := range t.ranges {
			applyInsert(r, editStart, insertedLen)
		}
	}
}

// applyDelete rebases one range across the deletion of [s, e).
func applyDelete(r *TrackedRange, s, e doc.ByteOffset) {
	// A deletion fully containing a non-empty range removes it: the
	// range collapses to a point at the edit start and is flagged so
	// callers can detect the conflict.
	if !r.IsEmpty() && r.Start >= s && r.End <= e {
		r.Start, r.End = s, s
		r.vanished = true
		return
	}
	r.Start = deleteOffset(r.Start, s, e)
	r.End = deleteOffset(r.End, s, e)
}

// deleteOffset shifts one offset across the deletion of [s, e).
func deleteOffset(p, s, e doc.ByteOffset) doc.ByteOffset {
	switch {
	case p <= s:
		return p
	case p >= e:
		return p - (e - s)
	default:
		return s
	}
}

// applyInsert rebases one range across an insertion of n bytes at s.
func applyInsert(r *TrackedRange, s, n doc.ByteOffset) {
	if r.IsEmpty() {
		// An empty range is a single point; move both offsets together
		// so Start <= End always holds.
		if r.Start < s {
			return
		}
		if r.Start > s {
			r.Start += n
			r.End += n
			return
		}
		switch {
		case r.Policy&GrowEnd != 0:
			r.End += n // absorb forward from the point
		case r.Policy&GrowStart != 0:
			// absorb backward: the point stays put and the inserted
			// text lands inside by extending the end past it
			r.End += n
		default:
			r.Start += n
			r.End += n
		}
		return
	}

	switch {
	case r.Start > s:
		r.Start += n
	case r.Start == s && r.Policy&GrowStart == 0:
		r.Start += n
	}
	switch {
	case r.End > s:
		r.End += n
	case r.End == s && r.Policy&GrowEnd != 0:
		r.End += n
	}
}
