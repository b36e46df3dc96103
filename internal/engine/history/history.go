package history

import (
	"errors"
	"sync"

	"github.com/dshills/pipette/internal/engine/doc"
)

// Errors returned by history operations.
var (
	// ErrNothingToUndo indicates an empty undo stack.
	ErrNothingToUndo = errors.New("nothing to undo")
)

// entry is one undoable unit: a single edit or a closed group of edits.
type entry struct {
	edits []doc.EditResult
}

// History records edits from a document and undoes them.
// All operations are thread-safe.
type History struct {
	mu    sync.Mutex
	undo  []entry
	open  *entry // group being collected, nil when not grouping
	depth int    // nested BeginGroup calls

	// suspended is set while History itself mutates the document, so
	// the undo edits are not re-recorded.
	suspended bool
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// Attach subscribes the history to a document's edit notifications and
// returns the unsubscribe function.
func (h *History) Attach(d doc.Document) func() {
	return d.Subscribe(h)
}

// DocumentEdited implements doc.EditListener.
func (h *History) DocumentEdited(res doc.EditResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.suspended {
		return
	}
	if h.open != nil {
		h.open.edits = append(h.open.edits, res)
		return
	}
	h.undo = append(h.undo, entry{edits: []doc.EditResult{res}})
}

// BeginGroup starts collecting edits into one undo unit. Nested calls are
// flattened into the outermost group.
func (h *History) BeginGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.depth++
	if h.open == nil {
		h.open = &entry{}
	}
}

// EndGroup closes the current group and pushes it onto the undo stack.
// An empty group is discarded. Calling EndGroup without a matching
// BeginGroup is a no-op.
func (h *History) EndGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.depth == 0 {
		return
	}
	h.depth--
	if h.depth > 0 {
		return
	}

	g := h.open
	h.open = nil
	if g != nil && len(g.edits) > 0 {
		h.undo = append(h.undo, *g)
	}
}

// CancelGroup closes the current group without pushing it; edits recorded
// in the group are forgotten (they still affected the document).
func (h *History) CancelGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.depth = 0
	h.open = nil
}

// DropGroupMarker discards a dangling open-group boundary without
// recording anything, for hosts whose undo bookkeeping desynchronized.
// Edits already collected in the group are pushed individually so they
// remain undoable.
func (h *History) DropGroupMarker() {
	h.mu.Lock()
	defer h.mu.Unlock()

	g := h.open
	h.open = nil
	h.depth = 0
	if g == nil {
		return
	}
	for _, e := range g.edits {
		h.undo = append(h.undo, entry{edits: []doc.EditResult{e}})
	}
}

// Undo reverts the most recent undo unit against the document. Edits in a
// group are reverted in reverse order.
func (h *History) Undo(d doc.Document) error {
	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return ErrNothingToUndo
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.suspended = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.suspended = false
		h.mu.Unlock()
	}()

	for i := len(e.edits) - 1; i >= 0; i-- {
		if err := invert(d, e.edits[i]); err != nil {
			return err
		}
	}
	return nil
}

// UndoCount returns the number of undoable units.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo)
}

// Grouping reports whether a group is currently open.
func (h *History) Grouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open != nil
}

// GroupScope starts a group and returns a handle suitable for defer.
type GroupScope struct {
	history *History
	active  bool
}

// GroupScope begins a new group scope.
func (h *History) GroupScope() *GroupScope {
	h.BeginGroup()
	return &GroupScope{history: h, active: true}
}

// End ends the group scope. Safe to call multiple times; only the first
// call has effect.
func (g *GroupScope) End() {
	if g.active {
		g.history.EndGroup()
		g.active = false
	}
}

// Cancel cancels the group scope without creating an undo unit.
func (g *GroupScope) Cancel() {
	if g.active {
		g.history.CancelGroup()
		g.active = false
	}
}

// invert applies the inverse of one edit to the document.
func invert(d doc.Document, res doc.EditResult) error {
	// Undo the insertion part first, then restore deleted text.
	if !res.NewRange.IsEmpty() && res.OldText == "" {
		_, err := d.Delete(res.NewRange.Start, res.NewRange.End)
		return err
	}
	if res.OldText != "" && res.NewRange.IsEmpty() {
		_, err := d.Insert(res.OldRange.Start, res.OldText)
		return err
	}
	// Replace: delete the new text, reinsert the old.
	if _, err := d.Delete(res.NewRange.Start, res.NewRange.End); err != nil {
		return err
	}
	_, err := d.Insert(res.OldRange.Start, res.OldText)
	return err
}
