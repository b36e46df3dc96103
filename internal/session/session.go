package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/pipette/internal/engine/doc"
	"github.com/dshills/pipette/internal/engine/track"
	"github.com/dshills/pipette/internal/integration/runner"
	"github.com/dshills/pipette/internal/script"
)

// Highlight style tokens the session maintains on the document.
const (
	HighlightCommand = "transform.command"
	HighlightInput   = "transform.input"
	HighlightOutput  = "transform.output"
	HighlightError   = "transform.error"
)

// Session is one live transformation over a document selection. It owns
// four tracked ranges; the ranges never outlive the session. All methods
// are thread-safe.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// ExampleText is the first line of the original selection, captured
	// at start for display purposes and never mutated.
	ExampleText string

	mu          sync.Mutex
	reg         *Registry
	doc         doc.Document
	tracker     *track.Tracker
	unsubscribe func()
	opts        Options
	grouped     bool

	command  *track.TrackedRange
	input    *track.TrackedRange
	output   *track.TrackedRange
	errRange *track.TrackedRange

	lastScript string
	committed  bool
	pending    bool

	state atomic.Int32
}

// layout injects the prompt line and creates the session's ranges.
// Called once from Registry.Start.
func (s *Session) layout(selStart, selEnd doc.ByteOffset) (err error) {
	if _, err = s.doc.Insert(selStart, "\n"); err != nil {
		return fmt.Errorf("insert prompt line: %w", err)
	}
	defer func() {
		// Roll the prompt line back if range creation failed before the
		// command range (which teardown otherwise uses to find it).
		if err != nil && s.command == nil {
			_, _ = s.doc.Delete(selStart, selStart+1)
		}
	}()

	// The prompt line shifted the selection one byte right.
	adj := selStart + 1
	docLen := s.doc.Len()

	// The command starts empty, at the head of the injected line, and
	// grows forward as the user types.
	if s.command, err = s.tracker.Create(docLen, selStart, selStart, track.GrowEnd); err != nil {
		return err
	}
	if s.output, err = s.tracker.Create(docLen, adj, adj, track.GrowNone); err != nil {
		return err
	}
	if s.errRange, err = s.tracker.Create(docLen, adj, adj, track.GrowNone); err != nil {
		return err
	}
	if s.input, err = s.tracker.Create(docLen, adj, selEnd+1, track.GrowNone); err != nil {
		return err
	}

	s.refreshHighlights()
	return nil
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Document returns the document this session operates on.
func (s *Session) Document() doc.Document {
	return s.doc
}

// Committed reports whether any commit action has been applied.
func (s *Session) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Pending reports whether a run is outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastScript returns the most recently built program text, or "" if no
// run has happened yet.
func (s *Session) LastScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScript
}

// CommandRange returns the current command range offsets.
func (s *Session) CommandRange() doc.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command.Range()
}

// InputRange returns the current input range offsets.
func (s *Session) InputRange() doc.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.Range()
}

// OutputRange returns the current output preview offsets.
func (s *Session) OutputRange() doc.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.Range()
}

// ErrorRange returns the current error preview offsets.
func (s *Session) ErrorRange() doc.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errRange.Range()
}

// CommandText returns the live text of the command range with a single
// trailing line terminator stripped. Returns ErrEditConflict if the
// command area was deleted by an external edit.
func (s *Session) CommandText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandTextLocked()
}

func (s *Session) commandTextLocked() (string, error) {
	if s.State() == StateEnded {
		return "", ErrSessionEnded
	}
	if s.command.Vanished() {
		return "", fmt.Errorf("command prompt: %w", ErrEditConflict)
	}
	text, err := s.doc.TextRange(s.command.Start, s.command.End)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(text, "\n"), nil
}

// InputText returns the live text of the input range.
func (s *Session) InputText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputTextLocked()
}

func (s *Session) inputTextLocked() (string, error) {
	if s.input.Vanished() {
		return "", fmt.Errorf("input region: %w", ErrEditConflict)
	}
	return s.doc.TextRange(s.input.Start, s.input.End)
}

// OutputText returns the visible stdout preview, or "" when hidden.
func (s *Session) OutputText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewTextLocked(s.output)
}

// ErrorText returns the visible stderr preview, or "" when hidden.
func (s *Session) ErrorText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previewTextLocked(s.errRange)
}

func (s *Session) previewTextLocked(r *track.TrackedRange) string {
	if r == nil || r.Vanished() || r.IsEmpty() {
		return ""
	}
	text, err := s.doc.TextRange(r.Start, r.End)
	if err != nil {
		return ""
	}
	return text
}

// SetOutput replaces the stdout preview. An empty string hides it.
func (s *Session) SetOutput(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateEnded {
		return ErrSessionEnded
	}
	if err := s.setPreviewLocked(s.output, text); err != nil {
		return err
	}
	s.refreshHighlights()
	return nil
}

// SetError replaces the stderr preview. An empty string hides it.
func (s *Session) SetError(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateEnded {
		return ErrSessionEnded
	}
	if err := s.setPreviewLocked(s.errRange, text); err != nil {
		return err
	}
	s.refreshHighlights()
	return nil
}

// setPreviewLocked replaces the document text a preview range denotes.
// The range is explicitly relocated around the new text, so no stale
// preview is ever left visible.
func (s *Session) setPreviewLocked(r *track.TrackedRange, text string) error {
	pos := r.Start
	if r.Vanished() {
		// The preview area was deleted externally; re-anchor it at the
		// head of the input region.
		pos = s.input.Start
	} else if !r.IsEmpty() {
		if _, err := s.doc.Delete(r.Start, r.End); err != nil {
			return fmt.Errorf("clear preview: %w", err)
		}
		// Deleting its whole span collapsed r at pos.
	}

	end := pos
	if text != "" {
		if _, err := s.doc.Insert(pos, text); err != nil {
			return fmt.Errorf("show preview: %w", err)
		}
		end = pos + doc.ByteOffset(len(text))
	}
	return s.tracker.Relocate(r, pos, end)
}

// Run builds a program from the current command text and dispatches one
// asynchronous tool invocation against the input region. The result is
// applied to the previews when it arrives, unless the session has ended
// by then. Returns ErrRunPending while a previous run is outstanding.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()

	if s.State() != StateActive {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	if s.pending {
		s.mu.Unlock()
		return ErrRunPending
	}

	cmdText, err := s.commandTextLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	program, err := script.Build(cmdText, s.opts.Mode, s.opts.MatchExpression, s.opts.FieldSeparator)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	inputText, err := s.inputTextLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.lastScript = program
	s.pending = true
	ch := s.reg.runner.Go(ctx, s.opts.Tool, program, inputText)
	s.mu.Unlock()

	go func() {
		s.finishRun(<-ch)
	}()
	return nil
}

// finishRun applies a completed run to the previews. It is a no-op when
// the session ended while the run was in flight.
func (s *Session) finishRun(res runner.Result) {
	s.mu.Lock()
	s.pending = false

	if s.State() != StateActive {
		s.mu.Unlock()
		return
	}

	var err error
	if res.Failed() {
		msg := res.Stderr
		if res.Err != nil {
			msg = res.Err.Error()
		}
		if err = s.setPreviewLocked(s.output, ""); err == nil {
			err = s.setPreviewLocked(s.errRange, msg)
		}
	} else {
		if err = s.setPreviewLocked(s.errRange, ""); err == nil {
			err = s.setPreviewLocked(s.output, res.Stdout)
		}
	}
	if err != nil {
		// A failure while applying previews must not leave dangling
		// state behind: fall back to a full abort.
		s.setState(StateAborting)
		s.endLocked(true)
		s.mu.Unlock()
		return
	}

	s.refreshHighlights()
	cb := s.opts.OnResult
	s.mu.Unlock()

	if cb != nil {
		cb(s, res)
	}
}

// Commit applies a terminal action using the current output preview. It
// does not end the session; the user may keep editing and re-running.
// ActionReplace and ActionInsert fail with ErrEmptyOutput when there is
// no visible output, leaving the document untouched.
func (s *Session) Commit(action CommitAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateActive {
		return ErrSessionEnded
	}
	return s.commitLocked(action)
}

func (s *Session) commitLocked(action CommitAction) error {
	out := s.previewTextLocked(s.output)

	switch action {
	case ActionDiscard:
		// No document mutation.

	case ActionCopy:
		if s.reg.clipboard == nil {
			return ErrNoClipboard
		}
		if err := s.reg.clipboard.Set(out); err != nil {
			return fmt.Errorf("copy output: %w", err)
		}

	case ActionReplace, ActionInsert:
		if out == "" {
			return ErrEmptyOutput
		}
		if s.input.Vanished() {
			return fmt.Errorf("input region: %w", ErrEditConflict)
		}

		pos := s.input.Start
		oldEnd := s.input.End
		n := doc.ByteOffset(len(out))

		if _, err := s.doc.Insert(pos, out); err != nil {
			return fmt.Errorf("apply output: %w", err)
		}

		if action == ActionReplace {
			// The original input shifted right by n; remove it so the
			// region becomes exactly the output text.
			if _, err := s.doc.Delete(pos+n, oldEnd+n); err != nil {
				return fmt.Errorf("remove replaced input: %w", err)
			}
			if err := s.tracker.Relocate(s.input, pos, pos+n); err != nil {
				return err
			}
		} else {
			// Insert keeps the original text immediately after the
			// output; the region now denotes both.
			if err := s.tracker.Relocate(s.input, pos, oldEnd+n); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown commit action %d", uint8(action))
	}

	s.committed = true

	// The preview served its purpose for this commit.
	if err := s.setPreviewLocked(s.output, ""); err != nil {
		return err
	}
	if err := s.setPreviewLocked(s.errRange, ""); err != nil {
		return err
	}
	s.refreshHighlights()
	return nil
}

// Exit commits the session's default action, then ends the session. An
// empty output is treated as nothing to commit rather than an error, so
// an untouched session exits cleanly.
func (s *Session) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateEnded {
		return nil
	}
	s.setState(StateCommitting)

	err := s.commitLocked(s.opts.DefaultAction)
	if errors.Is(err, ErrEmptyOutput) {
		err = nil
	}
	s.endLocked(true)
	return err
}

// Abort discards all pending state unconditionally and ends the session.
// The configured default action is ignored. Safe to call at any time,
// including while a run is outstanding: the run's completion becomes a
// no-op.
func (s *Session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateEnded {
		return nil
	}
	s.setState(StateAborting)
	s.endLocked(true)
	return nil
}

// End releases all session resources. Idempotent; ending an already-ended
// session is a no-op.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateEnded {
		return
	}
	s.endLocked(true)
}

// endLocked tears the session down: previews are removed, the injected
// prompt line is physically deleted if it still exists, all ranges are
// destroyed, highlights are cleared, and the undo group is closed.
// Teardown is best-effort; it never leaves partial state behind.
func (s *Session) endLocked(deregister bool) {
	if s.State() == StateEnded {
		return
	}

	if s.output != nil && !s.output.Vanished() && !s.output.IsEmpty() {
		_, _ = s.doc.Delete(s.output.Start, s.output.End)
	}
	if s.errRange != nil && !s.errRange.Vanished() && !s.errRange.IsEmpty() {
		_, _ = s.doc.Delete(s.errRange.Start, s.errRange.End)
	}

	if s.command != nil && !s.command.Vanished() {
		delStart, delEnd := s.command.Start, s.command.End
		// The injected line terminator sits just past the command text.
		if next, err := s.doc.TextRange(delEnd, delEnd+1); err == nil && next == "\n" {
			delEnd++
		}
		if delEnd > delStart {
			_, _ = s.doc.Delete(delStart, delEnd)
		}
	}

	s.tracker.Destroy(s.command)
	s.tracker.Destroy(s.input)
	s.tracker.Destroy(s.output)
	s.tracker.Destroy(s.errRange)

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	s.doc.Highlight(HighlightCommand, 0, 0)
	s.doc.Highlight(HighlightInput, 0, 0)
	s.doc.Highlight(HighlightOutput, 0, 0)
	s.doc.Highlight(HighlightError, 0, 0)

	if s.grouped {
		// An aborted session's edits net to zero; dropping the group
		// keeps the undo stack free of inert units.
		if s.State() == StateAborting {
			s.opts.Undo.CancelGroup()
		} else {
			s.opts.Undo.EndGroup()
		}
		s.grouped = false
	}

	s.setState(StateEnded)
	if deregister {
		s.reg.remove(s.doc.ID(), s)
	}
}

// refreshHighlights pushes the current range offsets to the document's
// highlight table. Vanished or empty ranges clear their token.
func (s *Session) refreshHighlights() {
	apply := func(token string, r *track.TrackedRange) {
		if r == nil || r.Vanished() {
			s.doc.Highlight(token, 0, 0)
			return
		}
		s.doc.Highlight(token, r.Start, r.End)
	}
	apply(HighlightCommand, s.command)
	apply(HighlightInput, s.input)
	apply(HighlightOutput, s.output)
	apply(HighlightError, s.errRange)
}
