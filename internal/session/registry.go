package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/pipette/internal/engine/doc"
	"github.com/dshills/pipette/internal/engine/track"
	"github.com/dshills/pipette/internal/integration/runner"
	"github.com/dshills/pipette/internal/script"
)

// DefaultTool is the external transformation tool used when Options.Tool
// is empty.
const DefaultTool = "awk"

// Clipboard places text on the host's clipboard equivalent.
type Clipboard interface {
	Set(text string) error
}

// UndoGrouper brackets a session's document mutations into one undo unit.
type UndoGrouper interface {
	BeginGroup()
	EndGroup()
	CancelGroup()
}

// ScriptRunner dispatches one asynchronous tool invocation. It is
// satisfied by *runner.Runner.
type ScriptRunner interface {
	Go(ctx context.Context, tool, program, input string) <-chan runner.Result
}

// Options configures one session at start time.
type Options struct {
	// Tool is the external executable name. Defaults to DefaultTool.
	Tool string

	// Mode selects how command text becomes a program.
	Mode script.Mode

	// MatchExpression guards the generated rule in print/simple mode.
	MatchExpression string

	// FieldSeparator overrides awk's field separator when not " ".
	FieldSeparator string

	// DefaultAction is committed by Exit. Zero value is ActionReplace.
	DefaultAction CommitAction

	// GroupUndo brackets all session mutations in one undo group when
	// Undo is also set.
	GroupUndo bool

	// Undo is the host's undo-grouping hook. May be nil.
	Undo UndoGrouper

	// OnResult, when set, is invoked after a run's result has been
	// applied to the previews (or discarded because the session ended).
	// It is called without internal locks held.
	OnResult func(s *Session, res runner.Result)
}

// Registry tracks live sessions keyed by document identity and enforces
// at most one session per document. All operations are thread-safe.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	runner    ScriptRunner
	clipboard Clipboard
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRunner sets the runner used for tool invocations.
func WithRunner(r ScriptRunner) RegistryOption {
	return func(reg *Registry) { reg.runner = r }
}

// WithClipboard sets the clipboard used by ActionCopy.
func WithClipboard(c Clipboard) RegistryOption {
	return func(reg *Registry) { reg.clipboard = c }
}

// NewRegistry creates a session registry. Without options it executes
// tools through a default shell runner and has no clipboard.
func NewRegistry(opts ...RegistryOption) *Registry {
	reg := &Registry{
		sessions: make(map[string]*Session),
		runner:   runner.New(),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Active returns the live session for a document, if any.
func (reg *Registry) Active(d doc.Document) (*Session, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s, ok := reg.sessions[d.ID()]
	return s, ok
}

// Count returns the number of live sessions.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}

// Start begins a transformation session over the selection
// [selStart, selEnd) of d. It inserts an empty prompt line immediately
// before the selection and registers the session's four tracked ranges.
//
// Returns ErrSessionActive if d already has a live session, or
// ErrInvalidSelection for out-of-bounds offsets. Any failure during setup
// rolls back cleanly, leaving no partial session state behind.
func (reg *Registry) Start(d doc.Document, selStart, selEnd doc.ByteOffset, opts Options) (*Session, error) {
	if selStart > selEnd || selStart < 0 || selEnd > d.Len() {
		return nil, fmt.Errorf("%w: [%d:%d) in document of %d bytes",
			ErrInvalidSelection, selStart, selEnd, d.Len())
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.sessions[d.ID()]; ok {
		return nil, ErrSessionActive
	}

	if opts.Tool == "" {
		opts.Tool = DefaultTool
	}
	if opts.FieldSeparator == "" {
		opts.FieldSeparator = script.DefaultFieldSeparator
	}

	selected, err := d.TextRange(selStart, selEnd)
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}

	s := &Session{
		ID:          uuid.NewString(),
		reg:         reg,
		doc:         d,
		tracker:     track.NewTracker(),
		opts:        opts,
		ExampleText: firstLine(selected),
	}
	s.setState(StateActive)

	if opts.GroupUndo && opts.Undo != nil {
		opts.Undo.BeginGroup()
		s.grouped = true
	}
	s.unsubscribe = d.Subscribe(s.tracker)

	if err := s.layout(selStart, selEnd); err != nil {
		// No partial session state: tear everything down again.
		s.setState(StateAborting)
		s.mu.Lock()
		s.endLocked(false)
		s.mu.Unlock()
		return nil, fmt.Errorf("start session: %w", err)
	}

	reg.sessions[d.ID()] = s
	return s, nil
}

// remove drops a session from the registry. Called during teardown.
func (reg *Registry) remove(docID string, s *Session) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.sessions[docID]; ok && cur == s {
		delete(reg.sessions, docID)
	}
}

// firstLine returns text up to (not including) the first line terminator.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
