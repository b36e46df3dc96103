package session

import "errors"

// Errors returned by session operations.
var (
	// ErrSessionActive is returned by Start when the document already
	// has a live session. The existing session continues undisturbed.
	ErrSessionActive = errors.New("transform session already active for document")

	// ErrSessionEnded is returned by operations on an ended session.
	ErrSessionEnded = errors.New("transform session has ended")

	// ErrRunPending is returned by Run while a previous run is still
	// outstanding.
	ErrRunPending = errors.New("a run is already pending")

	// ErrEmptyOutput is returned by Commit with ActionReplace or
	// ActionInsert when there is no output to apply. The session stays
	// active and the document is not mutated.
	ErrEmptyOutput = errors.New("no output to commit")

	// ErrEditConflict indicates a tracked range vanished because an
	// external edit deleted it (for example, the user removed the prompt
	// line directly). The failed operation is safe to retry after
	// aborting the session.
	ErrEditConflict = errors.New("session range was removed by an external edit")

	// ErrNoClipboard is returned by Commit with ActionCopy when the
	// registry has no clipboard configured.
	ErrNoClipboard = errors.New("no clipboard configured")

	// ErrInvalidSelection indicates Start was called with offsets
	// outside the document or with start > end.
	ErrInvalidSelection = errors.New("invalid selection")
)
