package session

import (
	"fmt"
	"strings"
)

// CommitAction is the terminal action applied when committing a session.
// The zero value is ActionReplace, the configured default.
type CommitAction uint8

const (
	// ActionReplace replaces the input region with the output text.
	ActionReplace CommitAction = iota
	// ActionInsert inserts the output text before the input region,
	// leaving the original text in place.
	ActionInsert
	// ActionCopy places the output text on the clipboard without
	// touching the document.
	ActionCopy
	// ActionDiscard performs no action.
	ActionDiscard
)

// String returns the action name.
func (a CommitAction) String() string {
	switch a {
	case ActionReplace:
		return "replace"
	case ActionInsert:
		return "insert"
	case ActionCopy:
		return "copy"
	case ActionDiscard:
		return "discard"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseCommitAction converts an action name to a CommitAction.
func ParseCommitAction(s string) (CommitAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace", "":
		return ActionReplace, nil
	case "insert":
		return ActionInsert, nil
	case "copy":
		return ActionCopy, nil
	case "discard":
		return ActionDiscard, nil
	default:
		return ActionReplace, fmt.Errorf("unknown commit action %q", s)
	}
}

// State represents a session's lifecycle state.
type State int32

const (
	// StateActive indicates the session is live and accepting runs.
	StateActive State = iota
	// StateCommitting indicates a terminal commit is being applied.
	StateCommitting
	// StateAborting indicates an abort is in progress.
	StateAborting
	// StateEnded is terminal: all ranges are released and the prompt
	// line has been removed.
	StateEnded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitting:
		return "committing"
	case StateAborting:
		return "aborting"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}
