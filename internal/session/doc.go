// Package session implements the interactive transformation session: the
// state machine that ties a tracked region of a document to an inline
// command prompt, runs the external tool against it, previews the result
// non-destructively, and applies a terminal commit or abort.
//
// A [Registry] enforces the invariant of at most one live session per
// document. [Registry.Start] injects an empty prompt line immediately
// before the selection and creates four tracked ranges:
//
//	command   the prompt line the user types into (grows as they type)
//	output    stdout preview, initially an empty point
//	error     stderr preview, initially an empty point
//	input     the originally selected text, never mutated until commit
//
// The ranges never overlap and the command always precedes the input in
// document order. The original text is untouched until [Session.Commit]
// is called with [ActionReplace] or [ActionInsert].
//
// # Lifecycle
//
// Active -> {Committing, Aborting} -> Ended. Commit does not end the
// session: the user may commit, keep editing the command, and run again.
// Ending is explicit, via [Session.Exit] (commit the default action, then
// tear down) or [Session.Abort] (tear down unconditionally). Teardown
// deletes the injected prompt line and any visible preview text, so the
// document is restored byte-for-byte outside committed changes.
//
// # Runs
//
// At most one tool invocation is in flight per session. [Session.Run]
// dispatches asynchronously; the completion handler becomes a no-op if
// the session ended while the run was outstanding, so a pending run can
// never mutate a document after abort.
package session
