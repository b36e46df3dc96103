// Package history records document edits and undoes them, with support
// for grouping several edits into one atomic undo unit.
//
// A [History] subscribes to a document's edit notifications and pushes an
// invertible record for every mutation. While a group is open (between
// BeginGroup and EndGroup) all recorded edits undo together. A transform
// session brackets its document mutations this way so one undo removes
// the prompt line, previews, and committed text in a single step.
//
// [History.GroupScope] provides defer-friendly scoping:
//
//	defer h.GroupScope().End()
//	// ... multiple edits ...
//
// If the host's undo bookkeeping desynchronizes (a group was opened but
// its edits were already undone by other means), [History.DropGroupMarker]
// discards the dangling group boundary without touching the document.
package history
