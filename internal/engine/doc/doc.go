// Package doc defines the document contract the transform engine operates
// against, plus an in-memory implementation suitable for hosts and tests.
//
// The engine never assumes a particular text storage model. It reads
// substrings and requests insertions and deletions at byte offsets through
// the [Document] interface; the host owns the actual text. Every mutation
// is reported synchronously to subscribed [EditListener] values before the
// mutating call returns, so offset bookkeeping (range tracking, undo
// recording) is never stale relative to a visible document state.
//
// # Core Types
//
//   - [Document]: the editing-surface contract consumed by the engine
//   - [Range]: a half-open byte range [Start, End)
//   - [EditResult]: what changed, reported to listeners
//   - [MemDocument]: mutex-guarded in-memory implementation
//
// # Thread Safety
//
// MemDocument is safe for concurrent use. Listeners are invoked with the
// document lock held and must not call back into the document.
package doc
