// Package track maintains named byte ranges anchored in a document and
// keeps their offsets valid as the document is edited.
//
// A [Tracker] holds a set of [TrackedRange] values and rebases them on
// every document mutation using marker semantics: offsets strictly after
// an edited span shift by the net length delta, offsets strictly before
// are unaffected, and offsets exactly at an edit boundary move according
// to the range's [GrowPolicy]. Deleting a span that fully contains a
// non-empty range collapses it to a point at the edit start and marks it
// vanished; callers detect this through [TrackedRange.Vanished].
//
// Tracker implements doc.EditListener, so wiring it to a document is a
// single Subscribe call:
//
//	tr := track.NewTracker()
//	unsub := document.Subscribe(tr)
//	defer unsub()
//
//	r, err := tr.Create(document.Len(), 4, 9, track.GrowEnd)
//
// All Tracker operations are thread-safe.
package track
