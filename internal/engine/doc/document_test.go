package doc

import (
	"errors"
	"testing"
)

func TestNewMemDocument(t *testing.T) {
	d := NewMemDocument("hello")

	if d.Text() != "hello" {
		t.Errorf("expected %q, got %q", "hello", d.Text())
	}
	if d.Len() != 5 {
		t.Errorf("expected length 5, got %d", d.Len())
	}
	if d.ID() == "" {
		t.Error("expected non-empty document ID")
	}
}

func TestInsert(t *testing.T) {
	d := NewMemDocument("hello world")

	res, err := d.Insert(5, ",")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if d.Text() != "hello, world" {
		t.Errorf("expected %q, got %q", "hello, world", d.Text())
	}
	if res.NewRange != NewRange(5, 6) {
		t.Errorf("unexpected new range %s", res.NewRange)
	}
	if res.Delta != 1 {
		t.Errorf("expected delta 1, got %d", res.Delta)
	}
}

func TestInsertOutOfRange(t *testing.T) {
	d := NewMemDocument("abc")

	if _, err := d.Insert(4, "x"); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
	if _, err := d.Insert(-1, "x"); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	d := NewMemDocument("hello, world")

	res, err := d.Delete(5, 7)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if d.Text() != "helloworld" {
		t.Errorf("expected %q, got %q", "helloworld", d.Text())
	}
	if res.OldText != ", " {
		t.Errorf("expected old text %q, got %q", ", ", res.OldText)
	}
	if res.Delta != -2 {
		t.Errorf("expected delta -2, got %d", res.Delta)
	}
}

func TestDeleteInvalidRange(t *testing.T) {
	d := NewMemDocument("abc")

	if _, err := d.Delete(2, 1); !errors.Is(err, ErrRangeInvalid) {
		t.Errorf("expected ErrRangeInvalid, got %v", err)
	}
	if _, err := d.Delete(0, 4); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestTextRange(t *testing.T) {
	d := NewMemDocument("one two three")

	got, err := d.TextRange(4, 7)
	if err != nil {
		t.Fatalf("TextRange failed: %v", err)
	}
	if got != "two" {
		t.Errorf("expected %q, got %q", "two", got)
	}
}

type recordingListener struct {
	edits []EditResult
}

func (r *recordingListener) DocumentEdited(res EditResult) {
	r.edits = append(r.edits, res)
}

func TestSubscribeNotifiesSynchronously(t *testing.T) {
	d := NewMemDocument("abc")
	l := &recordingListener{}
	unsub := d.Subscribe(l)

	if _, err := d.Insert(1, "xy"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Delete(0, 1); err != nil {
		t.Fatal(err)
	}

	if len(l.edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(l.edits))
	}
	if l.edits[0].NewRange != NewRange(1, 3) {
		t.Errorf("unexpected insert notification: %+v", l.edits[0])
	}
	if l.edits[1].OldText != "a" {
		t.Errorf("unexpected delete notification: %+v", l.edits[1])
	}

	unsub()
	if _, err := d.Insert(0, "z"); err != nil {
		t.Fatal(err)
	}
	if len(l.edits) != 2 {
		t.Error("listener notified after unsubscribe")
	}
}

func TestNoOpEditsDoNotNotify(t *testing.T) {
	d := NewMemDocument("abc")
	l := &recordingListener{}
	d.Subscribe(l)

	if _, err := d.Insert(1, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Delete(1, 1); err != nil {
		t.Fatal(err)
	}

	if len(l.edits) != 0 {
		t.Errorf("expected no notifications, got %d", len(l.edits))
	}
	if d.Revision() != 0 {
		t.Errorf("expected revision 0, got %d", d.Revision())
	}
}

func TestSelectionFollowsEdits(t *testing.T) {
	d := NewMemDocument("one two three")
	d.SetSelection(4, 7) // "two"

	if _, err := d.Insert(0, ">> "); err != nil {
		t.Fatal(err)
	}

	start, end := d.Selection()
	if start != 7 || end != 10 {
		t.Errorf("expected selection [7,10), got [%d,%d)", start, end)
	}

	// Deleting a span containing the selection collapses it.
	if _, err := d.Delete(3, 13); err != nil {
		t.Fatal(err)
	}
	start, end = d.Selection()
	if start != 3 || end != 3 {
		t.Errorf("expected collapsed selection at 3, got [%d,%d)", start, end)
	}
}

func TestSetSelectionClamps(t *testing.T) {
	d := NewMemDocument("abc")
	d.SetSelection(-5, 99)

	start, end := d.Selection()
	if start != 0 || end != 3 {
		t.Errorf("expected [0,3), got [%d,%d)", start, end)
	}
}

func TestHighlights(t *testing.T) {
	d := NewMemDocument("abcdef")

	d.Highlight("transform.input", 1, 4)
	hl := d.Highlights()
	if hl["transform.input"] != NewRange(1, 4) {
		t.Errorf("unexpected highlight range: %s", hl["transform.input"])
	}

	d.Highlight("transform.input", 0, 0)
	if _, ok := d.Highlights()["transform.input"]; ok {
		t.Error("expected highlight removed by empty range")
	}
}

func TestRangeHelpers(t *testing.T) {
	r := NewRange(2, 5)

	if r.Len() != 3 {
		t.Errorf("expected len 3, got %d", r.Len())
	}
	if r.IsEmpty() {
		t.Error("range should not be empty")
	}
	if !r.Contains(2) || r.Contains(5) {
		t.Error("half-open containment violated")
	}
	if !r.Overlaps(NewRange(4, 9)) {
		t.Error("expected overlap")
	}
	if r.Overlaps(NewRange(5, 9)) {
		t.Error("adjacent ranges should not overlap")
	}
	if NewRange(3, 2).IsValid() {
		t.Error("reversed range should be invalid")
	}
}
