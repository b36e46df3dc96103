package session

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pipette/internal/engine/doc"
	"github.com/dshills/pipette/internal/engine/history"
	"github.com/dshills/pipette/internal/integration/runner"
	"github.com/dshills/pipette/internal/script"
)

// stubRunner returns a canned result, optionally gated on a channel so
// tests can hold a run in flight.
type stubRunner struct {
	mu      sync.Mutex
	res     runner.Result
	gate    chan struct{}
	tool    string
	program string
	input   string
}

func (f *stubRunner) Go(ctx context.Context, tool, program, input string) <-chan runner.Result {
	f.mu.Lock()
	f.tool, f.program, f.input = tool, program, input
	gate := f.gate
	res := f.res
	f.mu.Unlock()

	ch := make(chan runner.Result, 1)
	go func() {
		if gate != nil {
			<-gate
		}
		ch <- res
	}()
	return ch
}

// memClip is an in-memory clipboard.
type memClip struct {
	mu   sync.Mutex
	text string
}

func (c *memClip) Set(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

// waitResult returns Options wired to signal when a run result has been
// applied.
func waitResult(opts Options) (Options, chan runner.Result) {
	done := make(chan runner.Result, 1)
	opts.OnResult = func(_ *Session, res runner.Result) {
		done <- res
	}
	return opts, done
}

func awaitResult(t *testing.T, done chan runner.Result) runner.Result {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("run result never applied")
		return runner.Result{}
	}
}

func TestStartCreatesPromptAndRanges(t *testing.T) {
	d := doc.NewMemDocument("alpha beta\ngamma delta\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, d.Len(), Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if d.Text() != "\nalpha beta\ngamma delta\n" {
		t.Errorf("prompt line not injected: %q", d.Text())
	}
	if s.ExampleText != "alpha beta" {
		t.Errorf("expected example text %q, got %q", "alpha beta", s.ExampleText)
	}
	if cr := s.CommandRange(); cr != doc.NewRange(0, 0) {
		t.Errorf("expected empty command range at 0, got %s", cr)
	}
	if ir := s.InputRange(); ir != doc.NewRange(1, 24) {
		t.Errorf("expected input range [1:24), got %s", ir)
	}
	if s.State() != StateActive {
		t.Errorf("expected active state, got %s", s.State())
	}
	if got, ok := reg.Active(d); !ok || got != s {
		t.Error("registry does not report the session as active")
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	d := doc.NewMemDocument("text\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	first, err := reg.Start(d, 0, 4, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := reg.Start(d, 0, 4, Options{}); !errors.Is(err, ErrSessionActive) {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
	if first.State() != StateActive {
		t.Error("existing session must survive a rejected start")
	}

	// A different document is unaffected.
	other := doc.NewMemDocument("other\n")
	if _, err := reg.Start(other, 0, 5, Options{}); err != nil {
		t.Errorf("independent document rejected: %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("expected 2 live sessions, got %d", reg.Count())
	}
}

func TestStartInvalidSelection(t *testing.T) {
	d := doc.NewMemDocument("abc")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	if _, err := reg.Start(d, 2, 1, Options{}); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for reversed offsets, got %v", err)
	}
	if _, err := reg.Start(d, 0, 99, Options{}); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for out-of-bounds end, got %v", err)
	}
	if d.Text() != "abc" {
		t.Errorf("failed start must not mutate the document: %q", d.Text())
	}
}

func TestStartThenEndRestoresDocument(t *testing.T) {
	const text = "line one\nline two\nline three\n"
	d := doc.NewMemDocument(text)
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 9, 18, Options{}) // "line two\n"
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s.End()
	if d.Text() != text {
		t.Errorf("document not restored:\n got %q\nwant %q", d.Text(), text)
	}
	if reg.Count() != 0 {
		t.Error("session still registered after end")
	}

	// Ending twice is a no-op.
	s.End()
	if d.Text() != text {
		t.Errorf("second end mutated the document: %q", d.Text())
	}
}

func TestTypingExtendsCommand(t *testing.T) {
	d := doc.NewMemDocument("a b\nc d\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, d.Len(), Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Simulate the user typing at the head of the prompt line.
	if _, err := d.Insert(0, "$1"); err != nil {
		t.Fatal(err)
	}

	got, err := s.CommandText()
	if err != nil {
		t.Fatalf("command text: %v", err)
	}
	if got != "$1" {
		t.Errorf("expected command %q, got %q", "$1", got)
	}
	if ir := s.InputRange(); ir.Start != 3 {
		t.Errorf("input range not shifted past typed command: %s", ir)
	}
}

func TestCommandTextStripsTrailingNewline(t *testing.T) {
	d := doc.NewMemDocument("x\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 2, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := d.Insert(0, "print $0\n"); err != nil {
		t.Fatal(err)
	}

	got, err := s.CommandText()
	if err != nil {
		t.Fatal(err)
	}
	if got != "print $0" {
		t.Errorf("expected trailing newline stripped, got %q", got)
	}
}

func TestSetOutputShowsAndClearsPreview(t *testing.T) {
	d := doc.NewMemDocument("body\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 5, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.SetOutput("PREVIEW\n"); err != nil {
		t.Fatalf("set output: %v", err)
	}
	if s.OutputText() != "PREVIEW\n" {
		t.Errorf("expected preview text, got %q", s.OutputText())
	}
	if d.Text() != "\nPREVIEW\nbody\n" {
		t.Errorf("preview not placed before input: %q", d.Text())
	}
	if in, _ := s.InputText(); in != "body\n" {
		t.Errorf("input must stay untouched by previews, got %q", in)
	}

	// Replacing the preview leaves no stale text.
	if err := s.SetOutput("X\n"); err != nil {
		t.Fatal(err)
	}
	if d.Text() != "\nX\nbody\n" {
		t.Errorf("stale preview text left behind: %q", d.Text())
	}

	if err := s.SetOutput(""); err != nil {
		t.Fatal(err)
	}
	if d.Text() != "\nbody\n" {
		t.Errorf("cleared preview still visible: %q", d.Text())
	}
	if s.OutputText() != "" {
		t.Errorf("expected hidden preview, got %q", s.OutputText())
	}
}

func TestRunRoutesStdoutOnSuccess(t *testing.T) {
	d := doc.NewMemDocument("a b\nc d\n")
	stub := &stubRunner{res: runner.Result{ExitCode: 0, Stdout: "a\nc\n"}}
	reg := NewRegistry(WithRunner(stub))

	opts, done := waitResult(Options{})
	s, err := reg.Start(d, 0, d.Len(), opts)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "$1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetError("old error"); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	awaitResult(t, done)

	if s.OutputText() != "a\nc\n" {
		t.Errorf("expected stdout preview, got %q", s.OutputText())
	}
	if s.ErrorText() != "" {
		t.Errorf("error display not cleared: %q", s.ErrorText())
	}
	if stub.input != "a b\nc d\n" {
		t.Errorf("tool fed wrong input: %q", stub.input)
	}
	if stub.tool != DefaultTool {
		t.Errorf("expected default tool, got %q", stub.tool)
	}
	if s.LastScript() == "" {
		t.Error("last script not recorded")
	}
}

func TestRunFailureRoutesStderr(t *testing.T) {
	d := doc.NewMemDocument("x y\n")
	stub := &stubRunner{res: runner.Result{ExitCode: 2, Stderr: "syntax error"}}
	reg := NewRegistry(WithRunner(stub))

	opts, done := waitResult(Options{})
	s, err := reg.Start(d, 0, d.Len(), opts)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "$("); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	awaitResult(t, done)

	if s.OutputText() != "" {
		t.Errorf("output display must stay empty, got %q", s.OutputText())
	}
	if s.ErrorText() != "syntax error" {
		t.Errorf("expected stderr on error display, got %q", s.ErrorText())
	}
	if s.State() != StateActive {
		t.Errorf("session must remain active after tool failure, got %s", s.State())
	}
}

func TestRunRefusedWhilePending(t *testing.T) {
	d := doc.NewMemDocument("x\n")
	stub := &stubRunner{res: runner.Result{ExitCode: 0, Stdout: "y\n"}, gate: make(chan struct{})}
	reg := NewRegistry(WithRunner(stub))

	opts, done := waitResult(Options{})
	s, err := reg.Start(d, 0, 2, opts)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrRunPending) {
		t.Errorf("expected ErrRunPending, got %v", err)
	}

	close(stub.gate)
	awaitResult(t, done)

	if err := s.Run(context.Background()); err != nil {
		t.Errorf("run after completion should be accepted: %v", err)
	}
	awaitResult(t, done)
}

func TestAbortWhileRunPending(t *testing.T) {
	const text = "a b\nc d\n"
	d := doc.NewMemDocument(text)
	stub := &stubRunner{res: runner.Result{ExitCode: 0, Stdout: "boom\n"}, gate: make(chan struct{})}
	reg := NewRegistry(WithRunner(stub))

	s, err := reg.Start(d, 0, d.Len(), Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if s.State() != StateEnded {
		t.Fatalf("expected ended state, got %s", s.State())
	}

	// Let the in-flight run complete; it must be a no-op.
	close(stub.gate)
	deadline := time.Now().Add(5 * time.Second)
	for s.Pending() {
		if time.Now().After(deadline) {
			t.Fatal("pending run never drained")
		}
		time.Sleep(time.Millisecond)
	}

	if d.Text() != text {
		t.Errorf("completed run mutated document after abort: %q", d.Text())
	}
}

func TestCommitReplace(t *testing.T) {
	d := doc.NewMemDocument("a b\nc d\ntrailer\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 8, Options{}) // "a b\nc d\n"
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SetOutput("a\nc\n"); err != nil {
		t.Fatal(err)
	}

	if err := s.Commit(ActionReplace); err != nil {
		t.Fatalf("commit: %v", err)
	}

	in, err := s.InputText()
	if err != nil {
		t.Fatal(err)
	}
	if in != "a\nc\n" {
		t.Errorf("input range must hold exactly the output, got %q", in)
	}
	if s.OutputText() != "" {
		t.Error("output display not cleared after commit")
	}
	if s.State() != StateActive {
		t.Errorf("commit must not end the session, got %s", s.State())
	}
	if !s.Committed() {
		t.Error("committed flag not set")
	}

	s.End()
	if d.Text() != "a\nc\ntrailer\n" {
		t.Errorf("unexpected final document: %q", d.Text())
	}
}

func TestCommitInsert(t *testing.T) {
	d := doc.NewMemDocument("body\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 5, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SetOutput("new\n"); err != nil {
		t.Fatal(err)
	}

	if err := s.Commit(ActionInsert); err != nil {
		t.Fatalf("commit: %v", err)
	}

	in, err := s.InputText()
	if err != nil {
		t.Fatal(err)
	}
	if in != "new\nbody\n" {
		t.Errorf("expected output followed by original text, got %q", in)
	}

	s.End()
	if d.Text() != "new\nbody\n" {
		t.Errorf("unexpected final document: %q", d.Text())
	}
}

func TestCommitEmptyOutput(t *testing.T) {
	d := doc.NewMemDocument("keep me\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 8, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	before := d.Text()

	if err := s.Commit(ActionReplace); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("expected ErrEmptyOutput for replace, got %v", err)
	}
	if err := s.Commit(ActionInsert); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("expected ErrEmptyOutput for insert, got %v", err)
	}

	if d.Text() != before {
		t.Errorf("failed commit mutated document: %q", d.Text())
	}
	if s.State() != StateActive {
		t.Errorf("session must stay active, got %s", s.State())
	}
}

func TestCommitCopy(t *testing.T) {
	d := doc.NewMemDocument("data\n")
	clip := &memClip{}
	reg := NewRegistry(WithRunner(&stubRunner{}), WithClipboard(clip))

	s, err := reg.Start(d, 0, 5, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SetOutput("copied\n"); err != nil {
		t.Fatal(err)
	}
	withPreview := d.Text()

	if err := s.Commit(ActionCopy); err != nil {
		t.Fatalf("commit copy: %v", err)
	}

	if clip.text != "copied\n" {
		t.Errorf("clipboard got %q", clip.text)
	}
	if d.Text() == withPreview {
		t.Error("output display should be cleared after copy")
	}
	if in, _ := s.InputText(); in != "data\n" {
		t.Errorf("copy must not touch the input region, got %q", in)
	}
}

func TestCommitCopyWithoutClipboard(t *testing.T) {
	d := doc.NewMemDocument("data\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 5, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SetOutput("x"); err != nil {
		t.Fatal(err)
	}

	if err := s.Commit(ActionCopy); !errors.Is(err, ErrNoClipboard) {
		t.Errorf("expected ErrNoClipboard, got %v", err)
	}
}

func TestExitCommitsDefaultAction(t *testing.T) {
	d := doc.NewMemDocument("old\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 4, Options{DefaultAction: ActionReplace})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SetOutput("fresh\n"); err != nil {
		t.Fatal(err)
	}

	if err := s.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}

	if s.State() != StateEnded {
		t.Errorf("expected ended state, got %s", s.State())
	}
	if d.Text() != "fresh\n" {
		t.Errorf("expected committed document, got %q", d.Text())
	}
	if reg.Count() != 0 {
		t.Error("session still registered after exit")
	}
}

func TestExitWithEmptyOutputEndsCleanly(t *testing.T) {
	const text = "untouched\n"
	d := doc.NewMemDocument(text)
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, d.Len(), Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Exit(); err != nil {
		t.Fatalf("exit with nothing to commit: %v", err)
	}
	if d.Text() != text {
		t.Errorf("document not restored: %q", d.Text())
	}
}

func TestAbortDiscardsEverything(t *testing.T) {
	const text = "a b\nc d\n"
	d := doc.NewMemDocument(text)
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, d.Len(), Options{DefaultAction: ActionReplace})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "$1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetOutput("a\nc\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetError("warning"); err != nil {
		t.Fatal(err)
	}

	if err := s.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}

	if d.Text() != text {
		t.Errorf("abort must restore the document, got %q", d.Text())
	}
	if s.State() != StateEnded {
		t.Errorf("expected ended state, got %s", s.State())
	}

	// Abort twice is a no-op.
	if err := s.Abort(); err != nil {
		t.Errorf("second abort: %v", err)
	}
}

func TestCommandDeletedExternally(t *testing.T) {
	d := doc.NewMemDocument("text\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 5, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "cmd"); err != nil {
		t.Fatal(err)
	}

	// The user deletes the whole prompt line, command text included.
	if _, err := d.Delete(0, 4); err != nil {
		t.Fatal(err)
	}

	if _, err := s.CommandText(); !errors.Is(err, ErrEditConflict) {
		t.Errorf("expected ErrEditConflict, got %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrEditConflict) {
		t.Errorf("run should surface the conflict, got %v", err)
	}
	if s.State() != StateActive {
		t.Error("conflict detection must not end the session")
	}

	// Abort still cleans up without re-deleting the missing line.
	if err := s.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if d.Text() != "text\n" {
		t.Errorf("unexpected document after abort: %q", d.Text())
	}
}

func TestGroupedUndoRevertsWholeSession(t *testing.T) {
	const text = "a b\nc d\n"
	d := doc.NewMemDocument(text)
	h := history.New()
	defer h.Attach(d)()
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, d.Len(), Options{GroupUndo: true, Undo: h})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "$1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetOutput("a\nc\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(ActionReplace); err != nil {
		t.Fatal(err)
	}
	if err := s.Exit(); err != nil {
		t.Fatal(err)
	}

	if h.UndoCount() != 1 {
		t.Fatalf("expected one grouped undo unit, got %d", h.UndoCount())
	}
	if err := h.Undo(d); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if d.Text() != text {
		t.Errorf("grouped undo did not restore the document: %q", d.Text())
	}
}

func TestHighlightsFollowSession(t *testing.T) {
	d := doc.NewMemDocument("body\n")
	reg := NewRegistry(WithRunner(&stubRunner{}))

	s, err := reg.Start(d, 0, 5, Options{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if hl := d.Highlights(); hl[HighlightInput] != doc.NewRange(1, 6) {
		t.Errorf("input highlight wrong: %v", hl[HighlightInput])
	}

	if err := s.SetOutput("OUT\n"); err != nil {
		t.Fatal(err)
	}
	if hl := d.Highlights(); hl[HighlightOutput] != doc.NewRange(1, 5) {
		t.Errorf("output highlight wrong: %v", hl[HighlightOutput])
	}

	s.End()
	if hl := d.Highlights(); len(hl) != 0 {
		t.Errorf("highlights not cleared on end: %v", hl)
	}
}

// TestScenarioPrintMode runs the full pipeline against a real awk.
func TestScenarioPrintMode(t *testing.T) {
	if _, err := exec.LookPath("awk"); err != nil {
		t.Skipf("awk not available: %v", err)
	}

	d := doc.NewMemDocument("a b\nc d\n")
	reg := NewRegistry(WithRunner(runner.New()))

	opts, done := waitResult(Options{Mode: script.ModePrint})
	s, err := reg.Start(d, 0, d.Len(), opts)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "$1"); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	res := awaitResult(t, done)
	if res.ExitCode != 0 {
		t.Fatalf("awk failed: %d %q", res.ExitCode, res.Stderr)
	}

	if s.OutputText() != "a\nc\n" {
		t.Fatalf("expected %q, got %q", "a\nc\n", s.OutputText())
	}

	if err := s.Commit(ActionReplace); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Exit(); err != nil {
		t.Fatalf("exit: %v", err)
	}

	if d.Text() != "a\nc\n" {
		t.Errorf("expected transformed region, got %q", d.Text())
	}
}

// TestScenarioSimpleMode verifies NF counting with blank-line passthrough.
func TestScenarioSimpleMode(t *testing.T) {
	if _, err := exec.LookPath("awk"); err != nil {
		t.Skipf("awk not available: %v", err)
	}

	d := doc.NewMemDocument("a b c\n\nd e\n")
	reg := NewRegistry(WithRunner(runner.New()))

	opts, done := waitResult(Options{Mode: script.ModeSimple})
	s, err := reg.Start(d, 0, d.Len(), opts)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := d.Insert(0, "print NF"); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	res := awaitResult(t, done)
	if res.ExitCode != 0 {
		t.Fatalf("awk failed: %d %q", res.ExitCode, res.Stderr)
	}

	if s.OutputText() != "3\n\n2\n" {
		t.Errorf("expected field counts with blank passthrough, got %q", s.OutputText())
	}
}
