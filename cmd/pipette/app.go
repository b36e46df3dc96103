package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/pipette/internal/config"
	"github.com/dshills/pipette/internal/engine/doc"
	"github.com/dshills/pipette/internal/engine/history"
	"github.com/dshills/pipette/internal/integration/runner"
	"github.com/dshills/pipette/internal/session"
)

// runCompleteEvent carries an applied run result back onto the tcell
// event loop.
type runCompleteEvent struct {
	tcell.EventTime
	res runner.Result
}

// App is the interactive terminal host. It owns the screen, one
// document, and at most one live session.
type App struct {
	screen tcell.Screen
	cfg    config.Config
	clip   session.Clipboard

	path string
	d    *doc.MemDocument
	hist *history.History
	reg  *session.Registry
	sess *session.Session

	detach func()

	top    int // first visible line
	cursor int // cursor line
	anchor int // selection anchor line, -1 when inactive

	dirty  bool
	status string

	styles map[string]tcell.Style
}

func newApp(path string, cfg config.Config, clip session.Clipboard) (*App, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	d := doc.NewMemDocument(string(data))
	hist := history.New()
	detach := hist.Attach(d)

	screen, err := tcell.NewScreen()
	if err != nil {
		detach()
		return nil, fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		detach()
		return nil, fmt.Errorf("initializing screen: %w", err)
	}
	screen.EnablePaste()

	a := &App{
		screen: screen,
		cfg:    cfg,
		clip:   clip,
		path:   path,
		d:      d,
		hist:   hist,
		reg:    session.NewRegistry(session.WithRunner(runner.New()), session.WithClipboard(clip)),
		detach: detach,
		anchor: -1,
		status: fmt.Sprintf("%s | v: select, t: transform, Ctrl-Q: quit", path),
	}
	a.styles = map[string]tcell.Style{
		session.HighlightCommand: styleFor(cfg.Highlights.Command),
		session.HighlightInput:   styleFor(cfg.Highlights.Input),
		session.HighlightOutput:  styleFor(cfg.Highlights.Output),
		session.HighlightError:   styleFor(cfg.Highlights.Error),
	}
	return a, nil
}

// styleFor resolves a configured color name to a display style.
func styleFor(name string) tcell.Style {
	if c, ok := tcell.ColorNames[strings.ToLower(name)]; ok {
		return tcell.StyleDefault.Foreground(c)
	}
	return tcell.StyleDefault.Bold(true)
}

// Shutdown restores the terminal. Safe to call once.
func (a *App) Shutdown() {
	if a.sess != nil {
		_ = a.sess.Abort()
		a.sess = nil
	}
	a.detach()
	a.screen.Fini()
}

// Run drives the event loop until the user quits.
func (a *App) Run() error {
	for {
		a.draw()

		switch ev := a.screen.PollEvent().(type) {
		case *tcell.EventResize:
			a.screen.Sync()
		case *runCompleteEvent:
			if ev.res.Failed() {
				a.status = fmt.Sprintf("tool failed (exit %d)", ev.res.ExitCode)
			} else {
				a.status = "run complete"
			}
		case *tcell.EventKey:
			quit, err := a.handleKey(ev)
			if err != nil {
				a.status = err.Error()
			}
			if quit {
				return nil
			}
		}
	}
}

func (a *App) handleKey(ev *tcell.EventKey) (quit bool, err error) {
	if a.sess != nil && a.sess.State() != session.StateEnded {
		return a.handleSessionKey(ev)
	}
	return a.handleBrowseKey(ev)
}

func (a *App) handleBrowseKey(ev *tcell.EventKey) (bool, error) {
	switch ev.Key() {
	case tcell.KeyCtrlQ:
		return true, nil
	case tcell.KeyCtrlS:
		return false, a.save()
	case tcell.KeyUp:
		a.moveCursor(-1)
	case tcell.KeyDown:
		a.moveCursor(1)
	case tcell.KeyEnter:
		return false, a.startSession()
	case tcell.KeyEscape:
		a.anchor = -1
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true, nil
		case 'k':
			a.moveCursor(-1)
		case 'j':
			a.moveCursor(1)
		case 'v':
			if a.anchor < 0 {
				a.anchor = a.cursor
			} else {
				a.anchor = -1
			}
		case 't':
			return false, a.startSession()
		case 'u':
			if err := a.hist.Undo(a.d); err != nil {
				return false, err
			}
			a.dirty = true
			a.status = "undone"
		}
	}
	return false, nil
}

func (a *App) handleSessionKey(ev *tcell.EventKey) (bool, error) {
	switch ev.Key() {
	case tcell.KeyCtrlQ:
		_ = a.sess.Abort()
		a.endSession("aborted")
		return true, nil
	case tcell.KeyCtrlS:
		return false, a.save()
	case tcell.KeyEscape:
		if err := a.sess.Abort(); err != nil {
			return false, err
		}
		a.endSession("aborted")
	case tcell.KeyEnter:
		if err := a.sess.Run(context.Background()); err != nil {
			return false, err
		}
		a.status = "running..."
	case tcell.KeyCtrlR:
		return false, a.commit(session.ActionReplace)
	case tcell.KeyCtrlO:
		return false, a.commit(session.ActionInsert)
	case tcell.KeyCtrlY:
		return false, a.commit(session.ActionCopy)
	case tcell.KeyCtrlD:
		err := a.sess.Exit()
		a.endSession("committed")
		a.dirty = true
		return false, err
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return false, a.eraseCommandRune()
	case tcell.KeyRune:
		r := a.sess.CommandRange()
		if _, err := a.d.Insert(r.End, string(ev.Rune())); err != nil {
			return false, err
		}
	}
	return false, nil
}

// commit applies an action and keeps the session open for further runs.
func (a *App) commit(action session.CommitAction) error {
	if err := a.sess.Commit(action); err != nil {
		return err
	}
	a.dirty = true
	a.status = fmt.Sprintf("committed (%s)", action)
	return nil
}

// eraseCommandRune removes the last typed rune from the prompt line.
func (a *App) eraseCommandRune() error {
	text, err := a.sess.CommandText()
	if err != nil || text == "" {
		return err
	}
	_, size := utf8.DecodeLastRuneInString(text)
	r := a.sess.CommandRange()
	_, err = a.d.Delete(r.End-doc.ByteOffset(size), r.End)
	return err
}

// startSession opens a session over the selected lines, or the cursor
// line when nothing is anchored.
func (a *App) startSession() error {
	opts, err := a.cfg.SessionOptions()
	if err != nil {
		return err
	}
	opts.Undo = a.hist
	opts.OnResult = func(_ *session.Session, res runner.Result) {
		ev := &runCompleteEvent{res: res}
		ev.SetEventNow()
		_ = a.screen.PostEvent(ev) // best-effort; queue may be full
	}

	start, end := a.selectedRange()
	s, err := a.reg.Start(a.d, start, end, opts)
	if err != nil {
		return err
	}
	a.sess = s
	a.anchor = -1
	a.status = fmt.Sprintf("transforming %q | Enter: run, Ctrl-R/O/Y: commit, Esc: abort", s.ExampleText)
	return nil
}

func (a *App) endSession(what string) {
	a.sess = nil
	a.status = what
	a.clampCursor()
}

// selectedRange converts the line selection to byte offsets, trailing
// line terminator included.
func (a *App) selectedRange() (doc.ByteOffset, doc.ByteOffset) {
	starts := lineStarts(a.d.Text())
	first, last := a.cursor, a.cursor
	if a.anchor >= 0 {
		if a.anchor < first {
			first = a.anchor
		}
		if a.anchor > last {
			last = a.anchor
		}
	}
	start := starts[first]
	end := a.d.Len()
	if last+1 < len(starts) {
		end = starts[last+1]
	}
	return start, end
}

func (a *App) save() error {
	if err := os.WriteFile(a.path, []byte(a.d.Text()), 0o644); err != nil {
		return fmt.Errorf("saving %s: %w", a.path, err)
	}
	a.dirty = false
	a.status = fmt.Sprintf("saved %s", a.path)
	return nil
}

func (a *App) moveCursor(delta int) {
	a.cursor += delta
	a.clampCursor()
}

func (a *App) clampCursor() {
	max := len(lineStarts(a.d.Text())) - 1
	if a.cursor > max {
		a.cursor = max
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// lineStarts returns the byte offset of every line head. A document
// always has at least one line.
func lineStarts(text string) []doc.ByteOffset {
	starts := []doc.ByteOffset{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, doc.ByteOffset(i+1))
		}
	}
	return starts
}

func (a *App) draw() {
	a.screen.Clear()
	w, h := a.screen.Size()
	if h < 2 {
		a.screen.Show()
		return
	}
	body := h - 1

	text := a.d.Text()
	starts := lineStarts(text)

	// Keep the focus line on screen.
	focus := a.focusLine(starts)
	if focus < a.top {
		a.top = focus
	}
	if focus >= a.top+body {
		a.top = focus - body + 1
	}

	selFirst, selLast := a.selectedLines()
	hl := a.d.Highlights()

	for row := 0; row < body; row++ {
		line := a.top + row
		if line >= len(starts) {
			break
		}
		start := int(starts[line])
		end := len(text)
		if line+1 < len(starts) {
			end = int(starts[line+1])
		}

		base := tcell.StyleDefault
		if a.sess == nil && a.anchor >= 0 && line >= selFirst && line <= selLast {
			base = base.Reverse(true)
		}

		col := 0
		for i := start; i < end && col < w; {
			r, size := utf8.DecodeRuneInString(text[i:])
			if r != '\n' {
				a.screen.SetContent(col, row, r, nil, a.styleAt(hl, doc.ByteOffset(i), base))
				col++
			}
			i += size
		}
	}

	a.drawStatus(w, h-1)

	// Put the hardware cursor on the prompt line while a session is
	// live, otherwise on the focus line.
	if a.sess != nil {
		line, col := locate(starts, a.sess.CommandRange().End)
		a.screen.ShowCursor(col, line-a.top)
	} else {
		a.screen.ShowCursor(0, focus-a.top)
	}
	a.screen.Show()
}

// focusLine is where the viewport follows: the prompt line during a
// session, the cursor line otherwise.
func (a *App) focusLine(starts []doc.ByteOffset) int {
	if a.sess != nil {
		line, _ := locate(starts, a.sess.CommandRange().Start)
		return line
	}
	a.clampCursor()
	return a.cursor
}

func (a *App) selectedLines() (int, int) {
	if a.anchor < 0 {
		return a.cursor, a.cursor
	}
	if a.anchor < a.cursor {
		return a.anchor, a.cursor
	}
	return a.cursor, a.anchor
}

// styleAt resolves the display style for one byte of the document.
// Command wins over previews, previews win over input.
func (a *App) styleAt(hl map[string]doc.Range, off doc.ByteOffset, base tcell.Style) tcell.Style {
	if a.sess == nil {
		return base
	}
	for _, token := range []string{
		session.HighlightCommand,
		session.HighlightOutput,
		session.HighlightError,
		session.HighlightInput,
	} {
		if r, ok := hl[token]; ok && off >= r.Start && off < r.End {
			return a.styles[token]
		}
	}
	return base
}

func (a *App) drawStatus(w, row int) {
	style := tcell.StyleDefault.Reverse(true)
	msg := a.status
	if a.dirty {
		msg = "[+] " + msg
	}
	if a.sess != nil && a.sess.Pending() {
		msg += " [running]"
	}
	for col := 0; col < w; col++ {
		r := ' '
		if col < len(msg) {
			r = rune(msg[col])
		}
		a.screen.SetContent(col, row, r, nil, style)
	}
}

// locate maps a byte offset to (line, column).
func locate(starts []doc.ByteOffset, off doc.ByteOffset) (int, int) {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return i, int(off - starts[i])
}
