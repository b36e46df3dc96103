package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// ErrNoBackend indicates no usable clipboard tool was found.
var ErrNoBackend = errors.New("no clipboard tool available")

// Memory is an in-process clipboard.
type Memory struct {
	mu   sync.Mutex
	text string
}

// Set stores text.
func (m *Memory) Set(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

// Get returns the stored text.
func (m *Memory) Get() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Command pipes text to an external clipboard tool.
type Command struct {
	path string
	args []string
}

// candidate tools in preference order.
var candidates = []struct {
	name string
	args []string
}{
	{"pbcopy", nil},
	{"wl-copy", nil},
	{"xclip", []string{"-selection", "clipboard"}},
	{"xsel", []string{"--clipboard", "--input"}},
}

// NewCommand probes for a clipboard tool on PATH. Returns ErrNoBackend
// when none is installed.
func NewCommand() (*Command, error) {
	for _, c := range candidates {
		if path, err := exec.LookPath(c.name); err == nil {
			return &Command{path: path, args: c.args}, nil
		}
	}
	return nil, ErrNoBackend
}

// Set writes text to the system clipboard via the probed tool.
func (c *Command) Set(text string) error {
	cmd := exec.Command(c.path, c.args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard tool %s: %w", c.path, err)
	}
	return nil
}

// OSC52 writes the clipboard through a terminal escape sequence, which
// reaches the local clipboard even over SSH when the terminal allows it.
type OSC52 struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOSC52 wraps the terminal's output stream.
func NewOSC52(w io.Writer) *OSC52 {
	return &OSC52{w: w}
}

// Set emits OSC 52 with the base64-encoded text.
func (o *OSC52) Set(text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	enc := base64.StdEncoding.EncodeToString([]byte(text))
	if _, err := fmt.Fprintf(o.w, "\x1b]52;c;%s\x07", enc); err != nil {
		return fmt.Errorf("write osc52: %w", err)
	}
	return nil
}
