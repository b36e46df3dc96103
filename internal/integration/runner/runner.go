package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Result carries everything a single tool invocation produced.
type Result struct {
	// ExitCode is the tool's numeric exit status, or -1 if the tool
	// never ran to completion.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// Err is non-nil only when the invocation itself failed (tool not
	// found, context canceled). A nonzero exit status is not an Err.
	Err error
}

// Failed reports whether the result should be routed to the error display.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Runner executes the external transformation tool through a shell.
type Runner struct {
	// Shell is the shell binary used to assemble the command line.
	Shell string

	// ShellArgs are the arguments preceding the command string.
	ShellArgs []string
}

// New creates a Runner using $SHELL, falling back to /bin/sh.
func New() *Runner {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Runner{
		Shell:     shell,
		ShellArgs: []string{"-c"},
	}
}

// Run invokes tool once with program as a single-quoted argument and input
// on standard input. The program must already be escaped for single-quoted
// interpolation (the script builder does this).
//
// Run blocks until the tool exits or ctx is canceled. On cancellation the
// child process is killed and Result.Err carries the context error.
func (r *Runner) Run(ctx context.Context, tool, program, input string) Result {
	cmdLine := fmt.Sprintf("%s '%s'", tool, program)

	cmd := exec.Command(r.Shell, append(append([]string{}, r.ShellArgs...), cmdLine)...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Err: fmt.Errorf("start %s: %w", tool, err)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return Result{
			ExitCode: exitCode(err),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	case <-ctx.Done():
		// Not required to wait for the tool; kill it so nothing leaks
		// and reap it in the background.
		_ = cmd.Process.Kill()
		go func() { <-done }()
		return Result{ExitCode: -1, Err: ctx.Err()}
	}
}

// Go runs the tool asynchronously, delivering exactly one Result on the
// returned channel.
func (r *Runner) Go(ctx context.Context, tool, program, input string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- r.Run(ctx, tool, program, input)
	}()
	return ch
}

// exitCode extracts the numeric status from a Wait error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
