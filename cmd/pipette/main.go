// Package main is the entry point for the pipette terminal host.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dshills/pipette/internal/config"
	"github.com/dshills/pipette/internal/host/clipboard"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}
	if opts.tool != "" {
		cfg.Tool = opts.tool
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Prefer a system clipboard tool; fall back to OSC 52 so copies
	// still work over SSH.
	var clip interface{ Set(string) error }
	if c, err := clipboard.NewCommand(); err == nil {
		clip = c
	} else {
		clip = clipboard.NewOSC52(os.Stdout)
	}

	app, err := newApp(opts.path, cfg, clip)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer app.Shutdown()

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type cliOptions struct {
	configPath string
	tool       string
	mode       string
	path       string
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.tool, "tool", "", "Override the transformation tool")
	flag.StringVar(&opts.mode, "mode", "", "Override the script mode (print, simple, raw)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Pipette - interactive region transformation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pipette [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  j/k or arrows   Move, v to anchor a selection\n")
		fmt.Fprintf(os.Stderr, "  Enter or t      Start a session on the selected lines\n")
		fmt.Fprintf(os.Stderr, "  Enter           Run the typed command (in a session)\n")
		fmt.Fprintf(os.Stderr, "  Ctrl-R/O/Y      Commit: replace, insert, copy\n")
		fmt.Fprintf(os.Stderr, "  Ctrl-D          Exit session with the default action\n")
		fmt.Fprintf(os.Stderr, "  Esc             Abort session, Ctrl-S save, Ctrl-Q quit\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("Pipette %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.path = flag.Arg(0)
	return opts
}
