package config

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by configuration validation.
var (
	// ErrEmptyTool indicates the tool command resolved to an empty string.
	ErrEmptyTool = errors.New("tool command is empty")

	// ErrUnknownAction indicates an unrecognized default commit action.
	ErrUnknownAction = errors.New("unknown default action")

	// ErrUnknownMode indicates an unrecognized script mode.
	ErrUnknownMode = errors.New("unknown script mode")
)

// ParseError reports a malformed configuration file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
