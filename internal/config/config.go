package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/pipette/internal/script"
	"github.com/dshills/pipette/internal/session"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PIPETTE_"

// Config holds all pipette settings.
type Config struct {
	// Tool is the external command each script is handed to.
	Tool string `toml:"tool" json:"tool"`

	// Mode selects how typed commands become programs: "print",
	// "simple", or "raw".
	Mode string `toml:"mode" json:"mode"`

	// MatchExpression guards generated rules in print and simple modes.
	MatchExpression string `toml:"match_expression" json:"match_expression"`

	// FieldSeparator overrides the tool's field separator.
	FieldSeparator string `toml:"field_separator" json:"field_separator"`

	// DefaultAction is committed when a session exits normally:
	// "replace", "insert", "copy", or "discard".
	DefaultAction string `toml:"default_action" json:"default_action"`

	// GroupUndo collapses all session edits into one undo unit.
	GroupUndo bool `toml:"group_undo" json:"group_undo"`

	// Highlights names the display styles for session regions.
	Highlights Highlights `toml:"highlights" json:"highlights"`
}

// Highlights maps session regions to host style names.
type Highlights struct {
	Command string `toml:"command" json:"command"`
	Input   string `toml:"input" json:"input"`
	Output  string `toml:"output" json:"output"`
	Error   string `toml:"error" json:"error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tool:            session.DefaultTool,
		Mode:            script.ModePrint.String(),
		MatchExpression: script.DefaultMatchExpression,
		FieldSeparator:  script.DefaultFieldSeparator,
		DefaultAction:   session.ActionReplace.String(),
		GroupUndo:       true,
		Highlights: Highlights{
			Command: "yellow",
			Input:   "blue",
			Output:  "green",
			Error:   "red",
		},
	}
}

// DefaultPath returns the standard config file location, honoring
// PIPETTE_CONFIG_DIR and XDG_CONFIG_HOME.
func DefaultPath() string {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "config.toml")
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pipette", "config.toml")
}

// Load resolves the full configuration: defaults, then the TOML file at
// path if it exists, then PIPETTE_* environment overrides. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults stand.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, &ParseError{Path: path, Message: err.Error(), Err: err}
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays PIPETTE_* environment variables.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvPrefix + "TOOL"); ok {
		c.Tool = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MODE"); ok {
		c.Mode = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MATCH_EXPRESSION"); ok {
		c.MatchExpression = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "FIELD_SEPARATOR"); ok {
		c.FieldSeparator = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "DEFAULT_ACTION"); ok {
		c.DefaultAction = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "GROUP_UNDO"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.GroupUndo = b
		}
	}
}

// Validate checks that every setting parses.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Tool) == "" {
		return ErrEmptyTool
	}
	if _, err := script.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
	if _, err := session.ParseCommitAction(c.DefaultAction); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.DefaultAction)
	}
	return nil
}

// SessionOptions converts the configuration into session options. The
// caller supplies the undo hook and result callback separately.
func (c *Config) SessionOptions() (session.Options, error) {
	mode, err := script.ParseMode(c.Mode)
	if err != nil {
		return session.Options{}, err
	}
	action, err := session.ParseCommitAction(c.DefaultAction)
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		Tool:            c.Tool,
		Mode:            mode,
		MatchExpression: c.MatchExpression,
		FieldSeparator:  c.FieldSeparator,
		DefaultAction:   action,
		GroupUndo:       c.GroupUndo,
	}, nil
}

// MarshalJSONBytes serializes the configuration for host persistence.
func (c *Config) MarshalJSONBytes() ([]byte, error) {
	out := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		out, err = sjson.Set(out, path, value)
	}
	set("tool", c.Tool)
	set("mode", c.Mode)
	set("match_expression", c.MatchExpression)
	set("field_separator", c.FieldSeparator)
	set("default_action", c.DefaultAction)
	set("group_undo", c.GroupUndo)
	set("highlights.command", c.Highlights.Command)
	set("highlights.input", c.Highlights.Input)
	set("highlights.output", c.Highlights.Output)
	set("highlights.error", c.Highlights.Error)
	if err != nil {
		return nil, fmt.Errorf("exporting config: %w", err)
	}
	return []byte(out), nil
}

// ApplyJSON overlays fields present in a JSON document onto the
// configuration. Absent fields keep their current values.
func (c *Config) ApplyJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return &ParseError{Path: "<json>", Message: "invalid JSON"}
	}
	apply := func(path string, dst *string) {
		if v := gjson.GetBytes(data, path); v.Exists() {
			*dst = v.String()
		}
	}
	apply("tool", &c.Tool)
	apply("mode", &c.Mode)
	apply("match_expression", &c.MatchExpression)
	apply("field_separator", &c.FieldSeparator)
	apply("default_action", &c.DefaultAction)
	if v := gjson.GetBytes(data, "group_undo"); v.Exists() {
		c.GroupUndo = v.Bool()
	}
	apply("highlights.command", &c.Highlights.Command)
	apply("highlights.input", &c.Highlights.Input)
	apply("highlights.output", &c.Highlights.Output)
	apply("highlights.error", &c.Highlights.Error)
	return c.Validate()
}
