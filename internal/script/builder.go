package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors returned by script building.
var (
	// ErrUnknownMode indicates an unrecognized authoring mode.
	ErrUnknownMode = errors.New("unknown script mode")
)

// Mode selects how raw command text is translated into an awk program.
type Mode uint8

const (
	// ModePrint rewrites free text with field references into a print
	// statement. This is the default mode.
	ModePrint Mode = iota
	// ModeSimple wraps the command in a guarded rule as an action body.
	ModeSimple
	// ModeRaw uses the command verbatim as the full program.
	ModeRaw
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePrint:
		return "print"
	case ModeSimple:
		return "simple"
	case ModeRaw:
		return "raw"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "print", "":
		return ModePrint, nil
	case "simple":
		return ModeSimple, nil
	case "raw":
		return ModeRaw, nil
	default:
		return ModePrint, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// DefaultFieldSeparator is awk's native field separator.
const DefaultFieldSeparator = " "

// DefaultMatchExpression guards the generated rule when the caller
// supplies none. Empty lines are excluded because the baseline rule
// already prints them unchanged.
const DefaultMatchExpression = "$0 !~ /^$/"

// baselineRule passes blank lines through untouched.
const baselineRule = "$0 ~ /^$/ { print }"

// fieldRef matches positional field references ($1, $2, ...) and $NF.
var fieldRef = regexp.MustCompile(`\$(?:[0-9]+|NF)`)

// Build assembles an executable awk program from raw command text.
//
// matchExpr guards the generated rule in print and simple mode; when
// empty, DefaultMatchExpression is used. A field-separator initialization
// clause is prepended when fieldSep differs from the single-space default.
// The returned program is already escaped for single-quoted shell
// interpolation.
func Build(raw string, mode Mode, matchExpr, fieldSep string) (string, error) {
	var b strings.Builder

	if fieldSep != "" && fieldSep != DefaultFieldSeparator {
		fmt.Fprintf(&b, "BEGIN { FS = \"%s\" }\n", escapeAwkString(fieldSep))
	}

	switch mode {
	case ModeRaw:
		b.WriteString(raw)
	case ModeSimple:
		writeGuarded(&b, matchExpr, raw)
	case ModePrint:
		writeGuarded(&b, matchExpr, printBody(raw))
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownMode, uint8(mode))
	}

	// The runner hands the program to the shell inside single quotes.
	return strings.ReplaceAll(b.String(), "'", `'\''`), nil
}

// writeGuarded emits the baseline blank-line rule followed by the guarded
// rule containing body.
func writeGuarded(b *strings.Builder, matchExpr, body string) {
	guard := strings.TrimSpace(matchExpr)
	if guard == "" {
		guard = DefaultMatchExpression
	}
	b.WriteString(baselineRule)
	b.WriteString("\n")
	b.WriteString(guard)
	b.WriteString(" { ")
	b.WriteString(body)
	b.WriteString(" }")
}

// printBody rewrites free text with field references into a print
// statement. The transformation order matters: backslashes first, then
// double quotes, then field references are moved outside the string
// literal, then embedded newlines become line continuations.
func printBody(raw string) string {
	s := strings.ReplaceAll(raw, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = fieldRef.ReplaceAllString(s, `"${0}"`)
	s = strings.ReplaceAll(s, "\n", "\\\n")
	return `print "` + s + `"`
}

// escapeAwkString escapes text for inclusion in an awk string literal.
func escapeAwkString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
