// Package script converts raw command text into an executable awk program.
//
// Three authoring modes are supported:
//
//   - [ModePrint]: the command is free text mixed with field references
//     ($1, $2, ..., $NF). It is rewritten into a print statement so the
//     user never has to know awk's string or printf syntax.
//   - [ModeSimple]: the command is an awk action body, wrapped in a rule
//     guarded by a match expression.
//   - [ModeRaw]: the command is a complete awk program used verbatim.
//
// In print and simple mode a baseline rule printing empty lines unchanged
// is prepended, so blank lines in the input pass through untouched.
//
// The assembled program is escaped for the runner's shell quoting: the
// whole script is passed to the external tool inside single quotes, so
// each single-quote character is rewritten as the sequence
//
//	'\''
//
// before the program text is returned.
package script
