// Package shellquote produces POSIX shell safe command text for the
// printed resume commands and generated transfer scripts.
package shellquote

import "strings"

// safeChars are characters that never need quoting in a POSIX shell word.
const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789@%+=:,./-_"

// Quote returns arg as a single shell word, single-quoting it when it
// contains characters the shell would otherwise interpret.
func Quote(arg string) string {
	if arg == "" {
		return "''"
	}
	needsQuote := false
	for _, r := range arg {
		if !strings.ContainsRune(safeChars, r) {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return arg
	}
	// Close the quote, emit an escaped single quote, reopen.
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// Join quotes each argument and joins them with spaces.
func Join(args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}
