package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// isTerminal is swapped out in tests.
var isTerminal = term.IsTerminal

// ShouldUseColor reports whether stdout should get ANSI colors.
func ShouldUseColor() bool {
	return colorFor(int(os.Stdout.Fd()))
}

// colorFor applies, in order: NO_COLOR (https://no-color.org), CLICOLOR_FORCE=1,
// CLICOLOR=0, TERM=dumb, then whether fd is a terminal.
func colorFor(fd int) bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case envIs("CLICOLOR_FORCE", "1"):
		return true
	case envIs("CLICOLOR", "0"), envIs("TERM", "dumb"):
		return false
	}
	return isTerminal(fd)
}

func envIs(key, want string) bool {
	return strings.TrimSpace(os.Getenv(key)) == want
}

// Width returns the column count of the terminal on stdout, or fallback
// when stdout is not a terminal.
func Width(fallback int) int {
	fd := int(os.Stdout.Fd())
	if !isTerminal(fd) {
		return fallback
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
