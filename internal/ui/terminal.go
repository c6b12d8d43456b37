package ui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	Fd() uintptr
}

// ShouldUseColor reports whether ANSI colors should be used on stdout.
func ShouldUseColor() bool {
	return ShouldUseColorFor(os.Stdout)
}

// ShouldUseColorFor reports whether ANSI colors should be written to w.
// NO_COLOR and FORMS_NO_COLOR disable color, CLICOLOR_FORCE=1 forces it,
// CLICOLOR=0 disables it; otherwise w must be a terminal.
func ShouldUseColorFor(w io.Writer) bool {
	// https://no-color.org: any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" || os.Getenv("FORMS_NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
