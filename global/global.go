package global

import (
	"golang.org/x/term"
)

var (
	// IsTerminal reports whether stdin is interactive; false usually means a
	// pipe or redirect, in which case prompts and progress bars are disabled.
	IsTerminal bool = term.IsTerminal(0)
)
