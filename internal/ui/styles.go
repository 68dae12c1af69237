package ui

import (
	"fmt"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorFail   = 203 // red
	colorWarn   = 179 // amber
)

var noColor bool

func paint(code int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderOutcome colors an outcome name: green for PASS, red for FAIL,
// amber for NO_ANSWER.
func RenderOutcome(o model.Outcome) string {
	switch o {
	case model.OutcomePass:
		return paint(colorPass, o.String())
	case model.OutcomeFail:
		return paint(colorFail, o.String())
	case model.OutcomeNoAnswer:
		return paint(colorWarn, o.String())
	}
	return o.String()
}

// RenderRaceLost formats one lost claim for humans.
func RenderRaceLost(r model.RaceLost) string {
	var who string
	switch {
	case r.ReadErr != "":
		who = "verify failed: " + r.ReadErr
	case r.Winner != "":
		who = "taken by " + r.Winner
	default:
		who = "write not visible yet"
	}
	return RenderWarn(fmt.Sprintf("row %d", r.Position)) + " " + RenderMuted(who)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
