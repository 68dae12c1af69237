package model

import "strings"

// Outcome is a caller's terminal decision for a ticket.
type Outcome string

const (
	OutcomePass     Outcome = "PASS"
	OutcomeFail     Outcome = "FAIL"
	OutcomeNoAnswer Outcome = "NO_ANSWER"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// IsValid checks whether the outcome is a known value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeNoAnswer:
		return true
	}
	return false
}

// ParseOutcome accepts the canonical names case-insensitively, plus
// "noanswer" and "no-answer". Unknown input is returned as-is so the
// caller's IsValid check rejects it.
func ParseOutcome(s string) Outcome {
	norm := strings.ToUpper(strings.TrimSpace(s))
	switch norm {
	case "NOANSWER", "NO-ANSWER":
		return OutcomeNoAnswer
	}
	return Outcome(norm)
}

// Selected returns the value written to the selected cell.
func (o Outcome) Selected() string {
	if o == OutcomePass {
		return FlagSet
	}
	return FlagUnset
}

// Tag returns the note prefix recorded for the outcome.
func (o Outcome) Tag() string {
	switch o {
	case OutcomePass:
		return "通过"
	case OutcomeFail:
		return "设备不符/拒绝"
	case OutcomeNoAnswer:
		return "未接/挂断"
	}
	return ""
}

// Payload carries the caller-supplied extras of a submission.
type Payload struct {
	Note      string `json:"note,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
}

// NoteText composes the note cell: the outcome tag, then the free-text
// note when one was given.
func (o Outcome) NoteText(p Payload) string {
	note := strings.TrimSpace(p.Note)
	if note == "" {
		return o.Tag()
	}
	return o.Tag() + " | " + note
}
