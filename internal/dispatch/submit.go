package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

type cellWrite struct {
	col   int
	value string
}

// submitWrites returns the cells a submission touches, in order. The
// processed flag is always last so a partial submission leaves the row
// resumable.
func (e *Engine) submitWrites(outcome model.Outcome, user string, p model.Payload) []cellWrite {
	w := []cellWrite{
		{e.cols.Note, outcome.NoteText(p)},
		{e.cols.Selected, outcome.Selected()},
		{e.cols.Assignee, user},
	}
	if contact := strings.TrimSpace(p.ContactID); outcome == model.OutcomePass && contact != "" && e.cols.ContactID != model.NoColumn {
		w = append(w, cellWrite{e.cols.ContactID, contact})
	}
	return append(w, cellWrite{e.cols.Processed, model.FlagSet})
}

// Submit records user's outcome for the row at pos. It stops at the first
// failed write and returns it as a wrapped *sheet.TransportError; writes
// made before the failure stay in place. Submitting the same outcome again
// is harmless.
func (e *Engine) Submit(ctx context.Context, pos int, outcome model.Outcome, user string, p model.Payload) error {
	if !outcome.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if pos < 1 {
		return fmt.Errorf("%w: position %d is not a data row", ErrInvalidArgument, pos)
	}
	if !validUser(user) {
		return fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}

	for _, w := range e.submitWrites(outcome, user, p) {
		if err := e.gw.WriteCell(ctx, pos, w.col, w.value); err != nil {
			e.log.Warn("submit write failed", "position", pos, "user", user, "outcome", outcome, "error", err)
			e.record(ctx, model.Event{
				Kind: model.EventWriteFail, Position: pos, Actor: user, Outcome: outcome, Detail: err.Error(),
			})
			return fmt.Errorf("submit position %d: %w", pos, err)
		}
	}

	e.log.Info("submitted ticket", "position", pos, "user", user, "outcome", outcome)
	e.record(ctx, model.Event{
		Kind: model.EventSubmitted, Position: pos, Actor: user, Outcome: outcome, Detail: outcome.NoteText(p),
	})
	return nil
}

// Release lets user walk away from the row at pos without an outcome. The
// assignee cell is left as is, so the row stays user's and comes back on
// their next claim; Release only checks that and journals the abandonment.
func (e *Engine) Release(ctx context.Context, pos int, user string) error {
	if pos < 1 {
		return fmt.Errorf("%w: position %d is not a data row", ErrInvalidArgument, pos)
	}
	if !validUser(user) {
		return fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}

	processed, _, err := e.gw.ReadCell(ctx, pos, e.cols.Processed)
	if err != nil {
		return fmt.Errorf("release position %d: %w", pos, err)
	}
	assignee, _, err := e.gw.ReadCell(ctx, pos, e.cols.Assignee)
	if err != nil {
		return fmt.Errorf("release position %d: %w", pos, err)
	}
	if processed == model.FlagSet || assignee != user {
		return fmt.Errorf("%w: position %d", ErrNotHeld, pos)
	}

	e.log.Info("released ticket", "position", pos, "user", user)
	e.record(ctx, model.Event{Kind: model.EventReleased, Position: pos, Actor: user})
	return nil
}
