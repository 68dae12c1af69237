package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// Claim finds work for user. It first looks for a row user already holds
// and has not finished; failing that it tries to take the first eligible
// row, moving on to the next candidate whenever another caller wins.
//
// Claim returns ErrNoTickets (as a *NoTicketsError) when nothing could be
// taken, and a wrapped *sheet.TransportError when the sheet could not be
// read. A won or resumed claim may still carry Contended notices.
func (e *Engine) Claim(ctx context.Context, user string) (*model.Claim, error) {
	if !validUser(user) {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}

	t, err := e.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	if t.Len() <= 1 {
		return nil, &NoTicketsError{}
	}

	if pos, ok := e.findResumable(t, user); ok {
		tk := t.Ticket(pos, e.cols)
		e.log.Info("resumed ticket", "position", pos, "user", user)
		e.record(ctx, model.Event{Kind: model.EventResumed, Position: pos, Actor: user})
		return &model.Claim{User: user, Ticket: tk, Resumed: true}, nil
	}

	var contended []model.RaceLost
	for pos := 1; pos < t.Len(); pos++ {
		row := t.Row(pos)
		if e.cols.Malformed(row) || !e.cols.Eligible(row) {
			continue
		}

		won, lost, err := e.tryClaim(ctx, pos, user)
		if err != nil {
			return nil, err
		}
		if lost != nil {
			contended = append(contended, *lost)
			continue
		}
		if !won {
			continue
		}

		tk := model.RowTicket(pos, row, e.cols)
		tk.Assignee = user
		e.log.Info("claimed ticket", "position", pos, "user", user, "contended", len(contended))
		e.record(ctx, model.Event{Kind: model.EventClaimed, Position: pos, Actor: user})
		return &model.Claim{User: user, Ticket: tk, Contended: contended}, nil
	}

	return nil, &NoTicketsError{Contended: contended}
}

// findResumable returns the first row user holds that is not terminal.
func (e *Engine) findResumable(t *model.Table, user string) (int, bool) {
	for pos := 1; pos < t.Len(); pos++ {
		row := t.Row(pos)
		if e.cols.Malformed(row) {
			e.log.Debug("skipping malformed row", "position", pos, "cells", len(row))
			continue
		}
		if e.cols.Excluded(row) {
			continue
		}
		if e.cols.Resumable(row, user) {
			return pos, true
		}
	}
	return 0, false
}

// tryClaim runs write, settle, verify for one candidate. It returns
// won=true when the read-back shows user, a RaceLost when it shows anything
// else or cannot be read, and neither when the write itself failed. Only
// context cancellation is returned as an error.
func (e *Engine) tryClaim(ctx context.Context, pos int, user string) (bool, *model.RaceLost, error) {
	col := e.cols.Assignee
	if err := e.gw.WriteCell(ctx, pos, col, user); err != nil {
		if ctx.Err() != nil {
			return false, nil, fmt.Errorf("claim: %w", ctx.Err())
		}
		e.log.Warn("claim write failed", "position", pos, "user", user, "error", err)
		e.record(ctx, model.Event{Kind: model.EventWriteFail, Position: pos, Actor: user, Detail: err.Error()})
		return false, nil, nil
	}

	for attempt := 1; ; attempt++ {
		if err := e.sleep(ctx, e.settle); err != nil {
			return false, nil, fmt.Errorf("claim: %w", err)
		}

		got, _, err := e.gw.ReadCell(ctx, pos, col)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil, fmt.Errorf("claim: %w", ctx.Err())
			}
			return false, e.lose(ctx, model.RaceLost{Position: pos, ReadErr: err.Error()}, user), nil
		}
		if got == user {
			return true, nil, nil
		}
		if strings.TrimSpace(got) != "" || attempt >= e.attempts {
			return false, e.lose(ctx, model.RaceLost{Position: pos, Winner: got}, user), nil
		}
		e.log.Debug("claim not visible yet, re-reading", "position", pos, "user", user, "attempt", attempt)
	}
}

func (e *Engine) lose(ctx context.Context, rl model.RaceLost, user string) *model.RaceLost {
	e.log.Warn("claim contended", "position", rl.Position, "user", user, "winner", rl.Winner, "read_error", rl.ReadErr)
	e.record(ctx, model.Event{Kind: model.EventRaceLost, Position: rl.Position, Actor: user, Winner: rl.Winner, Detail: rl.ReadErr})
	return &rl
}
