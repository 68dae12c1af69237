package dispatch

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

var (
	// ErrNoTickets means a claim found nothing to resume or win. It is not a
	// failure: the sheet was read and every row is terminal, excluded, held
	// by someone else, or was lost in a race.
	ErrNoTickets = errors.New("no tickets available")

	// ErrInvalidOutcome rejects a submission whose outcome is not one of
	// PASS, FAIL or NO_ANSWER.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrInvalidArgument rejects a call with a missing user or a position
	// outside the data rows.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotHeld means the row is not the caller's unfinished work.
	ErrNotHeld = errors.New("ticket not held by user")
)

// NoTicketsError is ErrNoTickets plus the races lost while looking.
type NoTicketsError struct {
	Contended []model.RaceLost
}

func (e *NoTicketsError) Error() string {
	if len(e.Contended) == 0 {
		return ErrNoTickets.Error()
	}
	return fmt.Sprintf("%s (lost %d contended)", ErrNoTickets, len(e.Contended))
}

func (e *NoTicketsError) Unwrap() error { return ErrNoTickets }

// Contended returns the race-lost notices carried by err, if any.
func Contended(err error) []model.RaceLost {
	var nt *NoTicketsError
	if errors.As(err, &nt) {
		return nt.Contended
	}
	return nil
}
