// Package client provides a transport-agnostic interface for the callsheet
// service, with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
)

// Client is the interface every cs command uses to talk to the server.
// Errors that the server reports as dispatch outcomes unwrap to the
// dispatch sentinels, so callers can use errors.Is(err, dispatch.ErrNoTickets)
// regardless of transport.
type Client interface {
	// Claim protocol
	Claim(ctx context.Context, user string) (*model.Claim, error)
	Submit(ctx context.Context, pos int, outcome model.Outcome, user string, p model.Payload) error
	Release(ctx context.Context, pos int, user string) error

	// Read-only views
	Snapshot(ctx context.Context) (*model.Table, error)
	Stats(ctx context.Context) (*model.Stats, error)
	Sheets(ctx context.Context) ([]model.SheetInfo, error)
	Roster(ctx context.Context, stale time.Duration) ([]presence.Entry, error)
	Journal(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// APIError represents an error response from the server. StatusCode is the
// HTTP status, or its equivalent for a gRPC status code.
type APIError struct {
	StatusCode int
	Message    string
	Contended  []model.RaceLost
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the response back onto the dispatch error it came from.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		if strings.HasPrefix(e.Message, dispatch.ErrNoTickets.Error()) {
			return &dispatch.NoTicketsError{Contended: e.Contended}
		}
	case http.StatusBadRequest:
		if strings.HasPrefix(e.Message, dispatch.ErrInvalidOutcome.Error()) {
			return dispatch.ErrInvalidOutcome
		}
		return dispatch.ErrInvalidArgument
	case http.StatusConflict:
		return dispatch.ErrNotHeld
	}
	return nil
}

// Upstream reports whether err is the server relaying a spreadsheet failure.
// The row is untouched or resumable; retrying later is safe.
func Upstream(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusBadGateway
}
