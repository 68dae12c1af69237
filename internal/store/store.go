// Package store defines the append-only dispatch journal. The spreadsheet
// stays the source of truth for lead state; the journal only records what
// happened to it (claims, lost races, submissions, releases).
package store

import (
	"context"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// DefaultListLimit caps ListEvents when the filter sets no limit.
const DefaultListLimit = 100

// Store defines the persistence interface for the journal.
type Store interface {
	// RecordEvent appends e. A missing ID or CreatedAt is filled in.
	RecordEvent(ctx context.Context, e *model.Event) error
	// ListEvents returns matching events, newest first.
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Lifecycle
	Close() error
}

// Discard is a Store that keeps nothing. It is used when no journal
// database is configured.
type Discard struct{}

var _ Store = Discard{}

func (Discard) RecordEvent(context.Context, *model.Event) error { return nil }

func (Discard) ListEvents(context.Context, model.EventFilter) ([]*model.Event, error) {
	return []*model.Event{}, nil
}

func (Discard) Close() error { return nil }

// Limit returns the effective row limit for f.
func Limit(f model.EventFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
