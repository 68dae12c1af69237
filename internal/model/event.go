package model

import "time"

// EventKind names a journaled dispatch event.
type EventKind string

const (
	EventClaimed   EventKind = "claimed"
	EventResumed   EventKind = "resumed"
	EventRaceLost  EventKind = "race_lost"
	EventSubmitted EventKind = "submitted"
	EventReleased  EventKind = "released"
	EventWriteFail EventKind = "write_failed"
)

// Event is a persisted journal record, mirroring what is published to NATS.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Sheet     string    `json:"sheet,omitempty"`
	Position  int       `json:"position"`
	Actor     string    `json:"actor,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventFilter holds criteria for querying the journal.
type EventFilter struct {
	Actor string    `json:"actor,omitempty"`
	Kind  EventKind `json:"kind,omitempty"`
	Limit int       `json:"limit,omitempty"`
}
