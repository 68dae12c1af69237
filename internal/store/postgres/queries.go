package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/store"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, kind, sheet, position, actor, outcome, winner, detail, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	if e.CreatedAt.IsZero() {
		return db.QueryRowContext(ctx, `
			INSERT INTO events (id, kind, sheet, position, actor, outcome, winner, detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at`,
			e.ID, string(e.Kind), e.Sheet, e.Position, e.Actor, string(e.Outcome), e.Winner, e.Detail,
		).Scan(&e.CreatedAt)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, kind, sheet, position, actor, outcome, winner, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, string(e.Kind), e.Sheet, e.Position, e.Actor, string(e.Outcome), e.Winner, e.Detail, e.CreatedAt,
	)
	return err
}

func queryListEvents(ctx context.Context, db executor, f model.EventFilter) ([]*model.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Actor != "" {
		args = append(args, f.Actor)
		where = append(where, fmt.Sprintf("actor = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	args = append(args, store.Limit(f))

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.Event, error) {
	var (
		e       model.Event
		kind    string
		outcome sql.NullString
		sheet   sql.NullString
		actor   sql.NullString
		winner  sql.NullString
		detail  sql.NullString
	)
	if err := row.Scan(&e.ID, &kind, &sheet, &e.Position, &actor, &outcome, &winner, &detail, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = model.EventKind(kind)
	e.Sheet = sheet.String
	e.Actor = actor.String
	e.Outcome = model.Outcome(outcome.String)
	e.Winner = winner.String
	e.Detail = detail.String
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	events := []*model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
