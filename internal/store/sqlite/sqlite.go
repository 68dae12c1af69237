// Package sqlite implements the store.Store journal on a local SQLite file,
// for single-node installs without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/callsheet/internal/idgen"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/store"
)

// timeLayout is fixed width so created_at sorts as text in time order.
// RFC3339Nano trims trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) a SQLite database at path and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: wal: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			sheet      TEXT NOT NULL DEFAULT '',
			position   INTEGER NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL DEFAULT '',
			winner     TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
		CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`)
	if err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		id, err := idgen.NewEventID()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, kind, sheet, position, actor, outcome, winner, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Sheet, e.Position, e.Actor, string(e.Outcome), e.Winner, e.Detail,
		e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, f model.EventFilter) ([]*model.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	q := `SELECT id, kind, sheet, position, actor, outcome, winner, detail, created_at FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	// rowid breaks ties between events recorded within the same instant.
	q += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, store.Limit(f))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	out := []*model.Event{}
	for rows.Next() {
		var (
			e          model.Event
			kind, outc string
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Sheet, &e.Position, &e.Actor, &outc, &e.Winner, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Kind = model.EventKind(kind)
		e.Outcome = model.Outcome(outc)
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
