// Package dispatch hands out leads from the call sheet and records outcomes.
//
// The sheet offers no transactions, no row locks and no read-your-writes,
// so claiming is optimistic: write your name into the assignee cell, wait
// for the write to settle, read the cell back, and treat any other value as
// a lost race. The engine keeps no state between calls; every decision is
// made against a fresh read of the sheet.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/events"
	"github.com/alfredjeanlab/callsheet/internal/idgen"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
	"github.com/alfredjeanlab/callsheet/internal/store"
)

// DefaultSettleDelay is how long a claim waits between writing the
// assignee and reading it back.
const DefaultSettleDelay = 500 * time.Millisecond

// Observer is told about every journaled event after it is recorded.
type Observer interface {
	Observe(e model.Event)
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// SettleDelay defaults to DefaultSettleDelay. Negative means no wait.
	SettleDelay time.Duration
	// VerifyAttempts bounds the read-backs of one claim write while the
	// cell still reads empty. Values below 1 mean 1.
	VerifyAttempts int
	// Sheet names the sheet in journal entries.
	Sheet     string
	Logger    *slog.Logger
	Publisher events.Publisher
	Journal   store.Store
	Observers []Observer
}

// Engine runs the claim and submit protocols against one sheet.
// It is safe for concurrent use.
type Engine struct {
	gw       sheet.Gateway
	cols     model.ColumnMap
	settle   time.Duration
	attempts int
	sheet    string

	log       *slog.Logger
	publisher events.Publisher
	journal   store.Store
	observers []Observer

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New returns an engine over gw using cols.
func New(gw sheet.Gateway, cols model.ColumnMap, opts Options) (*Engine, error) {
	if err := cols.Validate(); err != nil {
		return nil, fmt.Errorf("column map: %w", err)
	}
	e := &Engine{
		gw:        gw,
		cols:      cols,
		settle:    opts.SettleDelay,
		attempts:  opts.VerifyAttempts,
		sheet:     opts.Sheet,
		log:       opts.Logger,
		publisher: opts.Publisher,
		journal:   opts.Journal,
		observers: opts.Observers,
		sleep:     sleepCtx,
		now:       time.Now,
	}
	if e.settle == 0 {
		e.settle = DefaultSettleDelay
	}
	if e.attempts < 1 {
		e.attempts = 1
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.publisher == nil {
		e.publisher = events.NoopPublisher{}
	}
	if e.journal == nil {
		e.journal = store.Discard{}
	}
	return e, nil
}

// Columns returns the column map the engine was built with.
func (e *Engine) Columns() model.ColumnMap {
	return e.cols
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetch reads the whole sheet once.
func (e *Engine) fetch(ctx context.Context) (*model.Table, error) {
	rows, err := e.gw.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return model.NewTable(rows), nil
}

// Snapshot returns the current sheet, each data row padded to the header
// width. It never writes.
func (e *Engine) Snapshot(ctx context.Context) (*model.Table, error) {
	t, err := e.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return t.Padded(), nil
}

// Stats summarizes the current sheet.
func (e *Engine) Stats(ctx context.Context) (*model.Stats, error) {
	t, err := e.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return model.Summarize(t, e.cols), nil
}

// Sheets lists the sheets of the underlying document.
func (e *Engine) Sheets(ctx context.Context) ([]model.SheetInfo, error) {
	sheets, err := e.gw.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	return sheets, nil
}

// record journals and publishes an event. Both are best-effort; failures
// are logged and never reach the caller.
func (e *Engine) record(ctx context.Context, ev model.Event) {
	if ev.ID == "" {
		id, err := idgen.NewEventID()
		if err != nil {
			e.log.Warn("failed to generate event id", "kind", ev.Kind, "error", err)
		}
		ev.ID = id
	}
	ev.Sheet = e.sheet
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = e.now().UTC()
	}

	if err := e.journal.RecordEvent(ctx, &ev); err != nil {
		e.log.Warn("failed to record event", "kind", ev.Kind, "position", ev.Position, "error", err)
	}
	topic := events.TopicFor(ev.Kind)
	if err := e.publisher.Publish(ctx, topic, ev); err != nil {
		e.log.Warn("failed to publish event", "topic", topic, "position", ev.Position, "error", err)
	}
	for _, o := range e.observers {
		o.Observe(ev)
	}
}

func validUser(user string) bool {
	return strings.TrimSpace(user) != ""
}
