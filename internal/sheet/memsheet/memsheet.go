// Package memsheet is an in-memory sheet.Gateway with controllable write
// visibility and failure injection, for deterministic protocol tests.
package memsheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

// Cell addresses one cell by 0-based position and column.
type Cell struct {
	Pos int
	Col int
}

// Sheet is a mutex-guarded in-memory spreadsheet.
type Sheet struct {
	mu      sync.Mutex
	rows    [][]string
	pending []write
	sheets  []model.SheetInfo

	deferred   bool
	fetchErr   error
	readErrs   map[Cell]error
	writeErrs  map[Cell]error
	afterWrite func(s *Sheet, pos, col int, value string)

	fetches int
	reads   []Cell
	writes  []Write
}

type write struct {
	pos, col int
	value    string
}

// Write records one accepted WriteCell call.
type Write struct {
	Pos   int
	Col   int
	Value string
}

var _ sheet.Gateway = (*Sheet)(nil)

// New returns a sheet holding a deep copy of rows.
func New(rows [][]string) *Sheet {
	return &Sheet{
		rows:      clone(rows),
		sheets:    []model.SheetInfo{{ID: "mem", Title: "Sheet1"}},
		readErrs:  make(map[Cell]error),
		writeErrs: make(map[Cell]error),
	}
}

// DeferWrites makes accepted writes invisible until Flush is called.
func (s *Sheet) DeferWrites(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferred = on
}

// Flush applies all pending deferred writes in order.
func (s *Sheet) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.pending {
		s.set(w.pos, w.col, w.value)
	}
	s.pending = nil
}

// FailFetch makes FetchAll return err (nil clears it).
func (s *Sheet) FailFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// FailRead makes ReadCell at c return err (nil clears it).
func (s *Sheet) FailRead(c Cell, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErrs, c)
		return
	}
	s.readErrs[c] = err
}

// FailWrite makes WriteCell at c return err (nil clears it).
func (s *Sheet) FailWrite(c Cell, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErrs, c)
		return
	}
	s.writeErrs[c] = err
}

// AfterWrite installs a hook run after every accepted write, outside the
// lock. Tests use it to simulate a competing caller overwriting a cell.
func (s *Sheet) AfterWrite(fn func(s *Sheet, pos, col int, value string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterWrite = fn
}

// Set writes a cell directly and visibly, bypassing hooks and counters.
func (s *Sheet) Set(pos, col int, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(pos, col, value)
}

// Get returns the visible text at (pos, col).
func (s *Sheet) Get(pos, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos >= len(s.rows) || col >= len(s.rows[pos]) {
		return ""
	}
	return s.rows[pos][col]
}

// Rows returns a deep copy of the visible rows.
func (s *Sheet) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.rows)
}

// Writes returns every accepted write in call order.
func (s *Sheet) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Reads returns every ReadCell address in call order.
func (s *Sheet) Reads() []Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Cell(nil), s.reads...)
}

// Fetches returns how many times FetchAll was called.
func (s *Sheet) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// SetSheets replaces the ListSheets result.
func (s *Sheet) SetSheets(sheets []model.SheetInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets = append([]model.SheetInfo(nil), sheets...)
}

func (s *Sheet) FetchAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, sheet.Wrap("fetch", -1, -1, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, sheet.Wrap("fetch", -1, -1, s.fetchErr)
	}
	return clone(s.rows), nil
}

func (s *Sheet) ReadCell(ctx context.Context, pos, col int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, sheet.Wrap("read", pos, col, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, Cell{pos, col})
	if err := s.readErrs[Cell{pos, col}]; err != nil {
		return "", false, sheet.Wrap("read", pos, col, err)
	}
	if pos >= len(s.rows) || col >= len(s.rows[pos]) || s.rows[pos][col] == "" {
		return "", false, nil
	}
	return s.rows[pos][col], true, nil
}

func (s *Sheet) WriteCell(ctx context.Context, pos, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return sheet.Wrap("write", pos, col, err)
	}
	if pos < 0 || col < 0 {
		return sheet.Wrap("write", pos, col, fmt.Errorf("invalid cell (%d, %d)", pos, col))
	}

	s.mu.Lock()
	if err := s.writeErrs[Cell{pos, col}]; err != nil {
		s.mu.Unlock()
		return sheet.Wrap("write", pos, col, err)
	}
	s.writes = append(s.writes, Write{Pos: pos, Col: col, Value: value})
	if s.deferred {
		s.pending = append(s.pending, write{pos, col, value})
	} else {
		s.set(pos, col, value)
	}
	hook := s.afterWrite
	s.mu.Unlock()

	if hook != nil {
		hook(s, pos, col, value)
	}
	return nil
}

func (s *Sheet) ListSheets(ctx context.Context) ([]model.SheetInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, sheet.Wrap("list sheets", -1, -1, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SheetInfo(nil), s.sheets...), nil
}

// set grows the grid as needed. Callers hold s.mu.
func (s *Sheet) set(pos, col int, value string) {
	for len(s.rows) <= pos {
		s.rows = append(s.rows, nil)
	}
	for len(s.rows[pos]) <= col {
		s.rows[pos] = append(s.rows[pos], "")
	}
	s.rows[pos][col] = value
}

func clone(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
