// Package sheet defines the narrow contract callsheet needs from a remote
// spreadsheet: bulk row read, single-cell read and write, and sheet listing.
//
// Nothing in the contract promises read-your-writes. A value written by
// WriteCell may be invisible to a following ReadCell or FetchAll from any
// caller for an unspecified time.
package sheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// Gateway is the spreadsheet access contract. Positions and columns are
// 0-based; position 0 is the header row.
type Gateway interface {
	// FetchAll returns every row of the configured range.
	FetchAll(ctx context.Context) ([][]string, error)
	// ReadCell returns the text at (pos, col). ok is false when the cell
	// is absent (never written or beyond the data).
	ReadCell(ctx context.Context, pos, col int) (value string, ok bool, err error)
	// WriteCell overwrites the text at (pos, col).
	WriteCell(ctx context.Context, pos, col int, value string) error
	// ListSheets returns the sheets of the document.
	ListSheets(ctx context.Context) ([]model.SheetInfo, error)
}

// TransportError reports a failed gateway call. Pos and Col are -1 for
// calls that do not address a cell.
type TransportError struct {
	Op  string
	Pos int
	Col int
	Err error
}

func (e *TransportError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("sheet %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sheet %s %s: %v", e.Op, CellName(e.Pos, e.Col), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Wrap returns err as a *TransportError unless it already is one.
func Wrap(op string, pos, col int, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Pos: pos, Col: col, Err: err}
}

// CellName converts a 0-based (pos, col) into A1 notation: (4, 16) is "Q5".
func CellName(pos, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, pos+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", pos+1, col+1)
	}
	return name
}

// ColumnName converts a 0-based column index into its letter: 17 is "R".
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return fmt.Sprintf("C%d", col+1)
	}
	return name
}

// ParseColumn converts a column letter ("Q") into its 0-based index.
func ParseColumn(name string) (int, error) {
	n, err := excelize.ColumnNameToNumber(name)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}
