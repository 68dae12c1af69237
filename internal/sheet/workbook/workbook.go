// Package workbook implements sheet.Gateway over a local .xlsx file, for
// offline use and rehearsals against a copy of the real call sheet.
package workbook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

// Workbook is a sheet.Gateway bound to one sheet of an xlsx file.
// Every write is saved to disk before WriteCell returns.
type Workbook struct {
	mu    sync.Mutex
	path  string
	sheet string
	width int
	file  *excelize.File
}

var _ sheet.Gateway = (*Workbook)(nil)

// Open opens path and binds to sheetName, or to the first sheet when
// sheetName is empty. FetchAll pads every non-empty row to at least width
// cells, since xlsx does not store trailing blank cells and a fresh lead
// would otherwise read back shorter than its assignee column.
func Open(path, sheetName string, width int) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		f.Close()
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheetName)
	}
	return &Workbook{path: path, sheet: sheetName, width: width, file: f}, nil
}

// Create writes a new workbook at path holding rows on sheetName.
func Create(path, sheetName string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "" && sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else {
		sheetName = "Sheet1"
	}
	if err := WriteRows(f, sheetName, rows); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// WriteRows writes rows into sheetName of f as text cells, starting at A1.
func WriteRows(f *excelize.File, sheetName string, rows [][]string) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheetName, sheet.CellName(i, 0), &vals); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) FetchAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, sheet.Wrap("fetch", -1, -1, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return nil, sheet.Wrap("fetch", -1, -1, err)
	}
	target := w.width
	if len(rows) > 0 {
		target = max(target, len(rows[0]))
	}
	target = max(target, w.dimensionWidth())
	for i, row := range rows {
		// Blank rows stay empty so they are never mistaken for a lead.
		if len(row) > 0 && len(row) < target {
			rows[i] = append(row, make([]string, target-len(row))...)
		}
	}
	return rows, nil
}

// dimensionWidth returns the column count of the sheet's used range, or 0
// when the file does not record one.
func (w *Workbook) dimensionWidth() int {
	dim, err := w.file.GetSheetDimension(w.sheet)
	if err != nil || dim == "" {
		return 0
	}
	ref := dim
	if i := strings.LastIndex(dim, ":"); i >= 0 {
		ref = dim[i+1:]
	}
	col, _, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return 0
	}
	return col
}

func (w *Workbook) ReadCell(ctx context.Context, pos, col int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, sheet.Wrap("read", pos, col, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	v, err := w.file.GetCellValue(w.sheet, sheet.CellName(pos, col))
	if err != nil {
		return "", false, sheet.Wrap("read", pos, col, err)
	}
	return v, v != "", nil
}

func (w *Workbook) WriteCell(ctx context.Context, pos, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return sheet.Wrap("write", pos, col, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.SetCellStr(w.sheet, sheet.CellName(pos, col), value); err != nil {
		return sheet.Wrap("write", pos, col, err)
	}
	if err := w.file.Save(); err != nil {
		return sheet.Wrap("write", pos, col, fmt.Errorf("save %s: %w", w.path, err))
	}
	return nil
}

func (w *Workbook) ListSheets(ctx context.Context) ([]model.SheetInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, sheet.Wrap("list sheets", -1, -1, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	names := w.file.GetSheetList()
	out := make([]model.SheetInfo, len(names))
	for i, n := range names {
		out[i] = model.SheetInfo{ID: n, Title: n}
	}
	return out, nil
}
