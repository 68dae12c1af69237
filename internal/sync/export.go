package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet/workbook"
)

// Sheet names used in exported workbooks.
const (
	LeadsSheet = "Leads"
	StatsSheet = "Stats"
)

// Snapshotter is the read side of the dispatch engine (or a client of it).
type Snapshotter interface {
	Snapshot(ctx context.Context) (*model.Table, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// ExportXLSX writes the current call sheet and its per-caller breakdown as
// an xlsx workbook to w.
func ExportXLSX(ctx context.Context, src Snapshotter, w io.Writer) error {
	tbl, st, err := fetch(ctx, src)
	if err != nil {
		return err
	}
	return writeXLSX(tbl, st, w)
}

func fetch(ctx context.Context, src Snapshotter) (*model.Table, *model.Stats, error) {
	tbl, err := src.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	st, err := src.Stats(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("stats: %w", err)
	}
	return tbl, st, nil
}

func writeXLSX(tbl *model.Table, st *model.Stats, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LeadsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := workbook.WriteRows(f, LeadsSheet, tbl.Rows); err != nil {
		return fmt.Errorf("write leads: %w", err)
	}

	if _, err := f.NewSheet(StatsSheet); err != nil {
		return fmt.Errorf("add stats sheet: %w", err)
	}
	if err := workbook.WriteRows(f, StatsSheet, statsRows(st)); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// digest fingerprints the cell contents so unchanged sheets are not
// re-uploaded. Workbook bytes differ run to run, cells do not.
func digest(tbl *model.Table) string {
	h := sha256.New()
	for _, row := range tbl.Rows {
		for _, c := range row {
			h.Write([]byte(c))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// statsRows lays out totals followed by one row per caller.
func statsRows(st *model.Stats) [][]string {
	n := func(v int) string { return fmt.Sprint(v) }
	rows := [][]string{
		{"metric", "value"},
		{"rows", n(st.Rows)},
		{"processed", n(st.Processed)},
		{"passed", n(st.Passed)},
		{"pending", n(st.Pending)},
		{"in_progress", n(st.InProgress)},
		{"unassigned", n(st.Unassigned)},
		{"excluded", n(st.Excluded)},
		{"malformed", n(st.Malformed)},
		{},
		{"caller", "claimed", "processed", "passed"},
	}
	for _, a := range st.ByAssignee {
		rows = append(rows, []string{a.Assignee, n(a.Claimed), n(a.Processed), n(a.Passed)})
	}
	return rows
}
