package workbook

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestWorkbook(t *testing.T, rows [][]string, width int) (*Workbook, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	if err := Create(path, "Leads", rows); err != nil {
		t.Fatalf("Create: %v", err)
	}
	wb, err := Open(path, "", width)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb, path
}

func TestWorkbook_FetchAll(t *testing.T) {
	wb, _ := newTestWorkbook(t, [][]string{
		{"account", "processed", "selected"},
		{"a1", "", "1"},
		{"a2"},
	}, 0)

	rows, err := wb.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][2] != "1" || rows[2][0] != "a2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestWorkbook_WritePersists(t *testing.T) {
	wb, path := newTestWorkbook(t, [][]string{{"h"}, {"a1"}}, 0)
	ctx := context.Background()

	if err := wb.WriteCell(ctx, 1, 16, "Caller_01"); err != nil {
		t.Fatalf("WriteCell: %v", err)
	}
	v, ok, err := wb.ReadCell(ctx, 1, 16)
	if err != nil || !ok || v != "Caller_01" {
		t.Fatalf("ReadCell = %q, %v, %v", v, ok, err)
	}

	// Re-open from disk to check the write was saved.
	reopened, err := Open(path, "Leads", 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, ok, err = reopened.ReadCell(ctx, 1, 16)
	if err != nil || !ok || v != "Caller_01" {
		t.Fatalf("reopened ReadCell = %q, %v, %v", v, ok, err)
	}

	if _, ok, _ := reopened.ReadCell(ctx, 1, 15); ok {
		t.Error("expected empty cell to be absent")
	}
}

func TestWorkbook_ListSheets(t *testing.T) {
	wb, _ := newTestWorkbook(t, [][]string{{"h"}}, 0)
	sheets, err := wb.ListSheets(context.Background())
	if err != nil {
		t.Fatalf("ListSheets: %v", err)
	}
	if len(sheets) != 1 || sheets[0].ID != "Leads" || sheets[0].Title != "Leads" {
		t.Fatalf("ListSheets = %+v", sheets)
	}
}

func TestOpen_UnknownSheet(t *testing.T) {
	_, path := newTestWorkbook(t, [][]string{{"h"}}, 0)
	if _, err := Open(path, "Nope", 0); err == nil {
		t.Fatal("expected error for unknown sheet")
	}
}

func TestWorkbook_FetchAllPadsTrailingBlanks(t *testing.T) {
	lead := func(account string) []string {
		r := make([]string, 18)
		r[0], r[12], r[15] = account, "138"+account, "iPhone"
		return r
	}
	for _, tc := range []struct {
		name   string
		header []string
		width  int
	}{
		{"width from header", append(make([]string, 17), "note"), 0},
		{"width from caller", []string{"account"}, 18},
	} {
		t.Run(tc.name, func(t *testing.T) {
			wb, _ := newTestWorkbook(t, [][]string{tc.header, lead("a1"), {}, lead("a3")}, tc.width)

			rows, err := wb.FetchAll(context.Background())
			if err != nil {
				t.Fatalf("FetchAll: %v", err)
			}
			for _, pos := range []int{1, 3} {
				if len(rows[pos]) < 18 || rows[pos][0] != "a"+string(rune('0'+pos)) {
					t.Fatalf("row %d = %q (len %d)", pos, rows[pos], len(rows[pos]))
				}
			}
			if len(rows[2]) != 0 {
				t.Errorf("blank row padded to %d cells", len(rows[2]))
			}
		})
	}
}
