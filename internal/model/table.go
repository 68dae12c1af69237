package model

// Table is a fetched spreadsheet range. Rows[0] is the header row.
// Rows may be shorter than the header when trailing cells were never
// written; every accessor treats missing cells as empty.
type Table struct {
	Rows [][]string `json:"rows"`
}

// NewTable wraps raw rows without copying them.
func NewTable(rows [][]string) *Table {
	return &Table{Rows: rows}
}

// Len returns the number of rows including the header.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Header returns the header row, or nil for an empty table.
func (t *Table) Header() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0]
}

// Row returns the raw row at pos, or nil when pos is out of range.
func (t *Table) Row(pos int) []string {
	if pos < 0 || pos >= len(t.Rows) {
		return nil
	}
	return t.Rows[pos]
}

// Cell returns the text at (pos, col), or "" when it does not exist.
func (t *Table) Cell(pos, col int) string {
	return cell(t.Row(pos), col)
}

// Ticket materializes the row at pos through cols.
func (t *Table) Ticket(pos int, cols ColumnMap) *Ticket {
	return RowTicket(pos, t.Row(pos), cols)
}

// RowTicket materializes a single raw row.
func RowTicket(pos int, row []string, cols ColumnMap) *Ticket {
	return &Ticket{
		Position:  pos,
		Account:   cell(row, cols.Account),
		Processed: cell(row, cols.Processed),
		Selected:  cell(row, cols.Selected),
		Excluded:  cols.Excluded(row),
		Assignee:  cell(row, cols.Assignee),
		Phone:     cell(row, cols.Phone),
		Device:    cell(row, cols.Device),
		Location:  cell(row, cols.Location),
		Name:      cell(row, cols.Name),
		Pinyin:    cell(row, cols.Pinyin),
		PassID:    cell(row, cols.PassID),
		ContactID: cell(row, cols.ContactID),
		Note:      cell(row, cols.Note),
	}
}

// Padded returns a copy of the table where every data row is padded or
// truncated to the header's width, for tabular display.
func (t *Table) Padded() *Table {
	if len(t.Rows) == 0 {
		return &Table{Rows: [][]string{}}
	}
	width := len(t.Rows[0])
	out := make([][]string, len(t.Rows))
	out[0] = append([]string(nil), t.Rows[0]...)
	for i, row := range t.Rows[1:] {
		padded := make([]string, width)
		copy(padded, row)
		out[i+1] = padded
	}
	return &Table{Rows: out}
}
