package model

import (
	"fmt"
	"strings"
)

// NoColumn marks an optional column that the schema does not carry.
const NoColumn = -1

// ColumnMap maps ticket fields to 0-based spreadsheet column indices.
// The spreadsheet's column order is the wire format, so every component
// that reads or writes cells goes through one ColumnMap chosen at startup.
type ColumnMap struct {
	Account   int `json:"account" toml:"account" yaml:"account"`
	Processed int `json:"processed" toml:"processed" yaml:"processed"`
	Selected  int `json:"selected" toml:"selected" yaml:"selected"`
	Exclude   int `json:"exclude" toml:"exclude" yaml:"exclude"`
	ContactID int `json:"contact_id" toml:"contact_id" yaml:"contact_id"`
	PassID    int `json:"pass_id" toml:"pass_id" yaml:"pass_id"`
	Name      int `json:"name" toml:"name" yaml:"name"`
	Pinyin    int `json:"pinyin" toml:"pinyin" yaml:"pinyin"`
	Phone     int `json:"phone" toml:"phone" yaml:"phone"`
	Location  int `json:"location" toml:"location" yaml:"location"`
	Device    int `json:"device" toml:"device" yaml:"device"`
	Assignee  int `json:"assignee" toml:"assignee" yaml:"assignee"`
	Note      int `json:"note" toml:"note" yaml:"note"`
}

// Built-in schema names.
const (
	SchemaSimple   = "simple"
	SchemaExtended = "extended"
)

// SimpleColumns is the single-identity layout (A/B/C/E/M/O/P/Q/R).
func SimpleColumns() ColumnMap {
	return ColumnMap{
		Account:   0, // A
		Processed: 1, // B
		Selected:  2, // C
		Exclude:   NoColumn,
		ContactID: 4, // E
		PassID:    NoColumn,
		Name:      NoColumn,
		Pinyin:    NoColumn,
		Phone:     12, // M
		Location:  14, // O
		Device:    15, // P
		Assignee:  16, // Q
		Note:      17, // R
	}
}

// ExtendedColumns adds the dedup column D and splits identity into
// pass-id, name and pinyin columns.
func ExtendedColumns() ColumnMap {
	c := SimpleColumns()
	c.Exclude = 3 // D
	c.PassID = 5  // F
	c.Name = 6    // G
	c.Pinyin = 7  // H
	return c
}

// ColumnsFor returns the built-in column map with the given schema name.
func ColumnsFor(schema string) (ColumnMap, error) {
	switch strings.ToLower(strings.TrimSpace(schema)) {
	case "", SchemaSimple:
		return SimpleColumns(), nil
	case SchemaExtended:
		return ExtendedColumns(), nil
	}
	return ColumnMap{}, fmt.Errorf("unknown schema %q (must be %s or %s)", schema, SchemaSimple, SchemaExtended)
}

// fields returns every field name paired with its index, in a stable order.
func (c ColumnMap) fields() []struct {
	name string
	idx  int
} {
	return []struct {
		name string
		idx  int
	}{
		{"account", c.Account},
		{"processed", c.Processed},
		{"selected", c.Selected},
		{"exclude", c.Exclude},
		{"contact_id", c.ContactID},
		{"pass_id", c.PassID},
		{"name", c.Name},
		{"pinyin", c.Pinyin},
		{"phone", c.Phone},
		{"location", c.Location},
		{"device", c.Device},
		{"assignee", c.Assignee},
		{"note", c.Note},
	}
}

// Validate checks that the fields the claim and submit protocols write to are
// mapped, and that no two fields share a column.
func (c ColumnMap) Validate() error {
	seen := make(map[int]string)
	for _, f := range c.fields() {
		if f.idx == NoColumn {
			switch f.name {
			case "account", "processed", "selected", "assignee", "note":
				return fmt.Errorf("column %q is required", f.name)
			}
			continue
		}
		if f.idx < 0 {
			return fmt.Errorf("column %q has invalid index %d", f.name, f.idx)
		}
		if other, ok := seen[f.idx]; ok {
			return fmt.Errorf("columns %q and %q both map to index %d", other, f.name, f.idx)
		}
		seen[f.idx] = f.name
	}
	return nil
}

// LastColumn returns the widest mapped column index.
func (c ColumnMap) LastColumn() int {
	last := 0
	for _, f := range c.fields() {
		if f.idx > last {
			last = f.idx
		}
	}
	return last
}

// HasExclude reports whether the schema carries a dedup column.
func (c ColumnMap) HasExclude() bool {
	return c.Exclude != NoColumn
}

// Malformed reports whether row is too short to hold the lock column.
func (c ColumnMap) Malformed(row []string) bool {
	return len(row) <= c.Assignee
}

// Excluded reports whether the dedup marker removes row from assignment.
func (c ColumnMap) Excluded(row []string) bool {
	return c.HasExclude() && cell(row, c.Exclude) == FlagSet
}

// Terminal reports whether row has been processed.
func (c ColumnMap) Terminal(row []string) bool {
	return cell(row, c.Processed) == FlagSet
}

// Eligible reports whether row may be claimed by a new caller.
func (c ColumnMap) Eligible(row []string) bool {
	return !c.Terminal(row) && !c.Excluded(row) && strings.TrimSpace(cell(row, c.Assignee)) == ""
}

// Resumable reports whether row is user's own unfinished work.
func (c ColumnMap) Resumable(row []string, user string) bool {
	return !c.Terminal(row) && cell(row, c.Assignee) == user
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
