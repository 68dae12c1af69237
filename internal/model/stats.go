package model

import (
	"sort"
	"strings"
)

// AssigneeStats counts one caller's rows.
type AssigneeStats struct {
	Assignee  string `json:"assignee"`
	Claimed   int    `json:"claimed"`
	Processed int    `json:"processed"`
	Passed    int    `json:"passed"`
}

// Stats summarizes a table for the admin view.
type Stats struct {
	Rows       int             `json:"rows"`
	Processed  int             `json:"processed"`
	Pending    int             `json:"pending"`
	Passed     int             `json:"passed"`
	Excluded   int             `json:"excluded"`
	InProgress int             `json:"in_progress"`
	Unassigned int             `json:"unassigned"`
	Malformed  int             `json:"malformed"`
	ByAssignee []AssigneeStats `json:"by_assignee"`
}

// Summarize computes Stats over every data row of t.
func Summarize(t *Table, cols ColumnMap) *Stats {
	st := &Stats{ByAssignee: []AssigneeStats{}}
	per := make(map[string]*AssigneeStats)

	for pos := 1; pos < t.Len(); pos++ {
		row := t.Row(pos)
		st.Rows++
		if cols.Malformed(row) {
			st.Malformed++
		}

		assignee := strings.TrimSpace(cell(row, cols.Assignee))
		var as *AssigneeStats
		if assignee != "" {
			as = per[assignee]
			if as == nil {
				as = &AssigneeStats{Assignee: assignee}
				per[assignee] = as
			}
			as.Claimed++
		}

		passed := cell(row, cols.Selected) == FlagSet
		switch {
		case cols.Terminal(row):
			st.Processed++
			if passed {
				st.Passed++
			}
			if as != nil {
				as.Processed++
				if passed {
					as.Passed++
				}
			}
		case cols.Excluded(row):
			st.Excluded++
		default:
			st.Pending++
			if as != nil {
				st.InProgress++
			} else {
				st.Unassigned++
			}
		}
	}

	for _, as := range per {
		st.ByAssignee = append(st.ByAssignee, *as)
	}
	sort.Slice(st.ByAssignee, func(i, j int) bool {
		if st.ByAssignee[i].Claimed != st.ByAssignee[j].Claimed {
			return st.ByAssignee[i].Claimed > st.ByAssignee[j].Claimed
		}
		return st.ByAssignee[i].Assignee < st.ByAssignee[j].Assignee
	})
	return st
}
